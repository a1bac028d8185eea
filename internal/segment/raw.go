package segment

// Format identifies which backend produced a raw diarization output
type Format string

const (
	// FormatPyannote is the structured track list returned by the PyAnnote sidecar
	FormatPyannote Format = "pyannote"
	// FormatSortformer is the "start end speaker" line output of the SortFormer runner
	FormatSortformer Format = "sortformer"
)

// Track is a single speaker-attributed time range in the PyAnnote sidecar shape
type Track struct {
	Label string  `json:"speaker"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// RawOutput carries a backend's native diarization result before normalization.
// Exactly one of Tracks or Lines is populated, selected by Format.
type RawOutput struct {
	Format Format
	Tracks []Track
	Lines  []string
}
