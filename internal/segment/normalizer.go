package segment

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrMalformedOutput indicates a backend payload that produced no usable segments
var ErrMalformedOutput = errors.New("malformed diarization output")

// Normalizer converts backend-native diarization output into the canonical
// segment representation used for all metric computation
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a new Normalizer instance
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Normalize converts a raw backend output into a canonical Set: segments sorted
// by start ascending with a stable tie-break on emission order, and speaker
// labels remapped to per-file-local SPEAKER_NN strings. Malformed segments are
// dropped with a warning; a payload yielding no segments at all returns
// ErrMalformedOutput.
func (n *Normalizer) Normalize(raw *RawOutput, fileID string, source Source) (Set, error) {
	if raw == nil {
		return Set{}, fmt.Errorf("%w: nil output", ErrMalformedOutput)
	}

	var segments []Segment
	var err error

	switch raw.Format {
	case FormatPyannote:
		segments = n.parseTracks(raw.Tracks, fileID)
	case FormatSortformer:
		segments = n.parseLines(raw.Lines, fileID)
	default:
		err = fmt.Errorf("%w: unknown source format %q", ErrMalformedOutput, raw.Format)
	}
	if err != nil {
		return Set{}, err
	}

	if len(segments) == 0 && !n.rawIsEmpty(raw) {
		return Set{}, fmt.Errorf("%w: no usable segments for file %s", ErrMalformedOutput, fileID)
	}

	// Stable sort keeps emission order for equal start times
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})

	n.canonicalizeLabels(segments)

	return Set{FileID: fileID, Source: source, Segments: segments}, nil
}

// NormalizeReference re-canonicalizes an already-parsed segment set, keeping the
// same ordering and labeling guarantees as Normalize
func (n *Normalizer) NormalizeReference(set Set) Set {
	segments := make([]Segment, len(set.Segments))
	copy(segments, set.Segments)

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
	n.canonicalizeLabels(segments)

	return Set{FileID: set.FileID, Source: set.Source, Segments: segments}
}

// parseTracks converts PyAnnote-style structured tracks, dropping invalid ones
func (n *Normalizer) parseTracks(tracks []Track, fileID string) []Segment {
	segments := make([]Segment, 0, len(tracks))

	for _, t := range tracks {
		seg := Segment{Speaker: t.Label, Start: t.Start, End: t.End}
		if err := seg.Validate(); err != nil {
			n.logger.Warn("dropping malformed segment",
				zap.String("file_id", fileID),
				zap.String("speaker", t.Label),
				zap.Float64("start", t.Start),
				zap.Float64("end", t.End),
				zap.Error(err))
			continue
		}
		segments = append(segments, seg)
	}

	return segments
}

// parseLines converts SortFormer-style "start end speaker" lines, dropping
// lines that cannot be parsed into a valid segment
func (n *Normalizer) parseLines(lines []string, fileID string) []Segment {
	segments := make([]Segment, 0, len(lines))

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			if strings.TrimSpace(line) != "" {
				n.logger.Warn("dropping malformed segment line",
					zap.String("file_id", fileID),
					zap.String("line", line))
			}
			continue
		}

		start, errStart := strconv.ParseFloat(fields[0], 64)
		end, errEnd := strconv.ParseFloat(fields[1], 64)
		if errStart != nil || errEnd != nil {
			n.logger.Warn("dropping segment line with unparseable times",
				zap.String("file_id", fileID),
				zap.String("line", line))
			continue
		}

		seg := Segment{
			Speaker: strings.Join(fields[2:], " "),
			Start:   start,
			End:     end,
		}
		if err := seg.Validate(); err != nil {
			n.logger.Warn("dropping malformed segment",
				zap.String("file_id", fileID),
				zap.String("line", line),
				zap.Error(err))
			continue
		}

		segments = append(segments, seg)
	}

	return segments
}

// canonicalizeLabels remaps speaker labels to SPEAKER_NN in first-appearance
// order so downstream scoring is independent of backend labeling schemes
func (n *Normalizer) canonicalizeLabels(segments []Segment) {
	mapping := make(map[string]string)

	for i := range segments {
		canonical, ok := mapping[segments[i].Speaker]
		if !ok {
			canonical = fmt.Sprintf("SPEAKER_%02d", len(mapping))
			mapping[segments[i].Speaker] = canonical
		}
		segments[i].Speaker = canonical
	}
}

// rawIsEmpty reports whether the payload genuinely contained nothing, as
// opposed to containing only unusable entries
func (n *Normalizer) rawIsEmpty(raw *RawOutput) bool {
	if len(raw.Tracks) > 0 {
		return false
	}
	for _, line := range raw.Lines {
		if strings.TrimSpace(line) != "" {
			return false
		}
	}
	return true
}
