package segment

import "fmt"

// Segment represents a single contiguous time interval attributed to one speaker.
// Times are in seconds and intervals are closed-open [Start, End).
type Segment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Validate checks if the Segment has valid values
func (s *Segment) Validate() error {
	if s.Speaker == "" {
		return fmt.Errorf("speaker cannot be empty")
	}

	if s.Start < 0 {
		return fmt.Errorf("start cannot be negative")
	}

	if s.End <= s.Start {
		return fmt.Errorf("end must be greater than start")
	}

	return nil
}

// Duration returns the segment length in seconds
func (s *Segment) Duration() float64 {
	return s.End - s.Start
}

// Source identifies where a segment set came from
type Source string

const (
	// SourceReference marks ground-truth annotation sets
	SourceReference Source = "reference"
)

// Set is an ordered sequence of segments for one (file, source) pair.
// Segments from a model may overlap each other; reference segments for a
// single speaker never overlap.
type Set struct {
	FileID   string    `json:"file_id"`
	Source   Source    `json:"source"`
	Segments []Segment `json:"segments"`
}

// Speakers returns the distinct speaker labels in first-appearance order
func (s *Set) Speakers() []string {
	seen := make(map[string]bool)
	speakers := make([]string, 0)

	for _, seg := range s.Segments {
		if !seen[seg.Speaker] {
			seen[seg.Speaker] = true
			speakers = append(speakers, seg.Speaker)
		}
	}

	return speakers
}

// SpeakerIntervals returns the segments grouped by speaker label
func (s *Set) SpeakerIntervals() map[string][]Segment {
	intervals := make(map[string][]Segment)
	for _, seg := range s.Segments {
		intervals[seg.Speaker] = append(intervals[seg.Speaker], seg)
	}
	return intervals
}

// IsEmpty reports whether the set contains no segments
func (s *Set) IsEmpty() bool {
	return len(s.Segments) == 0
}
