package metric

import (
	"sort"

	"github.com/beatrizalmeidaf/diarization-comparison/internal/segment"
)

// span is a closed-open [start, end) interval in seconds
type span struct {
	start float64
	end   float64
}

func (s span) duration() float64 {
	return s.end - s.start
}

// mergeSpans returns the sorted union of the given spans, coalescing any that
// overlap or touch within epsilon
func mergeSpans(spans []span) []span {
	if len(spans) == 0 {
		return nil
	}

	sorted := make([]span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].start == sorted[j].start {
			return sorted[i].end < sorted[j].end
		}
		return sorted[i].start < sorted[j].start
	})

	merged := []span{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end+epsilon {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}

	return merged
}

// totalDuration sums the lengths of already-merged spans
func totalDuration(spans []span) float64 {
	total := 0.0
	for _, s := range spans {
		total += s.duration()
	}
	return total
}

// intersectDuration computes the overlap duration between two merged span lists
func intersectDuration(a, b []span) float64 {
	total := 0.0
	i, j := 0, 0

	for i < len(a) && j < len(b) {
		start := a[i].start
		if b[j].start > start {
			start = b[j].start
		}
		end := a[i].end
		if b[j].end < end {
			end = b[j].end
		}
		if end > start {
			total += end - start
		}
		if a[i].end < b[j].end {
			i++
		} else {
			j++
		}
	}

	return total
}

// covers reports whether the merged spans contain the given point
func covers(spans []span, point float64) bool {
	for _, s := range spans {
		if point >= s.start && point < s.end {
			return true
		}
		if s.start > point {
			break
		}
	}
	return false
}

// speakerSpans groups a segment set into per-speaker merged spans, preserving
// the set's speaker order
func speakerSpans(set segment.Set) ([]string, map[string][]span) {
	speakers := set.Speakers()
	spans := make(map[string][]span, len(speakers))

	for _, seg := range set.Segments {
		spans[seg.Speaker] = append(spans[seg.Speaker], span{start: seg.Start, end: seg.End})
	}
	for spk, list := range spans {
		spans[spk] = mergeSpans(list)
	}

	return speakers, spans
}
