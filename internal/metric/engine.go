// Package metric scores diarization hypotheses against reference annotation,
// producing DER (diarization error rate) and JER (Jaccard error rate) over the
// canonical segment representation.
package metric

import (
	"errors"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/beatrizalmeidaf/diarization-comparison/internal/segment"
)

// epsilon absorbs boundary jitter from sample-rate rounding
const epsilon = 1e-9

// DefaultCollar is the forgiveness window (seconds) removed around every
// reference segment boundary, following the standard 0.25s convention. The
// window is centered on the boundary, collar/2 on each side.
const DefaultCollar = 0.25

// ErrEmptyReference indicates an empty reference when the engine is configured
// to require one
var ErrEmptyReference = errors.New("reference contains no speech")

// Result holds the metrics for one (hypothesis, reference) pair
type Result struct {
	DER float64 `json:"der"`
	JER float64 `json:"jer"`
}

// Engine computes DER and JER between a hypothesis and a reference segment set
type Engine struct {
	collar           float64
	requireReference bool
	logger           *zap.Logger
}

// NewEngine creates an Engine with the default collar and the zero-division
// fallback for empty references
func NewEngine(logger *zap.Logger) *Engine {
	return NewEngineWithOptions(DefaultCollar, false, logger)
}

// NewEngineWithOptions creates an Engine with an explicit collar (0 disables
// it) and reference policy
func NewEngineWithOptions(collar float64, requireReference bool, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if collar < 0 {
		collar = 0
	}
	return &Engine{collar: collar, requireReference: requireReference, logger: logger}
}

// Compute scores the hypothesis against the reference. Interval arithmetic is
// closed-open; the speaker mapping is the exact overlap-maximizing assignment,
// so results are invariant under speaker label permutation.
func (e *Engine) Compute(hypothesis, reference segment.Set) (Result, error) {
	refSpeakers, refSpans := speakerSpans(reference)
	hypSpeakers, hypSpans := speakerSpans(hypothesis)

	if e.requireReference && reference.IsEmpty() {
		return Result{}, ErrEmptyReference
	}

	overlap := overlapMatrix(refSpeakers, refSpans, hypSpeakers, hypSpans)
	mapping := matchSpeakers(overlap, len(refSpeakers), len(hypSpeakers))

	der := e.computeDER(reference, hypothesis, refSpeakers, refSpans, hypSpeakers, hypSpans, mapping)
	jer := e.computeJER(refSpeakers, refSpans, hypSpeakers, hypSpans, mapping)

	e.logger.Debug("computed diarization metrics",
		zap.String("file_id", reference.FileID),
		zap.Float64("der", der),
		zap.Float64("jer", jer),
		zap.Int("reference_speakers", len(refSpeakers)),
		zap.Int("hypothesis_speakers", len(hypSpeakers)))

	return Result{DER: der, JER: jer}, nil
}

// overlapMatrix builds the per-pair overlap durations driving the assignment
func overlapMatrix(refSpeakers []string, refSpans map[string][]span, hypSpeakers []string, hypSpans map[string][]span) [][]float64 {
	matrix := make([][]float64, len(refSpeakers))
	for i, r := range refSpeakers {
		matrix[i] = make([]float64, len(hypSpeakers))
		for j, h := range hypSpeakers {
			matrix[i][j] = intersectDuration(refSpans[r], hypSpans[h])
		}
	}
	return matrix
}

// computeDER sweeps the elementary regions induced by all segment boundaries.
// Per region of length dt: miss is dt*max(0, Nref-Nhyp), false alarm is
// dt*max(0, Nhyp-Nref), confusion is dt*(min(Nref, Nhyp)-Ncorrect) where
// Ncorrect counts reference speakers whose mapped hypothesis speaker is active.
// Collar regions around reference boundaries are excluded from scoring and
// from the denominator.
func (e *Engine) computeDER(reference, hypothesis segment.Set, refSpeakers []string, refSpans map[string][]span, hypSpeakers []string, hypSpans map[string][]span, mapping map[int]int) float64 {
	forbidden := e.collarSpans(reference)

	boundaries := make([]float64, 0, 2*(len(reference.Segments)+len(hypothesis.Segments))+2*len(forbidden))
	for _, seg := range reference.Segments {
		boundaries = append(boundaries, seg.Start, seg.End)
	}
	for _, seg := range hypothesis.Segments {
		boundaries = append(boundaries, seg.Start, seg.End)
	}
	for _, s := range forbidden {
		boundaries = append(boundaries, s.start, s.end)
	}
	sort.Float64s(boundaries)

	hypIndex := make(map[string]int, len(hypSpeakers))
	for j, h := range hypSpeakers {
		hypIndex[h] = j
	}

	var refSpeech, miss, falseAlarm, confusion float64

	for i := 0; i+1 < len(boundaries); i++ {
		start, end := boundaries[i], boundaries[i+1]
		dt := end - start
		if dt <= epsilon {
			continue
		}
		mid := (start + end) / 2
		if covers(forbidden, mid) {
			continue
		}

		activeHyp := make(map[int]bool)
		for j, h := range hypSpeakers {
			if covers(hypSpans[h], mid) {
				activeHyp[j] = true
			}
		}

		nRef, nCorrect := 0, 0
		for ri, r := range refSpeakers {
			if !covers(refSpans[r], mid) {
				continue
			}
			nRef++
			if hj, ok := mapping[ri]; ok && activeHyp[hj] {
				nCorrect++
			}
		}
		nHyp := len(activeHyp)

		refSpeech += dt * float64(nRef)
		if nRef > nHyp {
			miss += dt * float64(nRef-nHyp)
		}
		if nHyp > nRef {
			falseAlarm += dt * float64(nHyp-nRef)
		}
		minN := nRef
		if nHyp < minN {
			minN = nHyp
		}
		confusion += dt * float64(minN-nCorrect)
	}

	if refSpeech <= epsilon {
		// Zero-division fallback: empty reference scores 0 against an empty
		// hypothesis and 1 against anything else.
		if hypothesis.IsEmpty() {
			return 0
		}
		return 1
	}

	return (miss + falseAlarm + confusion) / refSpeech
}

// computeJER averages per-speaker Jaccard error over the union of reference
// and hypothesis speakers after alignment; unmatched speakers score 1
func (e *Engine) computeJER(refSpeakers []string, refSpans map[string][]span, hypSpeakers []string, hypSpans map[string][]span, mapping map[int]int) float64 {
	matchedHyp := make(map[int]bool, len(mapping))
	for _, hj := range mapping {
		matchedHyp[hj] = true
	}

	count := len(refSpeakers)
	for j := range hypSpeakers {
		if !matchedHyp[j] {
			count++
		}
	}
	if count == 0 {
		return 0
	}

	total := 0.0
	for ri, r := range refSpeakers {
		hj, ok := mapping[ri]
		if !ok {
			total += 1
			continue
		}
		rs, hs := refSpans[r], hypSpans[hypSpeakers[hj]]
		inter := intersectDuration(rs, hs)
		union := totalDuration(rs) + totalDuration(hs) - inter
		if union <= epsilon {
			continue
		}
		total += 1 - inter/union
	}
	// Every hypothesis speaker the assignment left unmatched is full error.
	for j := range hypSpeakers {
		if !matchedHyp[j] {
			total += 1
		}
	}

	jer := total / float64(count)
	return math.Min(1, math.Max(0, jer))
}

// collarSpans builds the merged forgiveness windows around reference
// segment boundaries
func (e *Engine) collarSpans(reference segment.Set) []span {
	if e.collar <= 0 {
		return nil
	}
	half := e.collar / 2
	spans := make([]span, 0, 2*len(reference.Segments))
	for _, seg := range reference.Segments {
		spans = append(spans,
			span{start: seg.Start - half, end: seg.Start + half},
			span{start: seg.End - half, end: seg.End + half})
	}
	return mergeSpans(spans)
}
