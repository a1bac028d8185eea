package metric

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatrizalmeidaf/diarization-comparison/internal/segment"
)

func makeSet(fileID string, segs ...segment.Segment) segment.Set {
	return segment.Set{FileID: fileID, Segments: segs}
}

func TestEngine_Compute_DER(t *testing.T) {
	t.Run("should score zero when hypothesis equals reference", func(t *testing.T) {
		// Arrange
		engine := NewEngineWithOptions(0, false, nil)
		ref := makeSet("audio1",
			segment.Segment{Speaker: "A", Start: 0, End: 5},
			segment.Segment{Speaker: "B", Start: 5, End: 10})
		hyp := makeSet("audio1",
			segment.Segment{Speaker: "A", Start: 0, End: 5},
			segment.Segment{Speaker: "B", Start: 5, End: 10})

		// Act
		result, err := engine.Compute(hyp, ref)

		// Assert
		require.NoError(t, err)
		assert.InDelta(t, 0.0, result.DER, 1e-9)
		assert.InDelta(t, 0.0, result.JER, 1e-9)
	})

	t.Run("should score zero after optimal alignment of relabeled speakers", func(t *testing.T) {
		// Arrange
		engine := NewEngineWithOptions(0, false, nil)
		ref := makeSet("audio1",
			segment.Segment{Speaker: "A", Start: 0, End: 5},
			segment.Segment{Speaker: "B", Start: 5, End: 10})
		hyp := makeSet("audio1",
			segment.Segment{Speaker: "X", Start: 0, End: 5},
			segment.Segment{Speaker: "Y", Start: 5, End: 10})

		// Act
		result, err := engine.Compute(hyp, ref)

		// Assert
		require.NoError(t, err)
		assert.InDelta(t, 0.0, result.DER, 1e-9)
		assert.InDelta(t, 0.0, result.JER, 1e-9)
	})

	t.Run("should score full miss when model detected nothing", func(t *testing.T) {
		// Arrange
		engine := NewEngineWithOptions(0, false, nil)
		ref := makeSet("audio1", segment.Segment{Speaker: "A", Start: 0, End: 10})
		hyp := makeSet("audio1")

		// Act
		result, err := engine.Compute(hyp, ref)

		// Assert
		require.NoError(t, err)
		assert.InDelta(t, 1.0, result.DER, 1e-9)
		assert.InDelta(t, 1.0, result.JER, 1e-9)
	})

	t.Run("should count false alarm time outside reference speech", func(t *testing.T) {
		// Arrange
		engine := NewEngineWithOptions(0, false, nil)
		ref := makeSet("audio1", segment.Segment{Speaker: "A", Start: 0, End: 10})
		hyp := makeSet("audio1",
			segment.Segment{Speaker: "X", Start: 0, End: 10},
			segment.Segment{Speaker: "X", Start: 10, End: 15})

		// Act
		result, err := engine.Compute(hyp, ref)

		// Assert
		require.NoError(t, err)
		// 5s false alarm over 10s of reference speech
		assert.InDelta(t, 0.5, result.DER, 1e-9)
	})

	t.Run("should count confusion time for wrongly matched speakers", func(t *testing.T) {
		// Arrange
		engine := NewEngineWithOptions(0, false, nil)
		ref := makeSet("audio1",
			segment.Segment{Speaker: "A", Start: 0, End: 8},
			segment.Segment{Speaker: "B", Start: 8, End: 10})
		// X covers A's span plus B's span: X maps to A, B's 2s become confusion
		hyp := makeSet("audio1", segment.Segment{Speaker: "X", Start: 0, End: 10})

		// Act
		result, err := engine.Compute(hyp, ref)

		// Assert
		require.NoError(t, err)
		assert.InDelta(t, 0.2, result.DER, 1e-9)
	})

	t.Run("should be well defined for empty reference", func(t *testing.T) {
		// Arrange
		engine := NewEngineWithOptions(0, false, nil)
		ref := makeSet("audio1")

		// Act
		emptyResult, err1 := engine.Compute(makeSet("audio1"), ref)
		fullResult, err2 := engine.Compute(makeSet("audio1", segment.Segment{Speaker: "X", Start: 0, End: 5}), ref)

		// Assert
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.InDelta(t, 0.0, emptyResult.DER, 1e-9)
		assert.InDelta(t, 1.0, fullResult.DER, 1e-9)
	})

	t.Run("should fail on empty reference when configured to require one", func(t *testing.T) {
		// Arrange
		engine := NewEngineWithOptions(0, true, nil)

		// Act
		_, err := engine.Compute(makeSet("audio1"), makeSet("audio1"))

		// Assert
		assert.ErrorIs(t, err, ErrEmptyReference)
	})

	t.Run("should score overlapping speech per concurrent speaker", func(t *testing.T) {
		// Arrange
		engine := NewEngineWithOptions(0, false, nil)
		ref := makeSet("audio1",
			segment.Segment{Speaker: "A", Start: 0, End: 10},
			segment.Segment{Speaker: "B", Start: 5, End: 10})
		hyp := makeSet("audio1", segment.Segment{Speaker: "X", Start: 0, End: 10})

		// Act
		result, err := engine.Compute(hyp, ref)

		// Assert
		require.NoError(t, err)
		// Reference speech is 15s; B's overlapped 5s are missed.
		assert.InDelta(t, 5.0/15.0, result.DER, 1e-9)
	})
}

func TestEngine_Compute_Collar(t *testing.T) {
	t.Run("should forgive boundary jitter within the collar", func(t *testing.T) {
		// Arrange
		withCollar := NewEngineWithOptions(0.25, false, nil)
		noCollar := NewEngineWithOptions(0, false, nil)
		ref := makeSet("audio1",
			segment.Segment{Speaker: "A", Start: 0, End: 5},
			segment.Segment{Speaker: "B", Start: 5, End: 10})
		hyp := makeSet("audio1",
			segment.Segment{Speaker: "A", Start: 0, End: 5.1},
			segment.Segment{Speaker: "B", Start: 5.1, End: 10})

		// Act
		forgiving, err1 := withCollar.Compute(hyp, ref)
		strict, err2 := noCollar.Compute(hyp, ref)

		// Assert
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.InDelta(t, 0.0, forgiving.DER, 1e-9, "0.1s jitter sits inside the 0.25s collar")
		assert.Greater(t, strict.DER, 0.0, "without a collar the jitter is confusion time")
	})

	t.Run("should use the standard collar by default", func(t *testing.T) {
		engine := NewEngine(nil)
		assert.InDelta(t, DefaultCollar, engine.collar, 1e-9)
	})
}

func TestEngine_Compute_JER(t *testing.T) {
	t.Run("should stay within zero and one", func(t *testing.T) {
		// Arrange
		engine := NewEngineWithOptions(0, false, nil)
		rng := rand.New(rand.NewSource(42))

		for trial := 0; trial < 50; trial++ {
			var refSegs, hypSegs []segment.Segment
			for i := 0; i < 1+rng.Intn(5); i++ {
				start := rng.Float64() * 20
				refSegs = append(refSegs, segment.Segment{
					Speaker: string(rune('A' + rng.Intn(3))),
					Start:   start,
					End:     start + 0.5 + rng.Float64()*5,
				})
			}
			for i := 0; i < rng.Intn(5); i++ {
				start := rng.Float64() * 20
				hypSegs = append(hypSegs, segment.Segment{
					Speaker: string(rune('X' + rng.Intn(3))),
					Start:   start,
					End:     start + 0.5 + rng.Float64()*5,
				})
			}

			// Act
			result, err := engine.Compute(makeSet("f", hypSegs...), makeSet("f", refSegs...))

			// Assert
			require.NoError(t, err)
			assert.GreaterOrEqual(t, result.JER, 0.0)
			assert.LessOrEqual(t, result.JER, 1.0)
		}
	})

	t.Run("should penalize unmatched hypothesis speakers", func(t *testing.T) {
		// Arrange
		engine := NewEngineWithOptions(0, false, nil)
		ref := makeSet("audio1", segment.Segment{Speaker: "A", Start: 0, End: 10})
		hyp := makeSet("audio1",
			segment.Segment{Speaker: "X", Start: 0, End: 10},
			segment.Segment{Speaker: "Y", Start: 20, End: 30})

		// Act
		result, err := engine.Compute(hyp, ref)

		// Assert
		require.NoError(t, err)
		// A<->X matches perfectly (0); Y is unmatched (1); mean over 2 speakers.
		assert.InDelta(t, 0.5, result.JER, 1e-9)
	})

	t.Run("should reflect partial overlap of matched speakers", func(t *testing.T) {
		// Arrange
		engine := NewEngineWithOptions(0, false, nil)
		ref := makeSet("audio1", segment.Segment{Speaker: "A", Start: 0, End: 10})
		hyp := makeSet("audio1", segment.Segment{Speaker: "X", Start: 0, End: 5})

		// Act
		result, err := engine.Compute(hyp, ref)

		// Assert
		require.NoError(t, err)
		// intersection 5, union 10
		assert.InDelta(t, 0.5, result.JER, 1e-9)
	})
}

func TestEngine_Compute_OrderInvariance(t *testing.T) {
	t.Run("should not change metrics when speaker label order is permuted", func(t *testing.T) {
		// Arrange
		engine := NewEngineWithOptions(0, false, nil)
		ref := makeSet("audio1",
			segment.Segment{Speaker: "A", Start: 0, End: 4},
			segment.Segment{Speaker: "B", Start: 4, End: 7},
			segment.Segment{Speaker: "C", Start: 7, End: 12})
		hyp := makeSet("audio1",
			segment.Segment{Speaker: "U", Start: 0, End: 3.5},
			segment.Segment{Speaker: "V", Start: 3.5, End: 8},
			segment.Segment{Speaker: "W", Start: 8, End: 12})
		permuted := makeSet("audio1",
			segment.Segment{Speaker: "W", Start: 8, End: 12},
			segment.Segment{Speaker: "V", Start: 3.5, End: 8},
			segment.Segment{Speaker: "U", Start: 0, End: 3.5})

		// Act
		original, err1 := engine.Compute(hyp, ref)
		reordered, err2 := engine.Compute(permuted, ref)

		// Assert
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.InDelta(t, original.DER, reordered.DER, 1e-9)
		assert.InDelta(t, original.JER, reordered.JER, 1e-9)
	})
}

func TestSolveAssignment(t *testing.T) {
	t.Run("should find the minimum cost assignment", func(t *testing.T) {
		// Arrange
		cost := [][]float64{
			{4, 1, 3},
			{2, 0, 5},
			{3, 2, 2},
		}

		// Act
		assignment := solveAssignment(cost)

		// Assert: optimal is 1+2+2=5 via (0->1, 1->0, 2->2)
		assert.Equal(t, []int{1, 0, 2}, assignment)
	})

	t.Run("should handle a single element", func(t *testing.T) {
		assignment := solveAssignment([][]float64{{7}})
		assert.Equal(t, []int{0}, assignment)
	})

	t.Run("should handle an empty matrix", func(t *testing.T) {
		assert.Nil(t, solveAssignment(nil))
	})
}

func TestMatchSpeakers(t *testing.T) {
	t.Run("should avoid greedy order-dependent matches", func(t *testing.T) {
		// Arrange: greedy would give ref0 the 6.0 overlap, stranding ref1 at 1.0
		// (total 7); optimal pairs ref0->hyp1 and ref1->hyp0 (total 9).
		overlap := [][]float64{
			{6, 5},
			{4, 1},
		}

		// Act
		mapping := matchSpeakers(overlap, 2, 2)

		// Assert
		assert.Equal(t, map[int]int{0: 1, 1: 0}, mapping)
	})

	t.Run("should leave zero-overlap speakers unmatched", func(t *testing.T) {
		// Arrange
		overlap := [][]float64{
			{3, 0},
			{0, 0},
		}

		// Act
		mapping := matchSpeakers(overlap, 2, 2)

		// Assert
		assert.Equal(t, map[int]int{0: 0}, mapping)
	})

	t.Run("should handle more hypothesis speakers than reference speakers", func(t *testing.T) {
		// Arrange
		overlap := [][]float64{{1, 4, 2}}

		// Act
		mapping := matchSpeakers(overlap, 1, 3)

		// Assert
		assert.Equal(t, map[int]int{0: 1}, mapping)
	})
}
