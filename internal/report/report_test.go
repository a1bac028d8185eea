package report

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparisonReport_Record(t *testing.T) {
	t.Run("should preserve original file order regardless of completion order", func(t *testing.T) {
		// Arrange
		r := NewComparisonReport([]string{"a", "b", "c"}, []string{"pyannote"})

		// Act: record out of order
		require.NoError(t, r.Record(2, NewFileResult("c", "pyannote", 0.3, 0.3, 1)))
		require.NoError(t, r.Record(0, NewFileResult("a", "pyannote", 0.1, 0.1, 1)))
		require.NoError(t, r.Record(1, NewFileResult("b", "pyannote", 0.2, 0.2, 1)))
		r.Finalize()

		// Assert
		results := r.Results["pyannote"]
		require.Len(t, results, 3)
		assert.Equal(t, []string{"a", "b", "c"},
			[]string{results[0].FileID, results[1].FileID, results[2].FileID})
	})

	t.Run("should reject unknown model", func(t *testing.T) {
		r := NewComparisonReport([]string{"a"}, []string{"pyannote"})
		err := r.Record(0, NewFileResult("a", "mystery", 0, 0, 0))
		assert.Error(t, err)
	})

	t.Run("should reject out-of-range file index", func(t *testing.T) {
		r := NewComparisonReport([]string{"a"}, []string{"pyannote"})
		err := r.Record(5, NewFileResult("a", "pyannote", 0, 0, 0))
		assert.Error(t, err)
	})

	t.Run("should omit never-attempted pairs after cancellation", func(t *testing.T) {
		// Arrange
		r := NewComparisonReport([]string{"a", "b", "c"}, []string{"pyannote"})
		require.NoError(t, r.Record(0, NewFileResult("a", "pyannote", 0.1, 0.1, 1)))

		// Act
		r.Finalize()

		// Assert: partial report remains retrievable
		assert.Len(t, r.Results["pyannote"], 1)
		assert.True(t, r.Finalized())
	})
}

func TestComparisonReport_Aggregates(t *testing.T) {
	t.Run("should average successful results only", func(t *testing.T) {
		// Arrange
		r := NewComparisonReport([]string{"a", "b", "c"}, []string{"sortformer"})
		require.NoError(t, r.Record(0, NewFileResult("a", "sortformer", 0.2, 0.4, 2)))
		require.NoError(t, r.Record(1, NewFailedResult("b", "sortformer", ReasonModelInvocation, 0)))
		require.NoError(t, r.Record(2, NewFileResult("c", "sortformer", 0.4, 0.2, 4)))

		// Act
		r.Finalize()

		// Assert
		agg := r.Aggregates["sortformer"]
		assert.Equal(t, 2, agg.Succeeded)
		assert.Equal(t, 1, agg.Failed)
		assert.InDelta(t, 0.3, agg.MeanDER, 1e-9)
		assert.InDelta(t, 0.3, agg.MeanJER, 1e-9)
		assert.InDelta(t, 3.0, agg.MeanRuntimeSeconds, 1e-9)
		assert.InDelta(t, 2.0, agg.MinRuntimeSeconds, 1e-9)
		assert.InDelta(t, 4.0, agg.MaxRuntimeSeconds, 1e-9)
	})

	t.Run("should yield NaN means when every result failed", func(t *testing.T) {
		// Arrange
		r := NewComparisonReport([]string{"a"}, []string{"pyannote"})
		require.NoError(t, r.Record(0, NewFailedResult("a", "pyannote", ReasonIOFailure, 0)))

		// Act
		r.Finalize()

		// Assert
		agg := r.Aggregates["pyannote"]
		assert.True(t, math.IsNaN(agg.MeanDER))
		assert.True(t, math.IsNaN(agg.MeanJER))
		assert.True(t, math.IsNaN(agg.MeanRuntimeSeconds))
		assert.Equal(t, 1, agg.Failed)
	})
}

func TestComparisonReport_SpeedRatio(t *testing.T) {
	t.Run("should compute runtime ratio between models", func(t *testing.T) {
		// Arrange
		r := NewComparisonReport([]string{"a"}, []string{"pyannote", "sortformer"})
		require.NoError(t, r.Record(0, NewFileResult("a", "pyannote", 0.1, 0.1, 4)))
		require.NoError(t, r.Record(0, NewFileResult("a", "sortformer", 0.1, 0.1, 2)))
		r.Finalize()

		// Act & Assert
		assert.InDelta(t, 0.5, r.SpeedRatio("sortformer", "pyannote"), 1e-9)
	})

	t.Run("should be NaN when a side has no successes", func(t *testing.T) {
		// Arrange
		r := NewComparisonReport([]string{"a"}, []string{"pyannote", "sortformer"})
		require.NoError(t, r.Record(0, NewFailedResult("a", "pyannote", ReasonIOFailure, 0)))
		require.NoError(t, r.Record(0, NewFileResult("a", "sortformer", 0.1, 0.1, 2)))
		r.Finalize()

		// Act & Assert
		assert.True(t, math.IsNaN(r.SpeedRatio("sortformer", "pyannote")))
	})
}
