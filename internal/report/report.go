// Package report collects per-file metric results into a comparison report
// with per-model aggregates and renders the result artifacts.
package report

import (
	"fmt"
	"math"
)

// Failure reason categories recorded on failed (file, model) pairs
const (
	ReasonIOFailure         = "io_failure"
	ReasonModelInvocation   = "model_invocation"
	ReasonMalformedOutput   = "malformed_output"
	ReasonMetricComputation = "metric_computation"
)

// FileResult holds the outcome of one (file, model) run. It is immutable once
// recorded; a failed run carries its reason instead of metric values, never a
// substituted zero.
type FileResult struct {
	FileID         string  `json:"file_id"`
	ModelName      string  `json:"model_name"`
	DER            float64 `json:"der"`
	JER            float64 `json:"jer"`
	RuntimeSeconds float64 `json:"runtime_seconds"`
	Failed         bool    `json:"failed"`
	FailureReason  string  `json:"failure_reason,omitempty"`
}

// NewFileResult creates a successful result
func NewFileResult(fileID, modelName string, der, jer, runtimeSeconds float64) FileResult {
	return FileResult{
		FileID:         fileID,
		ModelName:      modelName,
		DER:            der,
		JER:            jer,
		RuntimeSeconds: runtimeSeconds,
	}
}

// NewFailedResult creates a sentinel failure result for a (file, model) pair
func NewFailedResult(fileID, modelName, reason string, runtimeSeconds float64) FileResult {
	return FileResult{
		FileID:         fileID,
		ModelName:      modelName,
		RuntimeSeconds: runtimeSeconds,
		Failed:         true,
		FailureReason:  reason,
	}
}

// Aggregate holds per-model means over successful results. Means are NaN when
// a model produced no successful result.
type Aggregate struct {
	ModelName          string  `json:"model_name"`
	MeanDER            float64 `json:"mean_der"`
	MeanJER            float64 `json:"mean_jer"`
	MeanRuntimeSeconds float64 `json:"mean_runtime_seconds"`
	MinRuntimeSeconds  float64 `json:"min_runtime_seconds"`
	MaxRuntimeSeconds  float64 `json:"max_runtime_seconds"`
	Succeeded          int     `json:"succeeded"`
	Failed             int     `json:"failed"`
}

// ComparisonReport maps each model to its ordered per-file results plus the
// derived aggregates. Results keep the original file ordering regardless of
// execution order; aggregates are computed only on Finalize.
type ComparisonReport struct {
	FileIDs    []string                `json:"file_ids"`
	ModelNames []string                `json:"model_names"`
	Results    map[string][]FileResult `json:"results"`
	Aggregates map[string]Aggregate    `json:"aggregates,omitempty"`

	slots     map[string][]*FileResult
	finalized bool
}

// NewComparisonReport creates a report with one result slot per (file, model)
// pair, addressed by the original file ordering
func NewComparisonReport(fileIDs, modelNames []string) *ComparisonReport {
	slots := make(map[string][]*FileResult, len(modelNames))
	for _, model := range modelNames {
		slots[model] = make([]*FileResult, len(fileIDs))
	}
	return &ComparisonReport{
		FileIDs:    append([]string{}, fileIDs...),
		ModelNames: append([]string{}, modelNames...),
		Results:    make(map[string][]FileResult, len(modelNames)),
		slots:      slots,
	}
}

// Record stores a result in its (model, file index) slot. Results arriving out
// of completion order land in their original position.
func (r *ComparisonReport) Record(fileIndex int, result FileResult) error {
	slots, ok := r.slots[result.ModelName]
	if !ok {
		return fmt.Errorf("unknown model %q", result.ModelName)
	}
	if fileIndex < 0 || fileIndex >= len(slots) {
		return fmt.Errorf("file index %d out of range for %d files", fileIndex, len(slots))
	}
	slots[fileIndex] = &result
	return nil
}

// Finalize assembles the ordered result lists (pairs never attempted, e.g.
// after cancellation, are omitted) and computes per-model aggregates over
// successful results only
func (r *ComparisonReport) Finalize() {
	for _, model := range r.ModelNames {
		ordered := make([]FileResult, 0, len(r.FileIDs))
		for _, slot := range r.slots[model] {
			if slot != nil {
				ordered = append(ordered, *slot)
			}
		}
		r.Results[model] = ordered
	}

	r.Aggregates = make(map[string]Aggregate, len(r.ModelNames))
	for _, model := range r.ModelNames {
		r.Aggregates[model] = aggregate(model, r.Results[model])
	}
	r.finalized = true
}

// Finalized reports whether aggregates have been computed
func (r *ComparisonReport) Finalized() bool {
	return r.finalized
}

// SpeedRatio returns mean runtime of model a divided by mean runtime of model
// b, or NaN when either side has no successful results
func (r *ComparisonReport) SpeedRatio(a, b string) float64 {
	aggA, okA := r.Aggregates[a]
	aggB, okB := r.Aggregates[b]
	if !okA || !okB || aggB.MeanRuntimeSeconds == 0 {
		return math.NaN()
	}
	return aggA.MeanRuntimeSeconds / aggB.MeanRuntimeSeconds
}

func aggregate(model string, results []FileResult) Aggregate {
	agg := Aggregate{
		ModelName:          model,
		MeanDER:            math.NaN(),
		MeanJER:            math.NaN(),
		MeanRuntimeSeconds: math.NaN(),
		MinRuntimeSeconds:  math.NaN(),
		MaxRuntimeSeconds:  math.NaN(),
	}

	var sumDER, sumJER, sumRuntime float64
	for _, res := range results {
		if res.Failed {
			agg.Failed++
			continue
		}
		if agg.Succeeded == 0 {
			agg.MinRuntimeSeconds = res.RuntimeSeconds
			agg.MaxRuntimeSeconds = res.RuntimeSeconds
		} else {
			agg.MinRuntimeSeconds = math.Min(agg.MinRuntimeSeconds, res.RuntimeSeconds)
			agg.MaxRuntimeSeconds = math.Max(agg.MaxRuntimeSeconds, res.RuntimeSeconds)
		}
		agg.Succeeded++
		sumDER += res.DER
		sumJER += res.JER
		sumRuntime += res.RuntimeSeconds
	}

	if agg.Succeeded > 0 {
		n := float64(agg.Succeeded)
		agg.MeanDER = sumDER / n
		agg.MeanJER = sumJER / n
		agg.MeanRuntimeSeconds = sumRuntime / n
	}
	return agg
}
