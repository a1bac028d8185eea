package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/beatrizalmeidaf/diarization-comparison/internal/segment"
)

// WriteCSV renders one row per (file, model) pair with metric columns; failed
// pairs show their failure reason instead of metric values
func WriteCSV(r *ComparisonReport, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"file_id", "model", "der", "jer", "runtime_seconds", "status"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, model := range r.ModelNames {
		for _, res := range r.Results[model] {
			row := []string{res.FileID, res.ModelName}
			if res.Failed {
				row = append(row, "", "", formatFloat(res.RuntimeSeconds), "failed:"+res.FailureReason)
			} else {
				row = append(row,
					formatFloat(res.DER),
					formatFloat(res.JER),
					formatFloat(res.RuntimeSeconds),
					"ok")
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON renders the full report, NaN aggregates encoded as null
func WriteJSON(r *ComparisonReport, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonSafeReport(r)); err != nil {
		return fmt.Errorf("failed to encode report JSON: %w", err)
	}
	return nil
}

// WriteSummaryJSON renders only the per-model aggregates and speed ratio
func WriteSummaryJSON(r *ComparisonReport, w io.Writer) error {
	summary := map[string]interface{}{
		"aggregates": jsonSafeAggregates(r.Aggregates),
	}
	if len(r.ModelNames) == 2 {
		summary["speed_ratio"] = nanToNil(r.SpeedRatio(r.ModelNames[1], r.ModelNames[0]))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary JSON: %w", err)
	}
	return nil
}

// RenderText produces the human-readable summary printed at the end of a run
func RenderText(r *ComparisonReport) string {
	var b strings.Builder

	b.WriteString("Diarization comparison summary\n")
	fmt.Fprintf(&b, "Files: %d\n\n", len(r.FileIDs))

	for _, model := range r.ModelNames {
		agg := r.Aggregates[model]
		fmt.Fprintf(&b, "Model %s: %d ok, %d failed\n", model, agg.Succeeded, agg.Failed)
		fmt.Fprintf(&b, "  mean DER:     %s\n", formatMetric(agg.MeanDER))
		fmt.Fprintf(&b, "  mean JER:     %s\n", formatMetric(agg.MeanJER))
		fmt.Fprintf(&b, "  mean runtime: %ss (min %ss, max %ss)\n",
			formatMetric(agg.MeanRuntimeSeconds),
			formatMetric(agg.MinRuntimeSeconds),
			formatMetric(agg.MaxRuntimeSeconds))
	}

	if len(r.ModelNames) == 2 {
		ratio := r.SpeedRatio(r.ModelNames[1], r.ModelNames[0])
		if !math.IsNaN(ratio) {
			fmt.Fprintf(&b, "\nSpeed ratio (%s/%s): %.2f\n", r.ModelNames[1], r.ModelNames[0], ratio)
		}
	}

	return b.String()
}

// WriteComparisonText dumps both models' normalized segments for one file
// side by side
func WriteComparisonText(fileID string, sets []segment.Set, w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Diarization results for: %s\n", fileID)

	for _, set := range sets {
		fmt.Fprintf(&b, "\n%s:\n", set.Source)
		for _, seg := range set.Segments {
			fmt.Fprintf(&b, "%s: %.2f - %.2f\n", seg.Speaker, seg.Start, seg.End)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write comparison text for %s: %w", fileID, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatMetric(v float64) string {
	if math.IsNaN(v) {
		return "N/A"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func nanToNil(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// jsonSafeReport mirrors the report with NaN-free aggregate values, since
// encoding/json rejects NaN
func jsonSafeReport(r *ComparisonReport) map[string]interface{} {
	return map[string]interface{}{
		"file_ids":    r.FileIDs,
		"model_names": r.ModelNames,
		"results":     r.Results,
		"aggregates":  jsonSafeAggregates(r.Aggregates),
	}
}

func jsonSafeAggregates(aggs map[string]Aggregate) map[string]interface{} {
	out := make(map[string]interface{}, len(aggs))
	for model, agg := range aggs {
		out[model] = map[string]interface{}{
			"model_name":           agg.ModelName,
			"mean_der":             nanToNil(agg.MeanDER),
			"mean_jer":             nanToNil(agg.MeanJER),
			"mean_runtime_seconds": nanToNil(agg.MeanRuntimeSeconds),
			"min_runtime_seconds":  nanToNil(agg.MinRuntimeSeconds),
			"max_runtime_seconds":  nanToNil(agg.MaxRuntimeSeconds),
			"succeeded":            agg.Succeeded,
			"failed":               agg.Failed,
		}
	}
	return out
}
