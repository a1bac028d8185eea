// Package adapter defines the interface diarization backends implement and the
// two concrete backends this pipeline compares: a PyAnnote-style HTTP sidecar
// and a SortFormer-style inference command. All shape-specific parsing of the
// raw outputs lives in the segment normalizer, not here.
package adapter

import (
	"context"

	"github.com/beatrizalmeidaf/diarization-comparison/internal/segment"
)

// Adapter is the capability a diarization backend exposes to the pipeline:
// map an audio file to raw speaker segments in the backend's native shape.
// Implementations are stateless between calls and honor context cancellation.
type Adapter interface {
	// Name returns the model name used to key results and reports.
	Name() string
	// Infer runs diarization on the audio at the given path.
	Infer(ctx context.Context, audioPath string) (*segment.RawOutput, error)
}
