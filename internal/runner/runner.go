// Package runner orchestrates the comparison batch: every (file, model) pair
// is loaded, inferred, normalized, and scored independently, and the outcomes
// are collected into a ComparisonReport.
package runner

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/beatrizalmeidaf/diarization-comparison/internal/adapter"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/audio"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/metric"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/performance"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/reference"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/report"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/segment"
)

// SegmentSink receives each successfully normalized hypothesis set as pairs
// complete. Implementations must be safe for concurrent calls.
type SegmentSink func(fileID string, set segment.Set)

// Runner executes the comparison pipeline over all configured files and models
type Runner struct {
	audio        *audio.Access
	adapters     []adapter.Adapter
	normalizer   *segment.Normalizer
	references   *reference.Loader
	engine       *metric.Engine
	monitor      *performance.Monitor
	logger       *zap.Logger
	audioDir     string
	workers      int
	inferTimeout time.Duration
	resolvePath  func(fileID string) string
	segmentSink  SegmentSink
}

// NewRunner creates a Runner. Audio paths default to <audioDir>/<fileID>.wav;
// workers <= 1 runs the batch sequentially.
func NewRunner(
	access *audio.Access,
	adapters []adapter.Adapter,
	normalizer *segment.Normalizer,
	references *reference.Loader,
	engine *metric.Engine,
	monitor *performance.Monitor,
	audioDir string,
	workers int,
	inferTimeout time.Duration,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	r := &Runner{
		audio:        access,
		adapters:     adapters,
		normalizer:   normalizer,
		references:   references,
		engine:       engine,
		monitor:      monitor,
		logger:       logger,
		audioDir:     audioDir,
		workers:      workers,
		inferTimeout: inferTimeout,
	}
	r.resolvePath = func(fileID string) string {
		return filepath.Join(r.audioDir, fileID+".wav")
	}
	return r
}

// SetPathResolver overrides the default fileID-to-path mapping
func (r *Runner) SetPathResolver(resolve func(fileID string) string) {
	if resolve != nil {
		r.resolvePath = resolve
	}
}

// SetSegmentSink registers a sink for normalized hypothesis sets
func (r *Runner) SetSegmentSink(sink SegmentSink) {
	r.segmentSink = sink
}

// Run processes every (file, model) pair and returns the finalized report.
// Single-pair failures become recorded failure results; the batch never
// aborts for them. On cancellation the partial report is returned together
// with the context error; results collected so far remain valid.
func (r *Runner) Run(ctx context.Context, fileIDs []string) (*report.ComparisonReport, error) {
	modelNames := make([]string, len(r.adapters))
	for i, adp := range r.adapters {
		modelNames[i] = adp.Name()
	}
	rep := report.NewComparisonReport(fileIDs, modelNames)

	r.logger.Info("starting comparison batch",
		zap.Int("files", len(fileIDs)),
		zap.Strings("models", modelNames),
		zap.Int("workers", r.workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	// Join-collect: each pair owns its (model, file index) slot, so no result
	// locking is needed and the report keeps the original file order.
scheduling:
	for fileIdx, fileID := range fileIDs {
		for _, adp := range r.adapters {
			if gctx.Err() != nil {
				r.logger.Warn("cancellation received, not scheduling remaining pairs",
					zap.String("file_id", fileID))
				break scheduling
			}
			fileIdx, fileID, adp := fileIdx, fileID, adp
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				result := r.runPair(gctx, fileID, adp)
				if err := rep.Record(fileIdx, result); err != nil {
					r.logger.Error("failed to record result", zap.Error(err))
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		// Workers never return errors; failures are recorded results.
		r.logger.Error("unexpected worker error", zap.Error(err))
	}

	rep.Finalize()

	if ctx.Err() != nil {
		r.logger.Warn("comparison batch cancelled, returning partial report",
			zap.Error(ctx.Err()))
		return rep, ctx.Err()
	}

	r.logger.Info("comparison batch completed", zap.Int("files", len(fileIDs)))
	return rep, nil
}

// runPair executes one (file, model) pair end to end. Wall-clock runtime
// covers the model invocation only.
func (r *Runner) runPair(ctx context.Context, fileID string, adp adapter.Adapter) report.FileResult {
	model := adp.Name()
	audioPath := r.resolvePath(fileID)

	samples, sampleRate, err := r.audio.Load(audioPath)
	if err != nil {
		r.logger.Error("failed to load audio",
			zap.String("file_id", fileID),
			zap.String("model", model),
			zap.Error(err))
		return report.NewFailedResult(fileID, model, report.ReasonIOFailure, 0)
	}
	r.logger.Debug("audio loaded",
		zap.String("file_id", fileID),
		zap.Float64("duration_s", audio.Duration(samples, sampleRate)),
		zap.Int("sample_rate", sampleRate))

	inferCtx := ctx
	if r.inferTimeout > 0 {
		var cancel context.CancelFunc
		inferCtx, cancel = context.WithTimeout(ctx, r.inferTimeout)
		defer cancel()
	}

	var timer *performance.InferenceTimer
	if r.monitor != nil {
		timer = r.monitor.StartInference(model, fileID)
	}
	start := time.Now()
	raw, inferErr := adp.Infer(inferCtx, audioPath)
	runtime := time.Since(start).Seconds()
	if r.monitor != nil {
		r.monitor.EndInference(timer, inferErr != nil)
	}

	if inferErr != nil {
		if errors.Is(inferErr, context.DeadlineExceeded) {
			r.logger.Error("model invocation timed out",
				zap.String("file_id", fileID),
				zap.String("model", model),
				zap.Duration("timeout", r.inferTimeout))
		} else {
			r.logger.Error("model invocation failed",
				zap.String("file_id", fileID),
				zap.String("model", model),
				zap.Error(inferErr))
		}
		return report.NewFailedResult(fileID, model, report.ReasonModelInvocation, runtime)
	}

	hypothesis, err := r.normalizer.Normalize(raw, fileID, segment.Source(model))
	if err != nil {
		r.logger.Error("model output could not be normalized",
			zap.String("file_id", fileID),
			zap.String("model", model),
			zap.Error(err))
		return report.NewFailedResult(fileID, model, report.ReasonMalformedOutput, runtime)
	}

	ref, err := r.references.Load(fileID)
	if err != nil {
		r.logger.Error("failed to load reference annotation",
			zap.String("file_id", fileID),
			zap.String("model", model),
			zap.Error(err))
		return report.NewFailedResult(fileID, model, report.ReasonIOFailure, runtime)
	}
	ref = r.normalizer.NormalizeReference(ref)

	result, err := r.engine.Compute(hypothesis, ref)
	if err != nil {
		r.logger.Error("metric computation failed",
			zap.String("file_id", fileID),
			zap.String("model", model),
			zap.Error(err))
		return report.NewFailedResult(fileID, model, report.ReasonMetricComputation, runtime)
	}

	if r.segmentSink != nil {
		r.segmentSink(fileID, hypothesis)
	}

	r.logger.Info("pair completed",
		zap.String("file_id", fileID),
		zap.String("model", model),
		zap.Float64("der", result.DER),
		zap.Float64("jer", result.JER),
		zap.Float64("runtime_s", runtime))

	return report.NewFileResult(fileID, model, result.DER, result.JER, runtime)
}

// Models returns the adapter names in execution order
func (r *Runner) Models() []string {
	names := make([]string, len(r.adapters))
	for i, adp := range r.adapters {
		names[i] = adp.Name()
	}
	return names
}
