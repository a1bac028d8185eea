// Package app wires the configuration, diarization backends, metric engine,
// and report writers into a single batch application.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beatrizalmeidaf/diarization-comparison/internal/adapter"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/audio"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/config"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/logger"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/metric"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/performance"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/reference"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/report"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/runner"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/segment"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/store"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/transcription"
)

// Application orchestrates one comparison batch from configuration to
// persisted artifacts
type Application struct {
	config      *config.Configuration
	zapLogger   *zap.Logger
	access      *audio.Access
	runner      *runner.Runner
	monitor     *performance.Monitor
	store       *store.RunStore
	transcriber *transcription.SegmentTranscriber

	mu         sync.Mutex
	hypotheses map[string][]segment.Set
	audioPaths map[string]string
}

// NewApplication creates an application instance, loading configuration from
// the file named by CONFIG_PATH or, absent that, from environment variables.
func NewApplication() (*Application, error) {
	var cfg *config.Configuration
	var err error

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		cfg, err = config.NewConfigurationFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.NewConfigurationFromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to load config from environment: %w", err)
		}
	}

	return NewApplicationWithConfig(cfg, logger.NewLogger())
}

// NewApplicationWithConfig creates an application instance with all components
// wired from the given configuration
func NewApplicationWithConfig(cfg *config.Configuration, zapLogger *zap.Logger) (*Application, error) {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}

	access := audio.NewAccess(zapLogger)

	var adapters []adapter.Adapter
	if cfg.GetPyAnnoteEnabled() {
		adapters = append(adapters, adapter.NewPyAnnoteAdapter(cfg.GetPyAnnoteURL(), zapLogger))
	}
	if cfg.GetSortFormerEnabled() {
		if cmd := cfg.GetSortFormerCommand(); cmd != "" {
			adapters = append(adapters, adapter.NewSortFormerAdapter(cmd, cfg.GetSortFormerArgs(), zapLogger))
		} else {
			zapLogger.Warn("sortformer backend enabled but no command configured, skipping")
		}
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no diarization backends enabled")
	}

	monitor := performance.NewMonitor(zapLogger)
	engine := metric.NewEngineWithOptions(cfg.GetMetricsCollar(), cfg.GetRequireReference(), zapLogger)

	run := runner.NewRunner(
		access,
		adapters,
		segment.NewNormalizer(zapLogger),
		reference.NewLoader(cfg.GetReferenceDir(), zapLogger),
		engine,
		monitor,
		cfg.GetAudioDir(),
		cfg.GetRunnerWorkers(),
		cfg.GetInferTimeout(),
		zapLogger,
	)

	storePath := cfg.GetStorePath()
	if err := os.MkdirAll(filepath.Dir(storePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	runStore, err := store.NewRunStore(storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	app := &Application{
		config:     cfg,
		zapLogger:  zapLogger,
		access:     access,
		runner:     run,
		monitor:    monitor,
		store:      runStore,
		hypotheses: make(map[string][]segment.Set),
		audioPaths: make(map[string]string),
	}

	if cfg.GetTranscriptionEnabled() {
		if cmd := cfg.GetTranscriptionCommand(); cmd != "" {
			asr := transcription.NewCommandTranscriber(cmd, cfg.GetTranscriptionArgs(), zapLogger)
			app.transcriber = transcription.NewSegmentTranscriber(access, asr, zapLogger)
		} else {
			zapLogger.Warn("transcription enabled but no command configured, skipping")
		}
	}

	run.SetSegmentSink(app.collectHypothesis)
	return app, nil
}

// Run executes the comparison batch and writes all result artifacts. On
// cancellation the artifacts cover the pairs that finished and the context
// error is returned.
func (app *Application) Run(ctx context.Context) error {
	fileIDs, err := app.resolveFiles()
	if err != nil {
		return err
	}

	app.zapLogger.Info("starting diarization comparison",
		zap.Int("files", len(fileIDs)),
		zap.Strings("models", app.runner.Models()))

	rep, runErr := app.runner.Run(ctx, fileIDs)
	if runErr != nil && rep == nil {
		return runErr
	}

	runID := uuid.New().String()
	startedAt := time.Now()
	outputDir := filepath.Join(app.config.GetOutputDir(),
		"run_"+startedAt.Format("20060102_150405"))
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := app.writeArtifacts(ctx, rep, outputDir); err != nil {
		app.zapLogger.Error("failed to write result artifacts", zap.Error(err))
	}

	if err := app.store.SaveRun(runID, startedAt, rep); err != nil {
		app.zapLogger.Error("failed to persist run", zap.String("run_id", runID), zap.Error(err))
	} else {
		app.zapLogger.Info("run persisted", zap.String("run_id", runID))
	}

	app.monitor.LogSummary()
	fmt.Print(report.RenderText(rep))
	app.zapLogger.Info("results written", zap.String("output_dir", outputDir))

	return runErr
}

// Shutdown releases held resources
func (app *Application) Shutdown() error {
	app.zapLogger.Info("shutting down")
	if err := app.store.Close(); err != nil {
		return fmt.Errorf("failed to close run store: %w", err)
	}
	return nil
}

// resolveFiles determines the batch file IDs. Explicitly configured paths win
// over scanning the audio directory, and register a path resolver so each ID
// maps back to its full path.
func (app *Application) resolveFiles() ([]string, error) {
	if paths := app.config.GetAudioFiles(); len(paths) > 0 {
		fileIDs := make([]string, 0, len(paths))
		for _, path := range paths {
			id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			app.audioPaths[id] = path
			fileIDs = append(fileIDs, id)
		}
		app.runner.SetPathResolver(func(fileID string) string {
			if path, ok := app.audioPaths[fileID]; ok {
				return path
			}
			return filepath.Join(app.config.GetAudioDir(), fileID+".wav")
		})
		return fileIDs, nil
	}

	entries, err := os.ReadDir(app.config.GetAudioDir())
	if err != nil {
		return nil, fmt.Errorf("failed to read audio directory %s: %w", app.config.GetAudioDir(), err)
	}

	var fileIDs []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".wav") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		app.audioPaths[id] = filepath.Join(app.config.GetAudioDir(), entry.Name())
		fileIDs = append(fileIDs, id)
	}
	sort.Strings(fileIDs)

	if len(fileIDs) == 0 {
		return nil, fmt.Errorf("no WAV files found in %s", app.config.GetAudioDir())
	}
	return fileIDs, nil
}

// collectHypothesis stores each normalized hypothesis set for the comparison
// text and transcription artifacts
func (app *Application) collectHypothesis(fileID string, set segment.Set) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.hypotheses[fileID] = append(app.hypotheses[fileID], set)
}

// writeArtifacts emits the CSV, JSON, summary, per-file comparison, and
// optional transcript files into the run output directory
func (app *Application) writeArtifacts(ctx context.Context, rep *report.ComparisonReport, outputDir string) error {
	if err := app.writeFile(filepath.Join(outputDir, "comparison_results.csv"), func(f *os.File) error {
		return report.WriteCSV(rep, f)
	}); err != nil {
		return err
	}

	if err := app.writeFile(filepath.Join(outputDir, "detailed_results.json"), func(f *os.File) error {
		return report.WriteJSON(rep, f)
	}); err != nil {
		return err
	}

	if err := app.writeFile(filepath.Join(outputDir, "summary_statistics.json"), func(f *os.File) error {
		return report.WriteSummaryJSON(rep, f)
	}); err != nil {
		return err
	}

	app.mu.Lock()
	hypotheses := make(map[string][]segment.Set, len(app.hypotheses))
	for fileID, sets := range app.hypotheses {
		hypotheses[fileID] = sets
	}
	app.mu.Unlock()

	for _, fileID := range rep.FileIDs {
		sets, ok := hypotheses[fileID]
		if !ok {
			continue
		}
		name := fmt.Sprintf("comparison_%s.txt", fileID)
		if err := app.writeFile(filepath.Join(outputDir, name), func(f *os.File) error {
			return report.WriteComparisonText(fileID, sets, f)
		}); err != nil {
			return err
		}

		if app.transcriber != nil && ctx.Err() == nil {
			app.writeTranscripts(ctx, fileID, sets, outputDir)
		}
	}
	return nil
}

// writeTranscripts runs per-segment transcription for one file's hypothesis
// sets. Transcription failures never fail the batch.
func (app *Application) writeTranscripts(ctx context.Context, fileID string, sets []segment.Set, outputDir string) {
	audioPath, ok := app.audioPaths[fileID]
	if !ok {
		audioPath = filepath.Join(app.config.GetAudioDir(), fileID+".wav")
	}

	for _, set := range sets {
		transcript, err := app.transcriber.TranscribeSet(ctx, audioPath, set)
		if err != nil {
			app.zapLogger.Warn("transcription failed",
				zap.String("file_id", fileID),
				zap.String("model", string(set.Source)),
				zap.Error(err))
			continue
		}
		name := fmt.Sprintf("transcript_%s_%s.txt", fileID, set.Source)
		if err := app.writeFile(filepath.Join(outputDir, name), func(f *os.File) error {
			return transcript.Render(f)
		}); err != nil {
			app.zapLogger.Warn("failed to write transcript", zap.String("file_id", fileID), zap.Error(err))
		}
	}
}

// writeFile creates a file and hands it to the given writer callback
func (app *Application) writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := write(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
