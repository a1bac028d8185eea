package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/beatrizalmeidaf/diarization-comparison/internal/app"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/config"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/logger"
)

const version = "1.0"

// main is the application entry point
func main() {
	var (
		helpFlag     = flag.Bool("help", false, "Show help message")
		versionFlag  = flag.Bool("version", false, "Show version information")
		verboseFlag  = flag.Bool("verbose", false, "Enable debug logging")
		configFlag   = flag.String("config", "", "Path to a YAML configuration file")
		audioFlag    = flag.String("audio", "", "Single audio file to process instead of scanning the audio directory")
		outputFlag   = flag.String("output-dir", "", "Override the results output directory")
		pyannoteOnly = flag.Bool("pyannote-only", false, "Run only the PyAnnote backend")
		sortformOnly = flag.Bool("sortformer-only", false, "Run only the SortFormer backend")
		skipASR      = flag.Bool("skip-transcription", false, "Disable per-segment transcription")
	)
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	opts := runOptions{
		verbose:        *verboseFlag,
		configPath:     *configFlag,
		audioFile:      *audioFlag,
		outputDir:      *outputFlag,
		pyannoteOnly:   *pyannoteOnly,
		sortformerOnly: *sortformOnly,
		skipASR:        *skipASR,
	}
	if err := runApplication(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

type runOptions struct {
	verbose        bool
	configPath     string
	audioFile      string
	outputDir      string
	pyannoteOnly   bool
	sortformerOnly bool
	skipASR        bool
}

// runApplication contains the core lifecycle so main stays testable
func runApplication(opts runOptions) error {
	zapLogger, err := logger.NewLoggerWithVerbosity(opts.verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("diarization comparison starting up",
		zap.String("component", "main"),
		zap.String("version", version))

	cfg, err := loadConfiguration(opts.configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg, opts)

	application, err := app.NewApplicationWithConfig(cfg, zapLogger)
	if err != nil {
		zapLogger.Error("failed to create application", zap.Error(err))
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		zapLogger.Info("received shutdown signal",
			zap.String("signal", sig.String()),
			zap.String("component", "main"))
		cancel()
	}()

	runErr := application.Run(ctx)
	if runErr != nil {
		zapLogger.Error("comparison run ended with error", zap.Error(runErr))
	}

	if err := application.Shutdown(); err != nil {
		zapLogger.Error("error during shutdown", zap.Error(err))
		if runErr == nil {
			runErr = fmt.Errorf("application shutdown error: %w", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	zapLogger.Info("diarization comparison finished", zap.String("component", "main"))
	return nil
}

// loadConfiguration resolves the configuration source: explicit flag, then
// CONFIG_PATH, then environment variables.
func loadConfiguration(configPath string) (*config.Configuration, error) {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath != "" {
		cfg, err := config.NewConfigurationFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		return cfg, nil
	}
	return config.NewConfigurationFromEnv()
}

// applyFlagOverrides layers command-line choices on top of the loaded config
func applyFlagOverrides(cfg *config.Configuration, opts runOptions) {
	if opts.audioFile != "" {
		cfg.Set("audio.files", []string{opts.audioFile})
	}
	if opts.outputDir != "" {
		cfg.Set("output.dir", opts.outputDir)
	}
	if opts.pyannoteOnly {
		cfg.Set("models.sortformer.enabled", false)
	}
	if opts.sortformerOnly {
		cfg.Set("models.pyannote.enabled", false)
	}
	if opts.skipASR {
		cfg.Set("transcription.enabled", false)
	}
}

// printHelp displays command line usage information
func printHelp() {
	fmt.Println("Diarization Comparison - PyAnnote vs SortFormer benchmark pipeline")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("    diarcompare [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("    -help                Show this help message")
	fmt.Println("    -version             Show version information")
	fmt.Println("    -verbose             Enable debug logging")
	fmt.Println("    -config PATH         Load configuration from a YAML file")
	fmt.Println("    -audio PATH          Process a single audio file")
	fmt.Println("    -output-dir PATH     Override the results output directory")
	fmt.Println("    -pyannote-only       Run only the PyAnnote backend")
	fmt.Println("    -sortformer-only     Run only the SortFormer backend")
	fmt.Println("    -skip-transcription  Disable per-segment transcription")
	fmt.Println()
	fmt.Println("CONFIGURATION:")
	fmt.Println("    Settings come from the config file, DIAR_* environment")
	fmt.Println("    variables, or defaults. See config.example.yaml.")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("    diarcompare                          # Compare both models over the audio directory")
	fmt.Println("    diarcompare -audio meeting.wav       # Compare both models on one file")
	fmt.Println("    diarcompare -pyannote-only -verbose  # Single backend with debug logs")
}

// printVersion displays version information
func printVersion() {
	fmt.Println("Diarization Comparison")
	fmt.Println("Version: " + version)
	fmt.Println("Backends: PyAnnote (HTTP sidecar) + SortFormer (command runner)")
}
