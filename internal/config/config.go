package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Configuration provides type-safe access to application settings
type Configuration struct {
	viper *viper.Viper
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("audio.dir", "./audios")
	v.SetDefault("audio.files", []string{})
	v.SetDefault("reference.dir", "./references")
	v.SetDefault("output.dir", "./results")
	v.SetDefault("models.pyannote.enabled", true)
	v.SetDefault("models.pyannote.url", "http://localhost:8388")
	v.SetDefault("models.sortformer.enabled", true)
	v.SetDefault("models.sortformer.command", "")
	v.SetDefault("models.sortformer.args", []string{})
	v.SetDefault("runner.workers", 1)
	v.SetDefault("runner.infer_timeout_seconds", 600)
	v.SetDefault("metrics.collar", 0.25)
	v.SetDefault("metrics.require_reference", false)
	v.SetDefault("store.path", "./results/runs.db")
	v.SetDefault("transcription.enabled", false)
	v.SetDefault("transcription.command", "")
	v.SetDefault("transcription.args", []string{})
}

// NewConfiguration creates a new Configuration instance with default settings
func NewConfiguration() *Configuration {
	v := viper.New()
	setDefaults(v)
	return &Configuration{viper: v}
}

// NewConfigurationFromFile creates a Configuration instance from a config file
func NewConfigurationFromFile(configFile string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	return &Configuration{viper: v}, nil
}

// NewConfigurationFromEnv creates a Configuration instance that reads from environment variables
func NewConfigurationFromEnv() (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DIAR")
	v.AutomaticEnv()

	v.BindEnv("audio.dir", "AUDIO_DIR")
	v.BindEnv("reference.dir", "REFERENCE_DIR")
	v.BindEnv("output.dir", "OUTPUT_DIR")
	v.BindEnv("models.pyannote.url", "PYANNOTE_URL")
	v.BindEnv("models.sortformer.command", "SORTFORMER_COMMAND")
	v.BindEnv("runner.workers", "RUNNER_WORKERS")
	v.BindEnv("runner.infer_timeout_seconds", "INFER_TIMEOUT_SECONDS")
	v.BindEnv("metrics.collar", "METRICS_COLLAR")
	v.BindEnv("store.path", "STORE_PATH")
	v.BindEnv("transcription.command", "TRANSCRIPTION_COMMAND")

	return &Configuration{viper: v}, nil
}

// GetAudioDir returns the directory audio files are resolved against
func (c *Configuration) GetAudioDir() string {
	return c.viper.GetString("audio.dir")
}

// GetAudioFiles returns the explicitly configured audio file paths, if any
func (c *Configuration) GetAudioFiles() []string {
	return c.viper.GetStringSlice("audio.files")
}

// GetReferenceDir returns the RTTM annotation directory
func (c *Configuration) GetReferenceDir() string {
	return c.viper.GetString("reference.dir")
}

// GetOutputDir returns the base directory for result artifacts
func (c *Configuration) GetOutputDir() string {
	return c.viper.GetString("output.dir")
}

// GetPyAnnoteEnabled reports whether the PyAnnote backend runs
func (c *Configuration) GetPyAnnoteEnabled() bool {
	return c.viper.GetBool("models.pyannote.enabled")
}

// GetPyAnnoteURL returns the PyAnnote sidecar base URL
func (c *Configuration) GetPyAnnoteURL() string {
	return c.viper.GetString("models.pyannote.url")
}

// GetSortFormerEnabled reports whether the SortFormer backend runs
func (c *Configuration) GetSortFormerEnabled() bool {
	return c.viper.GetBool("models.sortformer.enabled")
}

// GetSortFormerCommand returns the SortFormer inference command
func (c *Configuration) GetSortFormerCommand() string {
	return c.viper.GetString("models.sortformer.command")
}

// GetSortFormerArgs returns extra arguments for the SortFormer command
func (c *Configuration) GetSortFormerArgs() []string {
	return c.viper.GetStringSlice("models.sortformer.args")
}

// GetRunnerWorkers returns the worker pool size for independent (file, model) pairs
func (c *Configuration) GetRunnerWorkers() int {
	return c.viper.GetInt("runner.workers")
}

// GetInferTimeout returns the per-invocation model timeout
func (c *Configuration) GetInferTimeout() time.Duration {
	return time.Duration(c.viper.GetInt("runner.infer_timeout_seconds")) * time.Second
}

// GetMetricsCollar returns the DER forgiveness window in seconds
func (c *Configuration) GetMetricsCollar() float64 {
	return c.viper.GetFloat64("metrics.collar")
}

// GetRequireReference reports whether empty references are treated as errors
func (c *Configuration) GetRequireReference() bool {
	return c.viper.GetBool("metrics.require_reference")
}

// GetStorePath returns the SQLite run database path
func (c *Configuration) GetStorePath() string {
	return c.viper.GetString("store.path")
}

// GetTranscriptionEnabled reports whether per-segment transcription runs
func (c *Configuration) GetTranscriptionEnabled() bool {
	return c.viper.GetBool("transcription.enabled")
}

// GetTranscriptionCommand returns the ASR command for segment transcription
func (c *Configuration) GetTranscriptionCommand() string {
	return c.viper.GetString("transcription.command")
}

// GetTranscriptionArgs returns extra arguments for the ASR command
func (c *Configuration) GetTranscriptionArgs() []string {
	return c.viper.GetStringSlice("transcription.args")
}

// Set overrides a configuration value, used by CLI flag handling
func (c *Configuration) Set(key string, value interface{}) {
	c.viper.Set(key, value)
}
