package performance

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// ModelMetrics tracks inference timing for one model across a batch
type ModelMetrics struct {
	TotalInferences    int64
	FailedInferences   int64
	TotalInferenceTime time.Duration
	MinInferenceTime   time.Duration
	MaxInferenceTime   time.Duration
	LastInferenceTime  time.Duration
	LastTimestamp      time.Time
}

// InferenceTimer tracks timing for a single model invocation
type InferenceTimer struct {
	ModelName     string
	FileID        string
	StartTime     time.Time
	InferenceTime time.Duration
}

// Monitor aggregates inference timing per model name
type Monitor struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	metrics map[string]*ModelMetrics
}

// NewMonitor creates a new inference timing monitor
func NewMonitor(logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		logger:  logger,
		metrics: make(map[string]*ModelMetrics),
	}
}

// StartInference begins timing one model invocation
func (m *Monitor) StartInference(modelName, fileID string) *InferenceTimer {
	return &InferenceTimer{
		ModelName: modelName,
		FileID:    fileID,
		StartTime: time.Now(),
	}
}

// EndInference completes timing and folds it into the model's metrics
func (m *Monitor) EndInference(timer *InferenceTimer, failed bool) {
	timer.InferenceTime = time.Since(timer.StartTime)

	m.mu.Lock()
	defer m.mu.Unlock()

	metrics, ok := m.metrics[timer.ModelName]
	if !ok {
		metrics = &ModelMetrics{MinInferenceTime: time.Hour}
		m.metrics[timer.ModelName] = metrics
	}

	metrics.TotalInferences++
	if failed {
		metrics.FailedInferences++
	}
	metrics.TotalInferenceTime += timer.InferenceTime
	metrics.LastInferenceTime = timer.InferenceTime
	metrics.LastTimestamp = time.Now()
	if timer.InferenceTime < metrics.MinInferenceTime {
		metrics.MinInferenceTime = timer.InferenceTime
	}
	if timer.InferenceTime > metrics.MaxInferenceTime {
		metrics.MaxInferenceTime = timer.InferenceTime
	}
}

// GetMetrics returns a copy of the metrics for one model
func (m *Monitor) GetMetrics(modelName string) (ModelMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics, ok := m.metrics[modelName]
	if !ok {
		return ModelMetrics{}, false
	}
	return *metrics, true
}

// AverageInferenceTime returns the mean invocation time for one model
func (m *Monitor) AverageInferenceTime(modelName string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics, ok := m.metrics[modelName]
	if !ok || metrics.TotalInferences == 0 {
		return 0
	}
	return metrics.TotalInferenceTime / time.Duration(metrics.TotalInferences)
}

// LogSummary writes a timing summary per model to the structured log
func (m *Monitor) LogSummary() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for model, metrics := range m.metrics {
		avg := time.Duration(0)
		if metrics.TotalInferences > 0 {
			avg = metrics.TotalInferenceTime / time.Duration(metrics.TotalInferences)
		}
		m.logger.Info("model inference timing summary",
			zap.String("model", model),
			zap.Int64("total_inferences", metrics.TotalInferences),
			zap.Int64("failed_inferences", metrics.FailedInferences),
			zap.Duration("avg_inference_time", avg),
			zap.Duration("min_inference_time", metrics.MinInferenceTime),
			zap.Duration("max_inference_time", metrics.MaxInferenceTime))
	}
}
