package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/beatrizalmeidaf/diarization-comparison/internal/segment"
)

const (
	// PyAnnoteName is the model name recorded in reports for this backend
	PyAnnoteName = "pyannote"

	defaultPyAnnoteURL = "http://localhost:8388"
)

// PyAnnoteAdapter talks to a PyAnnote diarization sidecar over HTTP: the audio
// file is uploaded as multipart form data and the sidecar answers with a JSON
// list of speaker-attributed tracks.
type PyAnnoteAdapter struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// pyannoteResponse is the sidecar's JSON response shape
type pyannoteResponse struct {
	Segments []segment.Track `json:"segments"`
}

// NewPyAnnoteAdapter creates a PyAnnoteAdapter for the given sidecar URL.
// An empty URL selects the default local sidecar address.
func NewPyAnnoteAdapter(baseURL string, logger *zap.Logger) *PyAnnoteAdapter {
	if baseURL == "" {
		baseURL = defaultPyAnnoteURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PyAnnoteAdapter{
		baseURL: baseURL,
		client:  &http.Client{},
		logger:  logger,
	}
}

// Name returns the model name
func (p *PyAnnoteAdapter) Name() string { return PyAnnoteName }

// IsAvailable checks whether the sidecar answers its health endpoint
func (p *PyAnnoteAdapter) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Infer uploads the audio file and returns the sidecar's raw track list
func (p *PyAnnoteAdapter) Infer(ctx context.Context, audioPath string) (*segment.RawOutput, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio for upload: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to buffer audio upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/diarize", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build diarize request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pyannote sidecar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("pyannote sidecar returned status %d: %s", resp.StatusCode, payload)
	}

	var parsed pyannoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode pyannote response: %w", err)
	}

	p.logger.Debug("pyannote inference completed",
		zap.String("audio_path", audioPath),
		zap.Int("tracks", len(parsed.Segments)),
		zap.Duration("elapsed", time.Since(start)))

	return &segment.RawOutput{
		Format: segment.FormatPyannote,
		Tracks: parsed.Segments,
	}, nil
}
