// Package audio provides waveform access for the comparison pipeline: loading
// WAV files, extracting time-bounded sub-segments, persisting segments, and
// cleaning up temporary files.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

const (
	riffHeaderSize = 12
	chunkHeaderSize = 8
	pcmFormat       = 1
)

var (
	// ErrUnsupportedFormat indicates a WAV file that is not 16-bit PCM mono
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrEmptySegment indicates an extraction window with no samples
	ErrEmptySegment = errors.New("segment contains no samples")
)

// Access performs waveform I/O. It owns the lifetime of temporary files it
// creates; Delete is best-effort and never returns an error.
type Access struct {
	logger *zap.Logger
}

// NewAccess creates a new Access instance
func NewAccess(logger *zap.Logger) *Access {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Access{logger: logger}
}

// Load reads a 16-bit PCM mono WAV file and returns its samples and sample rate
func (a *Access) Load(path string) ([]int16, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open audio %s: %w", path, err)
	}
	defer f.Close()

	samples, rate, err := decodeWAV(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode audio %s: %w", path, err)
	}
	return samples, rate, nil
}

// Extract returns the samples between start and end (seconds). The end index
// is clamped to the waveform length; an empty window is an error.
func (a *Access) Extract(samples []int16, sampleRate int, start, end float64) ([]int16, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	startSample := int(start * float64(sampleRate))
	endSample := int(end * float64(sampleRate))
	if endSample > len(samples) {
		endSample = len(samples)
	}
	if startSample < 0 {
		startSample = 0
	}
	if startSample >= endSample {
		return nil, ErrEmptySegment
	}

	out := make([]int16, endSample-startSample)
	copy(out, samples[startSample:endSample])
	return out, nil
}

// Save writes samples as a 16-bit PCM mono WAV file. An empty path writes to a
// new temporary file; the chosen path is returned either way.
func (a *Access) Save(samples []int16, sampleRate int, path string) (string, error) {
	var f *os.File
	var err error

	if path == "" {
		f, err = os.CreateTemp("", "diarcompare-*.wav")
		if err != nil {
			return "", fmt.Errorf("failed to create temp audio file: %w", err)
		}
		path = f.Name()
	} else {
		f, err = os.Create(path)
		if err != nil {
			return "", fmt.Errorf("failed to create audio file %s: %w", path, err)
		}
	}
	defer f.Close()

	if err := encodeWAV(f, samples, sampleRate); err != nil {
		return "", fmt.Errorf("failed to write audio %s: %w", path, err)
	}
	return path, nil
}

// Delete removes a file created by Save. Failures are logged, never returned,
// so cleanup can run on every exit path.
func (a *Access) Delete(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		a.logger.Warn("failed to remove temp audio file",
			zap.String("path", path),
			zap.Error(err))
	}
}

// Duration returns the waveform length in seconds
func Duration(samples []int16, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(samples)) / float64(sampleRate)
}

// decodeWAV parses a RIFF/WAVE stream, skipping chunks other than fmt and data
func decodeWAV(r io.Reader) ([]int16, int, error) {
	var header [riffHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, 0, fmt.Errorf("truncated RIFF header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedFormat)
	}

	var sampleRate int
	var fmtSeen bool

	for {
		var chunk [chunkHeaderSize]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if err == io.EOF {
				return nil, 0, fmt.Errorf("%w: missing data chunk", ErrUnsupportedFormat)
			}
			return nil, 0, fmt.Errorf("truncated chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, 0, fmt.Errorf("truncated fmt chunk: %w", err)
			}
			if len(body) < 16 {
				return nil, 0, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			channels := binary.LittleEndian.Uint16(body[2:4])
			rate := binary.LittleEndian.Uint32(body[4:8])
			bits := binary.LittleEndian.Uint16(body[14:16])
			if format != pcmFormat || channels != 1 || bits != 16 {
				return nil, 0, fmt.Errorf("%w: want 16-bit PCM mono, got format=%d channels=%d bits=%d",
					ErrUnsupportedFormat, format, channels, bits)
			}
			sampleRate = int(rate)
			fmtSeen = true

		case "data":
			if !fmtSeen {
				return nil, 0, fmt.Errorf("%w: data chunk before fmt chunk", ErrUnsupportedFormat)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, 0, fmt.Errorf("truncated data chunk: %w", err)
			}
			samples := make([]int16, len(body)/2)
			for i := range samples {
				samples[i] = int16(binary.LittleEndian.Uint16(body[2*i : 2*i+2]))
			}
			return samples, sampleRate, nil

		default:
			// Skip ancillary chunks (LIST, fact, ...); sizes are padded to even.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, 0, fmt.Errorf("truncated %s chunk: %w", id, err)
			}
		}
	}
}

// encodeWAV writes a canonical 16-bit PCM mono WAV stream
func encodeWAV(w io.Writer, samples []int16, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 2)
	byteRate := uint32(sampleRate * 2)

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataSize)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], pcmFormat)
	binary.LittleEndian.PutUint16(header[22:24], 1) // mono
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], 2) // block align
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}

	body := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(body[2*i:2*i+2], uint16(s))
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	return nil
}
