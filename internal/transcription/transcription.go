// Package transcription produces per-segment transcripts for diarized audio by
// cutting each speaker segment out of the source waveform and feeding it to an
// external ASR command.
package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/beatrizalmeidaf/diarization-comparison/internal/audio"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/segment"
)

const (
	// longSegmentThreshold is the duration (seconds) above which a segment is
	// transcribed in chunks rather than as a whole.
	longSegmentThreshold = 25.0
	chunkDuration        = 20.0
	chunkOverlap         = 2.0
)

// Transcriber produces text for one audio file
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// SegmentText pairs one diarized segment with its transcript
type SegmentText struct {
	Segment segment.Segment `json:"segment"`
	Text    string          `json:"text"`
}

// Transcript holds the per-segment texts of one diarized file
type Transcript struct {
	FileID string         `json:"file_id"`
	Source segment.Source `json:"source"`
	Lines  []SegmentText  `json:"lines"`
}

// BySpeaker groups transcribed texts by canonical speaker label, preserving
// segment order within each speaker.
func (t *Transcript) BySpeaker() map[string][]string {
	grouped := make(map[string][]string)
	for _, line := range t.Lines {
		grouped[line.Segment.Speaker] = append(grouped[line.Segment.Speaker], line.Text)
	}
	return grouped
}

// Render writes the transcript as "[start - end] SPEAKER_NN: text" lines
func (t *Transcript) Render(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Transcript: %s (%s)\n\n", t.FileID, t.Source); err != nil {
		return fmt.Errorf("failed to write transcript header: %w", err)
	}
	for _, line := range t.Lines {
		if _, err := fmt.Fprintf(w, "[%.2f - %.2f] %s: %s\n",
			line.Segment.Start, line.Segment.End, line.Segment.Speaker, line.Text); err != nil {
			return fmt.Errorf("failed to write transcript line: %w", err)
		}
	}
	return nil
}

// SegmentTranscriber cuts diarized segments from a waveform and transcribes
// them one at a time. ASR failures on single segments are tolerated; the
// affected segment keeps an empty text.
type SegmentTranscriber struct {
	audio  *audio.Access
	asr    Transcriber
	logger *zap.Logger
}

// NewSegmentTranscriber creates a new SegmentTranscriber
func NewSegmentTranscriber(access *audio.Access, asr Transcriber, logger *zap.Logger) *SegmentTranscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SegmentTranscriber{audio: access, asr: asr, logger: logger}
}

// TranscribeSet transcribes every segment of a diarized set against the given
// source audio file. Cancellation aborts the whole set; any other per-segment
// error is logged and leaves that segment's text empty.
func (st *SegmentTranscriber) TranscribeSet(ctx context.Context, audioPath string, set segment.Set) (*Transcript, error) {
	samples, sampleRate, err := st.audio.Load(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load audio for transcription: %w", err)
	}

	transcript := &Transcript{FileID: set.FileID, Source: set.Source}
	for _, seg := range set.Segments {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		text, err := st.transcribeSegment(ctx, samples, sampleRate, seg)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			st.logger.Warn("segment transcription failed",
				zap.String("file_id", set.FileID),
				zap.String("speaker", seg.Speaker),
				zap.Float64("start", seg.Start),
				zap.Error(err))
			text = ""
		}
		transcript.Lines = append(transcript.Lines, SegmentText{Segment: seg, Text: text})
	}
	return transcript, nil
}

// transcribeSegment handles one segment, chunking long ones with overlap so
// the ASR backend never sees an overly long window.
func (st *SegmentTranscriber) transcribeSegment(ctx context.Context, samples []int16, sampleRate int, seg segment.Segment) (string, error) {
	if seg.Duration() <= longSegmentThreshold {
		return st.transcribeWindow(ctx, samples, sampleRate, seg.Start, seg.End)
	}

	step := chunkDuration - chunkOverlap
	var pieces []string
	for start := seg.Start; start < seg.End; start += step {
		end := start + chunkDuration
		if end > seg.End {
			end = seg.End
		}
		text, err := st.transcribeWindow(ctx, samples, sampleRate, start, end)
		if err != nil {
			return "", err
		}
		if text != "" {
			pieces = append(pieces, text)
		}
		if end >= seg.End {
			break
		}
	}
	return strings.Join(pieces, " "), nil
}

// transcribeWindow extracts one time window to a temporary WAV file, runs the
// ASR backend on it, and removes the file on every path.
func (st *SegmentTranscriber) transcribeWindow(ctx context.Context, samples []int16, sampleRate int, start, end float64) (string, error) {
	window, err := st.audio.Extract(samples, sampleRate, start, end)
	if err != nil {
		return "", fmt.Errorf("failed to extract segment window: %w", err)
	}

	path, err := st.audio.Save(window, sampleRate, "")
	if err != nil {
		return "", fmt.Errorf("failed to persist segment window: %w", err)
	}
	defer st.audio.Delete(path)

	text, err := st.asr.Transcribe(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to transcribe segment window: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// CommandTranscriber shells out to an external ASR command. The audio path is
// appended as the final argument and stdout is taken as the transcript.
type CommandTranscriber struct {
	command string
	args    []string
	logger  *zap.Logger
}

// NewCommandTranscriber creates a new CommandTranscriber
func NewCommandTranscriber(command string, args []string, logger *zap.Logger) *CommandTranscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandTranscriber{command: command, args: args, logger: logger}
}

// Transcribe runs the configured command on one audio file
func (c *CommandTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	args := make([]string, 0, len(c.args)+1)
	args = append(args, c.args...)
	args = append(args, audioPath)

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("transcription command interrupted: %w", ctx.Err())
		}
		return "", fmt.Errorf("transcription command failed: %w (stderr: %s)",
			err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
