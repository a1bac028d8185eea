package adapter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/beatrizalmeidaf/diarization-comparison/internal/segment"
)

// SortFormerName is the model name recorded in reports for this backend
const SortFormerName = "sortformer"

// SortFormerAdapter runs a SortFormer inference command as a child process.
// The command receives the audio path as its final argument and prints one
// "start end speaker" line per predicted segment on stdout.
type SortFormerAdapter struct {
	command string
	args    []string
	logger  *zap.Logger
}

// NewSortFormerAdapter creates a SortFormerAdapter for the given command line
func NewSortFormerAdapter(command string, args []string, logger *zap.Logger) *SortFormerAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SortFormerAdapter{command: command, args: args, logger: logger}
}

// Name returns the model name
func (s *SortFormerAdapter) Name() string { return SortFormerName }

// Infer spawns the inference command and collects its stdout lines. The
// process is killed when the context is cancelled or times out.
func (s *SortFormerAdapter) Infer(ctx context.Context, audioPath string) (*segment.RawOutput, error) {
	if s.command == "" {
		return nil, fmt.Errorf("sortformer command not configured")
	}

	args := append(append([]string{}, s.args...), audioPath)
	cmd := exec.CommandContext(ctx, s.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger.Debug("starting sortformer inference process",
		zap.String("command", s.command),
		zap.String("audio_path", audioPath))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sortformer inference interrupted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("sortformer inference failed: %w (stderr: %s)",
			err, strings.TrimSpace(stderr.String()))
	}

	var lines []string
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sortformer output: %w", err)
	}

	s.logger.Debug("sortformer inference completed",
		zap.String("audio_path", audioPath),
		zap.Int("lines", len(lines)))

	return &segment.RawOutput{
		Format: segment.FormatSortformer,
		Lines:  lines,
	}, nil
}
