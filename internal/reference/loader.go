// Package reference loads ground-truth diarization annotation from RTTM files
// into the canonical segment representation.
package reference

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/beatrizalmeidaf/diarization-comparison/internal/segment"
)

// Loader reads RTTM annotation files from a directory, one file per audio file
// id ("<file_id>.rttm")
type Loader struct {
	dir    string
	logger *zap.Logger
}

// NewLoader creates a new Loader reading from the given annotation directory
func NewLoader(dir string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{dir: dir, logger: logger}
}

// Load reads the reference annotation for the given file id. Malformed lines
// are skipped with a warning; a missing or unreadable file is an error.
func (l *Loader) Load(fileID string) (segment.Set, error) {
	path := filepath.Join(l.dir, fileID+".rttm")

	f, err := os.Open(path)
	if err != nil {
		return segment.Set{}, fmt.Errorf("failed to open reference %s: %w", path, err)
	}
	defer f.Close()

	set := segment.Set{FileID: fileID, Source: segment.SourceReference}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		seg, ok := l.parseLine(line)
		if !ok {
			l.logger.Warn("skipping malformed RTTM line",
				zap.String("file_id", fileID),
				zap.Int("line", lineNo),
				zap.String("content", line))
			continue
		}
		set.Segments = append(set.Segments, seg)
	}
	if err := scanner.Err(); err != nil {
		return segment.Set{}, fmt.Errorf("failed to read reference %s: %w", path, err)
	}

	return set, nil
}

// parseLine parses one RTTM SPEAKER record:
// SPEAKER <file> <chan> <onset> <duration> <NA> <NA> <speaker> <NA> <NA>
func (l *Loader) parseLine(line string) (segment.Segment, bool) {
	fields := strings.Fields(line)
	if len(fields) < 8 || !strings.EqualFold(fields[0], "SPEAKER") {
		return segment.Segment{}, false
	}

	onset, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return segment.Segment{}, false
	}
	duration, err := strconv.ParseFloat(fields[4], 64)
	if err != nil || duration <= 0 {
		return segment.Segment{}, false
	}

	seg := segment.Segment{
		Speaker: fields[7],
		Start:   onset,
		End:     onset + duration,
	}
	if err := seg.Validate(); err != nil {
		return segment.Segment{}, false
	}
	return seg, true
}
