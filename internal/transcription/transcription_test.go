package transcription

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatrizalmeidaf/diarization-comparison/internal/audio"
	"github.com/beatrizalmeidaf/diarization-comparison/internal/segment"
)

// fakeASR returns canned texts in call order, optionally failing on a
// specific call index.
type fakeASR struct {
	mu      sync.Mutex
	texts   []string
	failAt  int
	calls   int
	failErr error
}

func (f *fakeASR) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.calls
	f.calls++
	if f.failErr != nil && call == f.failAt {
		return "", f.failErr
	}
	if call < len(f.texts) {
		return f.texts[call], nil
	}
	return "uh huh", nil
}

// newWaveFixture writes a WAV file of the given duration and returns its path
func newWaveFixture(t *testing.T, seconds float64) string {
	t.Helper()
	const rate = 8000
	samples := make([]int16, int(seconds*rate))
	for i := range samples {
		samples[i] = int16(i % 64)
	}
	path := filepath.Join(t.TempDir(), "fixture.wav")
	_, err := audio.NewAccess(nil).Save(samples, rate, path)
	require.NoError(t, err)
	return path
}

func TestSegmentTranscriber_TranscribeSet(t *testing.T) {
	t.Run("should transcribe each segment in order", func(t *testing.T) {
		// Arrange
		path := newWaveFixture(t, 10)
		asr := &fakeASR{texts: []string{" hello there ", "general kenobi"}}
		st := NewSegmentTranscriber(audio.NewAccess(nil), asr, nil)
		set := segment.Set{
			FileID: "fixture",
			Source: segment.Source("pyannote"),
			Segments: []segment.Segment{
				{Speaker: "SPEAKER_00", Start: 0, End: 2},
				{Speaker: "SPEAKER_01", Start: 2, End: 4},
			},
		}

		// Act
		transcript, err := st.TranscribeSet(context.Background(), path, set)

		// Assert
		require.NoError(t, err)
		require.Len(t, transcript.Lines, 2)
		assert.Equal(t, "hello there", transcript.Lines[0].Text)
		assert.Equal(t, "general kenobi", transcript.Lines[1].Text)
		assert.Equal(t, "SPEAKER_00", transcript.Lines[0].Segment.Speaker)
	})

	t.Run("should chunk segments longer than the threshold", func(t *testing.T) {
		// Arrange: 50s segment splits into 0-20, 18-38, 36-50
		path := newWaveFixture(t, 50)
		asr := &fakeASR{texts: []string{"one", "two", "three"}}
		st := NewSegmentTranscriber(audio.NewAccess(nil), asr, nil)
		set := segment.Set{
			FileID:   "fixture",
			Segments: []segment.Segment{{Speaker: "SPEAKER_00", Start: 0, End: 50}},
		}

		// Act
		transcript, err := st.TranscribeSet(context.Background(), path, set)

		// Assert
		require.NoError(t, err)
		require.Len(t, transcript.Lines, 1)
		assert.Equal(t, 3, asr.calls)
		assert.Equal(t, "one two three", transcript.Lines[0].Text)
	})

	t.Run("should keep empty text when one segment fails", func(t *testing.T) {
		// Arrange
		path := newWaveFixture(t, 10)
		asr := &fakeASR{texts: []string{"first", "", "third"}, failAt: 1, failErr: errors.New("asr exploded")}
		st := NewSegmentTranscriber(audio.NewAccess(nil), asr, nil)
		set := segment.Set{
			FileID: "fixture",
			Segments: []segment.Segment{
				{Speaker: "SPEAKER_00", Start: 0, End: 1},
				{Speaker: "SPEAKER_00", Start: 1, End: 2},
				{Speaker: "SPEAKER_01", Start: 2, End: 3},
			},
		}

		// Act
		transcript, err := st.TranscribeSet(context.Background(), path, set)

		// Assert
		require.NoError(t, err)
		require.Len(t, transcript.Lines, 3)
		assert.Equal(t, "first", transcript.Lines[0].Text)
		assert.Empty(t, transcript.Lines[1].Text)
		assert.Equal(t, "third", transcript.Lines[2].Text)
	})

	t.Run("should abort on cancellation", func(t *testing.T) {
		// Arrange
		path := newWaveFixture(t, 10)
		st := NewSegmentTranscriber(audio.NewAccess(nil), &fakeASR{}, nil)
		set := segment.Set{
			FileID:   "fixture",
			Segments: []segment.Segment{{Speaker: "SPEAKER_00", Start: 0, End: 1}},
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// Act
		transcript, err := st.TranscribeSet(ctx, path, set)

		// Assert
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, transcript)
	})

	t.Run("should fail for unreadable audio", func(t *testing.T) {
		st := NewSegmentTranscriber(audio.NewAccess(nil), &fakeASR{}, nil)
		_, err := st.TranscribeSet(context.Background(), "/nonexistent.wav", segment.Set{FileID: "x"})
		assert.Error(t, err)
	})
}

func TestTranscript_BySpeaker(t *testing.T) {
	t.Run("should group texts by speaker preserving order", func(t *testing.T) {
		// Arrange
		transcript := &Transcript{
			FileID: "fixture",
			Lines: []SegmentText{
				{Segment: segment.Segment{Speaker: "SPEAKER_00", Start: 0, End: 1}, Text: "a"},
				{Segment: segment.Segment{Speaker: "SPEAKER_01", Start: 1, End: 2}, Text: "b"},
				{Segment: segment.Segment{Speaker: "SPEAKER_00", Start: 2, End: 3}, Text: "c"},
			},
		}

		// Act
		grouped := transcript.BySpeaker()

		// Assert
		assert.Equal(t, []string{"a", "c"}, grouped["SPEAKER_00"])
		assert.Equal(t, []string{"b"}, grouped["SPEAKER_01"])
	})
}

func TestTranscript_Render(t *testing.T) {
	t.Run("should render labeled time-stamped lines", func(t *testing.T) {
		// Arrange
		transcript := &Transcript{
			FileID: "fixture",
			Source: segment.Source("sortformer"),
			Lines: []SegmentText{
				{Segment: segment.Segment{Speaker: "SPEAKER_00", Start: 0, End: 1.5}, Text: "hello"},
			},
		}
		var sb strings.Builder

		// Act
		err := transcript.Render(&sb)

		// Assert
		require.NoError(t, err)
		assert.Contains(t, sb.String(), "Transcript: fixture (sortformer)")
		assert.Contains(t, sb.String(), "[0.00 - 1.50] SPEAKER_00: hello")
	})
}

func TestCommandTranscriber_Transcribe(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("command fixtures use sh")
	}

	t.Run("should return trimmed stdout", func(t *testing.T) {
		// Arrange
		c := NewCommandTranscriber("sh", []string{"-c", `printf ' some words \n'`}, nil)

		// Act
		text, err := c.Transcribe(context.Background(), "/tmp/whatever.wav")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "some words", text)
	})

	t.Run("should surface stderr on command failure", func(t *testing.T) {
		// Arrange
		c := NewCommandTranscriber("sh", []string{"-c", `echo boom >&2; exit 2`}, nil)

		// Act
		_, err := c.Transcribe(context.Background(), "/tmp/whatever.wav")

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})
}
