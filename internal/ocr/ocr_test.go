package ocr

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

// pngHeader is enough for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type stubRunner struct {
	mu     sync.Mutex
	calls  [][]string
	stdout map[string]string // keyed by last arg ("tsv" or "")
	err    error
	stderr string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]string{name}, args...))
	if s.err != nil {
		return nil, []byte(s.stderr), s.err
	}
	key := ""
	if len(args) > 0 && args[len(args)-1] == "tsv" {
		key = "tsv"
	}
	return []byte(s.stdout[key]), nil, nil
}

func TestExtractor_Recognize(t *testing.T) {
	runner := &stubRunner{stdout: map[string]string{
		"": "Payment  successful\r\n\r\n\r\n\r\n₹250\nUPI Ref 1234567890I2\n-----\n",
	}}
	e := NewExtractorWithRunner(Config{TempDir: t.TempDir()}, runner, nil)

	rec, err := e.Recognize(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "Payment successful\n\n₹250\nUPI Ref 1234567890I2", rec.Text)
	assert.Zero(t, rec.Confidence, "no engine score without TSV")

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "tesseract", runner.calls[0][0])
	assert.True(t, strings.HasSuffix(runner.calls[0][1], ".png"))
	assert.Equal(t, []string{"stdout", "-l", "eng"}, runner.calls[0][2:])

	// staged file is removed afterwards
	_, statErr := os.Stat(runner.calls[0][1])
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractor_Recognize_TSVConfidence(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n" +
		"5\t1\t1\t1\t1\t1\t10\t10\t40\t12\t90\tPaid\n" +
		"5\t1\t1\t1\t1\t2\t60\t10\t40\t12\t80\t₹250\n"
	runner := &stubRunner{stdout: map[string]string{"": "Paid ₹250", "tsv": tsv}}
	e := NewExtractorWithRunner(Config{TempDir: t.TempDir(), EnableTSVConfidence: true, PSM: 6}, runner, nil)

	rec, err := e.Recognize(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.InDelta(t, 85.0, rec.Confidence, 0.001)

	require.Len(t, runner.calls, 2)
	assert.Contains(t, runner.calls[1], "--psm")
	assert.Equal(t, "tsv", runner.calls[1][len(runner.calls[1])-1])
}

func TestExtractor_Recognize_Unreadable(t *testing.T) {
	tests := []struct {
		name   string
		image  []byte
		runner *stubRunner
	}{
		{"empty bytes", nil, &stubRunner{}},
		{"not an image", []byte("%PDF-1.4 hello"), &stubRunner{}},
		{"engine failure", pngHeader, &stubRunner{err: errors.New("exit status 1"), stderr: "Error in pixReadStream"}},
		{"blank text", pngHeader, &stubRunner{stdout: map[string]string{"": "  \n\n "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractorWithRunner(Config{TempDir: t.TempDir()}, tt.runner, nil)
			rec, err := e.Recognize(context.Background(), tt.image)
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrUnreadableImage), "got %v", err)
			assert.Equal(t, verify.Recognition{}, rec)
		})
	}
}

func TestExtractor_ExtractFile_KeepsScoresApart(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"5\t1\t1\t1\t1\t1\t10\t10\t40\t12\t40\tPaid\n"
	runner := &stubRunner{stdout: map[string]string{"": "Paid ₹250 UPI Ref 123456789012", "tsv": tsv}}
	e := NewExtractorWithRunner(Config{EnableTSVConfidence: true}, runner, nil)

	path := filepath.Join(t.TempDir(), "proof.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o644))
	res, err := e.ExtractFile(context.Background(), path)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, res.Confidence, 0.001)
	assert.InDelta(t, heuristicConfidence("Paid ₹250 UPI Ref 123456789012"), res.HeuristicConfidence, 0.001)
	assert.Equal(t, res.Confidence, res.Recognition().Confidence)
}

func TestExtractor_Recognize_EngineFailures(t *testing.T) {
	t.Run("stderr reason is kept", func(t *testing.T) {
		runner := &stubRunner{err: errors.New("exit status 1"), stderr: "Tesseract Open Source OCR Engine\nError in pixReadStream: Unknown format: no pix returned\n"}
		e := NewExtractorWithRunner(Config{TempDir: t.TempDir()}, runner, nil)
		_, err := e.Recognize(context.Background(), pngHeader)
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrUnreadableImage))
		assert.Contains(t, err.Error(), "image could not be decoded")
	})

	t.Run("missing binary is not the image's fault", func(t *testing.T) {
		runner := &stubRunner{err: &exec.Error{Name: "tesseract", Err: exec.ErrNotFound}}
		e := NewExtractorWithRunner(Config{TempDir: t.TempDir()}, runner, nil)
		_, err := e.Recognize(context.Background(), pngHeader)
		require.Error(t, err)
		assert.False(t, eris.Is(err, ErrUnreadableImage))
	})
}

func TestTesseractStderr(t *testing.T) {
	reason, ok := tesseractFailure([]byte("Image too small to scan!! w=3 h=3"))
	assert.True(t, ok)
	assert.Equal(t, "image too small to scan", reason)

	_, ok = tesseractFailure([]byte("Segmentation fault"))
	assert.False(t, ok)

	warn := tesseractWarnings([]byte("Estimating resolution as 142\nDetected 12 diacritics\nWarning: Invalid resolution 0 dpi. Using 70 instead.\n"))
	assert.Equal(t, []string{"Warning: Invalid resolution 0 dpi. Using 70 instead."}, warn)
}

func TestExtractor_Recognize_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &stubRunner{err: errors.New("signal: killed")}
	e := NewExtractorWithRunner(Config{TempDir: t.TempDir()}, runner, nil)

	_, err := e.Recognize(ctx, pngHeader)
	require.Error(t, err)
	assert.False(t, eris.Is(err, ErrUnreadableImage))
	assert.True(t, eris.Is(err, context.Canceled))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"a\r\nb", "a\nb"},
		{"a\t\tb   c  ", "a b c"},
		{"a\n\n\n\n\nb", "a\n\nb"},
		{"UTR 12O4567890O1", "UTR 120456789001"},
		{"1O2O3", "10203"},
		{"１２３", "123"},
		{"₹250", "₹250"},
		{"line\n-----\nnext", "line\n-----\nnext"},
		{"Google Pay", "Google Pay"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestMeanTSVConfidence(t *testing.T) {
	assert.Equal(t, 0.0, meanTSVConfidence(""))
	assert.Equal(t, 0.0, meanTSVConfidence("header\nshort\trow"))
}

func TestHeuristicConfidence(t *testing.T) {
	low := heuristicConfidence("hello")
	high := heuristicConfidence("Paid ₹1,250.00 on 12/01/2025 UPI transaction ID 123456789012 to Asha Nair via Google Pay")
	assert.Equal(t, 20.0, low)
	assert.Greater(t, high, low)
	assert.LessOrEqual(t, high, 100.0)
}

type countingRecognizer struct {
	mu sync.Mutex
	n  int
}

func (c *countingRecognizer) Recognize(context.Context, []byte) (verify.Recognition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return verify.Recognition{Text: "ok"}, nil
}

func TestRateLimited(t *testing.T) {
	inner := &countingRecognizer{}
	assert.Same(t, Recognizer(inner), RateLimited(inner, nil))

	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	r := RateLimited(inner, lim)

	_, err := r.Recognize(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Recognize(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, 1, inner.n)
}

type deadlineRecognizer struct{ deadline time.Time }

func (d *deadlineRecognizer) Recognize(ctx context.Context, _ []byte) (verify.Recognition, error) {
	d.deadline, _ = ctx.Deadline()
	return verify.Recognition{Text: "ok"}, nil
}

func TestTimeout(t *testing.T) {
	inner := &deadlineRecognizer{}
	assert.Same(t, Recognizer(inner), Timeout(inner, 0))

	start := time.Now()
	_, err := Timeout(inner, time.Minute).Recognize(context.Background(), nil)
	require.NoError(t, err)
	assert.WithinDuration(t, start.Add(time.Minute), inner.deadline, 5*time.Second)
}
