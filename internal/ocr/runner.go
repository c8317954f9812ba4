package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner executes the OCR engine. Tests substitute a stub.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	attrs := []any{
		"engine", name,
		"input", firstArg(args),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		r.logger.Warn("ocr.engine.failed", append(attrs,
			"error", err,
			"stderr", truncate(errb.String(), 2<<10),
		)...)
	} else {
		r.logger.Debug("ocr.engine.ok", append(attrs, "stdout_bytes", out.Len())...)
	}
	return out.Bytes(), errb.Bytes(), err
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// tesseract stderr markers, lowercased, that mean the input itself could not
// be decoded or held nothing to read.
var unreadableMarkers = []struct {
	marker string
	reason string
}{
	{"pixreadstream", "image could not be decoded"},
	{"cannot be read", "image could not be decoded"},
	{"unsupported image type", "unsupported image format"},
	{"image too small", "image too small to scan"},
	{"too few characters", "too few characters to scan"},
	{"empty page", "no text on page"},
}

// tesseractFailure maps tesseract stderr to a short reason. ok is false when
// nothing in stderr points at the input image.
func tesseractFailure(stderr []byte) (reason string, ok bool) {
	s := strings.ToLower(string(stderr))
	for _, m := range unreadableMarkers {
		if strings.Contains(s, m.marker) {
			return m.reason, true
		}
	}
	return "", false
}

// tesseractWarnings keeps stderr lines worth surfacing, dropping the
// informational chatter tesseract prints on every run.
func tesseractWarnings(stderr []byte) []string {
	var out []string
	for _, ln := range strings.Split(string(stderr), "\n") {
		ln = strings.TrimSpace(ln)
		switch {
		case ln == "",
			strings.HasPrefix(ln, "Estimating resolution"),
			strings.HasPrefix(ln, "Detected "),
			strings.HasPrefix(ln, "Tesseract Open Source"):
			continue
		}
		out = append(out, truncate(ln, 256))
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
