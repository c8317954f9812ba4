package ocr

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

// ErrUnreadableImage means recognition itself failed: corrupt or unsupported
// bytes, a failing engine, or no text at all. It is never reported as an
// empty Recognition.
var ErrUnreadableImage = errors.New("could not read image")

type Config struct {
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TesseractLang string // default "eng"
	TessdataDir   string

	EnableTSVConfidence bool

	PSM int // 6 suits a uniform block of text; 0 leaves tesseract's default
	OEM int // 1 = LSTM; leave 0 to use default

	TempDir string // where uploaded bytes are staged for tesseract; "" -> os.TempDir()
}

// Recognizer turns screenshot bytes into raw text plus an engine confidence.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (verify.Recognition, error)
}

type ExtractionResult struct {
	Text     string
	Method   string // "image-ocr"
	Language string
	Duration time.Duration
	Warnings []string

	// Confidence is the engine's mean word confidence, 0..100. Zero when TSV
	// scoring is disabled.
	Confidence float64

	// HeuristicConfidence scores how payment-like the text looks. Diagnostic
	// only and never reported as the engine score.
	HeuristicConfidence float64
}

// Recognition is the engine-facing view of the result.
func (r ExtractionResult) Recognition() verify.Recognition {
	return verify.Recognition{Text: r.Text, Confidence: r.Confidence}
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return NewExtractorWithRunner(cfg, execRunner{logger: logger}, logger)
}

// NewExtractorWithRunner is NewExtractor with a custom command runner.
func NewExtractorWithRunner(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// imageExts maps sniffed content types to the extension tesseract expects.
var imageExts = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/bmp":  ".bmp",
	"image/gif":  ".gif",
}

// Recognize stages image in a temp file and runs OCR on it.
func (e *Extractor) Recognize(ctx context.Context, image []byte) (verify.Recognition, error) {
	if len(image) == 0 {
		return verify.Recognition{}, eris.Wrap(ErrUnreadableImage, "empty image")
	}
	ctype := http.DetectContentType(image)
	ext, ok := imageExts[ctype]
	if !ok {
		e.logger.Warn("unsupported image content", "content_type", ctype, "bytes", len(image))
		return verify.Recognition{}, eris.Wrapf(ErrUnreadableImage, "unsupported content type %q", ctype)
	}

	f, err := os.CreateTemp(e.cfg.TempDir, "payproof-*"+ext)
	if err != nil {
		return verify.Recognition{}, eris.Wrap(err, "ocr: stage image")
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()
	if _, err := f.Write(image); err != nil {
		_ = f.Close()
		return verify.Recognition{}, eris.Wrap(err, "ocr: write staged image")
	}
	if err := f.Close(); err != nil {
		return verify.Recognition{}, eris.Wrap(err, "ocr: close staged image")
	}

	res, err := e.ExtractFile(ctx, path)
	if err != nil {
		return verify.Recognition{}, err
	}
	return res.Recognition(), nil
}

// ExtractFile runs OCR on an image already on disk.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := strings.ToLower(filepath.Ext(path))
	e.logger.Debug("starting ocr extraction", "path", path, "ext", ext)

	res, err := e.extractImage(ctx, path)
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}
	if strings.TrimSpace(res.Text) == "" {
		e.logger.Warn("ocr produced no text", "path", path, "duration_ms", res.Duration.Milliseconds())
		return res, eris.Wrap(ErrUnreadableImage, "no text recognized")
	}
	e.logger.Debug("ocr extraction ok",
		"path", path,
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"heuristic_confidence", res.HeuristicConfidence,
		"warnings", len(res.Warnings),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
