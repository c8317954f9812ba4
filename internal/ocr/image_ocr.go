package ocr

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	txt, warn, err := e.tesseractOCR(ctx, path)
	if err != nil {
		return ExtractionResult{Warnings: warn}, err
	}
	txt = Normalize(txt)

	// engine score only; 0 when TSV is off or fails
	var engineConf float64
	if e.cfg.EnableTSVConfidence {
		if c, err2 := e.tesseractTSVConfidence(ctx, path); err2 == nil {
			engineConf = min(c, 100)
		} else {
			warn = append(warn, err2.Error())
		}
	}

	return ExtractionResult{
		Text:                txt,
		Method:              "image-ocr",
		Language:            e.cfg.TesseractLang,
		Warnings:            warn,
		Confidence:          engineConf,
		HeuristicConfidence: heuristicConfidence(txt),
	}, nil
}

func (e *Extractor) baseArgs(path string) []string {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return args
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.baseArgs(path)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", nil, eris.Wrap(ctxErr, "tesseract")
		}
		// a missing binary is our problem, not the uploader's
		if errors.Is(err, exec.ErrNotFound) {
			return "", nil, eris.Wrapf(err, "tesseract binary %q", e.cfg.Tesseract)
		}
		reason, ok := tesseractFailure(errb)
		if !ok {
			reason = err.Error()
		}
		return "", tesseractWarnings(errb), eris.Wrapf(ErrUnreadableImage, "tesseract: %s", reason)
	}

	// minor cleanup of obvious line noise
	txt := reBoxNoise.ReplaceAllString(string(out), "")
	return txt, tesseractWarnings(errb), nil
}

// tesseractTSVConfidence runs tesseract in TSV mode and returns mean word conf in 0..100.
func (e *Extractor) tesseractTSVConfidence(ctx context.Context, path string) (float64, error) {
	args := append(e.baseArgs(path), "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return 0, fmt.Errorf("tesseract TSV: %w: %s", err, truncate(string(errb), 512))
	}
	return meanTSVConfidence(string(out)), nil
}

// meanTSVConfidence averages the conf column of tesseract TSV output
// (level page block par line word left top width height conf text),
// skipping the header and non-word rows (conf -1).
func meanTSVConfidence(tsv string) float64 {
	var sum, n float64
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || len(ln) == 0 {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := strings.TrimSpace(cols[10])
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}
