package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/devkiraa/makeTicket-sub003/internal/app"
	"github.com/devkiraa/makeTicket-sub003/internal/common"
	"github.com/devkiraa/makeTicket-sub003/internal/ocr"
	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "", "path to payverify.yaml (optional)")
	expected := flag.Float64("expected", 0, "expected amount; when set the screenshot is also verified")
	flag.Parse()

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [--expected 500] <screenshot.png>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	image, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read screenshot", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rec := app.NewRecognizer(cfg.OCR, logger)
	start := time.Now()
	recognition, err := rec.Recognize(ctx, image)
	dur := time.Since(start)
	if err != nil {
		var cat verify.Category
		if eris.Is(err, ocr.ErrUnreadableImage) {
			cat = verify.CategoryOCRFailure
		}
		logger.Error("recognition failed", "path", path, "category", cat, "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}
	logger.Info("recognition OK",
		"path", path,
		"bytes", len(recognition.Text),
		"confidence", recognition.Confidence,
		"duration_ms", dur.Milliseconds(),
	)

	out := map[string]any{
		"recognition": recognition,
		"matchers":    verify.Explain(recognition.Text),
	}
	if *expected > 0 {
		res := verify.Verify(recognition, verify.Expected{Amount: *expected})
		out["result"] = res
		out["category"] = res.Category()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
}
