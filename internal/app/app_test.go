package app

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devkiraa/makeTicket-sub003/internal/common"
	"github.com/devkiraa/makeTicket-sub003/internal/review"
	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

type stubRecognizer struct{ text string }

func (s stubRecognizer) Recognize(context.Context, []byte) (verify.Recognition, error) {
	return verify.Recognition{Text: s.text, Confidence: 90}, nil
}

func sqliteConfig(t *testing.T) *common.Config {
	t.Helper()
	dir := t.TempDir()
	return &common.Config{
		Database: common.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(dir, "app.db")},
		Uploads:  common.UploadsConfig{Dir: filepath.Join(dir, "uploads"), MaxBytes: 1 << 20},
		OCR:      common.OCRConfig{RatePerSecond: 2, Burst: 1},
	}
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNew_SQLite(t *testing.T) {
	text := "PhonePe\nPaid to Asha\n₹750\nTransaction successful\nUTR: 509812345678"
	a, err := New(context.Background(), sqliteConfig(t), nil, WithRecognizer(stubRecognizer{text: text}))
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Health(context.Background()))

	out, err := a.Reviews.Submit(context.Background(), review.SubmitRequest{
		TicketID:      "T-100",
		UserReference: "509812345678",
		Expected:      verify.Expected{Amount: 750},
		Image:         tinyPNG(t),
		Filename:      "proof.png",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Submission)
	assert.False(t, out.Submission.NeedsReview)

	page, err := a.Reviews.ListPending(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	b, err := a.Export.ExportPendingXLSX(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, b)
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Database.Driver = "mysql"
	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestNewRecognizer(t *testing.T) {
	rec := NewRecognizer(common.OCRConfig{Tesseract: "tesseract", RatePerSecond: 1}, nil)
	assert.NotNil(t, rec)
}
