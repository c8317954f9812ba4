package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/devkiraa/makeTicket-sub003/internal/entity"
	"github.com/devkiraa/makeTicket-sub003/internal/repository"
	"github.com/devkiraa/makeTicket-sub003/internal/review"
)

const (
	sheet    = "Submissions"
	pageSize = repository.MaxPageLimit
)

// PendingLister is the part of the review service the export reads from.
type PendingLister interface {
	ListPending(ctx context.Context, page, limit int) (*review.PendingPage, error)
}

// Service produces XLSX bytes of the reviewer queue.
type Service struct {
	lister PendingLister
	logger *slog.Logger
}

func NewService(lister PendingLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{lister: lister, logger: logger}
}

// ExportPendingXLSX returns a workbook with every pending submission, newest first.
func (s *Service) ExportPendingXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	var items []entity.PendingSubmission
	for page := 1; ; page++ {
		p, err := s.lister.ListPending(ctx, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("list pending: %w", err)
		}
		items = append(items, p.Items...)
		if page >= p.Pages || len(p.Items) == 0 {
			break
		}
	}

	b, err := WriteXLSX(items)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"rows", len(items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

var headers = []string{
	"Uploaded At",
	"Ticket",
	"User Reference",
	"Extracted Reference",
	"Amount Detected",
	"Expected Amount",
	"Amount Matches",
	"Payment App",
	"Status",
	"Errors",
	"Duplicate",
}

// WriteXLSX renders items into a single-sheet workbook.
func WriteXLSX(items []entity.PendingSubmission) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// rename the default sheet so the workbook has exactly one
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}

	for i, it := range items {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, it.UploadedAt.UTC().Format(time.RFC3339))
		write(2, it.TicketID)
		write(3, it.UserReference)
		write(4, it.ExtractedReference())
		if amt, ok := it.DetectedAmount(); ok {
			write(5, amt)
		} else {
			write(5, "")
		}
		write(6, it.ExpectedAmount)
		write(7, yesNo(it.Result.AmountMatches))
		write(8, it.Result.App)
		write(9, string(it.Status))
		write(10, truncate(strings.Join(it.Result.Errors, "; "), 200))
		write(11, yesNo(it.DuplicateReference))
	}

	_ = f.SetColWidth(sheet, "A", "A", 22) // uploaded
	_ = f.SetColWidth(sheet, "B", "B", 16) // ticket
	_ = f.SetColWidth(sheet, "C", "D", 20) // references
	_ = f.SetColWidth(sheet, "E", "G", 14) // amounts
	_ = f.SetColWidth(sheet, "H", "I", 14)
	_ = f.SetColWidth(sheet, "J", "J", 60) // errors

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
