package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/devkiraa/makeTicket-sub003/constants"
	"github.com/devkiraa/makeTicket-sub003/internal/common"
	"github.com/devkiraa/makeTicket-sub003/internal/repository"
	"github.com/devkiraa/makeTicket-sub003/internal/review"
	"github.com/devkiraa/makeTicket-sub003/internal/telemetry"
	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

const (
	headerRequestID = "X-Request-ID"
	headerReviewer  = "X-Reviewer"

	// multipart framing allowance on top of the screenshot itself
	formOverhead = 1 << 20

	statementMaxBytes = 4 << 20
)

// Exporter renders the reviewer queue as a workbook.
type Exporter interface {
	ExportPendingXLSX(ctx context.Context) ([]byte, error)
}

// HTTPConfig wires the HTTP API.
type HTTPConfig struct {
	Reviews     Reviews
	Exporter    Exporter
	Metrics     http.Handler
	Health      func(ctx context.Context) error
	MaxBytes    int64
	CORSOrigins []string
	Logger      *slog.Logger
}

type httpAPI struct {
	reviews  Reviews
	exporter Exporter
	health   func(ctx context.Context) error
	maxBytes int64
	logger   *slog.Logger
}

// NewRouter builds the chi router for the upload and review API.
func NewRouter(cfg HTTPConfig) http.Handler {
	api := &httpAPI{
		reviews:  cfg.Reviews,
		exporter: cfg.Exporter,
		health:   cfg.Health,
		maxBytes: cfg.MaxBytes,
		logger:   cfg.Logger,
	}
	if api.logger == nil {
		api.logger = slog.Default()
	}
	if api.maxBytes <= 0 {
		api.maxBytes = constants.MaxUploadBytes
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(telemetry.Middleware)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", headerReviewer, headerRequestID},
			ExposedHeaders:   []string{headerRequestID, "X-Trace-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", api.handleHealth)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	r.Post("/tickets/{ticketID}/payment-proof", api.handleUpload)
	r.Post("/submissions/{submissionID}/verify-manual", api.handleVerifyManual)
	r.Get("/pending-payments", api.handleListPending)
	r.Get("/pending-payments/export.xlsx", api.handleExport)
	r.Post("/pending-payments/reconcile", api.handleReconcile)
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(common.WithRequestID(r.Context(), id)))
	})
}

func (a *httpAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := a.health(ctx); err != nil {
			a.logger.Warn("http.healthz.failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadResponse struct {
	Message string                `json:"message"`
	Outcome *review.SubmitOutcome `json:"outcome"`
}

func (a *httpAPI) handleUpload(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	r.Body = http.MaxBytesReader(w, r.Body, a.maxBytes+formOverhead)
	if err := r.ParseMultipartForm(a.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.writeError(w, r, review.ErrFileTooLarge)
			return
		}
		writeMessage(w, http.StatusBadRequest, "malformed multipart form")
		return
	}

	file, header, err := r.FormFile("screenshot")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Payment screenshot is required")
		return
	}
	defer file.Close()
	if header.Size > a.maxBytes {
		a.writeError(w, r, review.ErrFileTooLarge)
		return
	}
	image, err := io.ReadAll(io.LimitReader(file, a.maxBytes+1))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "could not read screenshot")
		return
	}

	amount, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("amount")), 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "amount must be a number")
		return
	}

	out, err := a.reviews.Submit(r.Context(), review.SubmitRequest{
		TicketID:      ticketID,
		UserReference: r.FormValue("utr"),
		Expected: verify.Expected{
			Amount:    amount,
			PayeeName: r.FormValue("payee_name"),
			UPIID:     r.FormValue("upi_id"),
		},
		Image:    image,
		Filename: header.Filename,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if !out.Decision.Allowed {
		writeJSON(w, http.StatusConflict, uploadResponse{Message: blockMessage(out), Outcome: out})
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{Message: "Payment proof uploaded successfully", Outcome: out})
}

func blockMessage(out *review.SubmitOutcome) string {
	if out.Decision.Reason == verify.BlockReferenceRequired {
		return "Enter the 12-digit UPI reference (UTR) from your payment to continue"
	}
	return out.Message
}

func (a *httpAPI) handleListPending(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := min(queryInt(r, "limit", repository.DefaultPageLimit), repository.MaxPageLimit)
	out, err := a.reviews.ListPending(r.Context(), page, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type verifyManualBody struct {
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason"`
	ForceApprove    bool   `json:"force_approve"`
}

func (a *httpAPI) handleVerifyManual(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "submissionID"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "submission id must be a UUID")
		return
	}
	var body verifyManualBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	ctx := r.Context()
	if reviewer := strings.TrimSpace(r.Header.Get(headerReviewer)); reviewer != "" {
		ctx = common.WithReviewer(ctx, reviewer)
	}
	sub, err := a.reviews.ReviewManual(ctx, id, review.ReviewRequest{
		Status:          body.Status,
		RejectionReason: body.RejectionReason,
		ForceApprove:    body.ForceApprove,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Payment " + string(sub.Status) + " successfully",
		"submission": sub,
	})
}

type reconcileBody struct {
	StatementText string `json:"statement_text"`
	RejectMissing bool   `json:"reject_missing"`
}

func (a *httpAPI) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var body reconcileBody
	if err := json.NewDecoder(io.LimitReader(r.Body, statementMaxBytes)).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	report, err := a.reviews.ReconcileStatement(r.Context(), review.ReconcileRequest{
		Statement:     body.StatementText,
		RejectMissing: body.RejectMissing,
		Reviewer:      strings.TrimSpace(r.Header.Get(headerReviewer)),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	msg := fmt.Sprintf("Processed %d submissions. Verified %d.", report.Processed, report.Verified)
	if report.AmountMismatches > 0 {
		msg += fmt.Sprintf(" %d amount mismatches.", report.AmountMismatches)
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "report": report})
}

func (a *httpAPI) handleExport(w http.ResponseWriter, r *http.Request) {
	if a.exporter == nil {
		writeMessage(w, http.StatusNotFound, "export not configured")
		return
	}
	b, err := a.exporter.ExportPendingXLSX(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="pending-payments.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// httpStatus maps an application error to a status code and client message.
func httpStatus(err error) (int, string) {
	var appErr *common.AppError
	msg := "internal error"
	if errors.As(err, &appErr) {
		msg = appErr.Message
		switch appErr.Code {
		case review.CodeUnreadableImage:
			return http.StatusUnprocessableEntity, msg
		case review.CodeFileTooLarge:
			return http.StatusRequestEntityTooLarge, msg
		case review.CodeUnsupportedType:
			return http.StatusUnsupportedMediaType, msg
		case review.CodeOCRTimeout:
			return http.StatusGatewayTimeout, msg
		}
	}
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, msg
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrFailedPrecondition):
		return http.StatusBadRequest, msg
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, msg
	}
	return http.StatusInternalServerError, "internal error"
}

func (a *httpAPI) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := httpStatus(err)
	if code >= http.StatusInternalServerError {
		a.logger.Error("http.request.failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", common.RequestIDFromContext(r.Context()),
			"error", err,
		)
	}
	body := map[string]string{"message": msg}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		body["code"] = appErr.Code
	}
	writeJSON(w, code, body)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}
