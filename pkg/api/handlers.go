package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/user/credit-sentinel/pkg/covenant"
	"github.com/user/credit-sentinel/pkg/engine"
	"github.com/user/credit-sentinel/pkg/ingest"
	"github.com/user/credit-sentinel/pkg/monitor"
)

var (
	errMissingUpload = errors.New("expected a multipart \"file\" field")
	errUploadTooBig  = errors.New("file too large")
)

type textRequest struct {
	Text string `json:"text" binding:"required"`
}

type figuresRequest struct {
	Figures map[string]float64 `json:"figures" binding:"required"`
}

type evaluateRequest struct {
	Covenant covenant.Definition `json:"covenant"`
	Value    *float64            `json:"value" binding:"required"`
}

type evaluateResponse struct {
	covenant.Result
	Explanation string `json:"explanation"`
}

// Health reports that the server is up
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Extract returns the covenants found in an uploaded agreement or JSON text
func (h *Handler) Extract(c *gin.Context) {
	text, ok := h.agreementText(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"covenants": nonNil(h.extractor.Extract(c.Request.Context(), text))})
}

// Ratios computes the financial ratios of an uploaded table or JSON figures
func (h *Handler) Ratios(c *gin.Context) {
	snapshot, ok := h.snapshot(c)
	if !ok {
		return
	}
	ratios, err := h.calculator.Calculate(snapshot)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ratios": ratios})
}

// Evaluate classifies a single value against a covenant
func (h *Handler) Evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond(c, http.StatusBadRequest, "Invalid evaluation request", err)
		return
	}
	if req.Covenant.Category == "" {
		req.Covenant.Category = covenant.CategoryFinancial
	}
	if err := covenant.Validate(req.Covenant); err != nil {
		h.respond(c, http.StatusBadRequest, "Invalid covenant", err)
		return
	}

	res := engine.Evaluate(req.Covenant, *req.Value)
	c.JSON(http.StatusOK, evaluateResponse{Result: res, Explanation: engine.Explain(req.Covenant, res)})
}

// UploadAgreement extracts and stores the covenants of a loan
func (h *Handler) UploadAgreement(c *gin.Context) {
	text, ok := h.agreementText(c)
	if !ok {
		return
	}
	loanID := c.Param("id")
	defs, err := h.service.IngestAgreement(c.Request.Context(), loanID, text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"loan_id": loanID, "covenants": defs})
}

// UploadFinancials analyses a loan against a new financial snapshot
func (h *Handler) UploadFinancials(c *gin.Context) {
	snapshot, ok := h.snapshot(c)
	if !ok {
		return
	}
	report, err := h.service.Analyze(c.Request.Context(), c.Param("id"), snapshot)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

// GetCovenants lists the stored covenants of a loan
func (h *Handler) GetCovenants(c *gin.Context) {
	defs, err := h.service.Covenants(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan_id": c.Param("id"), "covenants": defs})
}

// PutCovenants replaces the covenants of a loan with a manually supplied set
func (h *Handler) PutCovenants(c *gin.Context) {
	var defs []covenant.Definition
	if err := c.ShouldBindJSON(&defs); err != nil {
		h.respond(c, http.StatusBadRequest, "Invalid covenant data", err)
		return
	}
	if err := h.service.SetCovenants(c.Request.Context(), c.Param("id"), defs); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan_id": c.Param("id"), "covenants": nonNil(defs)})
}

// GetReport returns the latest report of a loan
func (h *Handler) GetReport(c *gin.Context) {
	report, err := h.service.LatestReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListReports returns the report history of a loan
func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.service.Reports(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan_id": c.Param("id"), "reports": reports})
}

// GetDiff compares the two latest reports of a loan
func (h *Handler) GetDiff(c *gin.Context) {
	diff, err := h.service.Diff(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, diff)
}

// agreementText reads agreement text from a multipart upload or a JSON body.
// It writes the error response itself and reports whether to continue.
func (h *Handler) agreementText(c *gin.Context) (string, bool) {
	if isMultipart(c) {
		data, name, err := readUpload(c)
		if err != nil {
			h.respondError(c, err)
			return "", false
		}
		text, err := ingest.DocumentText(data, name)
		if err != nil {
			h.respond(c, http.StatusBadRequest, "Could not read agreement", err)
			return "", false
		}
		return text, true
	}

	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond(c, http.StatusBadRequest, "Invalid agreement data", err)
		return "", false
	}
	return req.Text, true
}

// snapshot reads a financial snapshot from a CSV/XLSX upload or JSON figures
func (h *Handler) snapshot(c *gin.Context) (covenant.Snapshot, bool) {
	if isMultipart(c) {
		data, name, err := readUpload(c)
		if err != nil {
			h.respondError(c, err)
			return nil, false
		}
		s, err := ingest.LoadSnapshot(bytes.NewReader(data), name)
		if err != nil {
			h.respondError(c, err)
			return nil, false
		}
		return s, true
	}

	var req figuresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond(c, http.StatusBadRequest, "Invalid financial data", err)
		return nil, false
	}
	return covenant.NewSnapshot(req.Figures), true
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

func readUpload(c *gin.Context) ([]byte, string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errMissingUpload, err)
	}
	if fh.Size > MaxUploadSize {
		return nil, "", errUploadTooBig
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, fh.Filename, nil
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errMissingUpload), errors.Is(err, monitor.ErrInvalidCovenant):
		h.respond(c, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, errUploadTooBig):
		h.respond(c, http.StatusRequestEntityTooLarge, "File too large", err)
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		h.respond(c, http.StatusUnsupportedMediaType, "Unsupported file type", err)
	case errors.Is(err, ingest.ErrEmptyTable), errors.Is(err, engine.ErrNoRatios):
		h.respond(c, http.StatusUnprocessableEntity, "No ratios could be computed", err)
	case errors.Is(err, monitor.ErrNoCovenants):
		h.respond(c, http.StatusNotFound, "Loan has no covenants", err)
	case errors.Is(err, monitor.ErrNoReport), errors.Is(err, monitor.ErrNoBaseline):
		h.respond(c, http.StatusNotFound, "Report not found", err)
	default:
		h.respond(c, http.StatusInternalServerError, "Internal server error", err)
	}
}

func (h *Handler) respond(c *gin.Context, code int, message string, err error) {
	_ = c.Error(err)
	c.JSON(code, gin.H{"error": message, "detail": err.Error()})
}

func nonNil(defs []covenant.Definition) []covenant.Definition {
	if defs == nil {
		return []covenant.Definition{}
	}
	return defs
}
