package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/credit-sentinel/pkg/covenant"
	"github.com/user/credit-sentinel/pkg/engine"
	"github.com/user/credit-sentinel/pkg/monitor"
	"github.com/user/credit-sentinel/pkg/store"
)

const agreement = "The Current Ratio shall be not less than 1.25. Debt/EBITDA shall not exceed 3.5x."

func setupRouter() *gin.Engine {
	x := engine.NewPatternExtractor()
	calc := engine.NewCalculator()
	svc := monitor.NewService(x, calc, store.NewMemory())
	return NewRouter(NewHandler(svc, x, calc, nil))
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doUpload(t *testing.T, r http.Handler, path, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	w := doJSON(t, setupRouter(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestExtractEndpoint(t *testing.T) {
	router := setupRouter()

	t.Run("JSON", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/extract", `{"text": "Debt/EBITDA ratio shall not exceed 3.5x"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Covenants []covenant.Definition `json:"covenants"`
		}
		decode(t, w, &resp)
		require.Len(t, resp.Covenants, 1)
		assert.Equal(t, covenant.DebtToEBITDA, resp.Covenants[0].Name)
	})

	t.Run("Upload", func(t *testing.T) {
		w := doUpload(t, router, "/api/v1/extract", "agreement.txt", agreement)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), covenant.CurrentRatio)
	})

	t.Run("NothingFound", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/extract", `{"text": "no covenants here"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"covenants": []}`, w.Body.String())
	})

	t.Run("BadBody", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/extract", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRatiosEndpoint(t *testing.T) {
	router := setupRouter()

	w := doJSON(t, router, http.MethodPost, "/api/v1/ratios",
		`{"figures": {"EBITDA": 10, "total_debt": 32, "interest": 4, "current_assets": 12, "current_liabilities": 10}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ratios": {"Debt-to-EBITDA": 3.2, "Interest Coverage": 2.5, "Current Ratio": 1.2}}`, w.Body.String())

	w = doUpload(t, router, "/api/v1/ratios", "q1.csv", "ebitda,total_debt\n10,32\n")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ratios": {"Debt-to-EBITDA": 3.2}}`, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/api/v1/ratios", `{"figures": {"revenue": 1}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doUpload(t, router, "/api/v1/ratios", "q1.json", "{}")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestEvaluateEndpoint(t *testing.T) {
	router := setupRouter()

	w := doJSON(t, router, http.MethodPost, "/api/v1/evaluate",
		`{"covenant": {"name": "Current Ratio", "threshold": 1.25, "operator": ">="}, "value": 1.3}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp evaluateResponse
	decode(t, w, &resp)
	assert.Equal(t, covenant.StatusWarning, resp.Status)
	assert.Equal(t, 1.3, resp.CurrentValue)
	assert.Contains(t, resp.Explanation, "4.0%")

	w = doJSON(t, router, http.MethodPost, "/api/v1/evaluate",
		`{"covenant": {"name": "Current Ratio", "threshold": 1.25, "operator": ">="}, "value": 1.1}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp = evaluateResponse{}
	decode(t, w, &resp)
	assert.Equal(t, covenant.StatusBreach, resp.Status)

	w = doJSON(t, router, http.MethodPost, "/api/v1/evaluate",
		`{"covenant": {"name": "Current Ratio", "threshold": 1.25, "operator": "!="}, "value": 1.1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/evaluate",
		`{"covenant": {"name": "Current Ratio", "threshold": 1.25, "operator": ">="}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoanLifecycle(t *testing.T) {
	router := setupRouter()

	w := doJSON(t, router, http.MethodGet, "/api/v1/loans/acme/report", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/loans/acme/financials", `{"figures": {"ebitda": 10, "total_debt": 32}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doUpload(t, router, "/api/v1/loans/acme/agreement", "agreement.txt", agreement)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/loans/acme/covenants", "")
	require.Equal(t, http.StatusOK, w.Code)
	var covs struct {
		Covenants []covenant.Definition `json:"covenants"`
	}
	decode(t, w, &covs)
	assert.Len(t, covs.Covenants, 2)

	w = doUpload(t, router, "/api/v1/loans/acme/financials", "q1.csv",
		"ebitda,total_debt,current_assets,current_liabilities\n10,32,11,10\n")
	require.Equal(t, http.StatusCreated, w.Code)
	var report monitor.Report
	decode(t, w, &report)
	assert.Equal(t, "acme", report.LoanID)
	assert.Len(t, report.Lines, 2)
	assert.Equal(t, covenant.StatusBreach, report.Worst())

	w = doJSON(t, router, http.MethodGet, "/api/v1/loans/acme/diff", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/loans/acme/financials",
		`{"figures": {"ebitda": 10, "total_debt": 20, "current_assets": 15, "current_liabilities": 10}}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/loans/acme/diff", "")
	require.Equal(t, http.StatusOK, w.Code)
	var diff monitor.Diff
	decode(t, w, &diff)
	assert.Len(t, diff.Improved, 2)

	w = doJSON(t, router, http.MethodGet, "/api/v1/loans/acme/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &report)
	assert.Equal(t, covenant.StatusCompliant, report.Worst())

	w = doJSON(t, router, http.MethodGet, "/api/v1/loans/acme/reports", "")
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Reports []monitor.Report `json:"reports"`
	}
	decode(t, w, &history)
	assert.Len(t, history.Reports, 2)
}

func TestPutCovenants(t *testing.T) {
	router := setupRouter()

	w := doJSON(t, router, http.MethodPut, "/api/v1/loans/acme/covenants",
		`[{"name": "Current Ratio", "threshold": 1.2, "operator": ">=", "category": "Financial"}]`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPut, "/api/v1/loans/acme/covenants",
		`[{"name": "Current Ratio", "threshold": 1.2, "operator": ">=", "category": "Other"}]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
