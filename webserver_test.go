package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *WebServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	set, err := LoadDefaultSchedules()
	require.NoError(t, err)
	return NewWebServer(set, Settings{DefaultYear: "2024-25", CurrencySymbol: "$"}, "localhost:0")
}

func serve(ws *WebServer, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ws.routes().ServeHTTP(w, req)
	return w
}

func postJSON(t *testing.T, ws *WebServer, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return serve(ws, req)
}

func TestIndexRendersDefaultYear(t *testing.T) {
	ws := newTestServer(t)
	w := serve(ws, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Tax Rates - FY 2024-25")
	assert.Contains(t, body, "30.0% + $4,288.00")
	assert.Contains(t, body, "Nil")
	assert.Contains(t, body, `value="2024-25" class="active"`)
	assert.NotContains(t, body, "Total Tax Payable")
	assert.NotEmpty(t, w.Header().Get(CorrelationIDHeader))
}

func TestIndexYearSwitchClearsResult(t *testing.T) {
	ws := newTestServer(t)
	w := serve(ws, httptest.NewRequest(http.MethodGet, "/?year=2023-24", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Tax Rates - FY 2023-24")
	assert.Contains(t, w.Body.String(), "32.5% + $5,092.00")
	assert.NotContains(t, w.Body.String(), "Total Tax Payable")
}

func TestIndexUnknownYear(t *testing.T) {
	ws := newTestServer(t)
	w := serve(ws, httptest.NewRequest(http.MethodGet, "/?year=1999-00", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Unknown financial year")
	assert.Contains(t, w.Body.String(), "Tax Rates - FY 2024-25")
}

func TestCalculateForm(t *testing.T) {
	ws := newTestServer(t)

	form := url.Values{"year": {"2024-25"}, "income": {"85,000"}}
	req := httptest.NewRequest(http.MethodPost, "/calculate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := serve(ws, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Result for $85,000.00 (FY 2024-25)")
	assert.Contains(t, body, "$16,288.00")
	assert.Contains(t, body, "$68,712.00")
	assert.Contains(t, body, "19.16%")
	assert.Contains(t, body, `value="85,000"`)
}

func TestCalculateFormInvalidIncome(t *testing.T) {
	ws := newTestServer(t)

	for _, income := range []string{"", "abc", "-100"} {
		form := url.Values{"year": {"2024-25"}, "income": {income}}
		req := httptest.NewRequest(http.MethodPost, "/calculate", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := serve(ws, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, "income %q", income)
		assert.Contains(t, w.Body.String(), `class="error"`, "income %q", income)
		assert.NotContains(t, w.Body.String(), "Total Tax Payable", "income %q", income)
	}
}

func TestCorrelationIDPassedThrough(t *testing.T) {
	ws := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/schedules", nil)
	req.Header.Set(CorrelationIDHeader, "test-correlation-id")
	w := serve(ws, req)

	assert.Equal(t, "test-correlation-id", w.Header().Get(CorrelationIDHeader))
}

func TestAPISchedules(t *testing.T) {
	ws := newTestServer(t)
	w := serve(ws, httptest.NewRequest(http.MethodGet, "/api/schedules", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success     bool     `json:"success"`
		DefaultYear string   `json:"default_year"`
		Years       []string `json:"years"`
		Schedules   []struct {
			Year     string `json:"year"`
			Brackets []struct {
				Lower   float64  `json:"lower"`
				Upper   *float64 `json:"upper"`
				Rate    float64  `json:"rate"`
				BaseTax float64  `json:"base_tax"`
			} `json:"brackets"`
		} `json:"schedules"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, "2024-25", resp.DefaultYear)
	assert.Equal(t, []string{"2023-24", "2024-25", "2025-26"}, resp.Years)
	require.Len(t, resp.Schedules, 3)

	brackets := resp.Schedules[1].Brackets
	require.Len(t, brackets, 5)
	assert.Nil(t, brackets[4].Upper, "top bracket upper is null")
	require.NotNil(t, brackets[1].Upper)
	assert.Equal(t, 45000.0, *brackets[1].Upper)
	assert.InDelta(t, 31288, brackets[3].BaseTax, 0.01)
}

func TestAPICalculate(t *testing.T) {
	ws := newTestServer(t)

	tests := []struct {
		name     string
		body     string
		year     string
		totalTax float64
	}{
		{"number income", `{"year":"2024-25","income":45000}`, "2024-25", 4288},
		{"string income", `{"year":"2024-25","income":"$200,000"}`, "2024-25", 56138},
		{"default year", `{"income":"20k"}`, "2024-25", 288},
		{"zero", `{"year":"2024-25","income":0}`, "2024-25", 0},
		{"earlier year", `{"year":"2023-24","income":85000}`, "2023-24", 18092},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, ws, "/api/calculate", tc.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var resp APICalculateResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.True(t, resp.Success)
			require.NotNil(t, resp.Result)
			assert.Equal(t, tc.year, resp.Result.Year)
			assertTaxEquals(t, tc.totalTax, resp.Result.TotalTax, tc.name)
			assertTaxEquals(t, resp.Result.Income-tc.totalTax, resp.Result.NetIncome, tc.name+" net")
		})
	}
}

func TestAPICalculateFormatted(t *testing.T) {
	ws := newTestServer(t)
	w := postJSON(t, ws, "/api/calculate", `{"year":"2024-25","income":85000}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp APICalculateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Formatted)
	assert.Equal(t, "$16,288.00", resp.Formatted.TotalTax)
	assert.Equal(t, "19.16%", resp.Formatted.EffectiveRate)
	assert.Equal(t, "30%", resp.Formatted.MarginalRate)

	// breakdown entries carry a display range and a null upper for the top bracket
	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	breakdown := raw["result"].(map[string]any)["breakdown"].([]any)
	require.Len(t, breakdown, 3)
	assert.Equal(t, "$45,001 – $135,000", breakdown[2].(map[string]any)["range"])
}

func TestAPICalculateErrors(t *testing.T) {
	ws := newTestServer(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"malformed", `{"income":`, "Invalid request"},
		{"missing income", `{"year":"2024-25"}`, "Please enter"},
		{"negative", `{"income":-5}`, "cannot be negative"},
		{"text", `{"income":"lots"}`, "not a number"},
		{"unknown year", `{"year":"1999-00","income":1000}`, "unknown financial year"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, ws, "/api/calculate", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp APICalculateResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Error, tc.message)
		})
	}
}

func TestAPIGrossUp(t *testing.T) {
	ws := newTestServer(t)
	w := postJSON(t, ws, "/api/gross-up", `{"year":"2024-25","net":"68,712"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp APIGrossUpResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.InDelta(t, 85000, resp.Gross, 0.01)
	assert.InDelta(t, 16288, resp.Tax, 0.01)

	w = postJSON(t, ws, "/api/gross-up", `{"net":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIGrossUpUnreachable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	set, err := ParseSchedules([]byte(fullTopRateSchedules))
	require.NoError(t, err)
	ws := NewWebServer(set, Settings{}, "localhost:0")

	w := postJSON(t, ws, "/api/gross-up", `{"year":"2030-31","net":500}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp APIGrossUpResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "cannot be reached")
}

func TestAPICalculateKeepsEffectiveRateField(t *testing.T) {
	ws := newTestServer(t)
	w := postJSON(t, ws, "/api/calculate", `{"year":"2024-25","income":10000}`)
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	rate, ok := raw["effective_rate"]
	require.True(t, ok, "effective_rate present inside the tax-free threshold")
	assert.Equal(t, 0.0, rate)
}

func TestAPIExportPDF(t *testing.T) {
	ws := newTestServer(t)
	w := serve(ws, httptest.NewRequest(http.MethodGet, "/api/export-pdf?year=2024-25&income=85000", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "income-tax-2024-25.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}

func TestAPIExportCSV(t *testing.T) {
	ws := newTestServer(t)
	w := serve(ws, httptest.NewRequest(http.MethodGet, "/api/export-csv?income=45000", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "income-tax-2024-25.csv")
	assert.Contains(t, w.Body.String(), "4288.00")

	w = serve(ws, httptest.NewRequest(http.MethodGet, "/api/export-csv?income=", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPICORSPreflight(t *testing.T) {
	ws := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/calculate", nil)
	req.Header.Set("Origin", "http://example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(ws, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewWebServerFallsBackFromBadDefaultYear(t *testing.T) {
	set, err := LoadDefaultSchedules()
	require.NoError(t, err)

	ws := NewWebServer(set, Settings{DefaultYear: "1999-00"}, "localhost:0")
	assert.Equal(t, "2024-25", ws.defaultYear)
	assert.Equal(t, "$", ws.settings.CurrencySymbol)
}

func TestStartForEmbedded(t *testing.T) {
	ws := newTestServer(t)
	baseURL, cleanup, err := ws.StartForEmbedded()
	require.NoError(t, err)
	defer cleanup()

	resp, err := http.Get(baseURL + "/api/schedules")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
