package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"
	correlationIDKey    = "correlationID"
)

// WebServer holds the HTTP server configuration
type WebServer struct {
	schedules   *ScheduleSet
	settings    Settings
	addr        string
	defaultYear string
	template    *template.Template
	now         func() time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(schedules *ScheduleSet, settings Settings, addr string) *WebServer {
	if settings.CurrencySymbol == "" {
		settings.CurrencySymbol = defaultCurrencySymbol
	}

	defaultYear, err := ResolveYear(schedules, settings.DefaultYear, time.Now())
	if err != nil {
		Log.Warn("Ignoring default year from settings",
			zap.String("default_year", settings.DefaultYear),
			zap.Error(err),
		)
		defaultYear = schedules.DefaultYear()
	}

	return &WebServer{
		schedules:   schedules,
		settings:    settings,
		addr:        addr,
		defaultYear: defaultYear,
		template:    template.Must(template.New("index").Parse(webUIHTML)),
		now:         time.Now,
	}
}

// FormState is everything the calculator page shows for one request
type FormState struct {
	Years        []string
	SelectedYear string
	Schedule     TaxSchedule
	IncomeText   string
	Result       *TaxResult
	Error        string
	Symbol       string
}

// Money formats an amount to cents with the page's currency symbol
func (f FormState) Money(amount float64) string {
	return FormatCurrencyWith(f.Symbol, amount)
}

// Range formats bracket edges for display
func (f FormState) Range(lower, upper float64) string {
	return FormatBracketRangeWith(f.Symbol, lower, upper)
}

// RateLabel formats a bracket rate as "Nil" or "30.0% + $4,288.00"
func (f FormState) RateLabel(b TaxBracket) string {
	return BracketRateLabel(f.Symbol, b)
}

func (f FormState) Rate(rate float64) string {
	return FormatRate(rate)
}

func (f FormState) Percent(pct float64) string {
	return FormatPercent(pct)
}

// APICalculateRequest is the body of POST /api/calculate.
// Income may be a JSON number or a string such as "85,000" or "85k".
type APICalculateRequest struct {
	Year   string          `json:"year"`
	Income json.RawMessage `json:"income"`
}

// APICalculateResponse wraps a computation for the JSON API
type APICalculateResponse struct {
	Success       bool                `json:"success"`
	Error         string              `json:"error,omitempty"`
	Result        *TaxResult          `json:"result,omitempty"`
	EffectiveRate float64             `json:"effective_rate"`
	Formatted     *APIFormattedResult `json:"formatted,omitempty"`
}

// APIFormattedResult carries display strings so clients need not round
type APIFormattedResult struct {
	Income        string `json:"income"`
	TotalTax      string `json:"total_tax"`
	NetIncome     string `json:"net_income"`
	EffectiveRate string `json:"effective_rate"`
	MarginalRate  string `json:"marginal_rate"`
}

// APIGrossUpRequest is the body of POST /api/gross-up
type APIGrossUpRequest struct {
	Year string          `json:"year"`
	Net  json.RawMessage `json:"net"`
}

// APIGrossUpResponse reports the gross income needed for a net target
type APIGrossUpResponse struct {
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
	Year    string  `json:"year,omitempty"`
	Net     float64 `json:"net"`
	Gross   float64 `json:"gross"`
	Tax     float64 `json:"tax"`
}

// APISchedulesResponse lists every loaded schedule
type APISchedulesResponse struct {
	Success     bool          `json:"success"`
	DefaultYear string        `json:"default_year"`
	Years       []string      `json:"years"`
	Schedules   []TaxSchedule `json:"schedules"`
}

// Start starts the web server and opens the page in the default browser
func (ws *WebServer) Start() error {
	listener, url, err := ws.listen()
	if err != nil {
		return err
	}

	Log.Info("Starting web server", zap.String("addr", listener.Addr().String()))
	Log.Info("Opening browser", zap.String("url", url))
	fmt.Printf("Income Tax Calculator running at %s (Ctrl+C to stop)\n", url)

	// Open browser
	go openBrowser(url)

	server := &http.Server{Handler: ws.routes(), ReadHeaderTimeout: 10 * time.Second}
	return server.Serve(listener)
}

// StartForEmbedded starts the server and returns the URL and a cleanup function.
// Unlike Start(), this does NOT open the browser and does NOT block.
// The caller is responsible for stopping the server via the cleanup function.
func (ws *WebServer) StartForEmbedded() (url string, cleanup func(), err error) {
	listener, url, err := ws.listen()
	if err != nil {
		return "", nil, err
	}

	Log.Info("Starting embedded web server", zap.String("addr", listener.Addr().String()))

	server := &http.Server{Handler: ws.routes(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := server.Serve(listener); err != http.ErrServerClosed {
			Log.Error("Server error", zap.Error(err))
		}
	}()

	cleanup = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			Log.Warn("Server shutdown", zap.Error(err))
		}
	}

	return url, cleanup, nil
}

// listen binds ws.addr (":0" picks a free port) and returns the browsable URL
func (ws *WebServer) listen() (net.Listener, string, error) {
	listener, err := net.Listen("tcp", ws.addr)
	if err != nil {
		return nil, "", err
	}

	actualAddr := listener.Addr().String()
	url := fmt.Sprintf("http://%s", actualAddr)

	// If listening on all interfaces, use localhost for the URL
	if strings.HasPrefix(actualAddr, ":") || strings.HasPrefix(actualAddr, "0.0.0.0:") || strings.HasPrefix(actualAddr, "[::]:") {
		port := actualAddr[strings.LastIndex(actualAddr, ":")+1:]
		url = fmt.Sprintf("http://localhost:%s", port)
	}
	return listener, url, nil
}

// routes builds the gin engine for the form pages and the JSON API
func (ws *WebServer) routes() *gin.Engine {
	r := gin.New()
	// CORS sits on the engine so preflight requests reach it before routing
	r.Use(gin.Recovery(), CorrelationIDMiddleware(), configureCORS(ws.settings.CORSOrigins))

	r.GET("/", ws.handleIndex)
	r.POST("/calculate", ws.handleCalculateForm)

	api := r.Group("/api")
	api.GET("/schedules", ws.handleGetSchedules)
	api.POST("/calculate", ws.handleCalculate)
	api.POST("/gross-up", ws.handleGrossUp)
	api.GET("/export-pdf", ws.handleExportPDF)
	api.GET("/export-csv", ws.handleExportCSV)

	return r
}

// CorrelationIDMiddleware tags each request with an id and logs it
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(correlationIDKey, correlationID)
		c.Header(CorrelationIDHeader, correlationID)

		start := time.Now()
		c.Next()

		Log.Info("Request handled",
			zap.String("correlation_id", correlationID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// requestLog returns the logger tagged with the request's correlation id
func requestLog(c *gin.Context) *zap.Logger {
	return Log.With(zap.String("correlation_id", c.GetString(correlationIDKey)))
}

// configureCORS allows the listed origins, or any origin when none are set
func configureCORS(origins []string) gin.HandlerFunc {
	return cors.New(newCORSConfig(origins))
}

func newCORSConfig(origins []string) cors.Config {
	corsConfig := cors.DefaultConfig()
	if len(origins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", CorrelationIDHeader}
	corsConfig.ExposeHeaders = []string{CorrelationIDHeader, "Content-Disposition"}
	return corsConfig
}

// newFormState builds the page state for a year, falling back to the default
func (ws *WebServer) newFormState(year string) (FormState, error) {
	state := FormState{
		Years:        ws.schedules.Years(),
		SelectedYear: ws.defaultYear,
		Symbol:       ws.settings.CurrencySymbol,
	}

	var lookupErr error
	if year != "" {
		if ws.schedules.Has(year) {
			state.SelectedYear = strings.TrimSpace(year)
		} else {
			_, lookupErr = ws.schedules.Get(year)
		}
	}

	schedule, err := ws.schedules.Get(state.SelectedYear)
	if err != nil {
		return state, err
	}
	state.Schedule = schedule
	return state, lookupErr
}

// render writes the calculator page for a state
func (ws *WebServer) render(c *gin.Context, status int, state FormState) {
	var buf bytes.Buffer
	if err := ws.template.Execute(&buf, state); err != nil {
		requestLog(c).Error("Render failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "render failed")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// handleIndex serves the calculator form. A year query selects the schedule
// and clears any result; an income query calculates straight away.
func (ws *WebServer) handleIndex(c *gin.Context) {
	state, err := ws.newFormState(c.Query("year"))
	if err != nil {
		state.Error = fmt.Sprintf("Unknown financial year %q.", c.Query("year"))
		ws.render(c, http.StatusBadRequest, state)
		return
	}

	if raw, ok := c.GetQuery("income"); ok {
		ws.calculateInto(&state, raw)
		if state.Error != "" {
			ws.render(c, http.StatusBadRequest, state)
			return
		}
	}
	ws.render(c, http.StatusOK, state)
}

// handleCalculateForm handles the HTML form post
func (ws *WebServer) handleCalculateForm(c *gin.Context) {
	state, err := ws.newFormState(c.PostForm("year"))
	if err != nil {
		state.Error = fmt.Sprintf("Unknown financial year %q.", c.PostForm("year"))
		ws.render(c, http.StatusBadRequest, state)
		return
	}

	ws.calculateInto(&state, c.PostForm("income"))
	if state.Error != "" {
		ws.render(c, http.StatusBadRequest, state)
		return
	}
	ws.render(c, http.StatusOK, state)
}

// calculateInto parses raw income and stores either the result or the message
func (ws *WebServer) calculateInto(state *FormState, raw string) {
	state.IncomeText = raw
	income, err := ParseIncome(raw)
	if err != nil {
		state.Error = err.Error()
		return
	}
	result := Compute(income, state.Schedule)
	state.Result = &result
}

// handleGetSchedules returns every loaded schedule
func (ws *WebServer) handleGetSchedules(c *gin.Context) {
	years := ws.schedules.Years()
	schedules := make([]TaxSchedule, 0, len(years))
	for _, year := range years {
		schedule, err := ws.schedules.Get(year)
		if err != nil {
			sendJSONError(c, http.StatusInternalServerError, err.Error())
			return
		}
		schedules = append(schedules, schedule)
	}

	c.JSON(http.StatusOK, APISchedulesResponse{
		Success:     true,
		DefaultYear: ws.defaultYear,
		Years:       years,
		Schedules:   schedules,
	})
}

// handleCalculate computes tax for a JSON request
func (ws *WebServer) handleCalculate(c *gin.Context) {
	var req APICalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendJSONError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	schedule, err := ws.scheduleFor(req.Year)
	if err != nil {
		sendJSONError(c, http.StatusBadRequest, err.Error())
		return
	}

	income, err := parseAmountJSON(req.Income)
	if err != nil {
		sendJSONError(c, http.StatusBadRequest, err.Error())
		return
	}

	result := Compute(income, schedule)
	requestLog(c).Debug("Calculated",
		zap.String("year", result.Year),
		zap.Float64("income", income),
		zap.Float64("total_tax", result.TotalTax),
	)

	symbol := ws.settings.CurrencySymbol
	c.JSON(http.StatusOK, APICalculateResponse{
		Success:       true,
		Result:        &result,
		EffectiveRate: result.EffectiveRate(),
		Formatted: &APIFormattedResult{
			Income:        FormatCurrencyWith(symbol, result.Income),
			TotalTax:      FormatCurrencyWith(symbol, result.TotalTax),
			NetIncome:     FormatCurrencyWith(symbol, result.NetIncome),
			EffectiveRate: FormatPercent(result.EffectiveRate()),
			MarginalRate:  FormatRate(result.MarginalRate),
		},
	})
}

// handleGrossUp finds the gross income that leaves the requested net amount
func (ws *WebServer) handleGrossUp(c *gin.Context) {
	var req APIGrossUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendJSONError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	schedule, err := ws.scheduleFor(req.Year)
	if err != nil {
		sendJSONError(c, http.StatusBadRequest, err.Error())
		return
	}

	target, err := parseAmountJSON(req.Net)
	if err != nil {
		sendJSONError(c, http.StatusBadRequest, err.Error())
		return
	}

	gross, tax, err := GrossUp(target, schedule)
	if err != nil {
		sendJSONError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, APIGrossUpResponse{
		Success: true,
		Year:    schedule.Year,
		Net:     target,
		Gross:   gross,
		Tax:     tax,
	})
}

// handleExportPDF streams a PDF report for ?year=&income=
func (ws *WebServer) handleExportPDF(c *gin.Context) {
	schedule, result, ok := ws.exportResult(c)
	if !ok {
		return
	}

	pdfBytes, err := GenerateCalculationPDF(schedule, result, ws.settings.CurrencySymbol, ws.now())
	if err != nil {
		requestLog(c).Error("PDF generation failed", zap.Error(err))
		sendJSONError(c, http.StatusInternalServerError, "Failed to generate PDF: "+err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFilename(schedule.Year, "pdf")))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

// handleExportCSV streams the breakdown as CSV for ?year=&income=
func (ws *WebServer) handleExportCSV(c *gin.Context) {
	_, result, ok := ws.exportResult(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := WriteBreakdownCSV(&buf, result, ws.settings.CurrencySymbol); err != nil {
		requestLog(c).Error("CSV export failed", zap.Error(err))
		sendJSONError(c, http.StatusInternalServerError, "Failed to export CSV: "+err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFilename(result.Year, "csv")))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// exportResult reads year and income from the query for the export endpoints
func (ws *WebServer) exportResult(c *gin.Context) (TaxSchedule, TaxResult, bool) {
	schedule, err := ws.scheduleFor(c.Query("year"))
	if err != nil {
		sendJSONError(c, http.StatusBadRequest, err.Error())
		return TaxSchedule{}, TaxResult{}, false
	}
	income, err := ParseIncome(c.Query("income"))
	if err != nil {
		sendJSONError(c, http.StatusBadRequest, err.Error())
		return TaxSchedule{}, TaxResult{}, false
	}
	return schedule, Compute(income, schedule), true
}

// scheduleFor returns the named schedule, or the default when year is blank
func (ws *WebServer) scheduleFor(year string) (TaxSchedule, error) {
	if strings.TrimSpace(year) == "" {
		year = ws.defaultYear
	}
	return ws.schedules.Get(year)
}

// parseAmountJSON accepts a JSON number or string and validates it like typed input
func parseAmountJSON(raw json.RawMessage) (float64, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return ParseIncome(text)
	}
	return ParseIncome(string(raw))
}

// exportFilename names a download, e.g. "income-tax-2024-25.pdf"
func exportFilename(year, ext string) string {
	return fmt.Sprintf("income-tax-%s.%s", year, ext)
}

// sendJSONError sends a JSON error response
func sendJSONError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, APICalculateResponse{
		Success: false,
		Error:   message,
	})
}

// webUIHTML is the calculator page, rendered with a FormState
const webUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Income Tax Calculator</title>
    <style>
        :root {
            --primary: #2563eb;
            --primary-dark: #1d4ed8;
            --success: #16a34a;
            --danger: #dc2626;
            --bg: #f1f5f9;
            --card-bg: #ffffff;
            --text: #1e293b;
            --text-muted: #64748b;
            --border: #e2e8f0;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg);
            color: var(--text);
            line-height: 1.5;
        }
        .container { max-width: 760px; margin: 0 auto; padding: 24px 16px; }
        h1 { font-size: 1.6rem; margin-bottom: 16px; }
        h2 { font-size: 1.1rem; margin-bottom: 12px; }
        .card {
            background: var(--card-bg);
            border: 1px solid var(--border);
            border-radius: 8px;
            padding: 20px;
            margin-bottom: 16px;
        }
        .years { display: flex; flex-wrap: wrap; gap: 8px; }
        .years button {
            border: 1px solid var(--primary);
            background: #fff;
            color: var(--primary);
            border-radius: 6px;
            padding: 6px 14px;
            cursor: pointer;
        }
        .years button.active { background: var(--primary); color: #fff; }
        table { width: 100%; border-collapse: collapse; }
        th, td { padding: 6px 8px; border-bottom: 1px solid var(--border); text-align: left; }
        td.num, th.num { text-align: right; font-variant-numeric: tabular-nums; }
        form.income { display: flex; gap: 8px; align-items: center; }
        form.income input[type=text] {
            flex: 1;
            padding: 8px 10px;
            border: 1px solid var(--border);
            border-radius: 6px;
            font-size: 1rem;
        }
        form.income button {
            background: var(--primary);
            color: #fff;
            border: none;
            border-radius: 6px;
            padding: 8px 18px;
            font-size: 1rem;
            cursor: pointer;
        }
        form.income button:hover { background: var(--primary-dark); }
        .error { color: var(--danger); margin-top: 10px; }
        .totals { margin-top: 12px; }
        .totals div { display: flex; justify-content: space-between; padding: 4px 0; }
        .tax { color: var(--danger); font-weight: 600; }
        .net { color: var(--success); font-weight: 600; }
        .muted { color: var(--text-muted); }
        .exports { margin-top: 12px; font-size: 0.9rem; }
        .exports a { color: var(--primary); margin-right: 12px; }
    </style>
</head>
<body>
<div class="container">
    <h1>Income Tax Calculator</h1>

    <div class="card">
        <h2>Financial Year</h2>
        <form class="years" method="get" action="/">
            {{range .Years}}<button type="submit" name="year" value="{{.}}"{{if eq . $.SelectedYear}} class="active"{{end}}>FY {{.}}</button>
            {{end}}
        </form>
    </div>

    <div class="card">
        <h2>Tax Rates - FY {{.Schedule.Year}}</h2>
        <table>
            <thead><tr><th>Taxable Income</th><th class="num">Tax Rate</th></tr></thead>
            <tbody>
            {{range .Schedule.Brackets}}<tr><td>{{$.Range .Lower .Upper}}</td><td class="num">{{$.RateLabel .}}</td></tr>
            {{end}}
            </tbody>
        </table>
    </div>

    <div class="card">
        <h2>Annual Taxable Income</h2>
        <form class="income" method="post" action="/calculate">
            <input type="hidden" name="year" value="{{.SelectedYear}}">
            <input type="text" name="income" value="{{.IncomeText}}" placeholder="e.g. 85,000" autofocus>
            <button type="submit">Calculate</button>
        </form>
        {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
    </div>

    {{with .Result}}
    <div class="card">
        <h2>Result for {{$.Money .Income}} (FY {{.Year}})</h2>
        {{if .Breakdown}}
        <table>
            <thead><tr><th>Bracket</th><th class="num">Taxable</th><th class="num">Rate</th><th class="num">Tax</th></tr></thead>
            <tbody>
            {{range .Breakdown}}<tr><td>{{$.Range .Lower .Upper}}</td><td class="num">{{$.Money .TaxableAmount}}</td><td class="num">{{$.Rate .Rate}}</td><td class="num">{{$.Money .Tax}}</td></tr>
            {{end}}
            </tbody>
        </table>
        {{else}}
        <p class="muted">No taxable income.</p>
        {{end}}
        <div class="totals">
            <div><span>Total Tax Payable</span><span class="tax">{{$.Money .TotalTax}}</span></div>
            <div><span>Net Income (After Tax)</span><span class="net">{{$.Money .NetIncome}}</span></div>
            <div><span>Effective Tax Rate</span><span>{{$.Percent .EffectiveRate}}</span></div>
            <div><span>Marginal Tax Rate</span><span>{{$.Rate .MarginalRate}}</span></div>
        </div>
        <div class="exports">
            <a href="/api/export-pdf?year={{.Year}}&amp;income={{printf "%.2f" .Income}}">Download PDF</a>
            <a href="/api/export-csv?year={{.Year}}&amp;income={{printf "%.2f" .Income}}">Download CSV</a>
        </div>
    </div>
    {{end}}
</div>
</body>
</html>
`
