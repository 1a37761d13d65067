package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/efficient-frontier/internal/config"
	"github.com/iwvelando/efficient-frontier/internal/frontier"
	"github.com/iwvelando/efficient-frontier/pkg/chart"
	"github.com/iwvelando/efficient-frontier/pkg/constants"
	"github.com/iwvelando/efficient-frontier/pkg/market"
	"github.com/iwvelando/efficient-frontier/pkg/markowitz"
	"github.com/iwvelando/efficient-frontier/pkg/output"
	"go.uber.org/zap"
)

type handler struct {
	logger        *zap.Logger
	market        *market.Market
	defaultAssets []string
	workers       int
	maxUploadSize int64
	version       string
}

// NewHandler constructs the HTTP handler that serves the frontier API over m.
func NewHandler(logger *zap.Logger, m *market.Market, cfg *Config, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	maxUploadSize := cfg.UploadSizeBytes()
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:        logger,
		market:        m,
		defaultAssets: append([]string(nil), cfg.DefaultAssets...),
		workers:       cfg.Workers,
		maxUploadSize: maxUploadSize,
		version:       trimmedVersion,
	}

	mux := http.NewServeMux()

	// Asset universe for selection
	mux.HandleFunc("/api/assets", h.handleAssets)

	// Persisted covariance/returns table
	mux.HandleFunc("/api/market", h.handleMarket)

	// Frontier computation
	mux.HandleFunc("/api/frontier", h.handleFrontier)

	// Frontier rendered as PNG
	mux.HandleFunc("/api/frontier/chart", h.handleFrontierChart)

	// Version endpoint for UI metadata
	mux.HandleFunc("/api/version", h.handleVersion)

	return mux
}

type assetInfo struct {
	ID             string  `json:"id"`
	ExpectedReturn float64 `json:"expectedReturn"`
	Variance       float64 `json:"variance"`
}

type assetsResponse struct {
	Assets        []assetInfo `json:"assets"`
	DefaultAssets []string    `json:"defaultAssets"`
}

// frontierRequest selects the assets and the target returns. Returns takes
// precedence over the start/stop/step range. Table optionally carries a
// market table in CSV form that replaces the server's market.
type frontierRequest struct {
	Assets  []string  `json:"assets"`
	Returns []float64 `json:"returns,omitempty"`
	Start   float64   `json:"start,omitempty"`
	Stop    float64   `json:"stop,omitempty"`
	Step    float64   `json:"step,omitempty"`
	Workers int       `json:"workers,omitempty"`
	Table   string    `json:"table,omitempty"`
}

type frontierResponse struct {
	Assets        []string          `json:"assets"`
	Columns       []string          `json:"columns"`
	Points        []markowitz.Point `json:"points"`
	LowestRisk    int               `json:"lowestRisk"`
	GlobalMinimum markowitz.Point   `json:"globalMinimum"`
	CSV           string            `json:"csv"`
	Warnings      []string          `json:"warnings,omitempty"`
	Duration      string            `json:"duration"`
}

// requestError carries an HTTP status for failures detected while reading
// the request.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func (h *handler) handleAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if h.market == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "no market data loaded", "server.handleAssets")
		return
	}

	returns := h.market.ExpectedReturns()
	cov := h.market.Covariance()
	resp := assetsResponse{DefaultAssets: h.selection(nil)}
	for i, id := range h.market.Assets() {
		resp.Assets = append(resp.Assets, assetInfo{
			ID:             id,
			ExpectedReturn: returns[i],
			Variance:       cov.At(i, i),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleMarket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if h.market == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "no market data loaded", "server.handleMarket")
		return
	}

	var buf bytes.Buffer
	if err := h.market.WriteTable(&buf); err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to write market table: %v", err), "server.handleMarket")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("failed to write market table", zap.String("op", "server.handleMarket"), zap.Error(err))
	}
}

func (h *handler) handleFrontier(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleFrontier"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	result, err := h.computeFrontier(w, r)
	if err != nil {
		h.respondFailure(w, err, op)
		return
	}
	elapsed := time.Since(start)

	response := frontierResponse{
		Assets:        result.Assets,
		Columns:       output.Header(result.Assets),
		Points:        result.Points,
		LowestRisk:    result.LowestRisk,
		GlobalMinimum: result.GlobalMinimum,
		CSV:           output.CsvString(result),
		Warnings:      result.Warnings,
		Duration:      elapsed.String(),
	}

	h.logger.Info("frontier served",
		zap.String("op", op),
		zap.Int("assets", len(response.Assets)),
		zap.Int("points", len(response.Points)),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) handleFrontierChart(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleFrontierChart"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	kind, err := chart.ParseKind(query.Get("kind"))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	opts := chart.Options{}
	for name, dst := range map[string]*int{"width": &opts.Width, "height": &opts.Height} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 4000 {
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", name, raw), op)
			return
		}
		*dst = v
	}

	result, err := h.computeFrontier(w, r)
	if err != nil {
		h.respondFailure(w, err, op)
		return
	}

	img, err := chart.Render(kind, result, opts)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusUnprocessableEntity, err.Error(), op)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		h.logger.Error("failed to write chart", zap.String("op", op), zap.Error(err))
	}
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) computeFrontier(w http.ResponseWriter, r *http.Request) (*frontier.Result, error) {
	req, err := h.decodeRequest(w, r)
	if err != nil {
		return nil, err
	}

	m := h.market
	if req.Table != "" {
		m, err = market.LoadTable(strings.NewReader(req.Table))
		if err != nil {
			return nil, err
		}
	}
	if m == nil {
		return nil, &requestError{status: http.StatusServiceUnavailable, msg: "no market data loaded"}
	}

	sweep := config.SweepConfig{Start: req.Start, Stop: req.Stop, Step: req.Step, Returns: req.Returns}
	returns, err := sweep.ReturnsVector()
	if err != nil {
		return nil, &requestError{status: http.StatusBadRequest, msg: err.Error()}
	}

	assets := req.Assets
	if len(assets) == 0 && req.Table == "" {
		assets = h.selection(m)
	}

	return frontier.Compute(r.Context(), h.logger, m, frontier.Request{
		Assets:  assets,
		Returns: returns,
		Workers: h.workerCount(req.Workers),
	})
}

func (h *handler) decodeRequest(w http.ResponseWriter, r *http.Request) (*frontierRequest, error) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	var req frontierRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := h.decodeMultipart(r, &req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, h.readError(err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf("invalid request body: %v", err)}
	}
	return &req, nil
}

// decodeMultipart reads an optional "request" JSON field and an optional
// "table" file upload.
func (h *handler) decodeMultipart(r *http.Request, req *frontierRequest) error {
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		return h.readError(err)
	}

	if raw := strings.TrimSpace(r.FormValue("request")); raw != "" {
		if err := json.Unmarshal([]byte(raw), req); err != nil {
			return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf("invalid request field: %v", err)}
		}
	}

	file, _, err := r.FormFile("table")
	if errors.Is(err, http.ErrMissingFile) {
		return nil
	}
	if err != nil {
		return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf("failed to read table upload: %v", err)}
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded table",
				zap.String("op", "server.decodeMultipart"),
				zap.Error(closeErr),
			)
		}
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return &requestError{status: http.StatusInternalServerError, msg: fmt.Sprintf("failed to read table upload: %v", err)}
	}
	req.Table = buf.String()
	return nil
}

func (h *handler) readError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return &requestError{status: http.StatusRequestEntityTooLarge,
			msg: fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize)}
	}
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf("failed to read request: %v", err)}
}

// selection returns the configured default assets present in m, or every
// asset of m when none of them are.
func (h *handler) selection(m *market.Market) []string {
	if m == nil {
		m = h.market
	}
	var assets []string
	for _, asset := range h.defaultAssets {
		if m != nil && m.Has(asset) {
			assets = append(assets, asset)
		}
	}
	if len(assets) == 0 && m != nil {
		return m.Assets()
	}
	return assets
}

func (h *handler) workerCount(requested int) int {
	workers := requested
	if workers <= 0 {
		workers = h.workers
	}
	if limit := runtime.GOMAXPROCS(0); workers > limit {
		workers = limit
	}
	return workers
}

// statusFor maps a frontier failure to an HTTP status and a message for the
// caller.
func statusFor(err error) (int, string) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, reqErr.msg
	case errors.Is(err, markowitz.ErrSingularMatrix):
		return http.StatusUnprocessableEntity,
			"The covariance matrix of the selected assets is singular. Remove assets that move together exactly and try again."
	case errors.Is(err, markowitz.ErrDegenerateInput):
		return http.StatusUnprocessableEntity,
			"The selected assets all have the same expected return, so no frontier can be traced. Select assets with different returns."
	case errors.Is(err, market.ErrInvalidAsset),
		errors.Is(err, market.ErrMalformedTable),
		errors.Is(err, markowitz.ErrDimensionMismatch),
		errors.Is(err, markowitz.ErrAsymmetricMatrix),
		errors.Is(err, markowitz.ErrEmptyReturns),
		errors.Is(err, markowitz.ErrInvalidTarget):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, fmt.Sprintf("failed to compute frontier: %v", err)
	}
}

func (h *handler) respondFailure(w http.ResponseWriter, err error, op string) {
	status, msg := statusFor(err)
	h.respondErrorWithOp(w, status, msg, op)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("frontier request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.String("op", "server.writeJSON"), zap.Error(err))
	}
}
