// Package api exposes the fitting service over HTTP: element set decoding,
// state-vector fits, epoch refits, and catalog management.
package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/tlefit/internal/auth"
	"github.com/star/tlefit/internal/catalog"
	"github.com/star/tlefit/internal/elements"
	"github.com/star/tlefit/internal/fit"
	"github.com/star/tlefit/internal/health"
	"github.com/star/tlefit/internal/httputil"
	"github.com/star/tlefit/internal/metrics"
	"github.com/star/tlefit/internal/tle"
)

// maxRequestBytes caps JSON request bodies.
const maxRequestBytes = 64 * 1024

// Config holds HTTP server configuration.
type Config struct {
	Addr       string
	TrustProxy bool
	Auth       auth.Config
}

// Deps are the service dependencies the handlers need.
type Deps struct {
	Fitter  *fit.Fitter
	Pool    *fit.Pool
	Store   *catalog.Store
	Fetcher *catalog.Fetcher
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{deps: deps, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /api/v1/decode", s.handleDecode)
	mux.HandleFunc("POST /api/v1/fit", s.handleFit)
	mux.HandleFunc("POST /api/v1/elements", s.handleElements)
	mux.HandleFunc("POST /api/v1/catalog/refresh", s.handleCatalogRefresh)
	mux.HandleFunc("POST /api/v1/catalog/refit", s.handleCatalogRefit)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// recordJSON is the wire form of a decoded element set.
type recordJSON struct {
	Name           string  `json:"name,omitempty"`
	SatNum         int     `json:"satnum"`
	Classification string  `json:"classification"`
	IntlDesig      string  `json:"intl_desig"`
	EpochYear      int     `json:"epoch_year"`
	EpochDay       float64 `json:"epoch_day"`
	Epoch          string  `json:"epoch"`
	NDot           float64 `json:"ndot"`
	NDDot          float64 `json:"nddot"`
	Bstar          float64 `json:"bstar"`
	EphType        int     `json:"ephtype"`
	ElNum          int     `json:"elnum"`
	InclDeg        float64 `json:"incl_deg"`
	RAANDeg        float64 `json:"raan_deg"`
	Ecc            float64 `json:"ecc"`
	ArgpDeg        float64 `json:"argp_deg"`
	MeanAnomDeg    float64 `json:"mean_anomaly_deg"`
	MeanMotion     float64 `json:"mean_motion"`
	RevNum         int     `json:"rev_num"`
}

func toRecordJSON(rec tle.Record) recordJSON {
	return recordJSON{
		Name:           rec.Name,
		SatNum:         rec.SatNum,
		Classification: string(rec.Classification),
		IntlDesig:      rec.IntlDesig,
		EpochYear:      rec.EpochYear,
		EpochDay:       rec.EpochDay,
		Epoch:          rec.Epoch.UTC().Format(time.RFC3339Nano),
		NDot:           rec.NDot,
		NDDot:          rec.NDDot,
		Bstar:          rec.Bstar,
		EphType:        rec.EphType,
		ElNum:          rec.ElNum,
		InclDeg:        rec.InclDeg,
		RAANDeg:        rec.RAANDeg,
		Ecc:            rec.Ecc,
		ArgpDeg:        rec.ArgpDeg,
		MeanAnomDeg:    rec.MeanAnomDeg,
		MeanMotion:     rec.MeanMotion,
		RevNum:         rec.RevNum,
	}
}

// fitJSON is the wire form of a fit outcome.
type fitJSON struct {
	Converged      bool       `json:"converged"`
	Iterations     int        `json:"iterations"`
	PosResidualKm  float64    `json:"pos_residual_km"`
	VelResidualKmS float64    `json:"vel_residual_km_s"`
	Lines          [3]string  `json:"lines"`
	Record         recordJSON `json:"record"`
}

func toFitJSON(res fit.Result) fitJSON {
	l0, l1, l2 := tle.Encode(res.Record)
	return fitJSON{
		Converged:      res.Converged,
		Iterations:     res.Iterations,
		PosResidualKm:  res.PosResidualKm,
		VelResidualKmS: res.VelResidualKmS,
		Lines:          [3]string{l0, l1, l2},
		Record:         toRecordJSON(res.Record),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

type decodeRequest struct {
	Name  string `json:"name,omitempty"`
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := tle.Decode(req.Name, req.Line1, req.Line2)
	if err != nil {
		metrics.RecordDecodeError()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toRecordJSON(rec))
}

type fitRequest struct {
	SatNum   int        `json:"satnum"`
	Epoch    string     `json:"epoch"`
	Position [3]float64 `json:"position"`
	Velocity [3]float64 `json:"velocity"`
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	var req fitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.SatNum < 1 || req.SatNum > 99999 {
		writeError(w, http.StatusBadRequest, "satnum must be in 1..99999")
		return
	}
	epoch, err := time.Parse(time.RFC3339, req.Epoch)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid epoch: "+err.Error())
		return
	}

	res, err := s.deps.Fitter.FromState(req.SatNum, epoch,
		vec3(req.Position), vec3(req.Velocity))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toFitJSON(res))
}

type elementsRequest struct {
	Name   string `json:"name,omitempty"`
	Line1  string `json:"line1"`
	Line2  string `json:"line2"`
	Target string `json:"target"`
}

func (s *Server) handleElements(w http.ResponseWriter, r *http.Request) {
	var req elementsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := tle.Decode(req.Name, req.Line1, req.Line2)
	if err != nil {
		metrics.RecordDecodeError()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, err := time.Parse(time.RFC3339, req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target: "+err.Error())
		return
	}

	res, err := s.deps.Fitter.Propagate(rec, target)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toFitJSON(res))
}

func (s *Server) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	s.deps.Store.Lock()
	defer s.deps.Store.Unlock()

	data, err := s.deps.Fetcher.Fetch(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	recs, err := catalog.Parse(bytes.NewReader(data), s.logger)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	c := &catalog.Catalog{
		Records:   recs,
		Source:    s.deps.Fetcher.SourceURL(),
		FetchedAt: time.Now().UTC(),
	}
	s.deps.Store.Set(c)
	metrics.SetCatalogCount(len(recs))

	s.logger.Info("catalog refreshed", "records", len(recs), "source", c.Source)
	writeJSON(w, http.StatusOK, map[string]any{
		"records":    len(recs),
		"source":     c.Source,
		"fetched_at": c.FetchedAt.Format(time.RFC3339),
	})
}

type refitRequest struct {
	Target string `json:"target"`
}

type refitEntryJSON struct {
	SatNum     int    `json:"satnum"`
	Converged  bool   `json:"converged"`
	Iterations int    `json:"iterations"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) handleCatalogRefit(w http.ResponseWriter, r *http.Request) {
	var req refitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	target, err := time.Parse(time.RFC3339, req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target: "+err.Error())
		return
	}

	c := s.deps.Store.Get()
	if c == nil {
		writeError(w, http.StatusConflict, "catalog not loaded; refresh first")
		return
	}

	results := s.deps.Pool.RefitBatch(r.Context(), c.Records, target)

	entries := make([]refitEntryJSON, 0, len(results))
	var converged, exhausted, failed int
	for _, br := range results {
		e := refitEntryJSON{SatNum: br.SatNum}
		if br.Err != nil {
			failed++
			e.Error = br.Err.Error()
		} else {
			e.Converged = br.Result.Converged
			e.Iterations = br.Result.Iterations
			_, e.Line1, e.Line2 = tle.Encode(br.Result.Record)
			if br.Result.Converged {
				converged++
			} else {
				exhausted++
			}
		}
		entries = append(entries, e)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":     len(results),
		"converged": converged,
		"exhausted": exhausted,
		"failed":    failed,
		"results":   entries,
	})
}

func vec3(a [3]float64) elements.Vec3 {
	return elements.Vec3{X: a[0], Y: a[1], Z: a[2]}
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
