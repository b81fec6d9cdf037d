// Package web provides the HTTP dashboard: status page, operator controls,
// chart image, websocket push and the reference document.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/proxtrend/internal/dashboard"
	"github.com/sweeney/proxtrend/internal/metrics"
	"github.com/sweeney/proxtrend/internal/plant"
	"github.com/sweeney/proxtrend/internal/render"
	"github.com/sweeney/proxtrend/internal/status"
)

// Controls are the operator actions the dashboard exposes.
type Controls interface {
	SelectBed(ctx context.Context, address, bed string) error
	TogglePause(ctx context.Context) (dashboard.Result, error)
	Shift(ctx context.Context, deltaSeconds float64) (dashboard.Result, error)
	Current(ctx context.Context) (dashboard.Result, error)
	AddNotice(msg string)
}

// ChartWriter renders the current frame as PNG.
type ChartWriter interface {
	WritePNG(w io.Writer) error
}

// Options configures a Server. Hub, Gatherer and Readme are optional.
type Options struct {
	Addr     string
	Tracker  *status.Tracker
	Controls Controls
	Chart    ChartWriter
	Hub      *Hub
	Plant    plant.Table
	Readme   string
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server serves the dashboard over HTTP.
type Server struct {
	httpServer *http.Server
	opts       Options
	logger     *slog.Logger

	// readmeNoticed is set once a document failure has been reported.
	readmeNoticed atomic.Bool
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{opts: opts, logger: logger.With("component", "web")}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("GET /chart.png", s.handleChart)
	mux.HandleFunc("GET /readme", s.handleReadme)
	mux.HandleFunc("POST /api/select", s.handleSelect)
	mux.HandleFunc("POST /api/pause", s.handlePause)
	mux.HandleFunc("POST /api/shift", s.handleShift)
	mux.HandleFunc("GET /api/view", s.handleView)
	if opts.Hub != nil {
		mux.Handle("GET /ws", opts.Hub)
	}
	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(opts.Gatherer))
	}

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.opts.Tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.opts.Plant)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.opts.Tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var buf bytes.Buffer
	err := s.opts.Chart.WritePNG(&buf)
	metrics.ObserveRender(time.Since(start).Seconds())

	switch {
	case errors.Is(err, render.ErrNoData):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		s.logger.Warn("render chart", "error", err)
		http.Error(w, "chart unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// handleReadme serves the reference document read-only. A failure is
// reported to the operator once and does not affect the rest of the page.
func (s *Server) handleReadme(w http.ResponseWriter, r *http.Request) {
	path := s.opts.Readme
	if path == "" {
		s.readmeFailed(errors.New("no reference document configured"))
		http.Error(w, "reference document unavailable", http.StatusServiceUnavailable)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.readmeFailed(err)
		http.Error(w, "reference document unavailable", http.StatusServiceUnavailable)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is a directory", path)
		}
		s.readmeFailed(err)
		http.Error(w, "reference document unavailable", http.StatusServiceUnavailable)
		return
	}

	s.readmeNoticed.Store(false)
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeContent(w, r, filepath.Base(path), fi.ModTime(), f)
}

func (s *Server) readmeFailed(err error) {
	if s.readmeNoticed.Swap(true) {
		return
	}
	s.logger.Warn("reference document unavailable", "path", s.opts.Readme, "error", err)
	s.opts.Controls.AddNotice(fmt.Sprintf("Could not open reference document: %v", err))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	controller := r.FormValue("controller")
	bed := r.FormValue("bed")
	if bed == "" {
		writeError(w, http.StatusBadRequest, "bed is required")
		return
	}
	if controller == "" {
		c, err := s.opts.Plant.FindBed(bed)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		controller = c.Address
	}

	if err := s.opts.Controls.SelectBed(r.Context(), controller, bed); err != nil {
		if errors.Is(err, dashboard.ErrUnknownBed) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.handleJSON(w, r)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	res, err := s.opts.Controls.TogglePause(r.Context())
	s.writeResult(w, res, err)
}

func (s *Server) handleShift(w http.ResponseWriter, r *http.Request) {
	delta, err := strconv.ParseFloat(r.FormValue("delta"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "delta must be a number of seconds")
		return
	}
	res, err := s.opts.Controls.Shift(r.Context(), delta)
	s.writeResult(w, res, err)
}

// handleView reports the run state and, while paused, the viewed position.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	res, err := s.opts.Controls.Current(r.Context())
	s.writeResult(w, res, err)
}

func (s *Server) writeResult(w http.ResponseWriter, res dashboard.Result, err error) {
	switch {
	case errors.Is(err, dashboard.ErrNoBed):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatResult(res))
}
