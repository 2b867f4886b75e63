// Package server exposes the running overlay over HTTP: status, the current overlay
// layer as a PNG, and playback control.
package server

import (
	"context"
	"encoding/json"
	"image"
	"net"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"
	"github.com/nvr-ai/go-overlay/controller"
	"github.com/nvr-ai/go-overlay/images"
	"github.com/nvr-ai/go-overlay/inference"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/nvr-ai/go-overlay/overlay"
	"github.com/nvr-ai/go-overlay/profiler"
	"github.com/pkg/errors"
)

// Playback is the playback control exposed over HTTP.
type Playback interface {
	Pause()
	Resume()
	Paused() bool
	Ended() bool
	Size() image.Point
}

// PlaybackStatus reports the playback flags.
type PlaybackStatus struct {
	Paused bool `json:"paused"`
	Ended  bool `json:"ended"`
}

// SourceStatus describes the frames the source is producing.
type SourceStatus struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Resolution string `json:"resolution"`
}

// Status is the body of GET /status.
type Status struct {
	RunID         string              `json:"run_id"`
	State         controller.State    `json:"state"`
	Generation    uint64              `json:"generation"`
	ModelLoaded   bool                `json:"model_loaded"`
	HasDetections bool                `json:"has_detections"`
	Playback      PlaybackStatus      `json:"playback"`
	Source        *SourceStatus       `json:"source,omitempty"`
	Scheduler     controller.Stats    `json:"scheduler"`
	Inference     inference.Stats     `json:"inference"`
	Render        overlay.RenderStats `json:"render"`
	Profile       *profiler.Snapshot  `json:"profile,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Args are the components the server reports on. Profiler is optional.
type Args struct {
	Scheduler *controller.Scheduler
	Adapter   *inference.Adapter
	Renderer  *overlay.Renderer
	Playback  Playback
	Profiler  *profiler.RuntimeProfiler
	Logger    logging.Logger
}

// Server serves the overlay status API.
type Server struct {
	args   Args
	router *mux.Router
	http   *http.Server
	logger logging.Logger
}

// New creates a Server listening on addr once Serve is called.
func New(addr string, args Args) (*Server, error) {
	switch {
	case args.Scheduler == nil:
		return nil, errors.New("server requires a scheduler")
	case args.Adapter == nil:
		return nil, errors.New("server requires an adapter")
	case args.Renderer == nil:
		return nil, errors.New("server requires a renderer")
	case args.Playback == nil:
		return nil, errors.New("server requires playback control")
	}
	if args.Logger == nil {
		args.Logger = logging.NewNopLogger()
	}

	s := &Server{args: args, logger: args.Logger}

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/overlay.png", s.handleOverlay).Methods(http.MethodGet)
	r.HandleFunc("/playback/pause", s.handlePause).Methods(http.MethodPost)
	r.HandleFunc("/playback/resume", s.handleResume).Methods(http.MethodPost)
	s.router = r

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Infow("serving", "addr", l.Addr().String())
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serving http")
	}
	return nil
}

// ListenAndServe listens on the configured address and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.http.Addr)
	}
	return s.Serve(l)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Status collects the current status.
func (s *Server) Status() Status {
	st := Status{
		RunID:         s.args.Scheduler.RunID(),
		State:         s.args.Scheduler.State(),
		Generation:    s.args.Scheduler.Generation(),
		ModelLoaded:   s.args.Adapter.Loaded(),
		HasDetections: s.args.Renderer.HasDetections(),
		Playback:      s.playback(),
		Scheduler:     s.args.Scheduler.Stats(),
		Inference:     s.args.Adapter.Stats(),
		Render:        s.args.Renderer.Stats(),
	}
	if size := s.args.Playback.Size(); size.X > 0 && size.Y > 0 {
		st.Source = &SourceStatus{Width: size.X, Height: size.Y, Resolution: images.DescribeSize(size)}
	}
	if s.args.Profiler != nil {
		snap := s.args.Profiler.Snapshot()
		st.Profile = &snap
	}
	return st
}

func (s *Server) playback() PlaybackStatus {
	return PlaybackStatus{Paused: s.args.Playback.Paused(), Ended: s.args.Playback.Ended()}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.args.Adapter.Loaded() || s.args.Scheduler.State() == controller.StateStopped {
		sendError(w, "unavailable", "model not loaded or scheduler stopped", http.StatusServiceUnavailable)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, s.Status())
}

func (s *Server) handleOverlay(w http.ResponseWriter, _ *http.Request) {
	img, ok := s.args.Renderer.Surface().Snapshot()
	if !ok {
		sendError(w, "surface_disposed", overlay.ErrSurfaceUnavailable.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		s.logger.Warnw("encoding overlay", "error", err)
	}
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.args.Playback.Pause()
	s.logger.Infow("playback paused")
	sendJSON(w, http.StatusOK, s.playback())
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.args.Playback.Resume()
	s.logger.Infow("playback resumed")
	sendJSON(w, http.StatusOK, s.playback())
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugw("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

func sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func sendError(w http.ResponseWriter, code, message string, status int) {
	sendJSON(w, status, ErrorResponse{Code: code, Message: message})
}
