package server

import (
	"context"
	"encoding/json"
	"image"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/nvr-ai/go-overlay/config"
	"github.com/nvr-ai/go-overlay/controller"
	"github.com/nvr-ai/go-overlay/inference"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/nvr-ai/go-overlay/models"
	"github.com/nvr-ai/go-overlay/overlay"
	"github.com/nvr-ai/go-overlay/profiler"
	"github.com/nvr-ai/go-overlay/video"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

type nopRunner struct{}

func (nopRunner) Run(_ context.Context, token overlay.Token) (controller.CycleResult, error) {
	return controller.CycleResult{Generation: token.Generation(), Skipped: true}, nil
}

type fixture struct {
	server    *Server
	player    *video.Player
	adapter   *inference.Adapter
	surface   *overlay.Surface
	scheduler *controller.Scheduler
}

func newFixture(t *testing.T, loaded bool) *fixture {
	t.Helper()

	player := video.NewPlayer()
	adapter := inference.NewAdapter()
	if loaded {
		require.NoError(t, adapter.Set(inference.ModelFunc(func(context.Context, *tensor.Dense) (*tensor.Dense, error) {
			return nil, nil
		})))
	}

	surface, err := overlay.NewSurface(64, 48)
	require.NoError(t, err)
	renderer, err := overlay.NewRenderer(surface, models.DefaultClassColorMap())
	require.NoError(t, err)

	scheduler, err := controller.NewScheduler(controller.NewSchedulerArgs{
		Config:   config.Scheduler{TickInterval: time.Second},
		Source:   player,
		Pipeline: nopRunner{},
		Adapter:  adapter,
	})
	require.NoError(t, err)

	srv, err := New("127.0.0.1:0", Args{
		Scheduler: scheduler,
		Adapter:   adapter,
		Renderer:  renderer,
		Playback:  player,
		Profiler:  profiler.NewRuntimeProfiler(profiler.ProfilingOptions{}),
		Logger:    logging.NewTestLogger(t),
	})
	require.NoError(t, err)

	return &fixture{server: srv, player: player, adapter: adapter, surface: surface, scheduler: scheduler}
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestStatus(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, f.scheduler.RunID(), body["run_id"])
	assert.Equal(t, true, body["model_loaded"])
	assert.Equal(t, false, body["has_detections"])
	assert.Equal(t, map[string]interface{}{"paused": false, "ended": false}, body["playback"])
	assert.Contains(t, body, "scheduler")
	assert.Contains(t, body, "inference")
	assert.Contains(t, body, "render")
	assert.Contains(t, body, "profile")
}

func TestStatusSource(t *testing.T) {
	f := newFixture(t, true)
	assert.NotContains(t, decode(t, f.do(http.MethodGet, "/status")), "source", "no frame yet")

	f.player.Publish(image.NewRGBA(image.Rect(0, 0, 1280, 720)))

	body := decode(t, f.do(http.MethodGet, "/status"))
	assert.Equal(t, map[string]interface{}{
		"width":      float64(1280),
		"height":     float64(720),
		"resolution": "HD 720p",
	}, body["source"])
}

func TestPlaybackControl(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodPost, "/playback/pause")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.player.Paused())
	assert.Equal(t, true, decode(t, rec)["paused"])

	rec = f.do(http.MethodPost, "/playback/resume")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.player.Paused())
	assert.Equal(t, false, decode(t, rec)["paused"])

	rec = f.do(http.MethodGet, "/playback/pause")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.False(t, f.player.Paused())
}

func TestOverlayPNG(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodGet, "/overlay.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := imaging.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(64, 48), img.Bounds().Size())

	f.surface.Dispose()
	rec = f.do(http.MethodGet, "/overlay.png")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "surface_disposed", decode(t, rec)["code"])
}

func TestHealth(t *testing.T) {
	f := newFixture(t, true)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz").Code)

	f.scheduler.Stop()
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/healthz").Code)

	unloaded := newFixture(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, unloaded.do(http.MethodGet, "/healthz").Code)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, true)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/nope").Code)
}

func TestServeAndShutdown(t *testing.T) {
	f := newFixture(t, true)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- f.server.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.server.Shutdown(ctx))
	assert.NoError(t, <-served)
}

func TestNewRequiresComponents(t *testing.T) {
	_, err := New(":0", Args{})
	assert.Error(t, err)
}
