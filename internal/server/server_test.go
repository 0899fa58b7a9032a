package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KorsanSoftware/camview/internal/camconfig"
	"github.com/KorsanSoftware/camview/internal/camera"
	"github.com/KorsanSoftware/camview/internal/camview"
	"github.com/KorsanSoftware/camview/internal/config"
)

// stubCam is a minimal backend for exercising the HTTP surface.
type stubCam struct {
	hubDeps   camera.Deps
	opened    atomic.Bool
	recording atomic.Bool
	destroyed atomic.Bool
	rotation  atomic.Int32
	picture   []byte
}

func newStubCam(deps camera.Deps) *stubCam {
	return &stubCam{hubDeps: deps, picture: []byte{0xFF, 0xD8, 0xFF, 0xD9}}
}

func (c *stubCam) Generation() camera.Generation { return camera.GenerationV4L2Streaming }

func (c *stubCam) Start() error {
	if c.destroyed.Load() {
		return camera.ErrDestroyed
	}
	if c.opened.Load() {
		return camera.ErrAlreadyOpened
	}
	c.opened.Store(true)
	c.hubDeps.Hub.CameraOpened()
	return nil
}

func (c *stubCam) Stop() {
	if c.opened.Swap(false) {
		c.recording.Store(false)
		c.hubDeps.Hub.CameraClosed()
	}
}

func (c *stubCam) Destroy() {
	if !c.destroyed.Swap(true) {
		c.Stop()
		c.hubDeps.Scope.Cancel()
	}
}

func (c *stubCam) IsActive() bool         { return !c.destroyed.Load() }
func (c *stubCam) IsCameraOpened() bool   { return c.opened.Load() }
func (c *stubCam) IsVideoRecording() bool { return c.recording.Load() }

func (c *stubCam) TakePicture() error {
	if !c.opened.Load() {
		return camera.ErrNotOpened
	}
	c.hubDeps.Hub.PictureTaken(c.picture)
	return nil
}

func (c *stubCam) StartVideoRecording(path string, vc camera.VideoConfig) error {
	if !c.opened.Load() {
		return camera.ErrNotOpened
	}
	if c.recording.Swap(true) {
		return camera.ErrAlreadyRecording
	}
	c.hubDeps.Hub.VideoRecordStarted(path)
	return nil
}

func (c *stubCam) PauseVideoRecording() error  { return nil }
func (c *stubCam) ResumeVideoRecording() error { return nil }

func (c *stubCam) StopVideoRecording() error {
	if !c.recording.Swap(false) {
		return camera.ErrNotRecording
	}
	c.hubDeps.Hub.VideoRecordStopped("", true)
	return nil
}

func (c *stubCam) SetAspectRatio(camconfig.Ratio) error { return nil }
func (c *stubCam) SupportedAspectRatios() []camconfig.Ratio {
	return []camconfig.Ratio{camconfig.RatioStandard, camconfig.RatioWide}
}
func (c *stubCam) MaxDigitalZoom() float64 { return 4.0 }
func (c *stubCam) DeviceRotation() int     { return int(c.rotation.Load()) }
func (c *stubCam) SetDeviceRotation(deg int) {
	c.rotation.Store(int32(deg))
}

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := func(deps camera.Deps) (camera.Camera, error) {
		return newStubCam(deps), nil
	}

	view, err := camview.New(camview.Options{
		Logger:        logger,
		Factory:       factory,
		LegacyFactory: factory,
		Enabled:       true,
	})
	if err != nil {
		t.Fatalf("camview.New failed: %v", err)
	}
	t.Cleanup(view.Destroy)

	dir := t.TempDir()
	srv := NewServer(&Options{
		View:          view,
		Settings:      config.NewSettingsManager(filepath.Join(dir, "camera.toml")),
		PicturesDir:   filepath.Join(dir, "pictures"),
		RecordingsDir: filepath.Join(dir, "recordings"),
	})

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	t.Cleanup(func() {
		if err := srv.Stop(); err != nil {
			t.Errorf("server.Stop failed: %v", err)
		}
	})

	return srv, ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	return resp, data
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var health HealthData
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
}

func TestCameraLifecycleEndpoints(t *testing.T) {
	_, ts := testServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/camera", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var status CameraStatusData
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if status.Opened {
		t.Error("camera should start closed")
	}
	if status.Generation != "v4l2-streaming" {
		t.Errorf("generation = %q, want v4l2-streaming", status.Generation)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/camera/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, want 200", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/camera", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !status.Opened {
		t.Error("camera should be open after start")
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/camera/stop", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status = %d, want 200", resp.StatusCode)
	}
}

func TestPictureEndpoint(t *testing.T) {
	_, ts := testServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/api/camera/start", nil)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/camera/picture?inline=true", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, body)
	}

	var pic PictureData
	if err := json.Unmarshal(body, &pic); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if pic.Size != 4 {
		t.Errorf("size = %d, want 4", pic.Size)
	}
	if pic.Image == "" {
		t.Error("inline image missing")
	}
	if !strings.HasSuffix(pic.Path, ".jpg") {
		t.Errorf("path = %q, want .jpg suffix", pic.Path)
	}
}

func TestPictureRequiresOpenCamera(t *testing.T) {
	_, ts := testServer(t)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/camera/picture", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestRecordingEndpoints(t *testing.T) {
	_, ts := testServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/api/camera/start", nil)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/camera/recording/start", RecordingStartBody{
		Filename: "clip.avi",
		FPS:      30,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, want 200: %s", resp.StatusCode, body)
	}

	var rec RecordingData
	if err := json.Unmarshal(body, &rec); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !strings.HasSuffix(rec.Path, "clip.avi") {
		t.Errorf("path = %q, want clip.avi suffix", rec.Path)
	}

	// Second start while recording conflicts
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/camera/recording/start", RecordingStartBody{})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/camera/recording/stop", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status = %d, want 200", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/camera/recording/stop", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double stop status = %d, want 409", resp.StatusCode)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	srv, ts := testServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/camera/settings", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var settings config.CameraSettings
	if err := json.Unmarshal(body, &settings); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if settings.AspectRatio != "4:3" {
		t.Errorf("aspect_ratio = %q, want 4:3", settings.AspectRatio)
	}

	ratio := "16:9"
	quality := 75
	resp, body = doJSON(t, http.MethodPatch, ts.URL+"/api/camera/settings", UpdateSettingsBody{
		AspectRatio: &ratio,
		JPEGQuality: &quality,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d, want 200: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &settings); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if settings.AspectRatio != "16:9" {
		t.Errorf("aspect_ratio = %q, want 16:9", settings.AspectRatio)
	}
	if settings.JPEGQuality != 75 {
		t.Errorf("jpeg_quality = %d, want 75", settings.JPEGQuality)
	}

	// The update also lands in the widget and the settings file
	if got := srv.view.AspectRatio(); got != camconfig.RatioWide {
		t.Errorf("widget ratio = %v, want 16:9", got)
	}
	saved, err := srv.options.Settings.Load()
	if err != nil {
		t.Fatalf("settings load failed: %v", err)
	}
	if saved.JPEGQuality != 75 {
		t.Errorf("persisted jpeg_quality = %d, want 75", saved.JPEGQuality)
	}
}

func TestSettingsRejectInvalid(t *testing.T) {
	_, ts := testServer(t)

	bad := "ultrawide"
	resp, _ := doJSON(t, http.MethodPatch, ts.URL+"/api/camera/settings", UpdateSettingsBody{
		AspectRatio: &bad,
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestBasicAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := func(deps camera.Deps) (camera.Camera, error) {
		return newStubCam(deps), nil
	}
	view, err := camview.New(camview.Options{
		Logger:        logger,
		Factory:       factory,
		LegacyFactory: factory,
		Enabled:       true,
	})
	if err != nil {
		t.Fatalf("camview.New failed: %v", err)
	}
	t.Cleanup(view.Destroy)

	srv := NewServer(&Options{
		View:         view,
		AuthUsername: "admin",
		AuthPassword: "secret",
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = srv.Stop() })

	// Health is open
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	// Camera status requires credentials
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/camera", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/camera", nil)
	req.SetBasicAuth("admin", "secret")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", authed.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/camera", nil)
	req.SetBasicAuth("admin", "wrong")
	denied, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	denied.Body.Close()
	if denied.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", denied.StatusCode)
	}
}

func TestEventStream(t *testing.T) {
	_, ts := testServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/camera/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	lines := make(chan string, 16)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				lines <- string(buf[:n])
			}
			if readErr != nil {
				close(lines)
				return
			}
		}
	}()

	var received strings.Builder
	waitFor := func(marker string) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			if strings.Contains(received.String(), marker) {
				return
			}
			select {
			case chunk, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed waiting for %s, got: %s", marker, received.String())
				}
				received.WriteString(chunk)
			case <-deadline:
				t.Fatalf("timed out waiting for %s, got: %s", marker, received.String())
			}
		}
	}

	// The handshake event must arrive before any camera activity; it is
	// what flushes the response headers to the client.
	waitFor(`"kind":"connected"`)

	doJSON(t, http.MethodPost, ts.URL+"/api/camera/start", nil)
	waitFor(`"kind":"opened"`)
}
