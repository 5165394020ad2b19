package config

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"RooftopSolar/internal/entity"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	closed bool
}

func (d *stubDetector) Detect(ctx context.Context, img entity.Image) (entity.DetectionResult, error) {
	return entity.DetectionResult{}, nil
}
func (d *stubDetector) CheckHealth(ctx context.Context) error { return nil }
func (d *stubDetector) Name() string                          { return "stub" }
func (d *stubDetector) Fingerprint() string                   { return "stub" }
func (d *stubDetector) Close() error {
	d.closed = true
	return nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNewServerRequiresDetector(t *testing.T) {
	t.Setenv("RESULT_FOLDER", t.TempDir())

	_, err := NewServer(
		WithFiber(NewFiber(testLogger())),
		WithLogger(testLogger()),
		WithMiddleware(),
		WithStorage(),
	)
	assert.ErrorContains(t, err, "detector is required")
}

func TestWithEstimatorParamsRejectsInvalid(t *testing.T) {
	t.Setenv("SOLAR_PANEL_AREA", "0")

	_, err := NewServer(WithEstimatorParams())
	assert.ErrorContains(t, err, "invalid estimator params")
}

func TestWithUtilsRejectsBadLimit(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "many")

	_, err := NewServer(WithUtils())
	assert.ErrorContains(t, err, "MAX_UPLOAD_BYTES")
}

func TestServerRoutes(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("RESULT_FOLDER", t.TempDir())
	t.Setenv("REDIS_ADDRESS", "")

	det := &stubDetector{}
	logger := testLogger()
	app := NewFiber(logger)

	server, err := NewServer(
		WithFiber(app),
		WithLogger(logger),
		WithValidator(NewValidator()),
		WithMiddleware(),
		WithDetector(det),
		WithStorage(),
		WithDetectionCache(),
		WithEstimatorParams(),
		WithUtils(),
	)
	require.NoError(t, err)

	server.RegisterHandler()
	server.Mount()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/results/missing.png", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, server.Shutdown(context.Background()))
	assert.True(t, det.closed)
}
