package estimationService

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"RooftopSolar/internal/api/estimation"
	"RooftopSolar/internal/entity"
	"RooftopSolar/internal/estimator"
	contextPkg "RooftopSolar/pkg/context"
	"RooftopSolar/pkg/redis"
	"RooftopSolar/pkg/storage"
	"RooftopSolar/pkg/utils"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	fingerprint string
	result      entity.DetectionResult
	err         error
	calls       int
	last        entity.Image
	delay       time.Duration
}

func (d *fakeDetector) Detect(ctx context.Context, img entity.Image) (entity.DetectionResult, error) {
	d.calls++
	d.last = img
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return entity.DetectionResult{}, ctx.Err()
		}
	}
	return d.result, d.err
}

func (d *fakeDetector) CheckHealth(ctx context.Context) error { return d.err }
func (d *fakeDetector) Name() string                          { return "fake" }
func (d *fakeDetector) Fingerprint() string {
	if d.fingerprint == "" {
		return "fake|0.25"
	}
	return d.fingerprint
}
func (d *fakeDetector) Close() error                          { return nil }

type memoryCache struct {
	items map[string]entity.DetectionResult
	err   error
}

func (c *memoryCache) GetDetections(ctx context.Context, digest string) (entity.DetectionResult, error) {
	if c.err != nil {
		return entity.DetectionResult{}, c.err
	}
	r, ok := c.items[digest]
	if !ok {
		return entity.DetectionResult{}, redis.ErrCacheMiss
	}
	return r, nil
}

func (c *memoryCache) SetDetections(ctx context.Context, digest string, result entity.DetectionResult) error {
	c.items[digest] = result
	return nil
}

func (c *memoryCache) Close() error { return nil }

type failingStorage struct{}

func (failingStorage) Save(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("disk full")
}
func (failingStorage) Open(context.Context, string) (io.ReadCloser, string, error) {
	return nil, "", storage.ErrNotFound
}
func (failingStorage) URL(context.Context, string) (string, error) { return "", nil }

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Gray{Y: 90}}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestService(t *testing.T, det *fakeDetector, cache redis.IDetectionCache) (IEstimationService, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocal(dir, "/results")
	require.NoError(t, err)
	return NewEstimationService(testLogger(), det, store, cache, utils.New(), estimator.DefaultParams()), dir
}

func TestEstimate(t *testing.T) {
	det := &fakeDetector{result: entity.DetectionResult{Boxes: []entity.BoundingBox{
		{XMin: 0, YMin: 0, XMax: 10, YMax: 10, Confidence: 0.9},
	}}}
	svc, dir := newTestService(t, det, nil)
	ctx := contextPkg.WithRequestID(context.Background(), "req-1")

	resp, err := svc.Estimate(ctx, estimation.EstimateRequest{
		Image:           pngImage(t, 64, 32),
		Filename:        "my roof.png",
		ElectricityBill: 50,
	})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, resp.Report.TotalArea, 1e-9)
	assert.InDelta(t, 200.0, resp.Report.PotentialPowerWatts, 1e-9)
	assert.Equal(t, 0, resp.Report.PanelCount)
	assert.InDelta(t, 0.2*24*30*12*0.1, resp.Report.AnnualSavings, 1e-9)
	assert.Equal(t, "fake", resp.Detector)
	assert.False(t, resp.Cached)
	assert.Len(t, resp.Detections, 1)

	assert.Equal(t, 64, det.last.Width)
	assert.Equal(t, 32, det.last.Height)
	assert.Equal(t, "png", det.last.Format)

	assert.True(t, strings.HasPrefix(resp.ResultName, "result_"))
	assert.True(t, strings.HasSuffix(resp.ResultName, "_my_roof.png"))
	assert.Equal(t, "/results/"+resp.ResultName, resp.ResultImage)
	assert.FileExists(t, filepath.Join(dir, resp.ResultName))

	rc, contentType, err := svc.OpenResult(ctx, resp.ResultName)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "image/png", contentType)
	decoded, _, err := image.Decode(rc)
	require.NoError(t, err)
	assert.Equal(t, 64, decoded.Bounds().Dx())
}

func TestEstimateNoDetections(t *testing.T) {
	svc, _ := newTestService(t, &fakeDetector{}, nil)

	resp, err := svc.Estimate(context.Background(), estimation.EstimateRequest{Image: pngImage(t, 8, 8), ElectricityBill: 100})
	require.NoError(t, err)

	assert.Equal(t, entity.EstimationReport{}, resp.Report)
	assert.NotNil(t, resp.Detections)
	assert.Empty(t, resp.Detections)
}

func TestEstimateInvalidInput(t *testing.T) {
	det := &fakeDetector{}
	svc, _ := newTestService(t, det, nil)
	ctx := context.Background()

	_, err := svc.Estimate(ctx, estimation.EstimateRequest{})
	assert.ErrorIs(t, err, estimation.ErrInvalidImage)

	_, err = svc.Estimate(ctx, estimation.EstimateRequest{Image: []byte("definitely not an image")})
	assert.ErrorIs(t, err, estimation.ErrInvalidImage)
	assert.ErrorIs(t, err, utils.ErrUnreadableImage)

	_, err = svc.Estimate(ctx, estimation.EstimateRequest{Image: pngImage(t, 4, 4), ElectricityBill: -1})
	assert.ErrorIs(t, err, estimation.ErrInvalidBill)

	assert.Zero(t, det.calls, "detector must not run on invalid input")
}

func TestEstimateDetectionFailure(t *testing.T) {
	svc, _ := newTestService(t, &fakeDetector{err: errors.New("model exploded")}, nil)

	resp, err := svc.Estimate(context.Background(), estimation.EstimateRequest{Image: pngImage(t, 4, 4)})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, estimation.ErrDetectionFailed)
	assert.ErrorContains(t, err, "model exploded")
}

func TestEstimateDetectionTimeout(t *testing.T) {
	svc, _ := newTestService(t, &fakeDetector{delay: time.Second}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Estimate(ctx, estimation.EstimateRequest{Image: pngImage(t, 4, 4)})
	assert.ErrorIs(t, err, estimation.ErrDetectionTimeout)
}

func TestEstimateStoreFailure(t *testing.T) {
	svc := NewEstimationService(testLogger(), &fakeDetector{}, failingStorage{}, nil, utils.New(), estimator.DefaultParams())

	_, err := svc.Estimate(context.Background(), estimation.EstimateRequest{Image: pngImage(t, 4, 4)})
	assert.ErrorIs(t, err, estimation.ErrStoreResult)
}

func TestEstimateUsesCache(t *testing.T) {
	det := &fakeDetector{result: entity.DetectionResult{Boxes: []entity.BoundingBox{{XMax: 20, YMax: 20}}}}
	cache := &memoryCache{items: map[string]entity.DetectionResult{}}
	svc, _ := newTestService(t, det, cache)
	img := pngImage(t, 16, 16)
	ctx := context.Background()

	first, err := svc.Estimate(ctx, estimation.EstimateRequest{Image: img, ElectricityBill: 10})
	require.NoError(t, err)
	second, err := svc.Estimate(ctx, estimation.EstimateRequest{Image: img, ElectricityBill: 10})
	require.NoError(t, err)

	assert.Equal(t, 1, det.calls)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Report, second.Report)
}

func TestEstimateCacheScopedToDetector(t *testing.T) {
	cache := &memoryCache{items: map[string]entity.DetectionResult{}}
	img := pngImage(t, 16, 16)
	ctx := context.Background()

	loose := &fakeDetector{fingerprint: "http|http://model:8000/detect|0.1"}
	looseSvc, _ := newTestService(t, loose, cache)
	_, err := looseSvc.Estimate(ctx, estimation.EstimateRequest{Image: img, ElectricityBill: 10})
	require.NoError(t, err)

	strict := &fakeDetector{fingerprint: "http|http://model:8000/detect|0.5"}
	strictSvc, _ := newTestService(t, strict, cache)
	resp, err := strictSvc.Estimate(ctx, estimation.EstimateRequest{Image: img, ElectricityBill: 10})
	require.NoError(t, err)

	assert.Equal(t, 1, loose.calls)
	assert.Equal(t, 1, strict.calls)
	assert.False(t, resp.Cached)
	assert.Len(t, cache.items, 2)
}

func TestEstimateCacheErrorFallsBackToDetector(t *testing.T) {
	det := &fakeDetector{}
	cache := &memoryCache{items: map[string]entity.DetectionResult{}, err: errors.New("redis down")}
	svc, _ := newTestService(t, det, cache)

	_, err := svc.Estimate(context.Background(), estimation.EstimateRequest{Image: pngImage(t, 4, 4)})
	require.NoError(t, err)
	assert.Equal(t, 1, det.calls)
}

func TestOpenResultNotFound(t *testing.T) {
	svc, _ := newTestService(t, &fakeDetector{}, nil)

	_, _, err := svc.OpenResult(context.Background(), "missing.png")
	assert.ErrorIs(t, err, estimation.ErrResultNotFound)

	_, _, err = svc.OpenResult(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, estimation.ErrResultNotFound)
}
