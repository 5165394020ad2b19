package redis

import (
	"context"
	"io"
	"testing"
	"time"

	"RooftopSolar/internal/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestCache(t *testing.T, ttl time.Duration) (IDetectionCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cache := NewWithClient(client, ttl, testLogger())
	t.Cleanup(func() { cache.Close() })

	return cache, mr
}

func TestNewWithoutAddressDisablesCache(t *testing.T) {
	t.Setenv("REDIS_ADDRESS", "")

	cache, err := New(testLogger())
	assert.NoError(t, err)
	assert.Nil(t, cache)
}

func TestNewInvalidTTL(t *testing.T) {
	t.Setenv("REDIS_ADDRESS", "localhost:6379")
	t.Setenv("DETECTION_CACHE_TTL", "forever")

	_, err := New(testLogger())
	assert.ErrorContains(t, err, "DETECTION_CACHE_TTL")
}

func TestNewConnectsToAddress(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDRESS", mr.Addr())
	t.Setenv("DETECTION_CACHE_TTL", "1h")

	cache, err := New(testLogger())
	require.NoError(t, err)
	require.NotNil(t, cache)
	defer cache.Close()

	ctx := context.Background()
	require.NoError(t, cache.SetDetections(ctx, "abc", entity.DetectionResult{Boxes: []entity.BoundingBox{{XMax: 1, YMax: 1}}}))
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"abc"))
}

func TestGetDetectionsMiss(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour)

	_, err := cache.GetDetections(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestDetectionsRoundTrip(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	want := entity.DetectionResult{Boxes: []entity.BoundingBox{
		{XMin: 1.5, YMin: 2, XMax: 40, YMax: 30.25, Confidence: 0.87, Class: "rooftop"},
		{XMin: 50, YMin: 60, XMax: 70, YMax: 90},
	}}
	require.NoError(t, cache.SetDetections(ctx, "digest", want))

	got, err := cache.GetDetections(ctx, "digest")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"digest"))

	mr.FastForward(2 * time.Minute)

	_, err = cache.GetDetections(ctx, "digest")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestGetDetectionsCorruptEntry(t *testing.T) {
	cache, mr := newTestCache(t, time.Hour)
	require.NoError(t, mr.Set(keyPrefix+"digest", "{not json"))

	_, err := cache.GetDetections(context.Background(), "digest")
	assert.ErrorContains(t, err, "decode cached detections")
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestGetDetectionsServerDown(t *testing.T) {
	cache, mr := newTestCache(t, time.Hour)
	mr.Close()

	_, err := cache.GetDetections(context.Background(), "digest")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
