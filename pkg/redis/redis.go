package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"RooftopSolar/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "rooftop:detections:"

var ErrCacheMiss = errors.New("detection cache miss")

// IDetectionCache stores detector output keyed by image digest.
type IDetectionCache interface {
	GetDetections(ctx context.Context, digest string) (entity.DetectionResult, error)
	SetDetections(ctx context.Context, digest string, result entity.DetectionResult) error
	Close() error
}

type redisClient struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

// New connects to REDIS_ADDRESS. It returns nil, nil when no address is
// configured so callers can run without a cache.
func New(log *logrus.Logger) (IDetectionCache, error) {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		return nil, nil
	}

	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

	ttl := 24 * time.Hour
	if raw := os.Getenv("DETECTION_CACHE_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse DETECTION_CACHE_TTL: %w", err)
		}
		ttl = parsed
	}

	log.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		log.Info("Successfully connected to Redis")
	}

	return NewWithClient(client, ttl, log), nil
}

func NewWithClient(client *redis.Client, ttl time.Duration, log *logrus.Logger) IDetectionCache {
	return &redisClient{client: client, ttl: ttl, log: log}
}

func (r *redisClient) GetDetections(ctx context.Context, digest string) (entity.DetectionResult, error) {
	key := keyPrefix + digest

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.log.Debug(fmt.Sprintf("Detections not cached for key %s", key))
		return entity.DetectionResult{}, ErrCacheMiss
	} else if err != nil {
		r.log.Error(fmt.Sprintf("Error getting detections for key %s: %v", key, err))
		return entity.DetectionResult{}, err
	}

	var result entity.DetectionResult
	if err := jsoniter.Unmarshal(val, &result); err != nil {
		return entity.DetectionResult{}, fmt.Errorf("decode cached detections: %w", err)
	}

	return result, nil
}

func (r *redisClient) SetDetections(ctx context.Context, digest string, result entity.DetectionResult) error {
	key := keyPrefix + digest

	val, err := jsoniter.Marshal(result)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, key, val, r.ttl).Err(); err != nil {
		r.log.Error(fmt.Sprintf("Error caching detections for key %s: %v", key, err))
		return err
	}

	r.log.Debug(fmt.Sprintf("Cached %d detections for key %s", result.Len(), key))
	return nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
