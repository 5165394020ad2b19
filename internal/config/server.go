package config

import (
	estimationHandler "RooftopSolar/internal/api/estimation/handler"
	estimationService "RooftopSolar/internal/api/estimation/service"
	"RooftopSolar/internal/estimator"
	"RooftopSolar/internal/middleware"
	"RooftopSolar/pkg/detector"
	"RooftopSolar/pkg/redis"
	"RooftopSolar/pkg/storage"
	"RooftopSolar/pkg/utils"
	"context"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"os"
	"strconv"
)

type ServerOption func(*Server) error

type Server struct {
	engine         *fiber.App
	log            *logrus.Logger
	middleware     middleware.Middleware
	validator      *validator.Validate
	utils          utils.IUtils
	detector       detector.IDetector
	storage        storage.IStorage
	detectionCache redis.IDetectionCache
	params         estimator.Params
	paramsSet      bool
	pages          []handler
	handlers       []handler
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if server.storage == nil {
		return nil, fmt.Errorf("result storage is required")
	}
	if server.middleware == nil {
		return nil, fmt.Errorf("middleware is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New()
	}
	if !server.paramsSet {
		server.params = estimator.DefaultParams()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

// WithDetector uses d when given, otherwise builds the driver named by
// DETECTOR_DRIVER.
func WithDetector(d detector.IDetector) ServerOption {
	return func(s *Server) error {
		if d != nil {
			s.detector = d
			return nil
		}

		if s.log == nil {
			return fmt.Errorf("logger must be initialized before detector")
		}

		d, err := detector.New(s.log)
		if err != nil {
			s.log.Errorf("Failed to initialize detector: %v", err)
			return fmt.Errorf("failed to create detector: %w", err)
		}

		s.log.Infof("Using %s rooftop detector", d.Name())
		s.detector = d
		return nil
	}
}

func WithStorage() ServerOption {
	return func(s *Server) error {
		store, err := storage.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize result storage: %v", err)
			}
			return fmt.Errorf("failed to create result storage: %w", err)
		}
		s.storage = store
		return nil
	}
}

// WithDetectionCache connects to Redis when REDIS_ADDRESS is set. Without it
// the server runs uncached.
func WithDetectionCache() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before detection cache")
		}

		cache, err := redis.New(s.log)
		if err != nil {
			s.log.Errorf("Failed to connect to Redis: %v", err)
			return fmt.Errorf("failed to create detection cache: %w", err)
		}
		if cache == nil {
			s.log.Info("REDIS_ADDRESS not set, detection cache disabled")
		}
		s.detectionCache = cache
		return nil
	}
}

func WithEstimatorParams() ServerOption {
	return func(s *Server) error {
		params, err := estimator.ParamsFromEnv()
		if err != nil {
			return fmt.Errorf("failed to load estimator parameters: %w", err)
		}

		s.params = params
		s.paramsSet = true
		return nil
	}
}

// WithUtils caps uploads at MAX_UPLOAD_BYTES (10MB by default).
func WithUtils() ServerOption {
	return func(s *Server) error {
		raw := os.Getenv("MAX_UPLOAD_BYTES")
		if raw == "" {
			s.utils = utils.New()
			return nil
		}

		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || limit <= 0 {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES %q", raw)
		}
		s.utils = utils.NewWithLimit(limit)
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Estimation Domain
	estimationServices := estimationService.NewEstimationService(s.log, s.detector, s.storage, s.detectionCache, s.utils, s.params)
	estimationHandlers := estimationHandler.New(s.log, s.validator, s.middleware, estimationServices, s.utils)
	pageHandlers := estimationHandler.NewPageHandler(s.log, s.validator, s.middleware, estimationServices, s.utils)

	s.pages = append(s.pages, pageHandlers)
	s.handlers = append(s.handlers, estimationHandlers)
}

// Mount attaches middleware and routes without listening.
func (s *Server) Mount() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	for _, p := range s.pages {
		p.Start(s.engine)
	}

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}
}

func (s *Server) Run() error {
	s.Mount()

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops accepting requests and releases the detector and cache.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.engine.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := s.detector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close detector: %w", err))
	}
	if s.detectionCache != nil {
		if err := s.detectionCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detection cache: %w", err))
		}
	}

	return errors.Join(errs...)
}
