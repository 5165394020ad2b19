package estimationHandler

import (
	estimationService "RooftopSolar/internal/api/estimation/service"
	"RooftopSolar/internal/middleware"
	"RooftopSolar/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"os"
	"time"
)

const defaultDetectionTimeout = 30 * time.Second

type EstimationHandler struct {
	log               *logrus.Logger
	validator         *validator.Validate
	middleware        middleware.Middleware
	estimationService estimationService.IEstimationService
	utils             utils.IUtils
	timeout           time.Duration
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	es estimationService.IEstimationService,
	utils utils.IUtils,
) *EstimationHandler {
	return &EstimationHandler{
		estimationService: es,
		log:               log,
		validator:         validator,
		middleware:        middleware,
		utils:             utils,
		timeout:           detectionTimeout(log),
	}
}

func (h *EstimationHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	srv.Post("/estimations", h.middleware.NewRateLimiter, h.CreateEstimation)

	srv.Use("/estimations/ws", wsMiddleware)
	srv.Get("/estimations/ws", websocket.New(h.handleEstimationWebSocket))
}

// detectionTimeout reads DETECTION_TIMEOUT as a Go duration string.
func detectionTimeout(log *logrus.Logger) time.Duration {
	raw := os.Getenv("DETECTION_TIMEOUT")
	if raw == "" {
		return defaultDetectionTimeout
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warnf("Ignoring invalid DETECTION_TIMEOUT %q", raw)
		return defaultDetectionTimeout
	}
	return d
}
