package handlerUtil

import (
	"RooftopSolar/pkg/log"
	"RooftopSolar/pkg/response"
	"context"
	"errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	status, body := h.Resolve(requestID, err, path, operation)
	return c.Status(status).JSON(body)
}

// Resolve logs err and returns the status and body a handler should answer
// with. Page handlers use it to render errors into a template.
func (h *ErrorHandler) Resolve(requestID string, err error, path string, operation string) (int, ErrorResponse) {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		fields["code"] = respErr.Code

		if respErr.Code >= fiber.StatusInternalServerError {
			h.logger.WithFields(fields).Error("Operation failed with error response")
		} else {
			h.logger.WithFields(fields).Warn("Operation failed with error response")
		}

		return respErr.Code, ErrorResponse{
			Error:   respErr.Error(),
			Details: details(err, respErr),
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		h.logger.WithFields(fields).Warn("Operation timed out")
		return fiber.StatusGatewayTimeout, ErrorResponse{
			Error: utils.StatusMessage(fiber.StatusGatewayTimeout),
			Code:  "TIMEOUT",
		}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		h.logger.WithFields(fields).Warn("Request rejected")
		return fiberErr.Code, ErrorResponse{
			Error: fiberErr.Message,
		}
	}

	traceID := log.ErrorWithTraceID(fields, "Unexpected error")

	return fiber.StatusInternalServerError, ErrorResponse{
		Error:   "An unexpected error occurred",
		TraceID: traceID,
	}
}

// details exposes the wrapped cause for client and gateway errors only.
func details(err error, respErr *response.Error) string {
	if respErr.Code >= fiber.StatusInternalServerError && respErr.Code != fiber.StatusBadGateway {
		return ""
	}
	if err.Error() == respErr.Error() {
		return ""
	}
	return err.Error()
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "Validation failed: " + err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
		Error: utils.StatusMessage(fiber.StatusRequestTimeout),
		Code:  "REQUEST_TIMEOUT",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
