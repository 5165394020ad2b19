package handlerUtil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"

	"RooftopSolar/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = response.NewError(http.StatusNotFound, "result not found")

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

func testHandler() *ErrorHandler {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return New(l)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		details string
	}{
		{"response error", errNotFound, http.StatusNotFound, "result not found", ""},
		{"wrapped response error", response.Wrap(errNotFound, errors.New("no such key")), http.StatusNotFound, "result not found", "result not found: no such key"},
		{"server error hides cause", response.Wrap(response.NewError(http.StatusInternalServerError, "boom"), errors.New("disk full")), http.StatusInternalServerError, "boom", ""},
		{"deadline", fmt.Errorf("detect: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "Gateway Timeout", ""},
		{"fiber error", fiber.ErrUpgradeRequired, http.StatusUpgradeRequired, "Upgrade Required", ""},
		{"unknown", errors.New("???"), http.StatusInternalServerError, "An unexpected error occurred", ""},
	}

	h := testHandler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := h.Resolve("req", tt.err, "/x", "op")
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, body.Error)
			assert.Equal(t, tt.details, body.Details)
		})
	}
}

func TestResolveUnexpectedErrorTraceID(t *testing.T) {
	h := testHandler()

	_, body := h.Resolve("req-9", errors.New("nil map"), "/x", "op")
	assert.Equal(t, "req-9", body.TraceID)

	_, body = h.Resolve("", errors.New("nil map"), "/x", "op")
	_, err := uuid.Parse(body.TraceID)
	require.NoError(t, err)

	_, body = h.Resolve("req-9", errNotFound, "/x", "op")
	assert.Empty(t, body.TraceID)
}
