package response

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesCodeAndMessage(t *testing.T) {
	errA := NewError(http.StatusBadRequest, "bad image")
	errB := NewError(http.StatusBadRequest, "bad image")
	errC := NewError(http.StatusBadGateway, "bad image")

	assert.True(t, errors.Is(errA, errB))
	assert.False(t, errors.Is(errA, errC))
}

func TestWrapKeepsBothErrorsInChain(t *testing.T) {
	base := NewError(http.StatusBadGateway, "detection failed")
	cause := errors.New("connection refused")

	err := Wrap(base, cause)

	assert.True(t, errors.Is(err, base))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "detection failed: connection refused", err.Error())
	assert.Equal(t, http.StatusBadGateway, StatusCode(err, http.StatusInternalServerError))
}

func TestWrapNilCause(t *testing.T) {
	base := NewError(http.StatusBadRequest, "invalid bill")
	assert.Same(t, base, Wrap(base, nil))
}

func TestStatusCodeFallback(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("plain"), http.StatusInternalServerError))
}
