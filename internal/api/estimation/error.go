package estimation

import (
	"RooftopSolar/pkg/response"
	"net/http"
)

var (
	ErrInvalidImage        = response.NewError(http.StatusBadRequest, "invalid or unreadable image")
	ErrNoFile              = response.NewError(http.StatusBadRequest, "no file part")
	ErrNoSelectedFile      = response.NewError(http.StatusBadRequest, "no selected file")
	ErrInvalidFileType     = response.NewError(http.StatusBadRequest, "invalid file type, allowed: png, jpg, jpeg")
	ErrFileTooLarge        = response.NewError(http.StatusRequestEntityTooLarge, "file too large")
	ErrInvalidBill         = response.NewError(http.StatusBadRequest, "electricity bill must be a non-negative number")
	ErrDetectionFailed     = response.NewError(http.StatusBadGateway, "detection failed")
	ErrDetectionTimeout    = response.NewError(http.StatusGatewayTimeout, "detection timed out")
	ErrResultNotFound      = response.NewError(http.StatusNotFound, "result not found")
	ErrStoreResult         = response.NewError(http.StatusInternalServerError, "failed to store result image")
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
)
