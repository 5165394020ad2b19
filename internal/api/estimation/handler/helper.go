package estimationHandler

import (
	"RooftopSolar/internal/api/estimation"
	"RooftopSolar/pkg/response"
	"RooftopSolar/pkg/utils"
	"errors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"mime/multipart"
	"strconv"
	"strings"
)

// readUpload pulls the image out of the first present form field in fields
// and the optional electricity_bill value.
func readUpload(ctx *fiber.Ctx, u utils.IUtils, v *validator.Validate, fields ...string) (estimation.EstimateRequest, error) {
	if !strings.HasPrefix(string(ctx.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return estimation.EstimateRequest{}, estimation.ErrNoFile
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return estimation.EstimateRequest{}, response.Wrap(estimation.ErrNoFile, err)
	}

	file, err := pickFile(form, fields)
	if err != nil {
		return estimation.EstimateRequest{}, err
	}

	if err := u.ValidateImageFile(file); err != nil {
		return estimation.EstimateRequest{}, mapUploadError(err)
	}

	data, err := u.ReadFile(file)
	if err != nil {
		return estimation.EstimateRequest{}, response.Wrap(estimation.ErrInvalidImage, err)
	}

	bill, err := parseBill(v, firstValue(form.Value["electricity_bill"]))
	if err != nil {
		return estimation.EstimateRequest{}, err
	}

	return estimation.EstimateRequest{
		Image:           data,
		Filename:        file.Filename,
		ElectricityBill: bill,
	}, nil
}

// pickFile returns the first uploaded file among fields. A file part sent
// without a filename is parsed as a plain value, which is how an empty file
// input arrives.
func pickFile(form *multipart.Form, fields []string) (*multipart.FileHeader, error) {
	for _, field := range fields {
		if files := form.File[field]; len(files) > 0 {
			return files[0], nil
		}
	}

	for _, field := range fields {
		if _, ok := form.Value[field]; ok {
			return nil, estimation.ErrNoSelectedFile
		}
	}

	return nil, estimation.ErrNoFile
}

// parseBill treats an empty value as 0.
func parseBill(v *validator.Validate, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}

	bill, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, estimation.ErrInvalidBill
	}

	if err := v.Struct(estimation.EstimateForm{ElectricityBill: bill}); err != nil {
		return 0, response.Wrap(estimation.ErrInvalidBill, err)
	}

	return bill, nil
}

func mapUploadError(err error) error {
	switch {
	case errors.Is(err, utils.ErrNoFile):
		return estimation.ErrNoFile
	case errors.Is(err, utils.ErrEmptyFilename):
		return estimation.ErrNoSelectedFile
	case errors.Is(err, utils.ErrFileTooLarge):
		return estimation.ErrFileTooLarge
	case errors.Is(err, utils.ErrInvalidFileType):
		return estimation.ErrInvalidFileType
	default:
		return response.Wrap(estimation.ErrInvalidImage, err)
	}
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
