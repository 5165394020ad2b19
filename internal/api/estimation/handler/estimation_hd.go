package estimationHandler

import (
	"RooftopSolar/internal/api/estimation"
	contextPkg "RooftopSolar/pkg/context"
	"RooftopSolar/pkg/handlerUtil"
	"RooftopSolar/pkg/log"
	"errors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *EstimationHandler) CreateEstimation(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing estimation request")

	req, err := readUpload(ctx, h.utils, h.validator, "image", "file")
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return errHandler.HandleValidationError(ctx, requestID, validationErrs, ctx.Path())
		}
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_upload")
	}

	h.log.WithFields(log.Fields{
		"request_id":       requestID,
		"path":             ctx.Path(),
		"file_name":        req.Filename,
		"file_size":        len(req.Image),
		"electricity_bill": req.ElectricityBill,
	}).Debug("Processing file upload")

	result, err := h.estimationService.Estimate(c, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "estimate")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id":  requestID,
			"path":        ctx.Path(),
			"total_area":  result.Report.TotalArea,
			"panel_count": result.Report.PanelCount,
		}).Info("Estimation successful")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, estimation.EstimationData{
			Data: result,
		})
	}
}
