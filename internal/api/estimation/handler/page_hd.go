package estimationHandler

import (
	"RooftopSolar/internal/api/estimation"
	estimationService "RooftopSolar/internal/api/estimation/service"
	"RooftopSolar/internal/middleware"
	contextPkg "RooftopSolar/pkg/context"
	"RooftopSolar/pkg/handlerUtil"
	"RooftopSolar/pkg/log"
	"RooftopSolar/pkg/utils"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"time"
)

const indexView = "index"

// PageHandler serves the browser upload flow at the site root.
type PageHandler struct {
	log               *logrus.Logger
	validator         *validator.Validate
	middleware        middleware.Middleware
	estimationService estimationService.IEstimationService
	utils             utils.IUtils
	timeout           time.Duration
}

type pageData struct {
	ElectricityBill string
	Error           string
	Result          *pageResult
}

type pageResult struct {
	Rooftops       int
	Area           string
	SolarPotential string
	NumPanels      int
	AnnualSavings  string
	ResultImage    string
}

func NewPageHandler(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	es estimationService.IEstimationService,
	utils utils.IUtils,
) *PageHandler {
	return &PageHandler{
		estimationService: es,
		log:               log,
		validator:         validator,
		middleware:        middleware,
		utils:             utils,
		timeout:           detectionTimeout(log),
	}
}

func (h *PageHandler) Start(srv fiber.Router) {
	srv.Get("/", h.Index)
	srv.Post("/upload", h.middleware.NewRateLimiter, h.Upload)
	srv.Get("/results/:filename", h.ServeResult)
	srv.Get("/health", h.Health)
}

func (h *PageHandler) Index(ctx *fiber.Ctx) error {
	return ctx.Render(indexView, pageData{ElectricityBill: "0"})
}

func (h *PageHandler) Upload(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)
	data := pageData{ElectricityBill: ctx.FormValue("electricity_bill", "0")}

	renderError := func(err error, operation string) error {
		status, body := errHandler.Resolve(requestID, err, ctx.Path(), operation)
		data.Error = body.Error
		return ctx.Status(status).Render(indexView, data)
	}

	req, err := readUpload(ctx, h.utils, h.validator, "file")
	if err != nil {
		return renderError(err, "read_upload")
	}

	result, err := h.estimationService.Estimate(c, req)
	if err != nil {
		return renderError(err, "estimate")
	}

	select {
	case <-c.Done():
		return renderError(estimation.ErrDetectionTimeout, "estimate")
	default:
	}

	h.log.WithFields(log.Fields{
		"request_id":  requestID,
		"path":        ctx.Path(),
		"result_name": result.ResultName,
	}).Info("Upload estimated")

	report := result.Report
	data.Result = &pageResult{
		Rooftops:       len(result.Detections),
		Area:           fmt.Sprintf("%.2f", report.TotalArea),
		SolarPotential: fmt.Sprintf("%.2f", report.PotentialPowerWatts),
		NumPanels:      report.PanelCount,
		AnnualSavings:  fmt.Sprintf("%.2f", report.AnnualSavings),
		ResultImage:    result.ResultImage,
	}

	return ctx.Render(indexView, data)
}

// ServeResult streams a stored result image, or redirects when the store
// hands out direct URLs.
func (h *PageHandler) ServeResult(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c := contextPkg.FromFiberCtx(ctx)
	errHandler := handlerUtil.New(h.log)

	name := ctx.Params("filename")

	url, err := h.estimationService.ResultURL(c, name)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "result_url")
	}
	if url != "" {
		return ctx.Redirect(url, fiber.StatusFound)
	}

	rc, contentType, err := h.estimationService.OpenResult(c, name)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "open_result")
	}

	ctx.Set(fiber.HeaderContentType, contentType)
	return ctx.SendStream(rc)
}

func (h *PageHandler) Health(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	resp := estimation.HealthResponse{
		Message:  "Server is Healthy!",
		Detector: h.estimationService.DetectorName(),
		Healthy:  true,
	}

	if err := h.estimationService.CheckDetector(c); err != nil {
		resp.Healthy = false
		resp.Error = err.Error()
	}

	return ctx.JSON(resp)
}
