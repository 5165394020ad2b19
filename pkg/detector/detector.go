// Package detector adapts external rooftop detection models. Each driver maps
// an image to bounding boxes in pixel coordinates of that image.
package detector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"RooftopSolar/internal/entity"

	"github.com/sirupsen/logrus"
)

const (
	DriverHTTP      = "http"
	DriverWebsocket = "websocket"
	DriverGemini    = "gemini"

	defaultMinConfidence = 0.25
)

var (
	ErrUnusableResult = errors.New("detector returned an unusable result")
	ErrUnknownDriver  = errors.New("unknown detector driver")
)

type IDetector interface {
	Detect(ctx context.Context, img entity.Image) (entity.DetectionResult, error)
	CheckHealth(ctx context.Context) error
	Name() string
	// Fingerprint identifies the driver, its model source and the confidence
	// threshold. Results are only interchangeable between equal fingerprints.
	Fingerprint() string
	Close() error
}

// New builds the detector selected by DETECTOR_DRIVER (http by default).
func New(log *logrus.Logger) (IDetector, error) {
	driver := os.Getenv("DETECTOR_DRIVER")
	if driver == "" {
		driver = DriverHTTP
	}

	minConfidence, err := minConfidenceFromEnv()
	if err != nil {
		return nil, err
	}

	switch driver {
	case DriverHTTP:
		return NewHTTPDetector(log, envOr("INFERENCE_URL", "http://localhost:5000/predict"), minConfidence), nil
	case DriverWebsocket:
		return NewWebsocketDetector(log, envOr("DETECTOR_WS_URL", "ws://localhost:8000/api/v1/rooftop/ws"), minConfidence), nil
	case DriverGemini:
		return NewGeminiDetector(log, os.Getenv("GEMINI_API_KEY"), os.Getenv("GEMINI_MODEL_NAME"), minConfidence)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func minConfidenceFromEnv() (float64, error) {
	raw := os.Getenv("DETECTION_CONFIDENCE")
	if raw == "" {
		return defaultMinConfidence, nil
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val < 0 || val > 1 {
		return 0, fmt.Errorf("DETECTION_CONFIDENCE must be a number in [0,1], got %q", raw)
	}
	return val, nil
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// wireBox is the detection shape shared by the inference service and the
// websocket service. Coordinates come either as named fields or as bbox.
type wireBox struct {
	XMin       *float64  `json:"xmin"`
	YMin       *float64  `json:"ymin"`
	XMax       *float64  `json:"xmax"`
	YMax       *float64  `json:"ymax"`
	BBox       []float64 `json:"bbox"`
	Confidence float64   `json:"confidence"`
	Conf       float64   `json:"conf"`
	Class      string    `json:"class"`
}

// wireResponse.Detections is a pointer so a reply without the key can be told
// apart from a reply with no detections.
type wireResponse struct {
	Detections *[]wireBox `json:"detections"`
	Error      string     `json:"error"`
}

func (w wireBox) toEntity() (entity.BoundingBox, error) {
	box := entity.BoundingBox{
		Confidence: w.Confidence,
		Class:      w.Class,
	}
	if box.Confidence == 0 {
		box.Confidence = w.Conf
	}

	switch {
	case len(w.BBox) == 4:
		box.XMin, box.YMin, box.XMax, box.YMax = w.BBox[0], w.BBox[1], w.BBox[2], w.BBox[3]
	case w.XMin != nil && w.YMin != nil && w.XMax != nil && w.YMax != nil:
		box.XMin, box.YMin, box.XMax, box.YMax = *w.XMin, *w.YMin, *w.XMax, *w.YMax
	default:
		return entity.BoundingBox{}, fmt.Errorf("%w: detection without coordinates", ErrUnusableResult)
	}

	for _, v := range []float64{box.XMin, box.YMin, box.XMax, box.YMax, box.Confidence} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return entity.BoundingBox{}, fmt.Errorf("%w: non-finite coordinate", ErrUnusableResult)
		}
	}

	return box, nil
}

func (r wireResponse) toResult(minConfidence float64) (entity.DetectionResult, error) {
	if r.Error != "" {
		return entity.DetectionResult{}, fmt.Errorf("%w: %s", ErrUnusableResult, r.Error)
	}

	if r.Detections == nil {
		return entity.DetectionResult{}, fmt.Errorf("%w: response has no detections field", ErrUnusableResult)
	}

	boxes := make([]entity.BoundingBox, 0, len(*r.Detections))
	for _, d := range *r.Detections {
		box, err := d.toEntity()
		if err != nil {
			return entity.DetectionResult{}, err
		}
		boxes = append(boxes, box)
	}

	return entity.DetectionResult{Boxes: FilterByConfidence(boxes, minConfidence)}, nil
}

func fingerprint(driver, source string, minConfidence float64) string {
	return driver + "|" + source + "|" + strconv.FormatFloat(minConfidence, 'g', -1, 64)
}

// FilterByConfidence drops boxes scored below min. Boxes without a score (0)
// are kept, since not every driver reports one.
func FilterByConfidence(boxes []entity.BoundingBox, min float64) []entity.BoundingBox {
	out := make([]entity.BoundingBox, 0, len(boxes))
	for _, b := range boxes {
		if b.Confidence == 0 || b.Confidence >= min {
			out = append(out, b)
		}
	}
	return out
}
