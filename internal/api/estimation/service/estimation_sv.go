package estimationService

import (
	"RooftopSolar/internal/api/estimation"
	"RooftopSolar/internal/entity"
	"RooftopSolar/internal/estimator"
	"RooftopSolar/pkg/annotate"
	contextPkg "RooftopSolar/pkg/context"
	"RooftopSolar/pkg/redis"
	"RooftopSolar/pkg/response"
	"RooftopSolar/pkg/storage"
	"errors"
	"fmt"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"image"
	"io"
	"math"
	"path/filepath"
	"strings"
	"time"
)

func (s *estimationService) Estimate(ctx context.Context, req estimation.EstimateRequest) (*estimation.EstimationResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if len(req.Image) == 0 {
		return nil, estimation.ErrInvalidImage
	}

	if req.ElectricityBill < 0 || math.IsNaN(req.ElectricityBill) || math.IsInf(req.ElectricityBill, 0) {
		return nil, estimation.ErrInvalidBill
	}

	img, format, err := s.utils.DecodeImage(req.Image)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"filename":   req.Filename,
			"error":      err.Error(),
		}).Warn("Failed to decode uploaded image")
		return nil, response.Wrap(estimation.ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	input := entity.Image{
		Data:     req.Image,
		Format:   format,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Filename: req.Filename,
	}

	result, cached, err := s.detect(ctx, input)
	if err != nil {
		return nil, err
	}

	report := estimator.Estimate(result, req.ElectricityBill, s.params)

	resultName, resultURL, err := s.storeAnnotated(ctx, img, format, req.Filename, result)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"detector":    s.detector.Name(),
		"cached":      cached,
		"boxes":       result.Len(),
		"total_area":  report.TotalArea,
		"panel_count": report.PanelCount,
	}).Info("Estimation completed")

	return &estimation.EstimationResponse{
		Report:      report,
		Detections:  result.Boxes,
		ResultImage: resultURL,
		ResultName:  resultName,
		Detector:    s.detector.Name(),
		Cached:      cached,
	}, nil
}

// detect consults the cache before calling the detector. Cache errors are
// logged and otherwise ignored.
func (s *estimationService) detect(ctx context.Context, img entity.Image) (entity.DetectionResult, bool, error) {
	requestID := contextPkg.GetRequestID(ctx)

	var key string
	if s.cache != nil {
		key = s.cacheKey(img.Data)

		result, err := s.cache.GetDetections(ctx, key)
		if err == nil {
			return result, true, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("Detection cache lookup failed")
		}
	}

	start := time.Now()
	result, err := s.detector.Detect(ctx, img)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"detector":   s.detector.Name(),
			"latency_ms": time.Since(start).Milliseconds(),
			"error":      err.Error(),
		}).Error("Detector failed")

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return entity.DetectionResult{}, false, response.Wrap(estimation.ErrDetectionTimeout, err)
		}
		return entity.DetectionResult{}, false, response.Wrap(estimation.ErrDetectionFailed, err)
	}

	if result.Boxes == nil {
		result.Boxes = []entity.BoundingBox{}
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"detector":   s.detector.Name(),
		"latency_ms": time.Since(start).Milliseconds(),
		"boxes":      result.Len(),
	}).Debug("Detector responded")

	if s.cache != nil {
		if err := s.cache.SetDetections(ctx, key, result); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("Failed to cache detections")
		}
	}

	return result, false, nil
}

// cacheKey scopes the image digest to the detector configuration so a driver
// or threshold change never serves stale detections.
func (s *estimationService) cacheKey(data []byte) string {
	scope := s.utils.HashBytes([]byte(s.detector.Fingerprint()))
	return scope[:16] + ":" + s.utils.HashBytes(data)
}

func (s *estimationService) storeAnnotated(ctx context.Context, img image.Image, format, filename string, result entity.DetectionResult) (string, string, error) {
	requestID := contextPkg.GetRequestID(ctx)

	annotated := annotate.Draw(img, result.Boxes, s.drawOpts)

	data, ext, contentType, err := annotate.Encode(annotated, format)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to encode annotated image")
		return "", "", response.Wrap(estimation.ErrInternalServerError, err)
	}

	name, err := s.resultName(filename, ext)
	if err != nil {
		return "", "", response.Wrap(estimation.ErrInternalServerError, err)
	}

	url, err := s.storage.Save(ctx, name, data, contentType)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"result_name": name,
			"error":       err.Error(),
		}).Error("Failed to store annotated image")
		return "", "", response.Wrap(estimation.ErrStoreResult, err)
	}

	return name, url, nil
}

// resultName builds result_<ulid>_<sanitized stem><ext>.
func (s *estimationService) resultName(filename, ext string) (string, error) {
	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return "", err
	}

	stem := "image"
	if filename != "" {
		safe := s.utils.SecureFilename(filename)
		stem = strings.TrimSuffix(safe, filepath.Ext(safe))
		if stem == "" {
			stem = "image"
		}
	}

	return fmt.Sprintf("result_%s_%s%s", strings.ToLower(id), stem, ext), nil
}

func (s *estimationService) OpenResult(ctx context.Context, name string) (io.ReadCloser, string, error) {
	rc, contentType, err := s.storage.Open(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			return nil, "", estimation.ErrResultNotFound
		}
		return nil, "", err
	}
	return rc, contentType, nil
}

func (s *estimationService) ResultURL(ctx context.Context, name string) (string, error) {
	url, err := s.storage.URL(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			return "", estimation.ErrResultNotFound
		}
		return "", err
	}
	return url, nil
}

func (s *estimationService) CheckDetector(ctx context.Context) error {
	return s.detector.CheckHealth(ctx)
}

func (s *estimationService) DetectorName() string {
	return s.detector.Name()
}
