package detector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"RooftopSolar/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type httpDetector struct {
	log           *logrus.Logger
	inferenceURL  string
	minConfidence float64
	client        *http.Client
}

// NewHTTPDetector posts images as multipart "file" to an inference service
// answering {"detections":[...]}.
func NewHTTPDetector(log *logrus.Logger, inferenceURL string, minConfidence float64) IDetector {
	return &httpDetector{
		log:           log,
		inferenceURL:  inferenceURL,
		minConfidence: minConfidence,
		client:        &http.Client{Timeout: 2 * time.Minute},
	}
}

func (d *httpDetector) Fingerprint() string {
	return fingerprint(DriverHTTP, d.inferenceURL, d.minConfidence)
}

func (d *httpDetector) Name() string {
	return DriverHTTP
}

func (d *httpDetector) Detect(ctx context.Context, img entity.Image) (entity.DetectionResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filename := img.Filename
	if filename == "" {
		filename = "image." + strings.TrimPrefix(img.MimeType(), "image/")
	}

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return entity.DetectionResult{}, fmt.Errorf("create form file: %w", err)
	}

	if _, err := io.Copy(part, bytes.NewReader(img.Data)); err != nil {
		return entity.DetectionResult{}, fmt.Errorf("copy image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return entity.DetectionResult{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.inferenceURL, body)
	if err != nil {
		return entity.DetectionResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	d.log.WithFields(logrus.Fields{
		"url":        d.inferenceURL,
		"image_size": len(img.Data),
	}).Debug("Sending image to inference service")

	resp, err := d.client.Do(req)
	if err != nil {
		return entity.DetectionResult{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return entity.DetectionResult{}, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return entity.DetectionResult{}, fmt.Errorf("%w: decode response: %v", ErrUnusableResult, err)
	}

	detections, err := result.toResult(d.minConfidence)
	if err != nil {
		return entity.DetectionResult{}, err
	}

	d.log.WithFields(logrus.Fields{
		"received": len(*result.Detections),
		"kept":     detections.Len(),
	}).Debug("Inference service responded")

	return detections, nil
}

// CheckHealth calls <inference origin>/health.
func (d *httpDetector) CheckHealth(ctx context.Context) error {
	healthURL, err := healthURLFor(d.inferenceURL)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ml service unhealthy: %d", resp.StatusCode)
	}

	return nil
}

func (d *httpDetector) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func healthURLFor(inferenceURL string) (string, error) {
	u, err := url.Parse(inferenceURL)
	if err != nil {
		return "", fmt.Errorf("parse inference url: %w", err)
	}
	u.Path = "/health"
	u.RawQuery = ""
	return u.String(), nil
}
