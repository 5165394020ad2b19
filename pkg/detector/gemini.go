package detector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"RooftopSolar/internal/entity"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

const (
	defaultGeminiModel = "gemini-1.5-flash"
	geminiScale        = 1000.0
)

const rooftopPrompt = `
Detect every building rooftop visible in this aerial or satellite image.
Return the result as a JSON array, one element per rooftop:
[
	{"box_2d": [ymin, xmin, ymax, xmax], "label": "rooftop", "confidence": 0.0-1.0}
]
Coordinates are integers normalized to 0-1000 relative to the image size.
Return an empty array [] when there is no rooftop.
Return ONLY the JSON array, without any additional text.
`

// generator is the part of the Gemini API the detector needs.
type generator interface {
	Generate(ctx context.Context, prompt string, mimeType string, data []byte) (string, error)
	Close() error
}

type genaiGenerator struct {
	client    *genai.Client
	modelName string
}

func (g *genaiGenerator) Generate(ctx context.Context, prompt string, mimeType string, data []byte) (string, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0)

	format := strings.TrimPrefix(mimeType, "image/")
	res, err := model.GenerateContent(ctx, genai.Text(prompt), genai.ImageData(format, data))
	if err != nil {
		return "", err
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Gemini API")
	}

	text, ok := res.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", errors.New("unexpected response format from Gemini API")
	}

	return string(text), nil
}

func (g *genaiGenerator) Close() error {
	return g.client.Close()
}

type geminiDetector struct {
	log           *logrus.Logger
	gen           generator
	model         string
	minConfidence float64
}

func NewGeminiDetector(log *logrus.Logger, apiKey, modelName string, minConfidence float64) (IDetector, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	if modelName == "" {
		modelName = defaultGeminiModel
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	d := newGeminiDetector(log, &genaiGenerator{client: client, modelName: modelName}, minConfidence)
	d.model = modelName
	return d, nil
}

func newGeminiDetector(log *logrus.Logger, gen generator, minConfidence float64) *geminiDetector {
	return &geminiDetector{
		log:           log,
		gen:           gen,
		minConfidence: minConfidence,
	}
}

func (d *geminiDetector) Fingerprint() string {
	return fingerprint(DriverGemini, d.model, d.minConfidence)
}

func (d *geminiDetector) Name() string {
	return DriverGemini
}

func (d *geminiDetector) Detect(ctx context.Context, img entity.Image) (entity.DetectionResult, error) {
	if img.Width <= 0 || img.Height <= 0 {
		return entity.DetectionResult{}, errors.New("image dimensions are required for gemini detection")
	}

	reply, err := d.gen.Generate(ctx, rooftopPrompt, img.MimeType(), img.Data)
	if err != nil {
		return entity.DetectionResult{}, err
	}

	boxes, err := parseGeminiBoxes(reply, img.Width, img.Height)
	if err != nil {
		d.log.WithFields(logrus.Fields{
			"error": err.Error(),
			"reply": reply,
		}).Warn("Failed to parse Gemini rooftop response")
		return entity.DetectionResult{}, err
	}

	return entity.DetectionResult{Boxes: FilterByConfidence(boxes, d.minConfidence)}, nil
}

func (d *geminiDetector) CheckHealth(ctx context.Context) error {
	return nil
}

func (d *geminiDetector) Close() error {
	return d.gen.Close()
}

type geminiBox struct {
	Box2D      []float64 `json:"box_2d"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
}

// parseGeminiBoxes extracts the JSON array from reply and converts the
// normalized [ymin, xmin, ymax, xmax] boxes to pixels.
func parseGeminiBoxes(reply string, width, height int) ([]entity.BoundingBox, error) {
	jsonStart := strings.Index(reply, "[")
	jsonEnd := strings.LastIndex(reply, "]")

	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("%w: cannot find valid JSON in response", ErrUnusableResult)
	}

	var raw []geminiBox
	if err := json.Unmarshal([]byte(reply[jsonStart:jsonEnd+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnusableResult, err)
	}

	boxes := make([]entity.BoundingBox, 0, len(raw))
	for _, r := range raw {
		if len(r.Box2D) != 4 {
			return nil, fmt.Errorf("%w: box_2d must have 4 values", ErrUnusableResult)
		}

		w, h := float64(width), float64(height)
		boxes = append(boxes, entity.BoundingBox{
			YMin:       clamp(r.Box2D[0]) / geminiScale * h,
			XMin:       clamp(r.Box2D[1]) / geminiScale * w,
			YMax:       clamp(r.Box2D[2]) / geminiScale * h,
			XMax:       clamp(r.Box2D[3]) / geminiScale * w,
			Confidence: r.Confidence,
			Class:      r.Label,
		})
	}

	return boxes, nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > geminiScale {
		return geminiScale
	}
	return v
}
