package entity

// BoundingBox is an axis-aligned detection in pixel coordinates.
type BoundingBox struct {
	XMin       float64 `json:"xmin"`
	YMin       float64 `json:"ymin"`
	XMax       float64 `json:"xmax"`
	YMax       float64 `json:"ymax"`
	Confidence float64 `json:"confidence,omitempty"`
	Class      string  `json:"class,omitempty"`
}

func (b BoundingBox) Width() float64 {
	return b.XMax - b.XMin
}

func (b BoundingBox) Height() float64 {
	return b.YMax - b.YMin
}

// Valid reports whether the box has a positive width and height.
func (b BoundingBox) Valid() bool {
	return b.Width() > 0 && b.Height() > 0
}

// PixelArea is width*height, or 0 for a degenerate box.
func (b BoundingBox) PixelArea() float64 {
	if !b.Valid() {
		return 0
	}
	return b.Width() * b.Height()
}

// DetectionResult holds the boxes found in one image, in detector order.
type DetectionResult struct {
	Boxes []BoundingBox `json:"boxes"`
}

func (r DetectionResult) Len() int {
	return len(r.Boxes)
}

type EstimationReport struct {
	TotalArea           float64 `json:"total_area"`
	PotentialPowerWatts float64 `json:"potential_power_watts"`
	PanelCount          int     `json:"panel_count"`
	AnnualSavings       float64 `json:"annual_savings"`
}

// Image is an uploaded image as handed to a detector.
type Image struct {
	Data     []byte
	Format   string
	Width    int
	Height   int
	Filename string
}

func (i Image) MimeType() string {
	switch i.Format {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	default:
		return "image/jpeg"
	}
}
