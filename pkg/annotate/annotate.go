// Package annotate draws detections over an image and encodes the result.
package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"RooftopSolar/internal/entity"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

const defaultLabel = "rooftop"

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

type Options struct {
	BoxColor  color.Color
	TextColor color.Color
	LineWidth float64
	FontSize  float64
}

func DefaultOptions() Options {
	return Options{
		BoxColor:  color.RGBA{R: 255, G: 56, B: 56, A: 255},
		TextColor: color.White,
		LineWidth: 2,
		FontSize:  12,
	}
}

// Draw returns a copy of img with every box outlined and labelled. img is not
// modified.
func Draw(img image.Image, boxes []entity.BoundingBox, opts Options) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: opts.FontSize}))

	for _, b := range boxes {
		if !b.Valid() {
			continue
		}
		drawBox(dc, b, opts)
		drawLabel(dc, label(b), b, opts)
	}

	return dc.Image()
}

func drawBox(dc *gg.Context, b entity.BoundingBox, opts Options) {
	dc.SetColor(opts.BoxColor)
	dc.SetLineWidth(opts.LineWidth)
	dc.DrawRectangle(b.XMin, b.YMin, b.Width(), b.Height())
	dc.Stroke()
}

func drawLabel(dc *gg.Context, text string, b entity.BoundingBox, opts Options) {
	w, h := dc.MeasureString(text)
	pad := 2.0

	x := b.XMin
	y := math.Max(b.YMin-h-2*pad, 0)

	dc.SetColor(opts.BoxColor)
	dc.DrawRectangle(x, y, w+2*pad, h+2*pad)
	dc.Fill()

	dc.SetColor(opts.TextColor)
	dc.DrawStringAnchored(text, x+pad, y+pad, 0, 1)
}

func label(b entity.BoundingBox) string {
	name := b.Class
	if name == "" {
		name = defaultLabel
	}
	if b.Confidence > 0 {
		return fmt.Sprintf("%s %.2f", name, b.Confidence)
	}
	return name
}

// Encode renders img in the given format ("png" or anything else for jpeg)
// and returns the bytes, the file extension and the content type.
func Encode(img image.Image, format string) ([]byte, string, string, error) {
	var buf bytes.Buffer

	switch format {
	case "png":
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, "", "", err
		}
		return buf.Bytes(), ".png", "image/png", nil
	default:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
			return nil, "", "", err
		}
		return buf.Bytes(), ".jpg", "image/jpeg", nil
	}
}
