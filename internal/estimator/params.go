package estimator

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Params holds the calibration used by every estimation stage. PixelAreaScale
// and the production duration are placeholder calibrations, not derived from
// camera geometry or an irradiance curve.
type Params struct {
	PixelAreaScale     float64 `validate:"gt=0"`
	PanelEfficiency    float64 `validate:"gt=0,lte=1"`
	Irradiance         float64 `validate:"gt=0"`
	InstallationFactor float64 `validate:"gt=0,lte=1"`
	PanelArea          float64 `validate:"gt=0"`
	HoursPerDay        float64 `validate:"gt=0,lte=24"`
	DaysPerMonth       float64 `validate:"gt=0,lte=31"`
	PricePerKWh        float64 `validate:"gt=0"`
}

func DefaultParams() Params {
	return Params{
		PixelAreaScale:     0.01,
		PanelEfficiency:    0.20,
		Irradiance:         1000,
		InstallationFactor: 0.9,
		PanelArea:          1.7,
		HoursPerDay:        24,
		DaysPerMonth:       30,
		PricePerKWh:        0.10,
	}
}

func (p Params) Validate(v *validator.Validate) error {
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(p); err != nil {
		return fmt.Errorf("invalid estimator params: %w", err)
	}
	return nil
}

// ParamsFromEnv overlays SOLAR_* environment variables on the defaults.
func ParamsFromEnv() (Params, error) {
	p := DefaultParams()

	fields := []struct {
		key string
		dst *float64
	}{
		{"SOLAR_PIXEL_AREA_SCALE", &p.PixelAreaScale},
		{"SOLAR_PANEL_EFFICIENCY", &p.PanelEfficiency},
		{"SOLAR_IRRADIANCE", &p.Irradiance},
		{"SOLAR_INSTALLATION_FACTOR", &p.InstallationFactor},
		{"SOLAR_PANEL_AREA", &p.PanelArea},
		{"SOLAR_HOURS_PER_DAY", &p.HoursPerDay},
		{"SOLAR_DAYS_PER_MONTH", &p.DaysPerMonth},
		{"SOLAR_PRICE_PER_KWH", &p.PricePerKWh},
	}

	for _, f := range fields {
		raw := os.Getenv(f.key)
		if raw == "" {
			continue
		}
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Params{}, fmt.Errorf("parse %s: %w", f.key, err)
		}
		*f.dst = val
	}

	return p, p.Validate(nil)
}
