// Package estimator turns rooftop detections into area, power, panel and
// savings figures. Every function here is pure.
package estimator

import (
	"math"

	"RooftopSolar/internal/entity"
)

const (
	monthsPerYear = 12
	wattsPerKW    = 1000
)

// TotalArea sums the converted area of every box. Degenerate boxes add 0.
func TotalArea(boxes []entity.BoundingBox, p Params) float64 {
	var total float64
	for _, b := range boxes {
		total += b.PixelArea() * p.PixelAreaScale
	}
	return total
}

// SolarPotential returns the rated output in watts for the given area.
func SolarPotential(area float64, p Params) float64 {
	return area * p.PanelEfficiency * p.Irradiance
}

func PanelCount(area float64, p Params) int {
	usable := area * p.InstallationFactor
	if usable <= 0 {
		return 0
	}
	return int(math.Floor(usable / p.PanelArea))
}

// AnnualSavings caps production value at what the customer spends in a year.
func AnnualSavings(potentialKW, monthlyBill float64, p Params) float64 {
	monthlyProduction := potentialKW * p.HoursPerDay * p.DaysPerMonth
	annualProduction := monthlyProduction * monthsPerYear
	annualBill := monthlyBill * monthsPerYear

	return math.Min(annualBill, annualProduction*p.PricePerKWh)
}

func Estimate(result entity.DetectionResult, monthlyBill float64, p Params) entity.EstimationReport {
	area := TotalArea(result.Boxes, p)
	potential := SolarPotential(area, p)

	return entity.EstimationReport{
		TotalArea:           area,
		PotentialPowerWatts: potential,
		PanelCount:          PanelCount(area, p),
		AnnualSavings:       AnnualSavings(potential/wattsPerKW, monthlyBill, p),
	}
}
