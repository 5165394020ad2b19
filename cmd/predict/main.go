// Package main runs one rooftop estimation from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"RooftopSolar/internal/api/estimation"
	estimationService "RooftopSolar/internal/api/estimation/service"
	"RooftopSolar/internal/estimator"
	contextPkg "RooftopSolar/pkg/context"
	"RooftopSolar/pkg/detector"
	"RooftopSolar/pkg/log"
	"RooftopSolar/pkg/storage"
	"RooftopSolar/pkg/utils"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"
)

const (
	flagBill    = "electricity-bill"
	flagOut     = "out"
	flagTimeout = "timeout"
	flagEnv     = "env-file"
)

func main() {
	app := &cli.App{
		Name:      "predict",
		Usage:     "detect rooftops in an image and estimate its solar potential",
		ArgsUsage: "<image>",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:    flagBill,
				Aliases: []string{"b"},
				Usage:   "monthly electricity bill",
			},
			&cli.StringFlag{
				Name:    flagOut,
				Aliases: []string{"o"},
				Value:   "results",
				Usage:   "write the annotated image to `DIR`",
			},
			&cli.DurationFlag{
				Name:  flagTimeout,
				Value: 60 * time.Second,
				Usage: "give up on detection after this long",
			},
			&cli.StringFlag{
				Name:  flagEnv,
				Value: ".env",
				Usage: "load detector settings from `FILE` when it exists",
			},
		},
		Action: predictAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func predictAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("expected exactly one image path", 2)
	}

	if err := godotenv.Load(c.String(flagEnv)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", c.String(flagEnv), err)
	}

	logger := log.NewLogger()

	det, err := detector.New(logger)
	if err != nil {
		return err
	}
	defer det.Close()

	store, err := storage.NewLocal(c.String(flagOut), "")
	if err != nil {
		return err
	}

	params, err := estimator.ParamsFromEnv()
	if err != nil {
		return err
	}

	svc := estimationService.NewEstimationService(logger, det, store, nil, utils.New(), params)

	path := c.Args().First()
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	runID, err := utils.New().NewULIDFromTimestamp(time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(contextPkg.WithRequestID(c.Context, runID), c.Duration(flagTimeout))
	defer cancel()

	entry := log.WithRequestID(ctx)
	entry.WithField("image", path).Info("Estimating rooftop solar potential")

	resp, err := svc.Estimate(ctx, estimation.EstimateRequest{
		Image:           data,
		Filename:        filepath.Base(path),
		ElectricityBill: c.Float64(flagBill),
	})
	if err != nil {
		entry.WithField("error", err.Error()).Error("Estimation failed")
		return err
	}

	return printReport(c.App.Writer, resp, filepath.Join(c.String(flagOut), resp.ResultName))
}

func printReport(w io.Writer, resp *estimation.EstimationResponse, resultPath string) error {
	out := struct {
		Rooftops       int     `json:"rooftops"`
		Area           float64 `json:"area"`
		SolarPotential float64 `json:"solar_potential"`
		NumPanels      int     `json:"num_panels"`
		AnnualSavings  float64 `json:"annual_savings"`
		ResultImage    string  `json:"result_image"`
	}{
		Rooftops:       len(resp.Detections),
		Area:           resp.Report.TotalArea,
		SolarPotential: resp.Report.PotentialPowerWatts,
		NumPanels:      resp.Report.PanelCount,
		AnnualSavings:  resp.Report.AnnualSavings,
		ResultImage:    resultPath,
	}

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
