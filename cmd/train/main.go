// Package main wraps the YOLO trainer used to produce the rooftop model.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"RooftopSolar/pkg/log"

	"github.com/urfave/cli/v2"
)

const (
	flagData         = "data"
	flagModel        = "model"
	flagEpochs       = "epochs"
	flagImageSize    = "imgsz"
	flagYolo         = "yolo"
	flagSkipGPUCheck = "skip-gpu-check"
)

type trainConfig struct {
	DatasetDir string
	Model      string
	Epochs     int
	ImageSize  int
}

func main() {
	app := &cli.App{
		Name:  "train",
		Usage: "train the rooftop detection model with the yolo CLI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagData,
				Aliases:  []string{"d"},
				Required: true,
				Usage:    "dataset `DIR` containing data.yaml and train/",
			},
			&cli.StringFlag{
				Name:  flagModel,
				Value: "yolo11n.pt",
				Usage: "starting weights",
			},
			&cli.IntFlag{
				Name:  flagEpochs,
				Value: 100,
			},
			&cli.IntFlag{
				Name:  flagImageSize,
				Value: 640,
				Usage: "training image size in pixels",
			},
			&cli.StringFlag{
				Name:  flagYolo,
				Value: "yolo",
				Usage: "path to the yolo executable",
			},
			&cli.BoolFlag{
				Name:  flagSkipGPUCheck,
				Usage: "do not run nvidia-smi before training",
			},
		},
		Action: trainAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func trainAction(c *cli.Context) error {
	cfg := trainConfig{
		DatasetDir: c.String(flagData),
		Model:      c.String(flagModel),
		Epochs:     c.Int(flagEpochs),
		ImageSize:  c.Int(flagImageSize),
	}
	if err := cfg.validate(); err != nil {
		return cli.Exit(err.Error(), 2)
	}
	log.Debug(log.Fields{
		"dataset": cfg.DatasetDir,
		"model":   cfg.Model,
		"epochs":  cfg.Epochs,
	}, "Training configuration validated")

	if !c.Bool(flagSkipGPUCheck) {
		gpu := exec.CommandContext(c.Context, "nvidia-smi")
		gpu.Stdout, gpu.Stderr = c.App.Writer, c.App.ErrWriter
		if err := gpu.Run(); err != nil {
			log.Warn(log.Fields{"error": err.Error()}, "Could not run nvidia-smi, training may fall back to CPU")
		}
	}

	cmd := exec.CommandContext(c.Context, c.String(flagYolo), cfg.args()...)
	cmd.Stdout, cmd.Stderr = c.App.Writer, c.App.ErrWriter

	log.Info(log.Fields{"command": cmd.String()}, "Starting YOLO training")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("yolo training failed: %w", err)
	}

	images, err := trainingImages(cfg.DatasetDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Found %d training images.\n", len(images))

	return nil
}

func (cfg trainConfig) validate() error {
	if cfg.DatasetDir == "" {
		return fmt.Errorf("dataset directory is required")
	}
	if cfg.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive")
	}
	if cfg.ImageSize <= 0 {
		return fmt.Errorf("imgsz must be positive")
	}
	return nil
}

func (cfg trainConfig) args() []string {
	return []string{
		"task=detect",
		"mode=train",
		"data=" + filepath.Join(cfg.DatasetDir, "data.yaml"),
		"model=" + cfg.Model,
		"epochs=" + strconv.Itoa(cfg.Epochs),
		"imgsz=" + strconv.Itoa(cfg.ImageSize),
	}
}

func trainingImages(datasetDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(datasetDir, "train", "*.*"))
	if err != nil {
		return nil, fmt.Errorf("list training images: %w", err)
	}
	return matches, nil
}
