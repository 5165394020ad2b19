package config

import (
	"RooftopSolar/web"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const defaultBodyLimit = 12 * 1024 * 1024

func NewFiber(logger *logrus.Logger) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:           "Rooftop Solar Estimator",
			BodyLimit:         bodyLimit(logger),
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: os.Getenv("APP_ENV") == "development",
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			Views:             html.NewFileSystem(web.Templates(), ".html"),
		})

	return app
}

// bodyLimit leaves headroom over MAX_UPLOAD_BYTES for the multipart envelope.
func bodyLimit(logger *logrus.Logger) int {
	raw := os.Getenv("MAX_UPLOAD_BYTES")
	if raw == "" {
		return defaultBodyLimit
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		logger.Warnf("Ignoring invalid MAX_UPLOAD_BYTES %q", raw)
		return defaultBodyLimit
	}
	return n + 2*1024*1024
}
