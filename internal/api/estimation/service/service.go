package estimationService

import (
	"RooftopSolar/internal/api/estimation"
	"RooftopSolar/internal/estimator"
	"RooftopSolar/pkg/annotate"
	"RooftopSolar/pkg/detector"
	"RooftopSolar/pkg/redis"
	"RooftopSolar/pkg/storage"
	"RooftopSolar/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"io"
)

type IEstimationService interface {
	Estimate(ctx context.Context, req estimation.EstimateRequest) (*estimation.EstimationResponse, error)
	OpenResult(ctx context.Context, name string) (io.ReadCloser, string, error)
	ResultURL(ctx context.Context, name string) (string, error)
	CheckDetector(ctx context.Context) error
	DetectorName() string
}

type estimationService struct {
	log      *logrus.Logger
	detector detector.IDetector
	storage  storage.IStorage
	cache    redis.IDetectionCache
	utils    utils.IUtils
	params   estimator.Params
	drawOpts annotate.Options
}

// NewEstimationService wires the pipeline. cache may be nil.
func NewEstimationService(
	log *logrus.Logger,
	detector detector.IDetector,
	storage storage.IStorage,
	cache redis.IDetectionCache,
	utils utils.IUtils,
	params estimator.Params,
) IEstimationService {
	return &estimationService{
		log:      log,
		detector: detector,
		storage:  storage,
		cache:    cache,
		utils:    utils,
		params:   params,
		drawOpts: annotate.DefaultOptions(),
	}
}
