package estimation

import "RooftopSolar/internal/entity"

type EstimateForm struct {
	ElectricityBill float64 `json:"electricity_bill" validate:"gte=0,lte=1000000000"`
}

type EstimateRequest struct {
	Image           []byte
	Filename        string
	ElectricityBill float64
}

type EstimationResponse struct {
	Report      entity.EstimationReport `json:"report"`
	Detections  []entity.BoundingBox    `json:"detections"`
	ResultImage string                  `json:"result_image"`
	ResultName  string                  `json:"-"`
	Detector    string                  `json:"detector"`
	Cached      bool                    `json:"cached"`
}

type EstimationData struct {
	Data  *EstimationResponse `json:"data,omitempty"`
	Error string              `json:"error,omitempty"`
	Code  int                 `json:"code,omitempty"`
}

type HealthResponse struct {
	Message  string `json:"message"`
	Detector string `json:"detector"`
	Healthy  bool   `json:"detector_healthy"`
	Error    string `json:"detector_error,omitempty"`
}
