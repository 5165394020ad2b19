package detector

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"RooftopSolar/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDetectorDetect(t *testing.T) {
	var gotImage []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "roof.png", header.Filename)
		gotImage, _ = io.ReadAll(file)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"detections":[
			{"xmin":0,"ymin":0,"xmax":10,"ymax":10,"confidence":0.91,"class":"rooftop"},
			{"bbox":[5,5,15,25],"conf":0.40},
			{"xmin":1,"ymin":1,"xmax":2,"ymax":2,"confidence":0.05}
		]}`)
	}))
	defer srv.Close()

	d := NewHTTPDetector(testLogger(), srv.URL+"/predict", 0.25)
	result, err := d.Detect(context.Background(), entity.Image{Data: []byte("png-bytes"), Format: "png", Filename: "roof.png"})

	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), gotImage)
	require.Equal(t, 2, result.Len())
	assert.Equal(t, entity.BoundingBox{XMin: 0, YMin: 0, XMax: 10, YMax: 10, Confidence: 0.91, Class: "rooftop"}, result.Boxes[0])
	assert.Equal(t, entity.BoundingBox{XMin: 5, YMin: 5, XMax: 15, YMax: 25, Confidence: 0.40}, result.Boxes[1])
}

func TestHTTPDetectorEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"detections":[]}`)
	}))
	defer srv.Close()

	d := NewHTTPDetector(testLogger(), srv.URL, 0.25)
	result, err := d.Detect(context.Background(), entity.Image{Data: []byte("x")})

	require.NoError(t, err)
	assert.Zero(t, result.Len())
}

func TestHTTPDetectorFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, "model crashed", "status 500: model crashed"},
		{"invalid json", http.StatusOK, "<html>", "decode response"},
		{"service error field", http.StatusOK, `{"error":"cannot read image"}`, "cannot read image"},
		{"missing detections field", http.StatusOK, `{}`, "no detections field"},
		{"foreign schema", http.StatusOK, `{"predictions":[{"bbox":[0,0,100,100]}]}`, "no detections field"},
		{"null body", http.StatusOK, `null`, "no detections field"},
		{"null detections", http.StatusOK, `{"detections":null}`, "no detections field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			d := NewHTTPDetector(testLogger(), srv.URL, 0.25)
			result, err := d.Detect(context.Background(), entity.Image{Data: []byte("x")})
			assert.ErrorContains(t, err, tt.wantErr)
			assert.Zero(t, result.Len())
		})
	}
}

func TestHTTPDetectorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d := NewHTTPDetector(testLogger(), url, 0.25)
	_, err := d.Detect(context.Background(), entity.Image{Data: []byte("x")})
	assert.ErrorContains(t, err, "send request")
}

func TestHTTPDetectorCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewHTTPDetector(testLogger(), srv.URL+"/predict?v=1", 0.25)
	assert.NoError(t, d.CheckHealth(context.Background()))
}

func TestHealthURLFor(t *testing.T) {
	u, err := healthURLFor("http://localhost:5000/predict?x=1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000/health", u)
}
