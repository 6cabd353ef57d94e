package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
	"k8s.io/klog/v2"

	"github.com/Brownie44l1/handwriting-api/internal/glyph"
	"github.com/Brownie44l1/handwriting-api/internal/model"
	"github.com/Brownie44l1/handwriting-api/internal/scheduler"
)

// Limits on a /predict/strokes request. Every movement may run a prediction and the surface
// is allocated in full, so both are bounded.
const (
	MaxSurfaceSide  = 4096
	MaxStrokeEvents = 10000
)

type Handler struct {
	classifier model.Classifier
	sched      scheduler.Config
}

func NewHandler(classifier model.Classifier, sched scheduler.Config) *Handler {
	return &Handler{
		classifier: classifier,
		sched:      sched,
	}
}

// StrokesRequest is a recorded gesture played back through the prediction scheduler.
type StrokesRequest struct {
	Width    int                `json:"width"`
	Height   int                `json:"height"`
	PenWidth float32            `json:"pen_width"`
	Events   []scheduler.Record `json:"events"`
}

// StrokesResponse lists every prediction the playback produced, in order.
type StrokesResponse struct {
	Predictions int                       `json:"predictions"`
	Results     []StrokePrediction        `json:"results"`
	Final       *model.PredictionResponse `json:"final,omitempty"`
}

type StrokePrediction struct {
	Final bool                      `json:"final"`
	Top   *model.PredictionResponse `json:"prediction"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Warningf("Failed to write response: %v", err)
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "healthy",
		"layout":  h.classifier.Layout().String(),
		"classes": len(h.classifier.Classes()),
	})
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req model.PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	expectedSize := 1
	for _, dim := range h.classifier.Layout().Dims() {
		expectedSize *= dim
	}

	if len(req.Image) != expectedSize {
		http.Error(w, fmt.Sprintf("Expected %d values, got %d", expectedSize, len(req.Image)),
			http.StatusBadRequest)
		return
	}

	h.respond(w, req.Image)
}

func (h *Handler) respond(w http.ResponseWriter, input []float32) {
	probs, err := h.classifier.Predict(input)
	if err != nil {
		klog.Errorf("Prediction error: %v", err)
		http.Error(w, "Prediction failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, model.Rank(probs, h.classifier.Classes()).Response())
}

func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart form (10MB max)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	klog.V(1).Infof("Received file: %s, size: %d bytes", header.Filename, header.Size)

	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG, GIF, BMP, TIFF", http.StatusBadRequest)
		return
	}

	// Scans are usually dark ink on a light background, the glyph is the opposite.
	if invert, _ := strconv.ParseBool(r.FormValue("invert")); invert {
		img = imaging.Invert(img)
	}

	g := glyph.Normalize(img)
	klog.V(1).Infof("Image %dx%d normalized, blank=%v", img.Bounds().Dx(), img.Bounds().Dy(), g.IsBlank())

	h.respond(w, g.Input())
}

func (h *Handler) PredictStrokes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StrokesRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 10<<20)).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Width < 0 || req.Height < 0 || req.Width > MaxSurfaceSide || req.Height > MaxSurfaceSide {
		http.Error(w, fmt.Sprintf("Surface %dx%d out of range, each side must be at most %d",
			req.Width, req.Height, MaxSurfaceSide), http.StatusBadRequest)
		return
	}
	if len(req.Events) > MaxStrokeEvents {
		http.Error(w, fmt.Sprintf("Too many events: %d, at most %d", len(req.Events), MaxStrokeEvents),
			http.StatusBadRequest)
		return
	}
	events, err := scheduler.ParseRecords(req.Events)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg := h.sched
	if req.Width > 0 && req.Height > 0 {
		cfg.Width, cfg.Height = req.Width, req.Height
	}
	if req.PenWidth > 0 {
		cfg.PenWidth = req.PenWidth
	}

	resp := StrokesResponse{Results: []StrokePrediction{}}
	s := scheduler.New(h.classifier, cfg, func(res scheduler.Result) {
		if res.Cleared {
			return
		}
		p := StrokePrediction{Final: res.Final, Top: res.Ranking.Response()}
		resp.Results = append(resp.Results, p)
		if res.Final {
			resp.Final = p.Top
		}
	})
	s.Replay(events)
	resp.Predictions = s.Predictions()

	writeJSON(w, resp)
}
