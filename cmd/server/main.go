package main

import (
	"flag"
	"net/http"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/Brownie44l1/handwriting-api/internal/handlers"
	"github.com/Brownie44l1/handwriting-api/internal/model"
	"github.com/Brownie44l1/handwriting-api/internal/scheduler"
)

var (
	flagModels   = flag.String("models", "", "Directory holding model.onnx and model_metadata.json. Defaults to ./models at the project root.")
	flagPort     = flag.String("port", "8080", "Port to listen on. The PORT environment variable takes precedence.")
	flagCooldown = flag.Duration("cooldown", scheduler.DefaultCooldown, "Minimum time between two predictions while drawing, for /predict/strokes.")
	flagRuntime  = flag.String("onnxruntime", "", "Path to the onnxruntime shared library, if not in the default location.")
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func modelsDir() string {
	if *flagModels != "" {
		return *flagModels
	}
	execPath, err := os.Getwd()
	if err != nil {
		klog.Fatalf("Failed to get working directory: %v", err)
	}
	// If running from cmd/server, go up two levels
	if filepath.Base(execPath) == "server" {
		execPath = filepath.Join(execPath, "../..")
	}
	return filepath.Join(execPath, "models")
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	dir := modelsDir()
	modelPath := filepath.Join(dir, "model.onnx")
	metadataPath := filepath.Join(dir, "model_metadata.json")

	klog.Infof("Loading model from: %s", modelPath)
	model.SetSharedLibrary(*flagRuntime)
	modelServer, err := model.NewServer(modelPath, metadataPath)
	if err != nil {
		klog.Fatalf("Failed to initialize model server: %+v", err)
	}
	defer modelServer.Close()

	handler := handlers.NewHandler(modelServer, scheduler.Config{Cooldown: *flagCooldown})

	http.HandleFunc("/health", enableCORS(handler.Health))
	http.HandleFunc("/predict", enableCORS(handler.Predict))
	http.HandleFunc("/predict/image", enableCORS(handler.PredictFromImage))
	http.HandleFunc("/predict/strokes", enableCORS(handler.PredictStrokes))

	port := os.Getenv("PORT")
	if port == "" {
		port = *flagPort
	}

	klog.Infof("Server starting on port %s", port)
	klog.Infof("Classes: %v", modelServer.Classes())
	klog.Info("Endpoints:")
	klog.Info("  GET  /health          - Health check")
	klog.Info("  POST /predict         - Raw array prediction")
	klog.Info("  POST /predict/image   - Predict from image upload (form field 'image', optional 'invert=true')")
	klog.Info("  POST /predict/strokes - Replay a recorded gesture")
	klog.Infof("Upload test: curl -X POST -F \"image=@digit.png\" http://localhost:%s/predict/image", port)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		klog.Errorf("Server failed: %v", err)
	}
}
