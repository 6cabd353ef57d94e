package model

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"k8s.io/klog/v2"

	"github.com/Brownie44l1/handwriting-api/internal/glyph"
	"github.com/Brownie44l1/handwriting-api/internal/labels"
)

// Server runs an ONNX classifier. Its session is bound to a single input/output tensor
// pair, so predictions are serialized.
type Server struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	layout       glyph.Layout
	classes      []string
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

var _ Classifier = (*Server)(nil)

// SetSharedLibrary points the runtime at a specific onnxruntime shared library. It must be
// called before NewServer.
func SetSharedLibrary(path string) {
	if path != "" {
		ort.SetSharedLibraryPath(path)
	}
}

// LoadMetadata reads the model metadata file and resolves the input layout it declares.
func LoadMetadata(metadataPath string) (Metadata, glyph.Layout, error) {
	var metadata Metadata
	metaFile, err := os.ReadFile(metadataPath)
	if err != nil {
		return metadata, glyph.Flat, errors.Wrap(err, "failed to read metadata")
	}
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return metadata, glyph.Flat, errors.Wrap(err, "failed to parse metadata")
	}
	layout, err := glyph.LayoutFromShape(metadata.InputShape)
	if err != nil {
		return metadata, glyph.Flat, err
	}
	if len(metadata.OutputShape) == 0 {
		return metadata, glyph.Flat, errors.New("metadata has no output_shape")
	}
	return metadata, layout, nil
}

func NewServer(modelPath, metadataPath string) (*Server, error) {
	metadata, layout, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}
	numClasses := int(metadata.OutputShape[len(metadata.OutputShape)-1])
	classes := metadata.Classes
	if len(classes) != numClasses {
		klog.Warningf("Metadata names %d classes for %d outputs, using default labels", len(classes), numClasses)
		classes = labels.Default(numClasses)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize ONNX environment")
	}

	inputShape := ort.NewShape(metadata.InputShape...)
	outputShape := ort.NewShape(metadata.OutputShape...)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		_ = ort.DestroyEnvironment()
		return nil, errors.Wrap(err, "failed to create input tensor")
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		_ = inputTensor.Destroy()
		_ = ort.DestroyEnvironment()
		return nil, errors.Wrap(err, "failed to create output tensor")
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		_ = inputTensor.Destroy()
		_ = outputTensor.Destroy()
		_ = ort.DestroyEnvironment()
		return nil, errors.Wrap(err, "failed to create ONNX session")
	}

	klog.Infof("Loaded model %s: %s input layout, %d classes", modelPath, layout, numClasses)
	return &Server{
		session:      session,
		Metadata:     metadata,
		layout:       layout,
		classes:      classes,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Layout implements Classifier.
func (s *Server) Layout() glyph.Layout { return s.layout }

// Classes implements Classifier.
func (s *Server) Classes() []string { return s.classes }

// Predict implements Classifier.
func (s *Server) Predict(inputData []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in := s.inputTensor.GetData()
	if len(inputData) != len(in) {
		return nil, errors.Errorf("expected %d input values, got %d", len(in), len(inputData))
	}
	copy(in, inputData)

	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}

	out := s.outputTensor.GetData()
	probs := make([]float32, len(out))
	copy(probs, out)
	return probs, nil
}

func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inputTensor != nil {
		_ = s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		_ = s.outputTensor.Destroy()
	}
	if s.session != nil {
		_ = s.session.Destroy()
	}
	_ = ort.DestroyEnvironment()
}
