package predict

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	onnxruntime "github.com/yalue/onnxruntime_go"
)

// ONNXOptions configures an ONNXClassifier.
type ONNXOptions struct {
	ModelPath      string
	LibraryPath    string
	InputName      string
	OutputName     string
	SequenceLength int
	FeatureSize    int
	Classes        int
}

// ONNXClassifier runs a sequence model exported to ONNX. The model takes a
// [1, sequence, features] float32 tensor and yields [1, classes] probabilities.
type ONNXClassifier struct {
	mu      sync.Mutex
	opts    ONNXOptions
	session *onnxruntime.AdvancedSession
	input   *onnxruntime.Tensor[float32]
	output  *onnxruntime.Tensor[float32]
}

var envMu sync.Mutex

// NewONNXClassifier loads the runtime library and model and allocates the
// tensors reused across calls.
func NewONNXClassifier(opts ONNXOptions) (*ONNXClassifier, error) {
	if opts.ModelPath == "" {
		return nil, ErrModelUnavailable
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if opts.SequenceLength <= 0 || opts.FeatureSize <= 0 || opts.Classes <= 0 {
		return nil, errors.New("onnx classifier requires positive sequence, feature and class sizes")
	}

	if err := initEnvironment(opts.LibraryPath); err != nil {
		return nil, err
	}

	input, err := onnxruntime.NewTensor(
		onnxruntime.NewShape(1, int64(opts.SequenceLength), int64(opts.FeatureSize)),
		make([]float32, opts.SequenceLength*opts.FeatureSize),
	)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	output, err := onnxruntime.NewEmptyTensor[float32](onnxruntime.NewShape(1, int64(opts.Classes)))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	session, err := onnxruntime.NewAdvancedSession(opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		[]onnxruntime.Value{input},
		[]onnxruntime.Value{output},
		nil)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &ONNXClassifier{opts: opts, session: session, input: input, output: output}, nil
}

func initEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if onnxruntime.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		onnxruntime.SetSharedLibraryPath(libraryPath)
	}
	if err := onnxruntime.InitializeEnvironment(); err != nil {
		return fmt.Errorf("%w: initialize onnxruntime: %v", ErrModelUnavailable, err)
	}
	return nil
}

// Classify copies window into the input tensor and runs the model.
func (c *ONNXClassifier) Classify(ctx context.Context, window [][]float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(window) != c.opts.SequenceLength {
		return nil, fmt.Errorf("window has %d frames, model expects %d", len(window), c.opts.SequenceLength)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.input.GetData()
	for i, frame := range window {
		if len(frame) != c.opts.FeatureSize {
			return nil, fmt.Errorf("frame %d has %d features, model expects %d", i, len(frame), c.opts.FeatureSize)
		}
		copy(data[i*c.opts.FeatureSize:], frame)
	}
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}
	return append([]float32(nil), c.output.GetData()...), nil
}

// Close releases the session and tensors.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if c.session != nil {
		if err := c.session.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy session: %w", err))
		}
		c.session = nil
	}
	if c.input != nil {
		if err := c.input.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy input tensor: %w", err))
		}
		c.input = nil
	}
	if c.output != nil {
		if err := c.output.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy output tensor: %w", err))
		}
		c.output = nil
	}
	return errors.Join(errs...)
}
