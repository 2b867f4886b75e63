// Package providers - ONNX Runtime environment and execution provider session options.
package providers

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers
type ProviderBackend string

const (
	// CPUProviderBackend uses the default CPU execution provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CUDAProviderBackend uses NVIDIA CUDA for GPU acceleration.
	CUDAProviderBackend ProviderBackend = "cuda"
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
	// DirectMLProviderBackend uses DirectX 12 on Windows GPUs.
	DirectMLProviderBackend ProviderBackend = "directml"
)

// ParseBackend parses a backend name, case-insensitively.
func ParseBackend(s string) (ProviderBackend, error) {
	b := ProviderBackend(strings.ToLower(strings.TrimSpace(s)))
	switch b {
	case CPUProviderBackend, CUDAProviderBackend, CoreMLProviderBackend, OpenVINOProviderBackend,
		DirectMLProviderBackend:
		return b, nil
	case "":
		return CPUProviderBackend, nil
	default:
		return "", errors.Errorf("unsupported execution provider: %s", s)
	}
}

// Options selects the execution provider and threading of a session.
type Options struct {
	// Backend specifies the execution provider to append. CPU appends nothing.
	Backend ProviderBackend `json:"backend" yaml:"backend"`
	// DeviceID selects the accelerator for CUDA, OpenVINO and DirectML.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// IntraOpNumThreads sets threads for parallelizing ops. Zero keeps the runtime default.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`
	// InterOpNumThreads sets threads for parallelizing independent ops. Zero keeps the runtime default.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`
	// CUDA holds CUDA specific options. DeviceID overrides CUDA.DeviceID.
	CUDA CUDAOptions `json:"cuda" yaml:"cuda"`
	// CoreMLFlags is passed to the CoreML provider as-is.
	CoreMLFlags uint32 `json:"coreml_flags" yaml:"coreml_flags"`
	// OpenVINO holds OpenVINO specific options.
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
}

// SessionOptions builds ONNX Runtime session options.
//
// The ONNX Runtime environment must be initialized first.
//
// Arguments:
//   - opts: The provider and threading options.
//
// Returns:
//   - *ort.SessionOptions: Configured session options, owned by the caller.
//   - error: An error if an option is rejected or the provider is unavailable.
//
// @example
// options, err := SessionOptions(Options{Backend: CUDAProviderBackend})
//
//	if err != nil {
//	    return err
//	}
//
// defer options.Destroy()
func SessionOptions(opts Options) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "creating session options")
	}

	if err := configure(options, opts); err != nil {
		options.Destroy()
		return nil, err
	}

	return options, nil
}

func configure(options *ort.SessionOptions, opts Options) error {
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return errors.Wrap(err, "setting graph optimization level")
	}
	if opts.IntraOpNumThreads > 0 {
		if err := options.SetIntraOpNumThreads(opts.IntraOpNumThreads); err != nil {
			return errors.Wrap(err, "setting intra-op threads")
		}
	}
	if opts.InterOpNumThreads > 0 {
		if err := options.SetInterOpNumThreads(opts.InterOpNumThreads); err != nil {
			return errors.Wrap(err, "setting inter-op threads")
		}
	}

	switch opts.Backend {
	case CPUProviderBackend, "":
		// CPU provider is always available, no explicit configuration needed
		return nil

	case CUDAProviderBackend:
		cuda := opts.CUDA
		cuda.DeviceID = opts.DeviceID
		native, err := cuda.ToNativeProviderOptions()
		if err != nil {
			return errors.Wrap(err, "creating CUDA provider options")
		}
		defer native.Destroy()
		return errors.Wrap(options.AppendExecutionProviderCUDA(native), "enabling CUDA provider")

	case CoreMLProviderBackend:
		return errors.Wrap(options.AppendExecutionProviderCoreML(opts.CoreMLFlags), "enabling CoreML provider")

	case OpenVINOProviderBackend:
		ov := opts.OpenVINO
		if ov.DeviceID == "" && opts.DeviceID > 0 {
			ov.DeviceID = strconv.Itoa(opts.DeviceID)
		}
		return errors.Wrap(options.AppendExecutionProviderOpenVINO(ov.Map()), "enabling OpenVINO provider")

	case DirectMLProviderBackend:
		return errors.Wrap(options.AppendExecutionProviderDirectML(opts.DeviceID), "enabling DirectML provider")

	default:
		return errors.Errorf("unsupported execution provider: %s", opts.Backend)
	}
}
