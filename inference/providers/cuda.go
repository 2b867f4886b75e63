package providers

import (
	"strconv"

	ort "github.com/yalue/onnxruntime_go"
)

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"deviceID"              yaml:"deviceID"`
	// The size limit of the device memory arena in bytes. Zero leaves the limit unset.
	GPUMemLimit int64 `json:"gpuMemLimit"           yaml:"gpuMemLimit"`
	// The strategy for extending the device memory arena.
	// 0: kNextPowerOfTwo - subsequent extensions extend by larger amounts (multiplied by powers of
	// two)
	// 1: kSameAsRequested - extend by the requested amount
	ArenaExtendStrategy int `json:"arenaExtendStrategy"   yaml:"arenaExtendStrategy"`
	// The type of search done for cuDNN convolution algorithms.
	// 0: EXHAUSTIVE, 1: HEURISTIC, 2: DEFAULT
	CudnnConvAlgoSearch int `json:"cudnnConvAlgoSearch"   yaml:"cudnnConvAlgoSearch"`
	// Whether to do copies in the default stream or use separate streams.
	DoCopyInDefaultStream bool `json:"doCopyInDefaultStream" yaml:"doCopyInDefaultStream"`
	// If enabled, the execution provider prefers NHWC operators over NCHW.
	PreferNHWC bool `json:"preferNHWC"            yaml:"preferNHWC"`
}

// Map returns the options as provider option key/value pairs.
func (o CUDAOptions) Map() map[string]string {
	m := map[string]string{
		"device_id":                 strconv.Itoa(o.DeviceID),
		"arena_extend_strategy":     arenaStrategy(o.ArenaExtendStrategy),
		"cudnn_conv_algo_search":    convAlgoSearch(o.CudnnConvAlgoSearch),
		"do_copy_in_default_stream": boolFlag(o.DoCopyInDefaultStream),
		"prefer_nhwc":               boolFlag(o.PreferNHWC),
	}
	if o.GPUMemLimit > 0 {
		m["gpu_mem_limit"] = strconv.FormatInt(o.GPUMemLimit, 10)
	}
	return m
}

// ToNativeProviderOptions converts the CUDA options to a CUDA provider options.
// The caller must Destroy the result.
func (o CUDAOptions) ToNativeProviderOptions() (*ort.CUDAProviderOptions, error) {
	opts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return nil, err
	}

	if err := opts.Update(o.Map()); err != nil {
		opts.Destroy()
		return nil, err
	}

	return opts, nil
}

func arenaStrategy(v int) string {
	if v == 1 {
		return "kSameAsRequested"
	}
	return "kNextPowerOfTwo"
}

func convAlgoSearch(v int) string {
	switch v {
	case 1:
		return "HEURISTIC"
	case 2:
		return "DEFAULT"
	default:
		return "EXHAUSTIVE"
	}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
