package providers

import "strconv"

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	DeviceID string `json:"deviceID"     yaml:"deviceID"`
	// Overrides the accelerator hardware type, e.g. CPU, GPU or NPU.
	DeviceType string `json:"deviceType"   yaml:"deviceType"`
	// Precision hint: FP32, FP16 or ACCURACY.
	Precision string `json:"precision"    yaml:"precision"`
	// Overrides the accelerator default number of threads. Zero keeps the default.
	NumOfThreads int `json:"numOfThreads" yaml:"numOfThreads"`
}

// Map returns the options as provider option key/value pairs, omitting unset values.
func (o OpenVINOOptions) Map() map[string]string {
	m := map[string]string{}
	if o.DeviceID != "" {
		m["device_id"] = o.DeviceID
	}
	if o.DeviceType != "" {
		m["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		m["precision"] = o.Precision
	}
	if o.NumOfThreads > 0 {
		m["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	return m
}
