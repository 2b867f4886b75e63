package providers

import (
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	envMu      sync.Mutex
	envLibPath string
)

// DefaultSharedLibPath returns the conventional location of the ONNX Runtime library for
// the current platform.
func DefaultSharedLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
}

// InitializeEnvironment loads the ONNX Runtime shared library once per process.
//
// Later calls with the same path do nothing. A later call with a different path fails,
// since the native library cannot be swapped once loaded.
//
// Arguments:
//   - libPath: The shared library path. Empty selects DefaultSharedLibPath.
//
// Returns:
//   - error: An error if the library is missing or fails to initialize.
func InitializeEnvironment(libPath string) error {
	if libPath == "" {
		libPath = DefaultSharedLibPath()
	}

	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		if envLibPath != "" && envLibPath != libPath {
			return errors.Errorf("ONNX Runtime already initialized from %s", envLibPath)
		}
		return nil
	}

	// Check if the shared library exists before trying to use it.
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "initializing ONNX Runtime environment")
	}
	envLibPath = libPath

	return nil
}
