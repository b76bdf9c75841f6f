//go:build !cgo || nocgo

// Stub engine for builds without llama.cpp.
// Build with: go build -tags nocgo
// Or with CGO_ENABLED=0.

package llamaruntime

var defaultEngine Engine = stubEngine{}

// stubEngine refuses to load any model, so Open fails with ErrBackendUnavailable
// after the model file check has passed.
type stubEngine struct{}

func (stubEngine) BackendInit() {}
func (stubEngine) BackendFree() {}

func (stubEngine) LoadModel(path string, params ModelParams) ModelHandle {
	return nil
}

// backendAvailable reports whether this build can actually load models.
const backendAvailable = false
