// Command libllamabridge builds the bridge as a shared library:
//
//	go build -buildmode=c-shared -o libllamabridge.so ./cmd/libllamabridge
//
// The exported functions mirror bridge.Init, bridge.Generate and
// bridge.Destroy on the process-wide bridge.Default(). Strings returned to
// the caller are allocated with malloc and must be released with
// LlamaBridgeFreeString.
package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"llama_bridge/bridge"
)

//export LlamaBridgeInit
func LlamaBridgeInit(modelPath *C.char) C.int64_t {
	return C.int64_t(bridge.Default().Init(goString(modelPath)))
}

//export LlamaBridgeGenerate
func LlamaBridgeGenerate(handle C.int64_t, prompt *C.char, maxTokens C.int32_t) *C.char {
	text := bridge.Default().Generate(int64(handle), goString(prompt), int(maxTokens))
	return C.CString(text)
}

//export LlamaBridgeDestroy
func LlamaBridgeDestroy(handle C.int64_t) {
	bridge.Default().Destroy(int64(handle))
}

//export LlamaBridgeFreeString
func LlamaBridgeFreeString(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

// LlamaBridgeShutdown destroys every live handle and flushes the log. Hosts
// call it once before unloading the library.
//
//export LlamaBridgeShutdown
func LlamaBridgeShutdown() {
	bridge.ShutdownDefault()
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

func main() {}
