// Command libgpuf builds the shared library loaded by the JNI shim:
//
//	go build -buildmode=c-shared -o libgpuf.so ./cmd/libgpuf
//
// Strings returned by gpuf_get_last_error, gpuf_llm_generate,
// gpuf_system_info and gpuf_status are allocated with malloc and must be
// released with gpuf_free_string. The string returned by gpuf_version is
// owned by the library.
package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/gpunexus/gpuf/internal/bridge"
)

var versionString = sync.OnceValue(func() *C.char {
	return C.CString(bridge.Default().Version())
})

//export gpuf_init
func gpuf_init() C.int32_t {
	return C.int32_t(bridge.Default().Init())
}

//export gpuf_get_last_error
func gpuf_get_last_error() *C.char {
	msg := bridge.Default().LastError()
	if msg == "" {
		return nil
	}
	return C.CString(msg)
}

//export gpuf_version
func gpuf_version() *C.char {
	return versionString()
}

//export gpuf_llm_init
func gpuf_llm_init(path *C.char, contextSize, gpuLayers C.uint32_t) C.int32_t {
	h := bridge.Default()
	if path == nil {
		return C.int32_t(h.LLMInit("", uint32(contextSize), uint32(gpuLayers)))
	}
	return C.int32_t(h.LLMInit(C.GoString(path), uint32(contextSize), uint32(gpuLayers)))
}

//export gpuf_llm_generate
func gpuf_llm_generate(prompt *C.char, maxTokens C.uintptr_t) *C.char {
	var p string
	if prompt != nil {
		p = C.GoString(prompt)
	}
	return C.CString(bridge.Default().LLMGenerate(p, uintptr(maxTokens)))
}

// gpuf_set_model hot-swaps the model, keeping the active context size and
// GPU layers.
//
//export gpuf_set_model
func gpuf_set_model(path *C.char) C.int32_t {
	var p string
	if path != nil {
		p = C.GoString(path)
	}
	return C.int32_t(bridge.Default().SetModel(p))
}

//export gpuf_system_info
func gpuf_system_info() *C.char {
	return C.CString(bridge.Default().SystemInfoJSON())
}

//export gpuf_status
func gpuf_status() *C.char {
	return C.CString(bridge.Default().StatusJSON())
}

//export gpuf_cleanup
func gpuf_cleanup() C.int32_t {
	return C.int32_t(bridge.Default().Cleanup())
}

//export gpuf_free_string
func gpuf_free_string(s *C.char) {
	if s == nil || s == versionString() {
		return
	}
	C.free(unsafe.Pointer(s))
}

func main() {}
