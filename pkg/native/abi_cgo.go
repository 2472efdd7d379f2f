//go:build cgo && nativecapture

package native

/*
#cgo LDFLAGS: -lnativecapture
#include <stdbool.h>
#include <stdint.h>
#include <stdlib.h>

bool nc_capture_start(const char *path, uint32_t sample_rate, uint16_t channels, const char *source, char **err_out);
bool nc_capture_stop(char **err_out, double *duration_out);
void nc_string_free(char *s);
*/
import "C"

import "unsafe"

// Linked reports whether the native capture engine is compiled in.
func Linked() bool {
	return true
}

// DefaultABI returns the ABI for this build.
func DefaultABI() ABI {
	return cgoABI{}
}

type cgoABI struct{}

func (cgoABI) Start(path string, sampleRate, channels int, source string) (bool, ErrorHandle) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	cSource := C.CString(source)
	defer C.free(unsafe.Pointer(cSource))

	var errOut *C.char
	ok := C.nc_capture_start(cPath, C.uint32_t(sampleRate), C.uint16_t(channels), cSource, &errOut)
	return bool(ok), wrapHandle(errOut)
}

func (cgoABI) Stop() (bool, ErrorHandle, float64) {
	var errOut *C.char
	var duration C.double
	ok := C.nc_capture_stop(&errOut, &duration)
	return bool(ok), wrapHandle(errOut), float64(duration)
}

// cHandle owns a string allocated by the engine.
type cHandle struct {
	ptr *C.char
}

func wrapHandle(ptr *C.char) ErrorHandle {
	if ptr == nil {
		return nil
	}
	return &cHandle{ptr: ptr}
}

func (h *cHandle) Message() string {
	if h.ptr == nil {
		return ""
	}
	return C.GoString(h.ptr)
}

func (h *cHandle) Release() {
	if h.ptr == nil {
		return
	}
	C.nc_string_free(h.ptr)
	h.ptr = nil
}
