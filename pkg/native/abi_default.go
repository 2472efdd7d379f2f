//go:build !(cgo && nativecapture)

package native

// Linked reports whether the native capture engine is compiled in.
func Linked() bool {
	return false
}

// DefaultABI returns the ABI for this build.
func DefaultABI() ABI {
	return Unavailable()
}
