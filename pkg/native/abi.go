package native

// ErrorHandle is an error message allocated on the foreign side of the
// boundary. Ownership passes to the caller, which must call Release exactly
// once and must not call Message after Release.
type ErrorHandle interface {
	Message() string
	Release()
}

// ABI is the raw call contract of the native capture engine. A false ok
// comes with an optional error handle; a nil handle means the engine gave no
// reason.
type ABI interface {
	Start(path string, sampleRate, channels int, source string) (ok bool, errHandle ErrorHandle)
	Stop() (ok bool, errHandle ErrorHandle, duration float64)
}
