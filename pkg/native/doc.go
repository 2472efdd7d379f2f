// Package native crosses the foreign boundary to the audio capture engine.
//
// The engine exposes start, stop and a release function for the error strings
// it allocates. Bridge converts each returned error handle into a Go string
// and releases it exactly once before any other logic runs, so no caller ever
// observes a foreign pointer.
//
// Builds with the nativecapture tag (and cgo enabled) link libnativecapture.
// Other builds get an ABI that rejects every capture.
package native
