package native

// UnavailableMessage is reported by the fallback ABI on every start.
const UnavailableMessage = "native capture engine not available in this build"

type unavailableABI struct{}

// Unavailable returns an ABI that refuses every capture. It backs builds that
// do not link the native engine.
func Unavailable() ABI {
	return unavailableABI{}
}

func (unavailableABI) Start(string, int, int, string) (bool, ErrorHandle) {
	return false, staticHandle(UnavailableMessage)
}

func (unavailableABI) Stop() (bool, ErrorHandle, float64) {
	return false, staticHandle(UnavailableMessage), 0
}

// staticHandle is an ErrorHandle backed by Go memory.
type staticHandle string

func (h staticHandle) Message() string { return string(h) }

func (staticHandle) Release() {}
