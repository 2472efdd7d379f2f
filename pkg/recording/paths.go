package recording

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Source identifies which signal the native engine captures.
type Source string

const (
	SourceMic    Source = "mic"
	SourcePlugin Source = "plugin"
)

const (
	// AudioExtension is appended to every sanitized file name.
	AudioExtension = ".wav"

	// DefaultFileName is used when the requested name is empty.
	DefaultFileName = "recording" + AudioExtension

	// MaxFileNameLength bounds a sanitized name, extension included.
	MaxFileNameLength = 255
)

// NormalizeSource maps free-form input onto a known source. Anything that is
// not a plugin alias records the microphone.
func NormalizeSource(raw string) Source {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "plugin", "plugin_output":
		return SourcePlugin
	default:
		return SourceMic
	}
}

// SanitizeFileName turns a user-supplied name into a safe file name that
// only contains [A-Za-z0-9._-], ends in AudioExtension and is at most
// MaxFileNameLength bytes long. Over-long names keep their leading part.
func SanitizeFileName(raw string) string {
	return sanitizeFileName(raw, DefaultFileName)
}

func sanitizeFileName(raw, fallback string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}

	var b strings.Builder
	b.Grow(len(trimmed) + len(AudioExtension))
	for _, r := range trimmed {
		if isSafeFileRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	name := b.String()
	if name == "" || strings.EqualFold(name, AudioExtension) {
		return fallback
	}
	if !strings.HasSuffix(strings.ToLower(name), AudioExtension) {
		name += AudioExtension
	}
	if len(name) > MaxFileNameLength {
		// Safe runes are ASCII, so byte slicing cannot split one.
		name = name[:MaxFileNameLength-len(AudioExtension)] + AudioExtension
	}
	return name
}

func isSafeFileRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}

// ValidateUserID rejects user ids that would escape the per-user storage
// namespace.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return newError(KindValidation, MsgMissingUserID, nil)
	}
	if userID == "." || strings.Contains(userID, "..") {
		return newError(KindValidation, MsgInvalidUserID, fmt.Errorf("userId cannot contain '..'"))
	}
	if strings.ContainsAny(userID, "/\\") {
		return newError(KindValidation, MsgInvalidUserID, fmt.Errorf("userId cannot contain path separators"))
	}
	if strings.ContainsRune(userID, 0) {
		return newError(KindValidation, MsgInvalidUserID, fmt.Errorf("userId cannot contain null bytes"))
	}
	return nil
}

// PathResolver derives storage paths for recordings below a project root.
type PathResolver struct {
	root string
}

// NewPathResolver creates a resolver rooted at projectRoot.
func NewPathResolver(projectRoot string) *PathResolver {
	return &PathResolver{root: projectRoot}
}

// Root returns the configured project root.
func (p *PathResolver) Root() string {
	return p.root
}

// Resolve returns the slash-separated relative path reported to clients and
// the absolute path handed to the native engine.
func (p *PathResolver) Resolve(userID, fileName string) (string, string) {
	rel := path.Join("data", "users", userID, "recordings", fileName)
	abs := filepath.Join(p.root, filepath.FromSlash(rel))
	if resolved, err := filepath.Abs(abs); err == nil {
		abs = resolved
	}
	return rel, abs
}

// EnsureParentDir creates the directory that will hold absPath.
func (p *PathResolver) EnsureParentDir(absPath string) error {
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return newError(KindResource, MsgCreateDirFailed, err)
	}
	return nil
}
