package diag

import "fmt"

// WarningCode classifies a non-fatal condition.
type WarningCode string

const (
	// WarnNoLockfile: proceeding with a mutable install, a lockfile is recommended.
	WarnNoLockfile WarningCode = "no-lockfile"

	// WarnLooseManifest: only a bare manifest was found.
	WarnLooseManifest WarningCode = "loose-manifest"

	// WarnFallbackProceeded: the lockfile's tool is missing and a
	// manifest-based fallback was used instead.
	WarnFallbackProceeded WarningCode = "fallback-proceeded"

	// WarnConflictingLockfiles: more than one strict lockfile is present.
	WarnConflictingLockfiles WarningCode = "conflicting-lockfiles"
)

// Warning is a non-fatal diagnostic surfaced alongside a result.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s", w.Code, w.Message)
}

// Warnf builds a Warning with a formatted message.
func Warnf(code WarningCode, format string, args ...any) Warning {
	return Warning{Code: code, Message: fmt.Sprintf(format, args...)}
}
