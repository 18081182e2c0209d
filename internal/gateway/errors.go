package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/picklr-io/anfctl/internal/resource"
)

// Operation names used in errors, logs and metrics.
const (
	OpGet            = "get"
	OpCreateOrUpdate = "createOrUpdate"
	OpPatch          = "patch"
	OpDelete         = "delete"

	// Environment checks made before a run. They carry no resource kind.
	OpCheckResourceGroup = "checkResourceGroup"
	OpResolveSubnet      = "resolveSubnet"
)

// ErrNotFound marks a Get of a resource that does not exist. It is an
// expected outcome, not a failure.
var ErrNotFound = errors.New("resource not found")

// NotFound returns an error for ref that matches ErrNotFound.
func NotFound(ref resource.Ref) error {
	return fmt.Errorf("%s %s: %w", ref.Kind, resource.Format(ref), ErrNotFound)
}

// IsNotFound reports whether err means the resource does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Error is any failure of a gateway call other than not-found. Transient
// errors are worth retrying; permanent ones are not.
type Error struct {
	Kind       resource.Kind
	Op         string
	StatusCode int
	Code       string
	Transient  bool
	Err        error
}

func (e *Error) Error() string {
	class := "permanent"
	if e.Transient {
		class = "transient"
	}
	var b strings.Builder
	if e.Kind != resource.KindUnknown {
		fmt.Fprintf(&b, "%s ", e.Kind)
	}
	fmt.Fprintf(&b, "%s failed (%s", e.Op, class)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ", status %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, ", code %s", e.Code)
	}
	fmt.Fprintf(&b, "): %v", e.Err)
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransientStatus reports whether an HTTP status from the management API
// indicates a condition that may clear on retry.
func IsTransientStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

var transientPatterns = []string{
	"throttl",
	"rate exceed",
	"too many requests",
	"service unavailable",
	"connection reset",
	"connection refused",
	"tls handshake",
	"i/o timeout",
	"temporary failure",
}

// IsTransient reports whether err is worth retrying. Gateway errors carry
// their own classification; anything else falls back to matching common
// network failure messages.
func IsTransient(err error) bool {
	if err == nil || IsNotFound(err) {
		return false
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Transient
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
