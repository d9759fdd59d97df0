package nextcloud

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned by a transport for operations it cannot carry
// out (e.g. container stats over the OCS API). Callers fall back to stored
// gauges.
var ErrUnsupported = errors.New("nextcloud: operation not supported by this transport")

// Severity classifies how a caller should react to a transport error.
type Severity int

const (
	// SeverityFatal means the error will not resolve by retrying: bad
	// credentials, missing keys, misconfiguration.
	SeverityFatal Severity = iota
	// SeverityRetryable means the operation may succeed later: network or
	// SSH connect failures, timeouts.
	SeverityRetryable
	// SeverityRemote means the remote side rejected the operation. The
	// caller decides whether that is fatal or advisory for its step.
	SeverityRemote
)

// ConfigError is a fatal configuration problem (missing SSH key, missing
// API credentials). Never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string      { return "nextcloud: " + e.Reason }
func (e *ConfigError) Severity() Severity { return SeverityFatal }

// AuthError means the remote rejected our credentials. Never retried.
type AuthError struct {
	Cause string
}

func (e *AuthError) Error() string      { return "nextcloud: authentication failed: " + e.Cause }
func (e *AuthError) Severity() Severity { return SeverityFatal }

// UnreachableError is a network-level failure reaching the instance.
type UnreachableError struct {
	Op  Operation
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("nextcloud: %s: instance unreachable: %v", e.Op, e.Err)
}
func (e *UnreachableError) Unwrap() error      { return e.Err }
func (e *UnreachableError) Severity() Severity { return SeverityRetryable }

// CommandError is a non-zero exit status from a remote occ or shell command.
type CommandError struct {
	Op         Operation
	ExitStatus int
	Stdout     string
	Stderr     string
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Stderr)
	if out == "" {
		out = strings.TrimSpace(e.Stdout)
	}
	return fmt.Sprintf("nextcloud: %s: command exited %d: %s", e.Op, e.ExitStatus, out)
}
func (e *CommandError) Severity() Severity { return SeverityRemote }

// APIError is a rejected OCS API call: a non-2xx response or an error
// message embedded in the OCS envelope.
type APIError struct {
	Op      Operation
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nextcloud: %s: api error (status %d): %s", e.Op, e.Status, e.Message)
}
func (e *APIError) Severity() Severity { return SeverityRemote }

// ParseError is malformed output from an otherwise successful operation.
// Metric collectors degrade to stale values on it rather than propagating.
type ParseError struct {
	Op  Operation
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("nextcloud: %s: parse output: %v", e.Op, e.Err)
}
func (e *ParseError) Unwrap() error      { return e.Err }
func (e *ParseError) Severity() Severity { return SeverityRemote }

type severityCarrier interface {
	Severity() Severity
}

// SeverityOf extracts the severity of a transport error. Unknown errors are
// treated as retryable so the task runner gets a chance to recover them.
func SeverityOf(err error) Severity {
	var sc severityCarrier
	if errors.As(err, &sc) {
		return sc.Severity()
	}
	return SeverityRetryable
}

// IsFatal reports whether err should never be retried.
func IsFatal(err error) bool {
	return SeverityOf(err) == SeverityFatal
}

// IsAlreadyExists reports whether err is the remote side complaining that a
// user or group already exists. Callers treat this as advisory, not success.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "already a member") ||
		strings.Contains(msg, "group exists")
}
