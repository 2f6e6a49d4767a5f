package common

import "fmt"

// NetworkErrType identifies the class of failure that aborted a test network.
type NetworkErrType uint32

const (
	// BootstrapFailure means a required bootstrap step failed or a
	// prerequisite file was missing.
	BootstrapFailure NetworkErrType = iota
	// DependencyFailure means a node's dependency service could not be started
	// before any node process ran.
	DependencyFailure
	// LivenessFailure means one or more nodes did not report ready in time.
	LivenessFailure
	// SignaledFailure is reported by a driving test through SignalFailure.
	SignaledFailure
	// StartFailure means a node process or the RPC proxy could not be
	// launched.
	StartFailure
	// CleanupFailure ...
	CleanupFailure
)

// NetworkErr is the error returned by every fatal path of a test network.
type NetworkErr struct {
	errType NetworkErrType
	subject string
	cause   error
}

// NewNetworkErr ...
func NewNetworkErr(errType NetworkErrType, subject string, cause error) NetworkErr {
	return NetworkErr{
		errType: errType,
		subject: subject,
		cause:   cause,
	}
}

// Type returns the failure class.
func (e NetworkErr) Type() NetworkErrType {
	return e.errType
}

// Error ...
func (e NetworkErr) Error() string {
	m := ""
	switch e.errType {
	case BootstrapFailure:
		m = "Bootstrap Failure"
	case DependencyFailure:
		m = "Dependency Failure"
	case LivenessFailure:
		m = "Liveness Failure"
	case SignaledFailure:
		m = "Signaled Failure"
	case StartFailure:
		m = "Start Failure"
	case CleanupFailure:
		m = "Cleanup Failure"
	}

	if e.cause == nil {
		return fmt.Sprintf("%s, %s", m, e.subject)
	}

	return fmt.Sprintf("%s, %s: %v", m, e.subject, e.cause)
}

// Unwrap returns the underlying cause, if any.
func (e NetworkErr) Unwrap() error {
	return e.cause
}

// IsNetwork checks that an error is of type NetworkErr and that its code
// matches the provided NetworkErr code.
func IsNetwork(err error, t NetworkErrType) bool {
	netErr, ok := err.(NetworkErr)
	return ok && netErr.errType == t
}
