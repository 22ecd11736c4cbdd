// Package rtcerr implements the error taxonomy shared across this module:
// ConfigurationError, NegotiationError, TransportError, StateError and
// ResourceError. Synchronous public methods return these directly;
// asynchronous failures surface through a state callback instead.
package rtcerr

import "fmt"

// ConfigurationError indicates invalid input at construction time: a bad
// MTU, an impossible port range, DataChannel id 65535, or a mismatched
// certificate/key pair.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("ConfigurationError: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NegotiationError indicates an SDP offer or answer failed validation:
// missing ufrag/pwd/fingerprint, no active media section, or a self-loop
// against our own local credentials.
type NegotiationError struct {
	Err error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("NegotiationError: %v", e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}

// TransportError indicates a TCP/TLS/DTLS/SCTP/WebSocket failure: a
// handshake timeout, a bad fingerprint, or a premature close.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("TransportError: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StateError indicates an operation was invoked while the object was in the
// wrong state: send on a closed channel, SetLocalDescription before the
// remote one with auto-negotiation disabled.
type StateError struct {
	Err error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("StateError: %v", e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// ResourceError indicates a resource was exhausted or exceeded: no SCTP
// stream ids left, or a message larger than the remote's advertised max.
type ResourceError struct {
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("ResourceError: %v", e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}
