package conn

import "fmt"

// TransportError wraps socket-level failures: dial errors, TLS
// handshake failures, broken reads and writes. Transport errors are
// retryable and feed the reconnect loop.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RegistrationError is a terminal handshake failure: the server
// rejected our nick, password, or SASL credentials. Retrying with the
// same parameters cannot succeed, so the reconnect loop gives up.
type RegistrationError struct {
	Code   string
	Reason string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration rejected (%s): %s", e.Code, e.Reason)
}
