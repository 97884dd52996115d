package email

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

// ConnectKind classifies why a connection attempt failed.
type ConnectKind int

const (
	ConnectNetwork ConnectKind = iota
	ConnectTLS
	ConnectAuth
)

func (k ConnectKind) String() string {
	switch k {
	case ConnectNetwork:
		return "network"
	case ConnectTLS:
		return "tls"
	case ConnectAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// ConnectError reports a failed connect or login.
type ConnectError struct {
	Kind ConnectKind
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect (%s): %v", e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SelectError reports a mailbox that could not be selected.
type SelectError struct {
	Mailbox string
	Err     error
}

func (e *SelectError) Error() string {
	return fmt.Sprintf("select %s: %v", e.Mailbox, e.Err)
}

func (e *SelectError) Unwrap() error { return e.Err }

// FetchError reports a failed unseen query or summary fetch.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IdleError reports a connection severed while waiting in IDLE.
type IdleError struct {
	Err error
}

func (e *IdleError) Error() string {
	if e.Err == nil {
		return "idle: connection closed"
	}
	return fmt.Sprintf("idle: %v", e.Err)
}

func (e *IdleError) Unwrap() error { return e.Err }

// classifyDial sorts a dial failure into the TLS or network bucket.
func classifyDial(err error) *ConnectError {
	kind := ConnectNetwork
	if isTLSError(err) {
		kind = ConnectTLS
	}
	return &ConnectError{Kind: kind, Err: err}
}

func isTLSError(err error) bool {
	var (
		recordErr   tls.RecordHeaderError
		unknownCA   x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		certInvalid x509.CertificateInvalidError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &unknownCA) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &certInvalid)
}
