package email

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyDial(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ConnectKind
	}{
		{
			name: "refused connection",
			err:  &net.OpError{Op: "dial", Err: fmt.Errorf("connection refused")},
			want: ConnectNetwork,
		},
		{
			name: "plaintext server",
			err:  tls.RecordHeaderError{Msg: "first record does not look like a TLS handshake"},
			want: ConnectTLS,
		},
		{
			name: "unknown authority",
			err:  fmt.Errorf("dial: %w", x509.UnknownAuthorityError{}),
			want: ConnectTLS,
		},
		{
			name: "hostname mismatch",
			err:  x509.HostnameError{Host: "imap.example.com"},
			want: ConnectTLS,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cerr := classifyDial(tt.err)
			assert.Equal(t, tt.want, cerr.Kind)
			assert.ErrorIs(t, cerr, tt.err)
		})
	}
}

func TestConnectErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := error(&ConnectError{Kind: ConnectAuth, Err: cause})

	var cerr *ConnectError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, ConnectAuth, cerr.Kind)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "auth")
}

func TestIdleErrorNilCause(t *testing.T) {
	err := &IdleError{}
	assert.Contains(t, err.Error(), "connection closed")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "", snippet(""))
	assert.Equal(t, "a b c", snippet("  a\n\tb   c \n"))

	long := ""
	for i := 0; i < 50; i++ {
		long += "word "
	}
	got := snippet(long)
	assert.Len(t, []rune(got), snippetLimit)
}
