package serial

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

type nopCloser struct {
	io.ReadWriter
}

func (nopCloser) Close() error { return nil }

func TestPortTimeout(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("ab")
	p := NewPort(nopCloser{&buf}, true)
	b := make([]byte, 4)
	n, err := p.Read(b)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	n, err = p.Read(b)
	require.Zero(t, n)
	require.Equal(t, ErrTimeout, err)
	require.True(t, os.IsTimeout(err))

	n, err = p.Write([]byte{0x7E})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []byte{0x7E}, buf.Bytes())
}

func TestPortNoTimeout(t *testing.T) {
	p := NewPort(nopCloser{&bytes.Buffer{}}, false)
	require.False(t, p.HasReadTimeout())
	_, err := p.Read(make([]byte, 1))
	require.Equal(t, io.EOF, err)
}

func TestOpenNoPort(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
}
