package serialport

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPort_ReadWriteClose(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	readPort := &port{f: r}
	writePort := &port{f: w}
	defer readPort.Close()
	defer writePort.Close()

	n, err := writePort.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = readPort.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestPort_SetReadTimeout(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	p := &port{f: r}

	err = p.SetReadTimeout(10 * time.Millisecond)
	require.NoError(t, err)

	buf := make([]byte, 1)
	_, err = p.Read(buf)
	assert.Error(t, err, "expected a deadline-exceeded error on an empty pipe")

	err = p.SetReadTimeout(0)
	assert.NoError(t, err, "clearing the deadline should not error")
}

func TestOpener_OpenMissingDeviceReturnsError(t *testing.T) {
	var o Opener
	_, err := o.Open("/nonexistent/not-a-real-serial-port", 115200)
	assert.Error(t, err)
}
