package ws

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialAccept(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close() //nolint:errcheck

	wsLn := Listen(ln, Config{})

	serverMsgs := make(chan []byte, 1)
	go func() {
		conn, err := wsLn.Accept()
		if err != nil {
			return
		}
		conn.OnMessage(func(_ MessageType, payload []byte) {
			serverMsgs <- payload
		})
	}()

	client, err := Dial("ws://"+ln.Addr().String()+"/", Config{})
	require.NoError(t, err)
	defer client.Close() //nolint:errcheck

	assert.Equal(t, StateOpen, client.State())
	require.NoError(t, client.Send(Text, []byte("hello")))

	select {
	case got := <-serverMsgs:
		assert.Equal(t, "hello", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive message")
	}
}

func TestEchoBothDirections(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close() //nolint:errcheck

	wsLn := Listen(ln, Config{})

	go func() {
		conn, err := wsLn.Accept()
		if err != nil {
			return
		}
		conn.OnMessage(func(t MessageType, payload []byte) {
			_ = conn.Send(t, payload)
		})
	}()

	client, err := Dial("ws://"+ln.Addr().String()+"/", Config{})
	require.NoError(t, err)
	defer client.Close() //nolint:errcheck

	echoed := make(chan []byte, 1)
	client.OnMessage(func(_ MessageType, payload []byte) {
		echoed <- payload
	})

	payload := make([]byte, 5000) // forces the 16-bit extended length path
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, client.Send(Binary, payload))

	select {
	case got := <-echoed:
		assert.Equal(t, payload, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

func TestMessageTooLarge(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close() //nolint:errcheck

	wsLn := Listen(ln, Config{MaxMessageSize: 16})

	accepted := make(chan *Conn, 1)
	go func() {
		conn, err := wsLn.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := Dial("ws://"+ln.Addr().String()+"/", Config{})
	require.NoError(t, err)
	defer client.Close() //nolint:errcheck

	server := <-accepted
	errCh := make(chan error, 1)
	server.OnError(func(err error) {
		errCh <- err
	})

	require.NoError(t, client.Send(Binary, make([]byte, 64)))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrMessageTooLarge)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for oversized message to be rejected")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close() //nolint:errcheck

	wsLn := Listen(ln, Config{})
	go func() { _, _ = wsLn.Accept() }()

	client, err := Dial("ws://"+ln.Addr().String()+"/", Config{})
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.Equal(t, StateClosed, client.State())
}
