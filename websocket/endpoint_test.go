package websocket

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HANABLI/WebSocket/fake"
	"github.com/HANABLI/WebSocket/protocol"
)

// wire connects two Endpoints back to back: bytes sent by one are
// delivered directly to the other, without a real socket in between.
type wire struct {
	to *Endpoint
}

func (w *wire) Send(data []byte) error {
	return w.to.Deliver(data)
}
func (w *wire) Break(clean bool) error { w.to.NotifyBroken(clean); return nil }
func (w *wire) PeerID() string         { return "wired-peer" }

func newWiredPair(t *testing.T) (client, server *Endpoint) {
	t.Helper()
	clientTransport := &wire{}
	serverTransport := &wire{}
	client = New(protocol.RoleClient, clientTransport, "client", DefaultConfig())
	server = New(protocol.RoleServer, serverTransport, "server", DefaultConfig())
	clientTransport.to = server
	serverTransport.to = client
	return client, server
}

func TestEndpoint_HandshakeThenTextRoundTrip(t *testing.T) {
	req := fake.NewRequest("GET")
	resp := fake.NewResponseRecorder()

	client, server := newWiredPair(t)

	require.NoError(t, client.StartOpenAsClient(req))
	require.NoError(t, server.OpenAsServer(req, resp, nil))
	require.NoError(t, client.CompleteOpenAsClient(resp))

	var got string
	done := make(chan struct{})
	server.SetTextHandler(func(data string) {
		got = data
		close(done)
	})

	client.SendText("hello from client", true)
	<-done
	require.Equal(t, "hello from client", got)
}

func TestEndpoint_PingPongRoundTrip(t *testing.T) {
	_, server := newWiredPair(t)

	var gotPong bool
	server.SetPongHandler(func(data []byte) { gotPong = true })

	server.Ping([]byte("ping-data"))
	require.True(t, gotPong)
}

func TestEndpoint_CloseHandshakeBreaksBothSides(t *testing.T) {
	client, server := newWiredPair(t)

	var serverClosed, clientClosed bool
	server.SetCloseHandler(func(code int, reason string) { serverClosed = true })
	client.SetCloseHandler(func(code int, reason string) {
		clientClosed = true
		client.Close(code, "")
	})

	server.Close(protocol.CloseNormalClosure, "done")

	require.True(t, clientClosed)
	require.True(t, serverClosed)
}

func TestEndpoint_FragmentedBinaryMessage(t *testing.T) {
	client, server := newWiredPair(t)

	var got []byte
	server.SetBinaryHandler(func(data []byte) { got = data })

	client.SendBinary([]byte("part1-"), false)
	client.SendBinary([]byte("part2"), true)

	require.Equal(t, []byte("part1-part2"), got)
}

func TestEndpoint_WithFakeTransportSendIsRecorded(t *testing.T) {
	transport := fake.NewTransport()
	e := New(protocol.RoleServer, transport, "server", DefaultConfig())

	e.Ping([]byte("x"))
	sent := transport.Sent()
	require.Len(t, sent, 1)

	frame, _, err := protocol.Decode(sent[0], protocol.RoleClient)
	require.NoError(t, err)
	require.Equal(t, protocol.OpcodePing, frame.Opcode)
}
