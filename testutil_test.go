package dfremote

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/machinefabric/dfremote-go/dfproto"
	"github.com/machinefabric/dfremote-go/wire"
)

const testTimeout = 5 * time.Second

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

// testServer is a scripted stand-in for the remote side of the link. Tests
// drive it synchronously: accept, handshake, then read requests and write
// whatever reply frames the scenario calls for.
type testServer struct {
	t  *testing.T
	ln net.Listener
}

func newTestServer(t *testing.T) *testServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return &testServer{t: t, ln: ln}
}

func (s *testServer) port() uint16 {
	return uint16(s.ln.Addr().(*net.TCPAddr).Port)
}

func (s *testServer) accept() *serverConn {
	s.ln.(*net.TCPListener).SetDeadline(time.Now().Add(testTimeout))
	conn, err := s.ln.Accept()
	require.NoError(s.t, err)
	s.t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(testTimeout))
	return &serverConn{t: s.t, conn: conn, r: wire.NewReader(conn), w: wire.NewWriter(conn)}
}

type serverConn struct {
	t    *testing.T
	conn net.Conn
	r    *wire.Reader
	w    *wire.Writer
}

// handshake consumes the client's handshake packet and answers it.
func (sc *serverConn) handshake() {
	hs, err := sc.r.ReadHandshake()
	require.NoError(sc.t, err)
	require.Equal(sc.t, wire.RequestMagic, hs.Magic)
	require.Equal(sc.t, wire.Version, hs.Version)
	require.NoError(sc.t, sc.w.WriteHandshake(wire.NewReplyHandshake()))
}

// readRequest consumes one request frame.
func (sc *serverConn) readRequest() (wire.Header, []byte) {
	hdr, err := sc.r.ReadHeader()
	require.NoError(sc.t, err)
	var payload []byte
	if hdr.HasPayload() {
		payload, err = sc.r.ReadPayload(hdr.Size)
		require.NoError(sc.t, err)
	}
	return hdr, payload
}

func (sc *serverConn) writeResult(msg dfproto.Message) {
	data, err := dfproto.Marshal(msg)
	require.NoError(sc.t, err)
	require.NoError(sc.t, sc.w.WriteMessage(wire.Header{ID: wire.ReplyResult}, data))
}

func (sc *serverConn) writeFail(result int32) {
	require.NoError(sc.t, sc.w.WriteMessage(wire.Header{ID: wire.ReplyFail, Size: result}, nil))
}

func (sc *serverConn) writeText(frags ...dfproto.CoreTextFragment) {
	data, err := dfproto.Marshal(&dfproto.CoreTextNotification{Fragments: frags})
	require.NoError(sc.t, err)
	require.NoError(sc.t, sc.w.WriteMessage(wire.Header{ID: wire.ReplyText}, data))
}

func (sc *serverConn) writeRawHeader(hdr wire.Header) {
	buf := wire.EncodeHeader(hdr)
	_, err := sc.conn.Write(buf[:])
	require.NoError(sc.t, err)
}

// serveBind consumes one CoreBind request and answers with the given id.
func (sc *serverConn) serveBind(assigned int32) dfproto.CoreBindRequest {
	hdr, payload := sc.readRequest()
	require.Equal(sc.t, wire.CoreBindID, hdr.ID)
	var req dfproto.CoreBindRequest
	require.NoError(sc.t, dfproto.Unmarshal(payload, &req))
	sc.writeResult(&dfproto.CoreBindReply{AssignedID: assigned})
	return req
}

func (sc *serverConn) close() {
	sc.conn.Close()
}

// connectedClient returns a client with a completed handshake against a
// scripted server connection.
func connectedClient(t *testing.T) (*Client, *serverConn) {
	srv := newTestServer(t)
	c := NewClient()
	t.Cleanup(func() { c.Close() })
	fut := c.Connect("127.0.0.1", srv.port())
	sc := srv.accept()
	sc.handshake()
	ok, err := fut.Wait(testCtx(t))
	require.NoError(t, err)
	require.True(t, ok)
	return c, sc
}
