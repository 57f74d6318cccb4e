package dfremote

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/machinefabric/dfremote-go/dfproto"
	"github.com/machinefabric/dfremote-go/wire"
)

// DefaultPort is the TCP port the server listens on by default.
const DefaultPort = wire.DefaultPort

// ErrHandshakeMismatch is reported through the socket-error callback when
// the server's handshake reply does not carry the expected magic.
var ErrHandshakeMismatch = errors.New("handshake magic mismatch")

type eventKind int

const (
	evHandshake eventKind = iota
	evHeader
	evPayload
	evClosed
	evError
)

// readEvent is one unit of progress produced by the read loop. Events are
// tagged with their connection so the engine can drop leftovers from a
// previous link.
type readEvent struct {
	conn    net.Conn
	kind    eventKind
	hs      wire.Handshake
	hdr     wire.Header
	payload []byte
	err     error
}

// Client speaks the DFHack remote protocol over a single TCP connection.
//
// A dedicated engine goroutine owns the socket, the state machine and the
// call queue; public methods marshal their work onto it and return
// immediately with future handles. The state shared across goroutines is
// the binding cache and the registered callbacks, each guarded by its own
// mutex, and an atomic copy of the state for State.
type Client struct {
	cmds   chan func()
	events chan readEvent
	quit   chan struct{}

	// Engine-goroutine state. Never touched from outside the engine.
	conn           net.Conn
	writer         *wire.Writer
	state          State
	header         wire.Header
	queue          []*call
	connectFut     *BoolFuture
	disconnectFuts []*Future

	stateValue atomic.Int32

	bindingsMu sync.Mutex
	bindings   map[BindRequest]*Binding

	callbackMu          sync.Mutex
	onConnectionChanged func(bool)
	onSocketError       func(error)
	onNotification      func(Color, string)

	closeOnce sync.Once
}

// NewClient creates a disconnected client and starts its engine goroutine.
func NewClient() *Client {
	c := &Client{
		cmds:     make(chan func(), 64),
		events:   make(chan readEvent, 64),
		quit:     make(chan struct{}),
		bindings: make(map[BindRequest]*Binding),
	}
	go c.run()
	return c
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.stateValue.Load())
}

// Connected reports whether the handshake has completed and the link is
// usable for calls.
func (c *Client) Connected() bool {
	switch c.State() {
	case Ready, AwaitingHeader, AwaitingPayload:
		return true
	default:
		return false
	}
}

// OnConnectionChanged registers a callback invoked with true after a
// successful handshake and false on every disconnect. The callback runs on
// the engine goroutine and must not block.
func (c *Client) OnConnectionChanged(fn func(connected bool)) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.onConnectionChanged = fn
}

// OnSocketError registers a callback invoked for fatal socket and framing
// errors. The callback runs on the engine goroutine and must not block.
func (c *Client) OnSocketError(fn func(err error)) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.onSocketError = fn
}

// OnNotification registers a callback invoked for every text fragment
// received during any call, in receive order. The callback runs on the
// engine goroutine and must not block.
func (c *Client) OnNotification(fn func(color Color, text string)) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.onNotification = fn
}

// Connect initiates a TCP connection and the protocol handshake. The future
// resolves true once the link is Ready and false on any failure before
// that. Concurrent attempts attach to the pending one; connecting an
// already-connected client resolves true immediately.
func (c *Client) Connect(host string, port uint16) *BoolFuture {
	fut := newBoolFuture()
	posted := c.post(func() {
		switch c.state {
		case Disconnected:
			c.setState(Connecting)
			c.connectFut = fut
			addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
			log.Debug("connecting to host", "addr", addr)
			go func() {
				conn, err := net.Dial("tcp", addr)
				if !c.post(func() { c.dialDone(conn, err) }) && conn != nil {
					conn.Close()
				}
			}()
		case Connecting, Handshake:
			pending := c.connectFut
			go func() { fut.resolve(pending.Value()) }()
		default:
			fut.resolve(true)
		}
	})
	if !posted {
		fut.resolve(false)
	}
	return fut
}

// Disconnect enqueues the quit request behind any pending calls. The future
// resolves when the socket is fully closed, not when the request is sent;
// on an already-disconnected client it resolves immediately.
func (c *Client) Disconnect() *Future {
	fut := newFuture()
	posted := c.post(func() {
		if c.state == Disconnected {
			fut.resolve()
			return
		}
		c.disconnectFuts = append(c.disconnectFuts, fut)
		quit := newCall(wire.RequestQuit, nil, nil)
		log.Debug("queue quit request", "call", quit.uid)
		c.queue = append(c.queue, quit)
		if c.state == Ready {
			c.sendNextCall()
		}
	})
	if !posted {
		fut.resolve()
	}
	return fut
}

// Close disconnects, waits for the link to shut down and stops the engine
// goroutine. The client is unusable afterwards.
func (c *Client) Close() error {
	<-c.Disconnect().Done()
	c.closeOnce.Do(func() { close(c.quit) })
	return nil
}

// Call enqueues a low-level call: input bytes are sent verbatim under the
// given id and the terminal ReplyResult payload is parsed into out. It
// returns the result future and the notification future; on an unconnected
// client both resolve immediately with LinkFailure.
//
// Typed access through Function is preferred; Call is the escape hatch for
// ids bound by other means.
func (c *Client) Call(id int16, in []byte, out dfproto.Message) (*CallFuture, *NotificationFuture) {
	cl := newCall(id, in, out)
	posted := c.post(func() {
		if c.conn == nil || c.state == Connecting || c.state == Disconnected {
			log.Debug("call with unconnected client", "id", id, "call", cl.uid)
			cl.finish(ResultLinkFailure)
			return
		}
		log.Debug("queue RPC call", "id", id, "call", cl.uid)
		c.queue = append(c.queue, cl)
		if c.state == Ready {
			c.sendNextCall()
		}
	})
	if !posted {
		cl.finish(ResultLinkFailure)
	}
	return cl.result, cl.notifications
}

// post marshals fn onto the engine goroutine. It reports false when the
// engine has already shut down.
func (c *Client) post(fn func()) bool {
	select {
	case c.cmds <- fn:
		return true
	case <-c.quit:
		return false
	}
}

func (c *Client) run() {
	for {
		select {
		case <-c.quit:
			return
		case fn := <-c.cmds:
			fn()
		case ev := <-c.events:
			c.handleEvent(ev)
		}
	}
}

func (c *Client) setState(s State) {
	if c.state == s {
		return
	}
	log.Debug("state change", "from", c.state, "to", s)
	c.state = s
	c.stateValue.Store(int32(s))
}

func (c *Client) dialDone(conn net.Conn, err error) {
	if c.state != Connecting {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		log.Error("connection failed", "err", err)
		c.emitSocketError(err)
		c.linkClosed()
		return
	}
	c.conn = conn
	c.writer = wire.NewWriter(conn)
	c.setState(Handshake)
	if err := c.writer.WriteHandshake(wire.NewRequestHandshake()); err != nil {
		c.fatal(err)
		return
	}
	go c.readLoop(conn)
}

// readLoop turns the socket byte stream into engine events. It reads the
// handshake reply first, then alternates between headers and payloads until
// the socket dies. io.ReadFull absorbs arbitrarily split reads.
func (c *Client) readLoop(conn net.Conn) {
	r := wire.NewReader(conn)
	hs, err := r.ReadHandshake()
	if err != nil {
		c.deliverReadError(conn, err)
		return
	}
	c.deliver(readEvent{conn: conn, kind: evHandshake, hs: hs})
	for {
		hdr, err := r.ReadHeader()
		if err != nil {
			c.deliverReadError(conn, err)
			return
		}
		c.deliver(readEvent{conn: conn, kind: evHeader, hdr: hdr})
		if hdr.HasPayload() && hdr.ValidPayloadSize() {
			payload, err := r.ReadPayload(hdr.Size)
			if err != nil {
				c.deliverReadError(conn, err)
				return
			}
			c.deliver(readEvent{conn: conn, kind: evPayload, payload: payload})
		}
	}
}

func (c *Client) deliver(ev readEvent) {
	select {
	case c.events <- ev:
	case <-c.quit:
	}
}

func (c *Client) deliverReadError(conn net.Conn, err error) {
	kind := evError
	if errors.Is(err, io.EOF) {
		kind = evClosed
	}
	c.deliver(readEvent{conn: conn, kind: kind, err: err})
}

func (c *Client) handleEvent(ev readEvent) {
	if ev.conn != c.conn {
		return
	}
	switch ev.kind {
	case evHandshake:
		c.handleHandshake(ev.hs)
	case evHeader:
		c.handleHeader(ev.hdr)
	case evPayload:
		c.handlePayload(ev.payload)
	case evClosed:
		c.linkClosed()
	case evError:
		if c.state == Disconnecting {
			// The peer tearing the socket down is how a quit request
			// terminates.
			c.linkClosed()
			return
		}
		c.fatal(ev.err)
	}
}

func (c *Client) handleHandshake(hs wire.Handshake) {
	if c.state != Handshake {
		log.Warn("unexpected handshake data", "state", c.state)
		return
	}
	if !hs.IsReply() {
		log.Error("handshake magic mismatch", "magic", string(hs.Magic[:]))
		c.emitSocketError(ErrHandshakeMismatch)
		c.linkClosed()
		return
	}
	log.Debug("handshake ok", "version", hs.Version)
	c.setState(Ready)
	c.finishConnect(true)
	c.emitConnectionChanged(true)
	if len(c.queue) > 0 {
		c.sendNextCall()
	}
}

func (c *Client) handleHeader(hdr wire.Header) {
	if c.state != AwaitingHeader {
		log.Warn("unexpected message header", "state", c.state, "id", hdr.ID)
		return
	}
	c.header = hdr
	switch {
	case hdr.ID == wire.ReplyFail:
		c.finishCurrent(CommandResultFromWire(hdr.Size))
	case hdr.ID == wire.ReplyResult || hdr.ID == wire.ReplyText:
		if !hdr.ValidPayloadSize() {
			log.Error("reply payload exceeds message size limit", "id", hdr.ID, "size", hdr.Size)
			c.fatal(errors.New("oversized reply payload"))
			return
		}
		c.setState(AwaitingPayload)
	default:
		log.Error("unknown message id in header", "id", hdr.ID)
		c.finishCurrent(ResultLinkFailure)
	}
}

func (c *Client) handlePayload(payload []byte) {
	if c.state != AwaitingPayload || len(c.queue) == 0 {
		log.Warn("unexpected message payload", "state", c.state)
		return
	}
	cl := c.queue[0]
	switch c.header.ID {
	case wire.ReplyResult:
		if err := dfproto.Unmarshal(payload, cl.out); err != nil {
			// The peer misbehaved for this call only; the link survives.
			log.Error("failed to parse reply", "call", cl.uid, "err", err)
			c.finishCurrent(ResultLinkFailure)
			return
		}
		c.finishCurrent(ResultOk)
	case wire.ReplyText:
		var text dfproto.CoreTextNotification
		if err := dfproto.Unmarshal(payload, &text); err != nil {
			log.Error("failed to parse text notification", "call", cl.uid, "err", err)
		}
		for _, frag := range text.Fragments {
			n := TextNotification{Color: Color(frag.Color), Text: frag.Text}
			cl.pushNotification(n)
			c.emitNotification(n)
		}
		c.setState(AwaitingHeader)
	}
}

// sendNextCall transmits the head of the queue. Quit requests are terminal:
// they complete at send time and initiate the socket shutdown.
func (c *Client) sendNextCall() {
	cl := c.queue[0]
	log.Debug("send next call", "id", cl.id, "call", cl.uid)
	if cl.id == wire.RequestQuit {
		c.setState(Disconnecting)
		if err := c.writer.WriteMessage(wire.Header{ID: wire.RequestQuit}, nil); err != nil {
			c.fatal(err)
			return
		}
		c.queue = c.queue[1:]
		cl.finish(ResultOk)
		c.shutdownWrite()
		return
	}
	c.setState(AwaitingHeader)
	if err := c.writer.WriteMessage(wire.Header{ID: cl.id}, cl.in); err != nil {
		c.fatal(err)
	}
}

func (c *Client) shutdownWrite() {
	if tc, ok := c.conn.(*net.TCPConn); ok {
		tc.CloseWrite()
		return
	}
	c.conn.Close()
}

// finishCurrent pops and resolves the current call and immediately sends
// the next one, if any, so the queue never idles on a Ready link.
func (c *Client) finishCurrent(cr CommandResult) {
	c.setState(Ready)
	cl := c.queue[0]
	c.queue = c.queue[1:]
	log.Debug("call finished", "call", cl.uid, "result", cr)
	cl.finish(cr)
	if len(c.queue) > 0 {
		c.sendNextCall()
	}
}

// fatal handles unrecoverable socket or framing errors: the error is
// surfaced and the link is torn down.
func (c *Client) fatal(err error) {
	log.Error("client socket error", "err", err)
	c.emitSocketError(err)
	c.linkClosed()
}

// linkClosed is the single teardown path: every queued call fails with
// LinkFailure in queue order, all cached bindings are invalidated and the
// state machine returns to Disconnected.
func (c *Client) linkClosed() {
	prior := c.state
	if prior == Disconnected {
		return
	}
	if prior != Disconnecting && prior != Connecting {
		log.Warn("socket unexpectedly disconnected", "state", prior)
	}
	c.setState(Disconnected)
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.writer = nil
	}
	for _, cl := range c.queue {
		log.Debug("cancel pending call", "call", cl.uid)
		cl.finish(ResultLinkFailure)
	}
	c.queue = nil
	c.invalidateBindings()
	if prior == Connecting || prior == Handshake {
		c.finishConnect(false)
	}
	if prior != Connecting {
		c.emitConnectionChanged(false)
	}
	for _, f := range c.disconnectFuts {
		f.resolve()
	}
	c.disconnectFuts = nil
}

func (c *Client) finishConnect(ok bool) {
	if c.connectFut == nil {
		return
	}
	c.connectFut.resolve(ok)
	c.connectFut = nil
}

func (c *Client) emitConnectionChanged(connected bool) {
	c.callbackMu.Lock()
	fn := c.onConnectionChanged
	c.callbackMu.Unlock()
	if fn != nil {
		fn(connected)
	}
}

func (c *Client) emitSocketError(err error) {
	c.callbackMu.Lock()
	fn := c.onSocketError
	c.callbackMu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (c *Client) emitNotification(n TextNotification) {
	c.callbackMu.Lock()
	fn := c.onNotification
	c.callbackMu.Unlock()
	if fn != nil {
		fn(n.Color, n.Text)
	}
}
