package dfremote

import (
	"github.com/charmbracelet/log"

	"github.com/machinefabric/dfremote-go/dfproto"
	"github.com/machinefabric/dfremote-go/wire"
)

// BindRequest identifies a remote method by name and signature. Two
// requests are the same binding iff all four fields are equal.
type BindRequest struct {
	Plugin    string
	Method    string
	InputMsg  string
	OutputMsg string
}

// Binding is the shared association between a BindRequest and the numeric
// id assigned by the server. Many typed functions may hold the same
// Binding; the client drops its own reference on every disconnect, but
// outstanding holders keep their snapshot.
type Binding struct {
	done       chan struct{}
	ok         bool
	assignedID int16
}

// Done returns a channel closed when the bind call terminates.
func (b *Binding) Done() <-chan struct{} { return b.done }

// Ready reports whether the bind call has terminated, successfully or not.
func (b *Binding) Ready() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// AssignedID blocks until the bind call terminates and returns the assigned
// id. ok is false when the bind failed; the id is only valid when ok.
func (b *Binding) AssignedID() (id int16, ok bool) {
	<-b.done
	return b.assignedID, b.ok
}

// GetBinding returns the shared binding for req, issuing a CoreBind call on
// first lookup. Concurrent lookups with equal keys coalesce onto a single
// wire exchange.
func (c *Client) GetBinding(req BindRequest) *Binding {
	c.bindingsMu.Lock()
	if b, exists := c.bindings[req]; exists {
		c.bindingsMu.Unlock()
		return b
	}
	b := &Binding{done: make(chan struct{})}
	c.bindings[req] = b
	c.bindingsMu.Unlock()

	log.Debug("bind remote function", "plugin", req.Plugin, "method", req.Method)
	in, err := dfproto.Marshal(&dfproto.CoreBindRequest{
		Method:    req.Method,
		InputMsg:  req.InputMsg,
		OutputMsg: req.OutputMsg,
		Plugin:    req.Plugin,
	})
	if err != nil {
		log.Error("failed to encode bind request", "method", req.Method, "err", err)
		close(b.done)
		return b
	}
	reply := &dfproto.CoreBindReply{}
	fut, _ := c.Call(wire.CoreBindID, in, reply)
	go func() {
		r := fut.Reply()
		if r.Result.IsOk() {
			b.assignedID = int16(reply.AssignedID)
			b.ok = true
			log.Debug("bound remote function", "method", req.Method, "id", b.assignedID)
		} else {
			log.Debug("bind failed", "method", req.Method, "result", r.Result)
		}
		close(b.done)
	}()
	return b
}

// peekBinding returns the cached binding for req without creating one.
func (c *Client) peekBinding(req BindRequest) *Binding {
	c.bindingsMu.Lock()
	defer c.bindingsMu.Unlock()
	return c.bindings[req]
}

// invalidateBindings clears the cache. Binds still in flight resolve
// through their cancelled calls; resolved bindings survive in their
// holders' hands until the next lookup replaces them.
func (c *Client) invalidateBindings() {
	c.bindingsMu.Lock()
	n := len(c.bindings)
	c.bindings = make(map[BindRequest]*Binding)
	c.bindingsMu.Unlock()
	if n > 0 {
		log.Debug("invalidated bindings", "count", n)
	}
}
