package dfremote

import (
	"context"
	"errors"
	"reflect"

	"golang.org/x/sync/errgroup"

	"github.com/machinefabric/dfremote-go/dfproto"
)

var errBindFailed = errors.New("bind failed")

// newMessage allocates a fresh, empty message of the given pointer type.
func newMessage[M dfproto.Message]() M {
	return reflect.New(reflect.TypeFor[M]().Elem()).Interface().(M)
}

// Function presents one remote method as a typed call. In and Out are
// pointer message types from package dfproto. Functions without a fixed id
// are bound on first use through the client's binding cache.
//
// A Function is a cheap value; create one per client and method pair.
type Function[In, Out dfproto.Message] struct {
	client *Client
	req    BindRequest
	id     int16 // fixed wire id, or -1 when the method must be bound
}

// NewFunction declares a remote method that must be bound before calls
// reach the wire. The module name is the owning plugin; core methods use
// the empty string.
func NewFunction[In, Out dfproto.Message](client *Client, module, name string) *Function[In, Out] {
	return &Function[In, Out]{
		client: client,
		id:     -1,
		req: BindRequest{
			Plugin:    module,
			Method:    name,
			InputMsg:  newMessage[In]().TypeName(),
			OutputMsg: newMessage[Out]().TypeName(),
		},
	}
}

// NewFixedFunction declares a remote method with a well-known wire id that
// never needs binding.
func NewFixedFunction[In, Out dfproto.Message](client *Client, module, name string, id int16) *Function[In, Out] {
	f := NewFunction[In, Out](client, module, name)
	f.id = id
	return f
}

// Name returns the method name the function was declared with.
func (f *Function[In, Out]) Name() string { return f.req.Method }

// IsBound reports whether a call would reach the wire immediately: either
// the id is fixed or a successful binding is cached.
func (f *Function[In, Out]) IsBound() bool {
	if f.id >= 0 {
		return true
	}
	b := f.client.peekBinding(f.req)
	if b == nil || !b.Ready() {
		return false
	}
	_, ok := b.AssignedID()
	return ok
}

// Bind resolves the method's assigned id through the binding cache. The
// future reports whether the method is callable. Fixed-id functions resolve
// true immediately.
func (f *Function[In, Out]) Bind() *BoolFuture {
	if f.id >= 0 {
		return resolvedBoolFuture(true)
	}
	b := f.client.GetBinding(f.req)
	fut := newBoolFuture()
	go func() {
		_, ok := b.AssignedID()
		fut.resolve(ok)
	}()
	return fut
}

// Call invokes the remote method. The input is serialized before the call
// is enqueued and may be reused immediately. If the binding is still in
// flight the call is chained behind it; a failed or failing binding yields
// LinkFailure without touching the wire.
func (f *Function[In, Out]) Call(in In) (*TypedFuture[Out], *NotificationFuture) {
	payload, err := dfproto.Marshal(in)
	if err != nil {
		return &TypedFuture[Out]{inner: resolvedCallFuture(ResultLinkFailure)}, resolvedNotificationFuture()
	}
	out := newMessage[Out]()
	if f.id >= 0 {
		cf, nf := f.client.Call(f.id, payload, out)
		return &TypedFuture[Out]{inner: cf, out: out}, nf
	}

	b := f.client.GetBinding(f.req)
	if b.Ready() {
		id, ok := b.AssignedID()
		if !ok {
			return &TypedFuture[Out]{inner: resolvedCallFuture(ResultLinkFailure)}, resolvedNotificationFuture()
		}
		cf, nf := f.client.Call(id, payload, out)
		return &TypedFuture[Out]{inner: cf, out: out}, nf
	}

	// Bind still in flight: issue the call once it resolves, relaying both
	// handles so notification closure still precedes the result.
	cf := newCallFuture()
	nf := newNotificationFuture()
	go func() {
		id, ok := b.AssignedID()
		if !ok {
			nf.resolve(nil)
			cf.resolve(CallReply{Result: ResultLinkFailure})
			return
		}
		icf, inf := f.client.Call(id, payload, out)
		nf.resolve(inf.Items())
		cf.resolve(icf.Reply())
	}()
	return &TypedFuture[Out]{inner: cf, out: out}, nf
}

// TypedReply is a CallReply reinterpreted as the function's declared output
// type. Msg is nil unless Result is Ok.
type TypedReply[Out dfproto.Message] struct {
	Result CommandResult
	Msg    Out
}

// TypedFuture resolves exactly once with a TypedReply.
type TypedFuture[Out dfproto.Message] struct {
	inner *CallFuture
	out   Out
}

// Done returns a channel closed when the call terminates.
func (f *TypedFuture[Out]) Done() <-chan struct{} { return f.inner.Done() }

// Reply blocks until the call terminates and returns the typed reply.
func (f *TypedFuture[Out]) Reply() TypedReply[Out] {
	r := f.inner.Reply()
	reply := TypedReply[Out]{Result: r.Result}
	if r.Result.IsOk() {
		reply.Msg = f.out
	}
	return reply
}

// Wait blocks until the call terminates or the context is cancelled.
func (f *TypedFuture[Out]) Wait(ctx context.Context) (TypedReply[Out], error) {
	select {
	case <-f.inner.Done():
		return f.Reply(), nil
	case <-ctx.Done():
		return TypedReply[Out]{}, ctx.Err()
	}
}

// Bindable is any function that can be bound ahead of use.
type Bindable interface {
	Bind() *BoolFuture
}

// BindAll binds every function in parallel and resolves true only when all
// of them bound successfully.
func BindAll(fs ...Bindable) *BoolFuture {
	fut := newBoolFuture()
	var g errgroup.Group
	for _, f := range fs {
		bf := f.Bind()
		g.Go(func() error {
			if !bf.Value() {
				return errBindFailed
			}
			return nil
		})
	}
	go func() {
		fut.resolve(g.Wait() == nil)
	}()
	return fut
}
