package dfremote

import (
	"context"

	"github.com/machinefabric/dfremote-go/dfproto"
)

// Future resolves exactly once with no value. It is safe to observe from any
// goroutine.
type Future struct {
	done chan struct{}
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func resolvedFuture() *Future {
	f := newFuture()
	f.resolve()
	return f
}

func (f *Future) resolve() { close(f.done) }

// Done returns a channel closed when the future resolves.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the future resolves or the context is cancelled.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BoolFuture resolves exactly once with a boolean outcome.
type BoolFuture struct {
	done chan struct{}
	val  bool
}

func newBoolFuture() *BoolFuture {
	return &BoolFuture{done: make(chan struct{})}
}

func resolvedBoolFuture(v bool) *BoolFuture {
	f := newBoolFuture()
	f.resolve(v)
	return f
}

func (f *BoolFuture) resolve(v bool) {
	f.val = v
	close(f.done)
}

// Done returns a channel closed when the future resolves.
func (f *BoolFuture) Done() <-chan struct{} { return f.done }

// Value blocks until the future resolves and returns its outcome.
func (f *BoolFuture) Value() bool {
	<-f.done
	return f.val
}

// Wait blocks until the future resolves or the context is cancelled.
func (f *BoolFuture) Wait(ctx context.Context) (bool, error) {
	select {
	case <-f.done:
		return f.val, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// CallReply is the terminal outcome of a call. Msg is the populated output
// message when Result is Ok and nil otherwise.
type CallReply struct {
	Result CommandResult
	Msg    dfproto.Message
}

// CallFuture resolves exactly once with a CallReply.
type CallFuture struct {
	done  chan struct{}
	reply CallReply
}

func newCallFuture() *CallFuture {
	return &CallFuture{done: make(chan struct{})}
}

func resolvedCallFuture(cr CommandResult) *CallFuture {
	f := newCallFuture()
	f.resolve(CallReply{Result: cr})
	return f
}

func (f *CallFuture) resolve(reply CallReply) {
	f.reply = reply
	close(f.done)
}

// Done returns a channel closed when the future resolves.
func (f *CallFuture) Done() <-chan struct{} { return f.done }

// Reply blocks until the call terminates and returns its reply.
func (f *CallFuture) Reply() CallReply {
	<-f.done
	return f.reply
}

// Wait blocks until the call terminates or the context is cancelled.
func (f *CallFuture) Wait(ctx context.Context) (CallReply, error) {
	select {
	case <-f.done:
		return f.reply, nil
	case <-ctx.Done():
		return CallReply{}, ctx.Err()
	}
}

// TextNotification is one colored text fragment received during a call.
type TextNotification struct {
	Color Color
	Text  string
}

// NotificationFuture resolves with the ordered notifications of a call. It
// always resolves no later than the call's result future; for live delivery
// during the call, register a notification callback on the client.
type NotificationFuture struct {
	done  chan struct{}
	items []TextNotification
}

func newNotificationFuture() *NotificationFuture {
	return &NotificationFuture{done: make(chan struct{})}
}

func resolvedNotificationFuture() *NotificationFuture {
	f := newNotificationFuture()
	f.resolve(nil)
	return f
}

func (f *NotificationFuture) resolve(items []TextNotification) {
	f.items = items
	close(f.done)
}

// Done returns a channel closed when the notification stream is complete.
func (f *NotificationFuture) Done() <-chan struct{} { return f.done }

// Items blocks until the stream completes and returns the notifications in
// receive order.
func (f *NotificationFuture) Items() []TextNotification {
	<-f.done
	return f.items
}

// Wait blocks until the stream completes or the context is cancelled.
func (f *NotificationFuture) Wait(ctx context.Context) ([]TextNotification, error) {
	select {
	case <-f.done:
		return f.items, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
