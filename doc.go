// Package dfremote is a client for the DFHack remote-control protocol. It
// maintains a single persistent TCP connection to a running game process and
// exposes remote methods as typed function calls.
//
// A Client owns the connection state machine and serializes all calls onto
// the socket in FIFO order. Each call returns two independent handles: a
// one-shot future for the command result and a future for the ordered text
// notifications received while the call was in flight. Symbolic method names
// are resolved to numeric ids through a cached CoreBind exchange; the cache
// is invalidated whenever the link breaks, and reconnecting is the caller's
// responsibility.
package dfremote
