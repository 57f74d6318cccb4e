package dfremote

import "fmt"

// State identifies the position of the connection state machine. The engine
// owns exactly one State and is the only writer.
type State int32

const (
	// Disconnected means no socket exists; calls fail fast.
	Disconnected State = iota
	// Connecting means a TCP connect is in flight.
	Connecting
	// Handshake means the request magic was sent and the reply is awaited.
	Handshake
	// Ready means the link is idle and the next queued call may be sent.
	Ready
	// AwaitingHeader means a call is in flight and a reply header is awaited.
	AwaitingHeader
	// AwaitingPayload means a reply header was received and its payload is
	// awaited.
	AwaitingPayload
	// Disconnecting means the quit request was sent and the socket is
	// draining toward close.
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Handshake:
		return "handshake"
	case Ready:
		return "ready"
	case AwaitingHeader:
		return "awaiting-header"
	case AwaitingPayload:
		return "awaiting-payload"
	case Disconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
