// Package dfproto defines the structured messages exchanged with the DFHack
// server. Messages are serialized as CBOR maps with integer keys matching
// the upstream field numbering; the framing layer never looks inside them.
package dfproto

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Message is a serializable payload with a stable type name. Type names are
// exchanged in bind requests so the server can check both ends agree on a
// method's signature.
type Message interface {
	TypeName() string
}

// Marshal serializes a message payload.
func Marshal(m Message) ([]byte, error) {
	data, err := cbor.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", m.TypeName(), err)
	}
	return data, nil
}

// Unmarshal fills a message from a serialized payload.
func Unmarshal(data []byte, m Message) error {
	if err := cbor.Unmarshal(data, m); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", m.TypeName(), err)
	}
	return nil
}

// EmptyMessage carries no fields. It stands in for void parameters and
// results.
type EmptyMessage struct{}

func (*EmptyMessage) TypeName() string { return "dfproto.EmptyMessage" }

// IntMessage carries a single integer value.
type IntMessage struct {
	Value int32 `cbor:"1,keyasint"`
}

func (*IntMessage) TypeName() string { return "dfproto.IntMessage" }

// IntListMessage carries a list of integer values.
type IntListMessage struct {
	Values []int32 `cbor:"1,keyasint,omitempty"`
}

func (*IntListMessage) TypeName() string { return "dfproto.IntListMessage" }

// StringMessage carries a single string value.
type StringMessage struct {
	Value string `cbor:"1,keyasint"`
}

func (*StringMessage) TypeName() string { return "dfproto.StringMessage" }

// StringListMessage carries a list of string values.
type StringListMessage struct {
	Values []string `cbor:"1,keyasint,omitempty"`
}

func (*StringListMessage) TypeName() string { return "dfproto.StringListMessage" }

// CoreBindRequest asks the server to resolve a method to a numeric id. The
// input and output type names are part of the key: binding the same method
// with different signatures yields different ids.
type CoreBindRequest struct {
	Method    string `cbor:"1,keyasint"`
	InputMsg  string `cbor:"2,keyasint"`
	OutputMsg string `cbor:"3,keyasint"`
	Plugin    string `cbor:"4,keyasint,omitempty"`
}

func (*CoreBindRequest) TypeName() string { return "dfproto.CoreBindRequest" }

// CoreBindReply carries the id assigned to a bound method.
type CoreBindReply struct {
	AssignedID int32 `cbor:"1,keyasint"`
}

func (*CoreBindReply) TypeName() string { return "dfproto.CoreBindReply" }

// CoreTextFragment is one colored piece of console output.
type CoreTextFragment struct {
	Text  string `cbor:"1,keyasint"`
	Color int32  `cbor:"2,keyasint,omitempty"`
}

func (*CoreTextFragment) TypeName() string { return "dfproto.CoreTextFragment" }

// CoreTextNotification is the payload of every ReplyText frame: an ordered
// batch of text fragments emitted by the server during a call.
type CoreTextNotification struct {
	Fragments []CoreTextFragment `cbor:"1,keyasint,omitempty"`
}

func (*CoreTextNotification) TypeName() string { return "dfproto.CoreTextNotification" }

// CoreRunCommandRequest runs a console command on the server.
type CoreRunCommandRequest struct {
	Command   string   `cbor:"1,keyasint"`
	Arguments []string `cbor:"2,keyasint,omitempty"`
}

func (*CoreRunCommandRequest) TypeName() string { return "dfproto.CoreRunCommandRequest" }
