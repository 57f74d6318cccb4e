package dfremote

import (
	"github.com/google/uuid"

	"github.com/machinefabric/dfremote-go/dfproto"
)

// call is the in-flight representation of a single request: its wire id, the
// input serialized once at enqueue time, an empty output message to be
// filled by the terminal reply, and the two delivery handles. The uid only
// exists to correlate log lines.
type call struct {
	id  int16
	uid uuid.UUID
	in  []byte
	out dfproto.Message

	notes         []TextNotification
	result        *CallFuture
	notifications *NotificationFuture
}

func newCall(id int16, in []byte, out dfproto.Message) *call {
	return &call{
		id:            id,
		uid:           uuid.New(),
		in:            in,
		out:           out,
		result:        newCallFuture(),
		notifications: newNotificationFuture(),
	}
}

func (c *call) pushNotification(n TextNotification) {
	c.notes = append(c.notes, n)
}

// finish resolves both handles exactly once: the notification stream first,
// then the result.
func (c *call) finish(cr CommandResult) {
	var msg dfproto.Message
	if cr.IsOk() {
		msg = c.out
	}
	c.notifications.resolve(c.notes)
	c.result.resolve(CallReply{Result: cr, Msg: msg})
}
