package dfremote

import (
	"github.com/machinefabric/dfremote-go/dfproto"
	"github.com/machinefabric/dfremote-go/wire"
)

// Core module functions. The core owns the empty plugin name; Bind and
// RunCommand have well-known fixed ids, the rest are bound on first use.

// CoreBind declares the method-binding call itself. Normally the binding
// cache issues this under the hood; it is exposed for low-level use.
func CoreBind(c *Client) *Function[*dfproto.CoreBindRequest, *dfproto.CoreBindReply] {
	return NewFixedFunction[*dfproto.CoreBindRequest, *dfproto.CoreBindReply](c, "", "CoreBind", wire.CoreBindID)
}

// CoreRunCommand runs a console command on the server. Output arrives as
// text notifications during the call.
func CoreRunCommand(c *Client) *Function[*dfproto.CoreRunCommandRequest, *dfproto.EmptyMessage] {
	return NewFixedFunction[*dfproto.CoreRunCommandRequest, *dfproto.EmptyMessage](c, "", "CoreRunCommand", wire.CoreRunCommandID)
}

// CoreSuspend pauses the game loop and returns the suspend depth.
func CoreSuspend(c *Client) *Function[*dfproto.EmptyMessage, *dfproto.IntMessage] {
	return NewFunction[*dfproto.EmptyMessage, *dfproto.IntMessage](c, "", "CoreSuspend")
}

// CoreResume resumes a suspended game loop and returns the suspend depth.
func CoreResume(c *Client) *Function[*dfproto.EmptyMessage, *dfproto.IntMessage] {
	return NewFunction[*dfproto.EmptyMessage, *dfproto.IntMessage](c, "", "CoreResume")
}

// GetVersion returns the server's version string.
func GetVersion(c *Client) *Function[*dfproto.EmptyMessage, *dfproto.StringMessage] {
	return NewFunction[*dfproto.EmptyMessage, *dfproto.StringMessage](c, "", "GetVersion")
}

// GetDFVersion returns the game's version string.
func GetDFVersion(c *Client) *Function[*dfproto.EmptyMessage, *dfproto.StringMessage] {
	return NewFunction[*dfproto.EmptyMessage, *dfproto.StringMessage](c, "", "GetDFVersion")
}
