package dfremote

import "fmt"

// CommandResult is the outcome of a remote call. Negative values other than
// LinkFailure are reported by the server in ReplyFail frames; LinkFailure is
// produced locally for any I/O, framing or parsing error.
type CommandResult int32

const (
	ResultLinkFailure    CommandResult = -3
	ResultNeedsConsole   CommandResult = -2
	ResultNotImplemented CommandResult = -1
	ResultOk             CommandResult = 0
	ResultFailure        CommandResult = 1
	ResultWrongUsage     CommandResult = 2
	ResultNotFound       CommandResult = 3
)

// CommandResultFromWire converts the signed enumerator carried in a
// ReplyFail header. Values outside the protocol range collapse to
// LinkFailure.
func CommandResultFromWire(v int32) CommandResult {
	if v < int32(ResultLinkFailure) || v > int32(ResultNotFound) {
		return ResultLinkFailure
	}
	return CommandResult(v)
}

// IsOk reports whether the call succeeded and its output message is
// populated.
func (cr CommandResult) IsOk() bool { return cr == ResultOk }

func (cr CommandResult) String() string {
	switch cr {
	case ResultLinkFailure:
		return "Link failure"
	case ResultNeedsConsole:
		return "Needs console"
	case ResultNotImplemented:
		return "Not implemented"
	case ResultOk:
		return "Ok"
	case ResultFailure:
		return "Failure"
	case ResultWrongUsage:
		return "Wrong usage"
	case ResultNotFound:
		return "Not found"
	default:
		return fmt.Sprintf("unknown error code (%d)", int32(cr))
	}
}

// Error makes a CommandResult usable as an error value for non-Ok results.
func (cr CommandResult) Error() string { return cr.String() }
