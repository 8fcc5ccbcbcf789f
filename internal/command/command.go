// Package command interprets payloads from the command topic.
//
// Only the first byte of a payload matters: '1' switches the output on,
// '0' switches it off, and anything else (including an empty payload) is
// ignored.
package command

import "fmt"

// Command is a decoded actuation request.
type Command int

const (
	// None is an unrecognised or empty payload.
	None Command = iota
	// On drives the output high.
	On
	// Off drives the output low.
	Off
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case None:
		return "none"
	case On:
		return "on"
	case Off:
		return "off"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// Level returns the output level for c. ok is false for None.
func (c Command) Level() (level int, ok bool) {
	switch c {
	case On:
		return 1, true
	case Off:
		return 0, true
	default:
		return 0, false
	}
}

// Parse decodes payload by its first byte.
func Parse(payload []byte) Command {
	if len(payload) == 0 {
		return None
	}
	switch payload[0] {
	case '1':
		return On
	case '0':
		return Off
	default:
		return None
	}
}
