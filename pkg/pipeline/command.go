package pipeline

import "fmt"

// Command is a scaling request left in a node's mailbox. Commands pushed on
// node P are consumed by the workers of the nodes whose predecessor is P.
type Command uint8

const (
	// NoOp is ignored by workers.
	NoOp Command = iota
	// ScaleUp asks for one more worker instance.
	ScaleUp
	// ScaleDown asks for one fewer worker instance.
	ScaleDown
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case NoOp:
		return "noop"
	case ScaleUp:
		return "scale_up"
	case ScaleDown:
		return "scale_down"
	default:
		return fmt.Sprintf("command(%d)", uint8(c))
	}
}

// ParseCommand converts a command name produced by String back into a Command.
func ParseCommand(s string) (Command, error) {
	switch s {
	case "noop", "":
		return NoOp, nil
	case "scale_up", "up":
		return ScaleUp, nil
	case "scale_down", "down":
		return ScaleDown, nil
	default:
		return NoOp, fmt.Errorf("pipeline: unknown command %q", s)
	}
}
