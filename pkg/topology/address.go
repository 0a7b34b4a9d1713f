package topology

import "fmt"

// Address locates a node in the topology space.
type Address struct {
	X uint
	Y uint
	Z uint
}

// Less orders addresses lexicographically by x, then y, then z.
func (a Address) Less(b Address) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

// Compare returns -1, 0 or +1 following the order of Less.
func (a Address) Compare(b Address) int {
	switch {
	case a == b:
		return 0
	case a.Less(b):
		return -1
	default:
		return 1
	}
}

// String renders the address as "[x:y:z]", which is also the default node name.
func (a Address) String() string {
	return fmt.Sprintf("[%d:%d:%d]", a.X, a.Y, a.Z)
}

// ParseAddress reads an address in the "[x:y:z]" form produced by String.
func ParseAddress(s string) (Address, error) {
	var a Address
	if _, err := fmt.Sscanf(s, "[%d:%d:%d]", &a.X, &a.Y, &a.Z); err != nil {
		return Address{}, fmt.Errorf("topology: parse address %q: %w", s, err)
	}
	return a, nil
}
