package entities

import "fmt"

// LineCount is the number of independently valved irrigation lines.
const LineCount = 6

// Line identifies one of the valved outputs (0..LineCount-1).
type Line int

func (l Line) Valid() bool { return l >= 0 && l < LineCount }

func (l Line) String() string { return fmt.Sprintf("line%d", int(l)) }

// Lines returns every line in ascending order.
func Lines() []Line {
	out := make([]Line, LineCount)
	for i := range out {
		out[i] = Line(i)
	}
	return out
}
