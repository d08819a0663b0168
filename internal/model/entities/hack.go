package entities

import (
	"fmt"
	"strings"
)

// HackMode is the operating mode of a per-line auxiliary timer.
type HackMode int

const (
	HackOff HackMode = iota
	HackOn
	HackTimer10
	HackTimer20
	HackTimer10Weekly
	HackTimer20Weekly
)

var hackModeNames = [...]string{"off", "on", "timer10", "timer20", "timer10weekly", "timer20weekly"}

func (m HackMode) String() string {
	if m < 0 || int(m) >= len(hackModeNames) {
		return fmt.Sprintf("HackMode(%d)", int(m))
	}
	return hackModeNames[m]
}

func ParseHackMode(s string) (HackMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range hackModeNames {
		if n == s {
			return HackMode(i), nil
		}
	}
	return HackOff, fmt.Errorf("unknown hack timer mode %q", s)
}

// OnSeconds is how long a timed mode keeps the line open; 0 for Off/On.
func (m HackMode) OnSeconds() int64 {
	switch m {
	case HackTimer10, HackTimer10Weekly:
		return 600
	case HackTimer20, HackTimer20Weekly:
		return 1200
	}
	return 0
}

func (m HackMode) Weekly() bool { return m == HackTimer10Weekly || m == HackTimer20Weekly }

func (m HackMode) Timed() bool { return m.OnSeconds() > 0 }
