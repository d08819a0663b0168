package irrigation_controller

import (
	"time"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
)

type ValveView struct {
	Line      string `json:"line"`
	Desired   string `json:"desired"`
	Confirmed string `json:"confirmed"` // on | off | unknown
	Driving   bool   `json:"driving"`
	HackMode  string `json:"hack_mode"`
}

// Snapshot is the display-facing view of the engine, refreshed every second
// tick and after every command. It stays readable while a dispense holds the
// engine.
type Snapshot struct {
	Days                  [LedgerDays]entities.DayRecord `json:"days"`
	TankLevelPercent      float64                        `json:"tank_level_percent"`
	Temperature           *float64                       `json:"temperature,omitempty"`
	Switches              entities.Switches              `json:"switches"`
	Valves                [entities.LineCount]ValveView  `json:"valves"`
	Watering              bool                           `json:"watering"`
	WateringCursor        int                            `json:"watering_cursor"`
	Fertilizing           bool                           `json:"fertilizing"`
	FertilizingPhase      string                         `json:"fertilizing_phase"`
	FertilizingRepetition int                            `json:"fertilizing_repetition"`
	Dispensing            bool                           `json:"dispensing"`
	SpinOwner             int                            `json:"spin_owner"`
	RelayCooldown         int                            `json:"relay_cooldown"`
	NextWatering          time.Time                      `json:"next_watering"`
	NextFertilizing       time.Time                      `json:"next_fertilizing"`
	UpdatedAt             time.Time                      `json:"updated_at"`
}

// Snapshot returns the latest published view.
func (c *Controller) Snapshot() Snapshot {
	s := *c.snapshot.Load()
	s.Dispensing = c.dispensing.Load()
	return s
}

// publishSnapshot must be called with mu held.
func (c *Controller) publishSnapshot(now Instant) {
	s := &Snapshot{
		Days:                  c.ledger.Days(),
		TankLevelPercent:      c.tankPct,
		Switches:              c.switches,
		Watering:              c.watering.Active(),
		WateringCursor:        c.watering.Cursor(),
		Fertilizing:           c.fertilizing.Active(),
		FertilizingPhase:      c.fertilizing.Phase().String(),
		FertilizingRepetition: c.fertilizing.Repetition(),
		SpinOwner:             -1,
		RelayCooldown:         c.gate.Cooldown(),
		UpdatedAt:             now.Time(c.loc),
	}
	if c.tempKnown {
		t := c.temperature
		s.Temperature = &t
	}
	if owner, held := c.lock.Owner(); held {
		s.SpinOwner = int(owner)
	}
	if n := c.wateringAt.Next(); n > 0 {
		s.NextWatering = time.Unix(n, 0).In(c.loc)
	}
	if n := c.fertAt.Next(); n > 0 {
		s.NextFertilizing = time.Unix(n, 0).In(c.loc)
	}
	for _, l := range entities.Lines() {
		open, known := c.solenoids.Confirmed(l)
		confirmed := "unknown"
		if known {
			confirmed = string(entities.StateOf(open))
		}
		s.Valves[l] = ValveView{
			Line:      l.String(),
			Desired:   string(entities.StateOf(c.solenoids.Desired(l))),
			Confirmed: confirmed,
			Driving:   c.solenoids.Driving(l),
			HackMode:  c.hacks.Mode(l).String(),
		}
	}
	c.snapshot.Store(s)
}
