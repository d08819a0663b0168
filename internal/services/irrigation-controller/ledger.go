package irrigation_controller

import (
	"time"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
)

// LedgerDays is the size of the rolling history window.
const LedgerDays = 3

// Ledger is the rolling three-day history: index 0 oldest, index 2 today.
type Ledger struct {
	days [LedgerDays]entities.DayRecord
}

func NewLedger(today time.Weekday) *Ledger {
	l := &Ledger{}
	l.days[LedgerDays-1].Weekday = today
	return l
}

// Rotate shifts the window and opens a fresh record for today. It returns
// the record that was current until now.
func (l *Ledger) Rotate(today time.Weekday) entities.DayRecord {
	closed := l.days[LedgerDays-1]
	copy(l.days[:], l.days[1:])
	l.days[LedgerDays-1] = entities.DayRecord{Weekday: today}
	return closed
}

func (l *Ledger) Current() *entities.DayRecord { return &l.days[LedgerDays-1] }

func (l *Ledger) Yesterday() entities.DayRecord { return l.days[LedgerDays-2] }

func (l *Ledger) Days() [LedgerDays]entities.DayRecord { return l.days }
