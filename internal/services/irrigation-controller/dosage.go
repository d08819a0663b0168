package irrigation_controller

import (
	"math"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
)

// DosageModel turns yesterday's weather into a per-line watering time.
//
//	delta = min(maxRain, rain)*rainCoef + maxTemp*tempCoef
//	dose  = max(0, round(desired - (tally + delta)))   [seconds]
//
// The tally is seeded with each line's desired level at boot and stays fixed.
type DosageModel struct {
	lines [entities.LineCount]entities.LineConfig
	tally [entities.LineCount]float64
}

func NewDosageModel(lines [entities.LineCount]entities.LineConfig) *DosageModel {
	m := &DosageModel{lines: lines}
	for i, lc := range lines {
		m.tally[i] = lc.DesiredLevel
	}
	return m
}

func (m *DosageModel) Delta(l entities.Line, rec entities.DayRecord) float64 {
	lc := m.lines[l]
	maxRain := lc.MaxRain
	if maxRain < 0 {
		maxRain = 0
	}
	rain := rec.RainfallEventCount
	if rain > maxRain {
		rain = maxRain
	}
	return float64(rain)*lc.RainCoefficient + rec.MaxTemperature*lc.TemperatureCoefficient
}

func (m *DosageModel) Dose(l entities.Line, rec entities.DayRecord) int {
	d := math.Round(m.lines[l].DesiredLevel - (m.tally[l] + m.Delta(l, rec)))
	if d < 0 {
		return 0
	}
	return int(d)
}

func (m *DosageModel) Tally(l entities.Line) float64 { return m.tally[l] }

func (m *DosageModel) Buffer(l entities.Line) float64 { return m.lines[l].BufferSize }
