package device

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	// coolestHour is when the diurnal curve bottoms out.
	coolestHour = 5.0
	// rainChancePerMin is the chance a dry minute turns rainy.
	rainChancePerMin = 0.002
	// rainStopPerMin is the chance a rainy minute turns dry.
	rainStopPerMin = 0.05
)

// Weather drives the simulated air temperature and rain sensor.
type Weather struct {
	mu      sync.Mutex
	board   *Board
	min     float64
	max     float64
	noise   float64
	now     func() time.Time
	rng     *rand.Rand
	raining bool
	last    time.Time
}

func NewWeather(board *Board, minC, maxC float64, seed int64) *Weather {
	if maxC < minC {
		minC, maxC = maxC, minC
	}
	return &Weather{
		board: board,
		min:   minC,
		max:   maxC,
		noise: 0.3,
		now:   time.Now,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// ReadCelsius follows a sine between min and max, coolest at 05:00.
func (w *Weather) ReadCelsius() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := w.now()
	hour := float64(t.Hour()) + float64(t.Minute())/60
	phase := (hour - coolestHour) / 24 * 2 * math.Pi
	mid := (w.min + w.max) / 2
	amp := (w.max - w.min) / 2
	v := mid - amp*math.Cos(phase) + (w.rng.Float64()*2-1)*w.noise
	return math.Round(v*10) / 10, nil
}

// Raining reports the current simulated rain state.
func (w *Weather) Raining() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.raining
}

// advance rolls the rain state once per elapsed minute.
func (w *Weather) advance() {
	w.mu.Lock()
	now := w.now()
	if w.last.IsZero() {
		w.last = now
	}
	for ; !w.last.Add(time.Minute).After(now); w.last = w.last.Add(time.Minute) {
		if w.raining {
			w.raining = w.rng.Float64() >= rainStopPerMin
		} else {
			w.raining = w.rng.Float64() < rainChancePerMin
		}
	}
	raining := w.raining
	w.mu.Unlock()
	w.board.SetRain(raining)
}

// Run steps the board physics and the weather every interval until ctx is
// done.
func (w *Weather) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.board.Step()
			w.advance()
		}
	}
}
