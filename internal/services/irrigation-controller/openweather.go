package irrigation_controller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

type owmCurrent struct {
	Current struct {
		Dt   int64   `json:"dt"`
		Temp float64 `json:"temp"`
	} `json:"current"`
}

// OWMTemperature is a TemperatureSensor backed by OpenWeatherMap. Refresh runs
// in its own goroutine; ReadCelsius only returns the cached value so the tick
// never waits on the network.
type OWMTemperature struct {
	apiKey   string
	lat, lon float64
	maxAge   time.Duration
	baseURL  string
	client   *http.Client

	mu   sync.RWMutex
	temp float64
	at   time.Time
}

func NewOWMTemperature(key string, lat, lon float64, maxAge time.Duration) *OWMTemperature {
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	return &OWMTemperature{
		apiKey:  key,
		lat:     lat,
		lon:     lon,
		maxAge:  maxAge,
		baseURL: "https://api.openweathermap.org/data/3.0/onecall",
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *OWMTemperature) ReadCelsius() (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.at.IsZero() || time.Since(c.at) > c.maxAge {
		return 0, ErrNoTemperature
	}
	return c.temp, nil
}

// Run refreshes the reading every interval until ctx is done.
func (c *OWMTemperature) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 10 * time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		if err := c.Refresh(ctx); err != nil {
			log.Printf("weather: refresh: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (c *OWMTemperature) Refresh(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("missing api key")
	}
	url := fmt.Sprintf("%s?lat=%f&lon=%f&exclude=minutely,hourly,daily,alerts&units=metric&appid=%s", c.baseURL, c.lat, c.lon, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("owm status %d: %s", resp.StatusCode, string(b))
	}
	var out owmCurrent
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	c.mu.Lock()
	c.temp = out.Current.Temp
	c.at = time.Now()
	c.mu.Unlock()
	return nil
}
