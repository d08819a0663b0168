package irrigation_controller

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
	"gopkg.in/yaml.v3"
)

const (
	defaultTZ                  = "Europe/Rome"
	defaultWateringSchedule    = "0 0 8 * * *"
	defaultFertilizingSchedule = "0 0 16 * * 0"
)

// Config is the controller configuration: defaults, then the YAML file, then
// environment overrides.
type Config struct {
	FieldID             string                                  `yaml:"field_id"`
	Timezone            string                                  `yaml:"timezone"`
	Lines               [entities.LineCount]entities.LineConfig `yaml:"lines"`
	Pins                PinMap                                  `yaml:"pins"`
	WateringSchedule    string                                  `yaml:"watering_schedule"`
	FertilizingSchedule string                                  `yaml:"fertilizing_schedule"`
	RelayCooldownSecs   int                                     `yaml:"relay_cooldown_seconds"`
	TankHeightCm        float64                                 `yaml:"tank_height_cm"`
	TankPingEverySecs   int                                     `yaml:"tank_ping_every_seconds"`
	PumpRateMLPerSec    float64                                 `yaml:"pump_rate_ml_per_sec"`
	DispenseSettle      time.Duration                           `yaml:"dispense_settle"`
	DispenseFlush       time.Duration                           `yaml:"dispense_flush"`
	TickInterval        time.Duration                           `yaml:"tick_interval"`
	DefaultSwitches     entities.Switches                       `yaml:"default_switches"`
}

func DefaultLineConfig() entities.LineConfig {
	return entities.LineConfig{
		DesiredLevel:           20,
		BufferSize:             60,
		RainCoefficient:        27,
		TemperatureCoefficient: -9,
		MaxRain:                20,
		FertilizeSeconds:       30,
	}
}

func DefaultConfig() Config {
	c := Config{
		FieldID:             "garden",
		Timezone:            defaultTZ,
		Pins:                DefaultPinMap(),
		WateringSchedule:    defaultWateringSchedule,
		FertilizingSchedule: defaultFertilizingSchedule,
		RelayCooldownSecs:   2,
		TankHeightCm:        120,
		TankPingEverySecs:   10,
		PumpRateMLPerSec:    2.5,
		DispenseSettle:      5 * time.Second,
		DispenseFlush:       30 * time.Second,
		TickInterval:        50 * time.Millisecond,
		DefaultSwitches:     entities.Switches{Water: true},
	}
	for i := range c.Lines {
		c.Lines[i] = DefaultLineConfig()
	}
	return c
}

// LoadConfig reads path (optional, "" skips it) over the defaults and then
// applies the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Printf("config: %s not found, using defaults", path)
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.FieldID = env("FIELD_ID", c.FieldID)
	c.Timezone = env("TZ", c.Timezone)
	c.WateringSchedule = env("WATERING_SCHEDULE", c.WateringSchedule)
	c.FertilizingSchedule = env("FERTILIZING_SCHEDULE", c.FertilizingSchedule)
	c.RelayCooldownSecs = envInt("RELAY_COOLDOWN_SECONDS", c.RelayCooldownSecs)
	c.TankHeightCm = getenvFloat("TANK_HEIGHT_CM", c.TankHeightCm)
	c.TankPingEverySecs = envInt("TANK_PING_EVERY_SECONDS", c.TankPingEverySecs)
	c.PumpRateMLPerSec = getenvFloat("PUMP_RATE_ML_PER_SEC", c.PumpRateMLPerSec)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.FieldID) == "" {
		return errors.New("config: field_id is empty")
	}
	if _, err := scheduleParser.Parse(c.WateringSchedule); err != nil {
		return fmt.Errorf("config: watering_schedule: %w", err)
	}
	if _, err := scheduleParser.Parse(c.FertilizingSchedule); err != nil {
		return fmt.Errorf("config: fertilizing_schedule: %w", err)
	}
	if c.RelayCooldownSecs < 0 {
		return fmt.Errorf("config: relay_cooldown_seconds %d < 0", c.RelayCooldownSecs)
	}
	if c.TankHeightCm <= 0 {
		return fmt.Errorf("config: tank_height_cm must be positive")
	}
	if c.PumpRateMLPerSec <= 0 {
		return fmt.Errorf("config: pump_rate_ml_per_sec must be positive")
	}
	return nil
}

// Location resolves the configured timezone, falling back to local time.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(firstNonEmpty(c.Timezone, defaultTZ))
	if err != nil {
		log.Printf("WARN: invalid TZ=%q, falling back to local: %v", c.Timezone, err)
		return time.Local
	}
	return loc
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(k string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil {
		return def
	}
	return f
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
