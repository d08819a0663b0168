package entities

// Switches are the operator automation toggles persisted in non-volatile storage.
type Switches struct {
	Water     bool `json:"water" yaml:"water"`
	Fertilize bool `json:"fertilize" yaml:"fertilize"`
	FertPump  bool `json:"fert_pump" yaml:"fert_pump"`
}

const (
	switchWater byte = 1 << iota
	switchFertilize
	switchFertPump
)

// Pack encodes the switches into the single stored byte.
func (s Switches) Pack() byte {
	var b byte
	if s.Water {
		b |= switchWater
	}
	if s.Fertilize {
		b |= switchFertilize
	}
	if s.FertPump {
		b |= switchFertPump
	}
	return b
}

func UnpackSwitches(b byte) Switches {
	return Switches{
		Water:     b&switchWater != 0,
		Fertilize: b&switchFertilize != 0,
		FertPump:  b&switchFertPump != 0,
	}
}
