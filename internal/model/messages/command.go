package messages

// Command is a panel request delivered over MQTT on cmd/garden/<name>.
type Command struct {
	ID       string  `json:"id,omitempty"`
	Flag     string  `json:"flag,omitempty"`     // set-automation: water | fertilize | fertpump
	Value    bool    `json:"value,omitempty"`    // set-automation / override
	Actuator string  `json:"actuator,omitempty"` // override: line0..line5 | tap | pump | fertvalve
	Line     int     `json:"line,omitempty"`     // hack-mode
	Mode     string  `json:"mode,omitempty"`     // hack-mode
	ML       float64 `json:"ml,omitempty"`       // dispense
}
