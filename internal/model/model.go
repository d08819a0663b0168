package model

import (
	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
	"github.com/LeonardoBeccarini/garden_controller/internal/model/messages"
)

// Shorthands for the types shared by the services.

type (
	Line                = entities.Line
	LineConfig          = entities.LineConfig
	Switches            = entities.Switches
	HackMode            = entities.HackMode
	DayRecord           = entities.DayRecord
	ValveState          = entities.ValveState
	StateChangeEvent    = messages.StateChangeEvent
	DosageDecisionEvent = messages.DosageDecisionEvent
	CycleEvent          = messages.CycleEvent
	DayRecordEvent      = messages.DayRecordEvent
	Command             = messages.Command
)

const (
	LineCount = entities.LineCount
	StateOn   = entities.StateOn
	StateOff  = entities.StateOff
)

var ParseHackMode = entities.ParseHackMode
