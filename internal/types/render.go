package types

import "strings"

// Stage is a state of the render state machine.
type Stage string

const (
	StageStart          Stage = "START"
	StageFingerprinting Stage = "FINGERPRINTING"
	StageCacheHit       Stage = "CACHE_HIT"
	StageAnalyzing      Stage = "ANALYZING"
	StageCompiling      Stage = "COMPILING"
	StageSerializing    Stage = "SERIALIZING"
	StageEncoding       Stage = "ENCODING"
	StageDone           Stage = "DONE"
	StageFailed         Stage = "FAILED"
)

func (s Stage) String() string { return strings.ToLower(string(s)) }

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is a single progress notification of a render.
type Event struct {
	Stage   Stage
	Level   Level
	Message string
	Detail  string
	// Enter is set only on the one event announcing entry into Stage.
	Enter bool
}

type Observer func(Event)

// Notify calls o if it is set.
func (o Observer) Notify(ev Event) {
	if o != nil {
		o(ev)
	}
}
