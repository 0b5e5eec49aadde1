package models

// Stage is a step of the per-request pipeline.
type Stage int

const (
	StageReceived Stage = iota
	StageContextBuilt
	StageAgentsDispatched
	StageAgentsCollected
	StageSynthesized
	StagePersonaApplied
	StageMemoryWriteAttempted
	StageResponded
	StageFailed
)

var stageNames = [...]string{
	"received",
	"context_built",
	"agents_dispatched",
	"agents_collected",
	"synthesized",
	"persona_applied",
	"memory_write_attempted",
	"responded",
	"failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a stage name. Unknown names decode as StageFailed.
func (s *Stage) UnmarshalText(b []byte) error {
	for i, name := range stageNames {
		if name == string(b) {
			*s = Stage(i)
			return nil
		}
	}
	*s = StageFailed
	return nil
}
