package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported run stages.
const (
	StageRunStart Stage = "RUN_START"
	StageProgress Stage = "PROGRESS"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
)

// Event captures a single step of a worker run.
type Event struct {
	// RunID identifies one client run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// WorkerType is the registered type name of the worker being driven.
	WorkerType string
	// Iteration is the 1-based notification index for progress events.
	Iteration int
	// Message is the progress text delivered to the handler.
	Message string
	// Dur is the run wall time on completion events.
	Dur time.Duration
	// Note carries error text for failed runs.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageProgress:
		if e.Iteration <= 0 {
			return errors.New("progress requires a positive iteration")
		}
	case StageRunError:
		if e.Note == "" {
			return errors.New("run error requires a note")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
