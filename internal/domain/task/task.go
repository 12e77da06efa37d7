package task

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the externally visible lifecycle of a Task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Task is one objective bound to a working tree. It is created by the caller
// and mutated only by the engine at phase boundaries.
type Task struct {
	ID            string
	Objective     string
	WorkDir       string
	MaxIterations int
	Timeout       time.Duration
	Status        Status
	Output        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// New creates a pending task with a fresh id.
func New(objective, workDir string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        uuid.NewString(),
		Objective: strings.TrimSpace(objective),
		WorkDir:   workDir,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Role classifies a transcript turn.
type Role string

const (
	RoleSystem Role = "system"    // objective / engine guidance
	RoleOracle Role = "assistant" // oracle output
	RoleResult Role = "tool"      // action result
)

// Turn is one append-only transcript record. Never mutated after creation.
type Turn struct {
	Seq       int
	Role      Role
	Content   string
	Actions   []ActionRecord
	CreatedAt time.Time
}

// ActionRecord is the transcript-facing shadow of an action proposal.
type ActionRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Transcript is the totally ordered turn sequence owned by one run.
type Transcript struct {
	turns []Turn
}

// Append adds a turn with the next sequence number and returns it.
func (t *Transcript) Append(role Role, content string, actions []ActionRecord) Turn {
	turn := Turn{
		Seq:       len(t.turns),
		Role:      role,
		Content:   content,
		Actions:   actions,
		CreatedAt: time.Now().UTC(),
	}
	t.turns = append(t.turns, turn)
	return turn
}

// Turns returns a copy of the turn slice; the backing array stays private so
// the append-only invariant holds.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len reports the number of turns.
func (t *Transcript) Len() int { return len(t.turns) }

// Run is one execution attempt of a Task.
type Run struct {
	ID             string
	TaskID         string
	Phase          Phase
	Iteration      int
	OracleFailures int
	ToolCalls      int
	LastError      string
	Transcript     Transcript
	StartedAt      time.Time
}

// NewRun seeds a run in Planning with the objective as the first turn.
func NewRun(t *Task) *Run {
	run := &Run{
		ID:        uuid.NewString(),
		TaskID:    t.ID,
		Phase:     PhasePlanning,
		StartedAt: time.Now().UTC(),
	}
	run.Transcript.Append(RoleSystem, t.Objective, nil)
	return run
}

// Summary is the structured outcome returned by the top-level run call.
// It is always produced, whatever the terminal phase.
type Summary struct {
	TaskID     string
	RunID      string
	Phase      Phase
	Iterations int
	ToolCalls  int
	Output     string
	LastError  string
	Duration   time.Duration
}
