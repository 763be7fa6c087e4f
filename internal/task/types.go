package task

import "time"

type Step string

const (
	StepCheckDone Step = "check_done"
	StepStage     Step = "stage"
	StepFetch     Step = "fetch"
	StepNormalize Step = "normalize"
	StepCompute   Step = "compute"
	StepPublish   Step = "publish"
	StepCleanup   Step = "cleanup"
)

type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

type Options struct {
	StagingRoot  string
	Executable   string
	ModelPath    string
	MaxDimension int
	Env          map[string]string
	Mapper       Mapper
}

// Summary counts what a run has done so far.
type Summary struct {
	Received  int       `json:"received"`
	Completed int       `json:"completed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Current   string    `json:"current,omitempty"`
	LastTask  string    `json:"last_task,omitempty"`
	StartedAt time.Time `json:"started_at"`
}
