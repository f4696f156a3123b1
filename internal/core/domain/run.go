package domain

import "time"

// PaperOutcome aggregates a paper's results across stages. Stage1 is
// always present once the pipeline has run; Stage2 exists iff stage 1
// passed; Stage3 exists iff stage 2 passed.
type PaperOutcome struct {
	Paper  Paper
	Stage1 *StageResult
	Stage2 *StageResult
	Stage3 *StageResult

	// Highlight is set for papers that passed stage 3 when the
	// highlighter is enabled.
	Highlight *Highlight
}

// MaxStage returns the highest stage the paper reached: 0 when stage 1
// failed, 1 when stage 2 failed, and 3 once stage 3 was evaluated at
// all — a failing stage 3 still counts as reached.
func (o PaperOutcome) MaxStage() int {
	switch {
	case o.Stage1 == nil || !o.Stage1.Pass:
		return 0
	case o.Stage3 != nil:
		return 3
	case o.Stage2 != nil && o.Stage2.Pass:
		return 2
	default:
		return 1
	}
}

// BestScore is the score of the deepest evaluated stage, used for
// ordering papers in the exported digest.
func (o PaperOutcome) BestScore() float64 {
	switch {
	case o.Stage3 != nil:
		return o.Stage3.Score
	case o.Stage2 != nil:
		return o.Stage2.Score
	case o.Stage1 != nil:
		return o.Stage1.Score
	default:
		return 0
	}
}

// RunStats are cohort counts derived from the final outcome list.
type RunStats struct {
	TotalPapers  int `json:"total_papers"`
	Stage1Passed int `json:"stage1_passed"`
	Stage2Passed int `json:"stage2_passed"`
	Stage3Passed int `json:"stage3_passed"`
}

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// DigestRun tracks one execution of the filtering pipeline.
type DigestRun struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Digest is the final run artifact handed to export: outcomes, derived
// statistics and the configuration echo the presentation layer needs.
type Digest struct {
	RunID       string
	Title       string
	GeneratedAt time.Time
	UserPrompt  string
	Categories  []string
	MaxResults  int
	Model       string
	Temperature float64
	Stage1      StageConfig
	Stage2      StageConfig
	Stage3      StageConfig
	Outcomes    []PaperOutcome
	Stats       RunStats
}
