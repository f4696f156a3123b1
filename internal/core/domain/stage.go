package domain

// Stage identifies one of the three sequential filtering passes.
type Stage int

const (
	Stage1 Stage = 1
	Stage2 Stage = 2
	Stage3 Stage = 3
)

func (s Stage) String() string {
	switch s {
	case Stage1:
		return "stage1"
	case Stage2:
		return "stage2"
	case Stage3:
		return "stage3"
	default:
		return "unknown"
	}
}

// CustomField is a user-defined piece of analysis extracted at stage 3.
type CustomField struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// StageConfig holds the knobs for one filtering stage. It is loaded once
// per run and participates in the cache fingerprint, so any change here
// invalidates previously cached results for the stage.
type StageConfig struct {
	Threshold   float64 `yaml:"threshold"`
	Temperature float64 `yaml:"temperature"`

	// Stage 3 only.
	MaxTextChars int           `yaml:"max_text_chars"`
	CustomFields []CustomField `yaml:"custom_fields"`
}

// Message is one role-tagged entry of a reasoning-service conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage holds token counts as reported by the reasoning service. Counts
// are nullable because some providers omit them.
type Usage struct {
	PromptTokens     *int `json:"prompt_tokens"`
	CompletionTokens *int `json:"completion_tokens"`
	TotalTokens      *int `json:"total_tokens"`
}

// Completion is a single raw reasoning-service response.
type Completion struct {
	Content       string
	Usage         *Usage
	EstimatedCost *float64
	Currency      string
}

// StageResult is the write-once verdict for one (paper, stage) pair.
// Once cached it is never mutated, only superseded under a new key.
type StageResult struct {
	Pass      bool      `json:"pass"`
	Score     float64   `json:"score"`
	Reasoning string    `json:"reasoning"`
	Messages  []Message `json:"messages"`

	Usage         *Usage   `json:"usage"`
	EstimatedCost *float64 `json:"estimated_cost"`
	CostCurrency  *string  `json:"estimated_cost_currency"`

	// Cached marks results answered from the cache. It is transient:
	// excluded from both the cache value and the exported document.
	Cached bool `json:"-"`

	// Stage 3 only.
	NoveltyScore float64           `json:"novelty_score,omitempty"`
	ImpactScore  float64           `json:"impact_score,omitempty"`
	QualityScore float64           `json:"quality_score,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

// Highlight is the emphasised rendition of an abstract, produced for
// papers that survive stage 3.
type Highlight struct {
	Text          string    `json:"highlighted_text"`
	Messages      []Message `json:"messages"`
	Usage         *Usage    `json:"usage"`
	EstimatedCost *float64  `json:"estimated_cost"`
	CostCurrency  *string   `json:"estimated_cost_currency"`
}
