package usecase

import (
	"fmt"
	"strings"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
)

const stage1System = `You are an expert at quickly screening academic papers for relevance.
Your task is to determine if a paper is potentially relevant based ONLY on its title and categories.
This is a fast preliminary filter - be generous in passing papers that might be relevant.
Respond with a strict JSON object with keys: score (number from 0 to 1), reasoning (string). No markdown, no extra keys.`

const stage2System = `You are an expert at evaluating academic paper relevance.
Your task is to determine if a paper is relevant based on its metadata and abstract.
Respond with a strict JSON object with keys: score (number from 0 to 1), reasoning (string). No markdown, no extra keys.`

const stage3System = `You are an expert at deeply analyzing academic papers.
Your task is to thoroughly evaluate the paper's relevance, novelty, impact, and quality.
Respond with a strict JSON object with keys: score, novelty_score, impact_score, quality_score (numbers from 0 to 1), reasoning (string), custom_fields (object mapping field name to extracted text). No markdown, no extra keys.`

const highlightSystem = `You highlight the key points of academic paper abstracts.
Rewrite the abstract verbatim, emphasising important technical terms, methods, results and contributions with **markdown bold**. Do not add or remove sentences.
Respond with a strict JSON object with one key: highlighted_text (string). No markdown fences, no extra keys.`

// buildStageMessages assembles the conversation for one stage. Only the
// fields visible at that stage appear in the prompt, mirroring what the
// fingerprint hashes.
func buildStageMessages(stage domain.Stage, paper domain.Paper, fullText, userPrompt string, cfg domain.StageConfig) []domain.Message {
	switch stage {
	case domain.Stage1:
		return []domain.Message{
			{Role: "system", Content: stage1System},
			{Role: "user", Content: fmt.Sprintf(`User's interests: %s

Paper Information:
- Title: %s
- Categories: %s

Is this paper potentially relevant? Provide a quick assessment.`,
				userPrompt, paper.Title, strings.Join(paper.Categories, ", "))},
		}

	case domain.Stage2:
		return []domain.Message{
			{Role: "system", Content: stage2System},
			{Role: "user", Content: fmt.Sprintf(`User's interests: %s

Paper Information:
- Title: %s
- Authors: %s
- Categories: %s
- Abstract: %s

Evaluate this paper's relevance to the user's interests.`,
				userPrompt, paper.Title, strings.Join(paper.Authors, ", "),
				strings.Join(paper.Categories, ", "), paper.Abstract)},
		}

	default:
		var fields strings.Builder
		if len(cfg.CustomFields) > 0 {
			fields.WriteString("\n\nExtract the following custom fields by name:")
			for _, f := range cfg.CustomFields {
				fmt.Fprintf(&fields, "\n- %s: %s", f.Name, f.Description)
			}
		}

		return []domain.Message{
			{Role: "system", Content: stage3System},
			{Role: "user", Content: fmt.Sprintf(`User's interests: %s

Paper Information:
- Title: %s
- Authors: %s
- Categories: %s
- Abstract: %s

Full Paper Content (first %d chars):
%s

Provide a comprehensive analysis including:
1. Overall relevance score
2. Novelty score (how original is the work?)
3. Impact score (potential significance?)
4. Quality score (technical soundness?)
5. Detailed reasoning for your assessment%s`,
				userPrompt, paper.Title, strings.Join(paper.Authors, ", "),
				strings.Join(paper.Categories, ", "), paper.Abstract,
				cfg.MaxTextChars, truncate(fullText, cfg.MaxTextChars), fields.String())},
		}
	}
}

func buildHighlightMessages(abstract, userPrompt string) []domain.Message {
	system := highlightSystem
	if strings.TrimSpace(userPrompt) != "" {
		system += "\n\nThe reader cares about: " + userPrompt
	}
	return []domain.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: "Please highlight the key points in this abstract:\n\n" + abstract},
	}
}
