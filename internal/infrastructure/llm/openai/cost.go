package openai

import "strings"

// DeepSeek list prices per million tokens, in CNY.
const (
	deepseekPromptPricePerM     = 2.0
	deepseekCompletionPricePerM = 3.0
)

// estimateCost derives the call cost from token counts for models with
// known pricing. Unknown models report no cost rather than a wrong one.
func estimateCost(model string, promptTokens, completionTokens int) (*float64, string) {
	if !strings.HasPrefix(strings.ToLower(model), "deepseek") {
		return nil, ""
	}
	cost := float64(promptTokens)/1_000_000*deepseekPromptPricePerM +
		float64(completionTokens)/1_000_000*deepseekCompletionPricePerM
	return &cost, "CNY"
}
