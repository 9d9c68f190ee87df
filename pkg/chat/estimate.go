package chat

import (
	"strings"
	"unicode/utf16"

	"github.com/papercomputeco/portal/pkg/gateway"
)

// EstimateTokens approximates a token count as one token per four UTF-16
// code units of trimmed text, with a floor of one. Blank text is zero.
//
// This is only used for the non-streaming endpoint, which reports no usage.
func EstimateTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	units := len(utf16.Encode([]rune(trimmed)))
	return max(1, (units+3)/4)
}

// estimateUsage builds usage for a non-streaming exchange. The prompt side
// counts the system and user prompts joined by a space.
func estimateUsage(system, user, completion string) *gateway.Usage {
	prompt := EstimateTokens(strings.TrimSpace(system) + " " + strings.TrimSpace(user))
	compl := EstimateTokens(completion)
	return &gateway.Usage{
		PromptTokens:     prompt,
		CompletionTokens: compl,
		TotalTokens:      prompt + compl,
	}
}
