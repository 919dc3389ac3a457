// Package ai wraps the generative-language providers behind the wellness
// companion chat. Providers are interchangeable through TextGenerator.
package ai

import "context"

// TextGenerator generates text from a system prompt and user prompt.
// All LLM providers (Gemini, OpenAI-compatible) implement this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// defaultMaxReplyTokens bounds chat replies so a runaway completion
// cannot blow up response latency or provider cost.
const defaultMaxReplyTokens = 512
