package budget

import (
	"math"
	"strings"
	"unicode/utf8"
)

// charsPerToken is the conservative heuristic used for every estimate.
// French economic prose tokenizes slightly worse than English, so round up.
const charsPerToken = 4.0

// EstimateTokensFromChars converts a character count into an estimated token
// count. The result is at least 1 when chars > 0.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / charsPerToken))
}

// EstimateTokens returns the estimated token count of s, counted in runes.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(utf8.RuneCountInString(s))
}

// EstimatePromptTokens estimates a system message, a user message and any
// number of excerpts.
func EstimatePromptTokens(system, user string, excerpts ...string) int {
	total := EstimateTokens(system) + EstimateTokens(user)
	for _, ex := range excerpts {
		total += EstimateTokens(ex)
	}
	return total
}

// ModelContextTokens returns an estimated context window for a model name.
// Unknown models get 8192.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return 8192
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	for _, s := range []struct {
		suffix string
		tokens int
	}{{"1m", 1_000_000}, {"200k", 200_000}, {"128k", 128_000}, {"32k", 32_768}, {"16k", 16_384}} {
		if strings.HasSuffix(name, s.suffix) {
			return s.tokens
		}
	}
	if strings.Contains(name, "-mini") {
		return 128_000
	}
	return 8192
}

// HeadroomTokens is the safety margin subtracted from the context window:
// the larger of 5% of the window or 512 tokens.
func HeadroomTokens(modelName string) int {
	dyn := int(math.Ceil(float64(ModelContextTokens(modelName)) * 0.05))
	if dyn < 512 {
		return 512
	}
	return dyn
}

// RemainingContext is the input budget left after reserving output tokens,
// headroom and the fixed part of the prompt. Never negative.
func RemainingContext(modelName string, reservedForOutput, promptTokens int) int {
	if reservedForOutput < 0 {
		reservedForOutput = 0
	}
	rem := ModelContextTokens(modelName) - HeadroomTokens(modelName) - reservedForOutput - promptTokens
	if rem < 0 {
		return 0
	}
	return rem
}

// ExcerptChars returns how many characters of page excerpt fit the model,
// never more than hardCap.
func ExcerptChars(modelName string, reservedForOutput, promptTokens, hardCap int) int {
	chars := RemainingContext(modelName, reservedForOutput, promptTokens) * int(charsPerToken)
	if hardCap > 0 && chars > hardCap {
		return hardCap
	}
	return chars
}

// Truncate cuts s to at most maxChars runes, preferring the last whitespace
// boundary in the final tenth of the allowance.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	cut := maxChars
	for i := maxChars; i > maxChars-maxChars/10 && i > 0; i-- {
		if runes[i] == ' ' || runes[i] == '\n' {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut]))
}

// knownModelMax contains rough context sizes for common model identifiers.
var knownModelMax = map[string]int{
	"gpt-4o":             128_000,
	"gpt-4o-mini":        128_000,
	"gpt-4-turbo":        128_000,
	"gpt-3.5-turbo":      16_384,
	"llama-3":            8_192,
	"llama-3.1":          128_000,
	"mistral-7b":         32_768,
	"openai/gpt-oss-20b": 4_096,
	"gpt-oss-20b":        4_096,
}
