package budget

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEstimateTokensFromChars(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, 0},
		{1, 1},
		{4, 1},
		{5, 2},
		{400, 100},
	}
	for _, c := range cases {
		if got := EstimateTokensFromChars(c.in); got != c.want {
			t.Fatalf("EstimateTokensFromChars(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestEstimateTokens_CountsRunes(t *testing.T) {
	// 8 runes, more bytes.
	if got := EstimateTokens("éééééééé"); got != 2 {
		t.Fatalf("EstimateTokens = %d, want 2", got)
	}
	if got := EstimatePromptTokens("system", "user message", "abc", "defg"); got != 7 {
		t.Fatalf("EstimatePromptTokens = %d, want 7", got)
	}
}

func TestModelContextTokens(t *testing.T) {
	if ModelContextTokens("") != 8192 {
		t.Fatal("empty model should default to 8192")
	}
	if ModelContextTokens("GPT-4o") != 128_000 {
		t.Fatal("lookup should be case-insensitive")
	}
	if ModelContextTokens("local-qwen-32k") != 32_768 {
		t.Fatal("32k suffix should map to 32768")
	}
}

func TestExcerptChars_HardCapAndSmallModels(t *testing.T) {
	if got := ExcerptChars("gpt-4o", 512, 600, 4000); got != 4000 {
		t.Fatalf("large model should hit the hard cap, got %d", got)
	}
	// 4096 - 512 headroom - 512 output - 3000 prompt = 72 tokens.
	if got := ExcerptChars("gpt-oss-20b", 512, 3000, 4000); got != 72*4 {
		t.Fatalf("small model excerpt = %d, want %d", got, 72*4)
	}
	if got := ExcerptChars("gpt-oss-20b", 512, 10_000, 4000); got != 0 {
		t.Fatalf("overflow should clamp to 0, got %d", got)
	}
}

func TestTruncate(t *testing.T) {
	s := strings.Repeat("inflation ", 100)
	got := Truncate(s, 95)
	if utf8.RuneCountInString(got) > 95 {
		t.Fatalf("truncated length %d exceeds 95", utf8.RuneCountInString(got))
	}
	if strings.HasSuffix(got, "inf") {
		t.Fatalf("expected cut on a word boundary, got %q", got[len(got)-12:])
	}
	if Truncate("court", 10) != "court" {
		t.Fatal("short input should be unchanged")
	}
}
