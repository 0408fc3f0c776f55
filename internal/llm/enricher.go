package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/goindicator/internal/budget"
	"github.com/hyperifyio/goindicator/internal/cache"
	"github.com/hyperifyio/goindicator/internal/model"
)

// Prompt limits.
const (
	MaxSummaryValues  = 20
	MaxSummaryChars   = 1500
	MaxExcerptChars   = 4000
	reservedForOutput = 512
	DefaultTimeout    = 30 * time.Second
)

// SystemPrompt frames the enrichment call.
const SystemPrompt = "You review economic indicators extracted from a statistics web page. " +
	"Given the extracted values and a page excerpt, note which values look mislabeled, " +
	"which reference period applies, and any headline indicator the extraction missed. " +
	"Answer in at most ten short lines of plain text."

// Request is the input to one enrichment call.
type Request struct {
	URL        string
	Candidates []model.Candidate
	Excerpt    string
}

// Enricher runs the optional model pass.
type Enricher struct {
	Client  Client
	Model   string
	Timeout time.Duration
	Cache   *cache.LLMCache
}

// BuildPrompt returns the system and user messages for in, applying the
// summary and excerpt caps.
func (e *Enricher) BuildPrompt(in Request) (string, string) {
	var sb strings.Builder
	for i, c := range in.Candidates {
		if i >= MaxSummaryValues {
			break
		}
		line := fmt.Sprintf("- %s: %s %s", c.IndicatorName, strconv.FormatFloat(c.Value, 'f', -1, 64), c.Unit)
		if c.Temporal.Year > 0 {
			line += fmt.Sprintf(" (%d)", c.Temporal.Year)
		}
		line = strings.TrimRight(line, " ") + "\n"
		if sb.Len()+len(line) > MaxSummaryChars {
			break
		}
		sb.WriteString(line)
	}
	summary := sb.String()
	if summary == "" {
		summary = "(none)\n"
	}
	head := "Source: " + in.URL + "\n\nExtracted values:\n" + summary + "\nPage excerpt:\n"
	limit := budget.ExcerptChars(e.Model, reservedForOutput, budget.EstimatePromptTokens(SystemPrompt, head), MaxExcerptChars)
	return SystemPrompt, head + budget.Truncate(in.Excerpt, limit)
}

// Start launches the call in its own goroutine and returns a channel that
// receives exactly one result. The channel is buffered so the goroutine
// never blocks if the caller stops waiting. The call is bounded by Timeout
// and by ctx.
func (e *Enricher) Start(ctx context.Context, in Request) <-chan model.Enrichment {
	ch := make(chan model.Enrichment, 1)
	timeout := DefaultTimeout
	if e != nil && e.Timeout > 0 {
		timeout = e.Timeout
	}
	go func() {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ch <- e.run(cctx, in)
	}()
	return ch
}

// Await waits for the result of Start or for ctx, whichever comes first.
func Await(ctx context.Context, ch <-chan model.Enrichment) model.Enrichment {
	select {
	case r := <-ch:
		return r
	case <-ctx.Done():
		return unavailable("", fmt.Errorf("%w: %w", model.ErrExternalModelUnavailable, ctx.Err()))
	}
}

func unavailable(modelName string, err error) model.Enrichment {
	return model.Enrichment{Status: model.EnrichmentUnavailable, Model: modelName, Reason: err.Error()}
}

func (e *Enricher) run(ctx context.Context, in Request) model.Enrichment {
	if e == nil || e.Client == nil {
		return unavailable("", fmt.Errorf("%w: no client configured", model.ErrExternalModelUnavailable))
	}
	system, user := e.BuildPrompt(in)
	key := cache.KeyFrom(e.Model, system, user)
	if b, ok, _ := e.Cache.Get(ctx, key); ok {
		return model.Enrichment{Status: model.EnrichmentAvailable, Model: e.Model, Text: string(b), Cached: true}
	}
	req := openai.ChatCompletionRequest{
		Model: e.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.1,
		MaxTokens:   reservedForOutput,
		N:           1,
	}
	start := time.Now()
	resp, err := e.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", time.Since(start).Round(time.Millisecond), err)
		}
		log.Warn().Err(err).Str("url", in.URL).Str("model", e.Model).Msg("enrichment unavailable")
		return unavailable(e.Model, fmt.Errorf("%w: %w", model.ErrExternalModelUnavailable, err))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return unavailable(e.Model, fmt.Errorf("%w: empty response", model.ErrExternalModelUnavailable))
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if e.Cache != nil {
		if err := e.Cache.Save(ctx, key, []byte(text)); err != nil {
			log.Debug().Err(err).Msg("llm cache save failed")
		}
	}
	log.Debug().Str("url", in.URL).Dur("elapsed", time.Since(start)).Msg("enrichment complete")
	return model.Enrichment{Status: model.EnrichmentAvailable, Model: e.Model, Text: text}
}
