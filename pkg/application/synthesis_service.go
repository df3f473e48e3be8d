package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/sovereignlab/sovereign/pkg/domain"
	"github.com/sovereignlab/sovereign/pkg/domain/backlog"
	"github.com/sovereignlab/sovereign/pkg/domain/synth"
)

const synthesisSystemPrompt = `You are a release engineer rewriting one deployed source file.
You return the complete rewritten file inside exactly one fenced code block (three backticks).
You never return explanations outside the block, never return a partial file, and never drop existing entry points.`

// SynthesisService requests a candidate rewrite from the generation service
// and extracts it under a strict delimiter contract: the response must
// contain exactly one fenced code block. Anything else is a synthesis
// failure; the raw response is never used as a candidate.
type SynthesisService struct {
	provider    synth.Provider
	temperature float32
	maxTokens   int
}

func NewSynthesisService(provider synth.Provider, temperature float32, maxTokens int) *SynthesisService {
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &SynthesisService{
		provider:    provider,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Synthesize returns the candidate content for the task's artifact.
func (s *SynthesisService) Synthesize(ctx context.Context, task *backlog.Task, current []byte) ([]byte, *synth.TokenUsage, error) {
	prompt := fmt.Sprintf(`Requirement:
%s

Rewrite the following file (%s) so the requirement is met.
Return the complete rewritten file in one fenced code block.

Current file content:
%s`, task.Requirement, task.ArtifactPath, string(current))

	resp, err := s.provider.Complete(ctx, synth.CompletionRequest{
		Prompt:      prompt,
		System:      synthesisSystemPrompt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("generation service: %w", err)
	}

	candidate, err := ExtractFencedBlock(resp.Text)
	if err != nil {
		return nil, &resp.Usage, err
	}

	return []byte(candidate), &resp.Usage, nil
}

// ExtractFencedBlock returns the body of the single fenced code block in the
// response. Zero blocks or more than one block violate the delimiter
// contract and yield ErrSynthesisFailure.
func ExtractFencedBlock(text string) (string, error) {
	lines := strings.Split(text, "\n")

	type block struct {
		start, end int // line indexes, exclusive of the fences
	}
	var blocks []block
	open := -1

	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		if open < 0 {
			open = i
		} else {
			blocks = append(blocks, block{start: open + 1, end: i})
			open = -1
		}
	}

	if open >= 0 {
		return "", fmt.Errorf("%w: unterminated code fence in response", domain.ErrSynthesisFailure)
	}
	if len(blocks) == 0 {
		return "", fmt.Errorf("%w: response contains no fenced code block", domain.ErrSynthesisFailure)
	}
	if len(blocks) > 1 {
		return "", fmt.Errorf("%w: response contains %d fenced code blocks, expected exactly one", domain.ErrSynthesisFailure, len(blocks))
	}

	body := strings.Join(lines[blocks[0].start:blocks[0].end], "\n")
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("%w: fenced code block is empty", domain.ErrSynthesisFailure)
	}

	// Files conventionally end with a trailing newline the fence swallowed.
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return body, nil
}
