package application_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sovereignlab/sovereign/pkg/application"
	"github.com/sovereignlab/sovereign/pkg/domain"
	"github.com/sovereignlab/sovereign/pkg/domain/backlog"
)

func TestExtractFencedBlock(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "single block",
			input: "Here you go:\n```python\nprint('hi')\n```\nDone.",
			want:  "print('hi')\n",
		},
		{
			name:  "block without language tag",
			input: "```\nx = 1\ny = 2\n```",
			want:  "x = 1\ny = 2\n",
		},
		{
			name:  "indented fences",
			input: "  ```\ncontent\n  ```",
			want:  "content\n",
		},
		{
			name:    "no block is a synthesis failure, not a raw fallback",
			input:   "def main():\n    pass",
			wantErr: true,
		},
		{
			name:    "two blocks violate the contract",
			input:   "```\none\n```\ntext\n```\ntwo\n```",
			wantErr: true,
		},
		{
			name:    "unterminated fence",
			input:   "```python\nprint('hi')",
			wantErr: true,
		},
		{
			name:    "empty block",
			input:   "```\n\n```",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := application.ExtractFencedBlock(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				if !errors.Is(err, domain.ErrSynthesisFailure) {
					t.Errorf("error should match ErrSynthesisFailure, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractFencedBlock: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSynthesizeBuildsPromptAndExtracts(t *testing.T) {
	provider := &MockProvider{Response: "```python\nprint('rewritten')\n```"}
	svc := application.NewSynthesisService(provider, 0.2, 4096)

	task := &backlog.Task{
		ID:           "t1",
		Requirement:  "Print a friendlier greeting",
		ArtifactPath: "app/main.py",
	}
	candidate, usage, err := svc.Synthesize(context.Background(), task, []byte("print('hi')\n"))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(candidate) != "print('rewritten')\n" {
		t.Errorf("candidate = %q", candidate)
	}
	if usage == nil || usage.InputTokens != 100 {
		t.Errorf("usage = %+v", usage)
	}

	if len(provider.Requests) != 1 {
		t.Fatalf("expected one provider call, got %d", len(provider.Requests))
	}
	req := provider.Requests[0]
	if !strings.Contains(req.Prompt, task.Requirement) || !strings.Contains(req.Prompt, "print('hi')") {
		t.Error("prompt must carry the requirement and the current artifact")
	}
	if req.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d", req.MaxTokens)
	}
}

func TestSynthesizeProviderErrorIsSurfaced(t *testing.T) {
	provider := &MockProvider{Err: errors.New("service unavailable")}
	svc := application.NewSynthesisService(provider, 0.2, 0)

	_, _, err := svc.Synthesize(context.Background(), &backlog.Task{ID: "t1"}, []byte("x"))
	if err == nil {
		t.Fatal("expected error")
	}
}
