package gate

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

// SyntaxIssue is one ERROR or MISSING node found while parsing a candidate.
type SyntaxIssue struct {
	Line    int
	Column  int
	Message string
}

func (i SyntaxIssue) String() string {
	return fmt.Sprintf("line %d, col %d: %s", i.Line, i.Column, i.Message)
}

// detectLanguage determines the language from the artifact's file extension.
func detectLanguage(artifactPath string) string {
	ext := strings.ToLower(filepath.Ext(artifactPath))
	switch ext {
	case ".go":
		return "go"
	case ".py", ".pyi":
		return "python"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".sh", ".bash":
		return "bash"
	default:
		return ""
	}
}

func treeSitterLanguage(lang string) *sitter.Language {
	switch lang {
	case "go":
		return golang.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "bash":
		return bash.GetLanguage()
	default:
		return nil
	}
}

// checkSyntax parses the candidate with tree-sitter and collects syntax
// errors. Artifacts with no registered grammar pass the check: the gate only
// guards execution models it can actually parse.
func checkSyntax(ctx context.Context, artifactPath string, candidate []byte) ([]SyntaxIssue, error) {
	lang := detectLanguage(artifactPath)
	if lang == "" {
		return nil, nil
	}

	tsLang := treeSitterLanguage(lang)
	if tsLang == nil {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(tsLang)

	tree, err := parser.ParseCtx(ctx, nil, candidate)
	if err != nil {
		return nil, fmt.Errorf("parse %s candidate: %w", lang, err)
	}
	defer tree.Close()

	issues := make([]SyntaxIssue, 0)
	collectSyntaxIssues(tree.RootNode(), candidate, &issues, 0)
	return issues, nil
}

// maxSyntaxIssues caps collection on heavily malformed input.
const maxSyntaxIssues = 25

func collectSyntaxIssues(node *sitter.Node, content []byte, issues *[]SyntaxIssue, depth int) {
	if depth > 1000 || len(*issues) >= maxSyntaxIssues {
		return
	}

	if node.IsError() || node.IsMissing() {
		point := node.StartPoint()
		msg := "syntax error"
		if node.IsMissing() {
			msg = fmt.Sprintf("missing %s", node.Type())
		} else {
			start, end := node.StartByte(), node.EndByte()
			if end > uint32(len(content)) {
				end = uint32(len(content))
			}
			if end > start && end-start < 80 {
				msg = fmt.Sprintf("unexpected %q", string(content[start:end]))
			}
		}
		*issues = append(*issues, SyntaxIssue{
			Line:    int(point.Row) + 1,
			Column:  int(point.Column),
			Message: msg,
		})
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectSyntaxIssues(node.Child(i), content, issues, depth+1)
	}
}
