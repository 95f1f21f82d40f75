package service

import (
	"fmt"
	"strings"

	"github.com/anupa-perera/Githubpedia/internal/models"
)

// Per-file content cap inside the prompt. Files longer than this are cut and
// marked; full content still flows into code references untouched.
const (
	promptFileCharLimit = 2000
	truncationMarker    = "\n... [content truncated]"
)

// buildSystemPrompt produces the system instruction for one query. With any
// evidence present it enumerates the README, each selected file and the tree;
// with none it switches to the limited-data branch, which forbids fabricating
// specifics.
func buildSystemPrompt(repo models.Repository, rc models.RepositoryContext, history []models.ChatMessage) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a GitHub repository analysis assistant. You are analyzing the repository %s.\n\n", repo.FullName())

	hasEvidence := rc.Readme != "" || len(rc.Files) > 0 || len(rc.Tree) > 0
	if !hasEvidence {
		sb.WriteString("No repository content could be retrieved for this query. ")
		sb.WriteString("Acknowledge this data limitation to the user. ")
		sb.WriteString("You may reason only from the repository name and common patterns for projects like it. ")
		sb.WriteString("Never fabricate specific file names, file contents, or implementation details. ")
		sb.WriteString("Suggest what the user might explore next to answer their question.\n")
		appendHistory(&sb, history)
		return sb.String()
	}

	if rc.Readme != "" {
		sb.WriteString("## README\n\n")
		sb.WriteString(rc.Readme)
		sb.WriteString("\n\n")
	}

	if len(rc.Files) > 0 {
		sb.WriteString("## Selected files\n\n")
		for _, f := range rc.Files {
			fmt.Fprintf(&sb, "### %s (%s)\n\n```\n%s\n```\n\n", f.Path, f.RelevanceTag, clipContent(f.Content))
		}
	}

	if len(rc.Tree) > 0 {
		sb.WriteString("## Repository structure\n\n")
		for _, entry := range rc.Tree {
			if entry.Kind == "dir" {
				fmt.Fprintf(&sb, "%s/\n", entry.Path)
				continue
			}
			fmt.Fprintf(&sb, "%s (%d bytes)\n", entry.Path, entry.Size)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Answer the user's question grounded in the content above. ")
	sb.WriteString("Reference specific files and line numbers, include relevant code snippets, ")
	sb.WriteString("and explain the architecture where it helps. Format your answer in markdown.\n")
	appendHistory(&sb, history)
	return sb.String()
}

// buildUserPrompt is exactly one line naming the repository and carrying the
// verbatim user query.
func buildUserPrompt(repo models.Repository, query string) string {
	return fmt.Sprintf("Question about %s: %s", repo.FullName(), query)
}

// appendHistory folds caller-supplied prior turns into the system prompt as
// auxiliary text. The pipeline itself stays single-turn.
func appendHistory(sb *strings.Builder, history []models.ChatMessage) {
	if len(history) == 0 {
		return
	}
	sb.WriteString("\nPrior conversation for context:\n")
	for _, m := range history {
		fmt.Fprintf(sb, "%s: %s\n", m.Role, m.Content)
	}
}

func clipContent(content string) string {
	if len(content) <= promptFileCharLimit {
		return content
	}
	return content[:promptFileCharLimit] + truncationMarker
}
