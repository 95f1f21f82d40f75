package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/anupa-perera/Githubpedia/internal/github"
	"github.com/anupa-perera/Githubpedia/internal/models"
)

// ContextAssembler merges the README, the selected files and (when the
// selector fetched it) the repository tree into one bounded RepositoryContext.
// It performs no truncation itself; prompt-size bounding belongs to the
// synthesizer, and Files arrives already capped by the selector's budget.
type ContextAssembler struct {
	gh       EvidenceClient
	selector FileSelector
	log      *zap.Logger
}

// NewContextAssembler wires the GitHub client and the file-selection strategy.
func NewContextAssembler(gh EvidenceClient, selector FileSelector, log *zap.Logger) *ContextAssembler {
	return &ContextAssembler{gh: gh, selector: selector, log: log}
}

// Assemble gathers all evidence for one query. The README fetch and the file
// selection are independent and run concurrently. A missing README is not an
// error; the field is simply left empty.
func (a *ContextAssembler) Assemble(ctx context.Context, repo models.Repository, query string) (models.RepositoryContext, []string) {
	type readmeResult struct {
		content string
		err     error
	}
	readmeCh := make(chan readmeResult, 1)
	go func() {
		content, err := a.gh.GetReadme(ctx, repo.Owner, repo.Name)
		readmeCh <- readmeResult{content: content, err: err}
	}()

	sel := a.selector.SelectFiles(ctx, repo, query)
	rm := <-readmeCh

	rc := models.RepositoryContext{
		Files: sel.Files,
		Tree:  sel.Tree,
	}
	softErrs := sel.SoftErrors

	if rm.err != nil {
		var apiErr *github.APIError
		if !errors.As(rm.err, &apiErr) || apiErr.Kind != github.KindNotFound {
			softErrs = append(softErrs, "readme fetch failed: "+rm.err.Error())
			a.log.Warn("readme fetch failed", zap.String("repo", repo.FullName()), zap.Error(rm.err))
		}
	} else {
		rc.Readme = rm.content
	}

	return rc, softErrs
}
