package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anupa-perera/Githubpedia/internal/github"
	"github.com/anupa-perera/Githubpedia/internal/models"
)

// QueryService runs the whole pipeline for one query: front-door repository
// check, evidence gathering, prompt construction, LLM invocation and outcome
// shaping. Each call is an independent, stateless computation.
type QueryService interface {
	ProcessQuery(ctx context.Context, repo models.Repository, query, githubToken string, llmCfg models.LLMConfig, history []models.ChatMessage) models.QueryOutcome
	// ProcessQueryStream behaves identically but additionally invokes sink as
	// answer tokens arrive; the returned outcome carries the complete answer.
	ProcessQueryStream(ctx context.Context, repo models.Repository, query, githubToken string, llmCfg models.LLMConfig, history []models.ChatMessage, sink func(token string)) models.QueryOutcome
}

// Options tunes one QueryService instance.
type Options struct {
	// QueryTimeout bounds the whole pipeline, not each sub-call, so partial
	// evidence gathered before the deadline can still be synthesized.
	QueryTimeout time.Duration
	// CodeReferenceMaxLines caps every code-reference excerpt.
	CodeReferenceMaxLines int
	// GitHubBaseURL overrides the GitHub API host (tests).
	GitHubBaseURL string
}

const (
	defaultQueryTimeout = 60 * time.Second
	defaultCodeRefLines = 100
)

type queryService struct {
	opts Options
	log  *zap.Logger

	// Factories are per-request: the GitHub client is built around the
	// caller's token, the LLM client around the caller's key. Overridable in
	// tests.
	newEvidenceClient func(token string) EvidenceClient
	newSelector       func(gh EvidenceClient) FileSelector
	newLLMClient      func(cfg models.LLMConfig) (LLMClient, error)
}

// NewQueryService wires the pipeline with its default collaborators.
func NewQueryService(opts Options, log *zap.Logger) QueryService {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}
	if opts.CodeReferenceMaxLines <= 0 {
		opts.CodeReferenceMaxLines = defaultCodeRefLines
	}

	s := &queryService{opts: opts, log: log}
	s.newEvidenceClient = func(token string) EvidenceClient {
		if opts.GitHubBaseURL != "" {
			return github.NewClientWithBaseURL(token, opts.GitHubBaseURL)
		}
		return github.NewClient(token)
	}
	s.newSelector = func(gh EvidenceClient) FileSelector {
		return NewHeuristicSelector(gh, log)
	}
	s.newLLMClient = NewLLMClient
	return s
}

func (s *queryService) ProcessQuery(ctx context.Context, repo models.Repository, query, githubToken string, llmCfg models.LLMConfig, history []models.ChatMessage) models.QueryOutcome {
	return s.run(ctx, repo, query, githubToken, llmCfg, history, nil)
}

func (s *queryService) ProcessQueryStream(ctx context.Context, repo models.Repository, query, githubToken string, llmCfg models.LLMConfig, history []models.ChatMessage, sink func(string)) models.QueryOutcome {
	return s.run(ctx, repo, query, githubToken, llmCfg, history, sink)
}

func (s *queryService) run(ctx context.Context, repo models.Repository, query, githubToken string, llmCfg models.LLMConfig, history []models.ChatMessage, sink func(string)) models.QueryOutcome {
	// Local validation first: none of these touch the network.
	if strings.TrimSpace(query) == "" {
		return models.FailedOutcome(models.ErrKindInvalidRequest, "query cannot be empty")
	}
	if err := repo.Validate(); err != nil {
		return models.FailedOutcome(models.ErrKindInvalidRequest, err.Error())
	}
	if githubToken == "" {
		return models.FailedOutcome(models.ErrKindAuthRequired, "a GitHub token is required; sign in with GitHub first")
	}
	if llmCfg.APIKey == "" {
		return models.FailedOutcome(models.ErrKindAuthRequired, "an LLM API key is required; configure your provider first")
	}

	llm, err := s.newLLMClient(llmCfg)
	if err != nil {
		if errors.Is(err, ErrUnsupportedProvider) {
			return models.FailedOutcome(models.ErrKindUnsupportedProvider, err.Error())
		}
		return models.FailedOutcome(models.ErrKindInvalidRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	gh := s.newEvidenceClient(githubToken)

	// Front-door check: the repository must exist and be readable before any
	// evidence gathering spends API budget.
	if _, err := gh.GetRepository(ctx, repo.Owner, repo.Name); err != nil {
		return githubFailure(err)
	}

	assembler := NewContextAssembler(gh, s.newSelector(gh), s.log)
	rc, softErrs := assembler.Assemble(ctx, repo, query)
	if len(softErrs) > 0 {
		s.log.Warn("partial evidence failures",
			zap.String("repo", repo.FullName()),
			zap.Strings("errors", softErrs))
	}

	system := buildSystemPrompt(repo, rc, history)
	user := buildUserPrompt(repo, query)

	var answer string
	if sink != nil {
		answer, err = llm.GenerateStream(ctx, system, user, sink)
	} else {
		answer, err = llm.Generate(ctx, system, user)
	}
	if err != nil {
		return llmFailure(err)
	}

	s.log.Info("query answered",
		zap.String("repo", repo.FullName()),
		zap.Int("evidence_files", len(rc.Files)),
		zap.Bool("readme", rc.Readme != ""),
		zap.Bool("tree", len(rc.Tree) > 0))

	return s.shapeOutcome(repo, rc, answer)
}

// shapeOutcome builds the final contract: sources lead with the canonical
// repository URL and are deduplicated preserving first occurrence; code
// references excerpt each selected file from line 1 up to the configured cap.
func (s *queryService) shapeOutcome(repo models.Repository, rc models.RepositoryContext, answer string) models.QueryOutcome {
	sources := []string{repo.URL()}
	if rc.Readme != "" {
		sources = append(sources, repo.BlobURL("README.md"))
	}
	for _, f := range rc.Files {
		sources = append(sources, repo.BlobURL(f.Path))
	}

	refs := make([]models.CodeReference, 0, len(rc.Files))
	for _, f := range rc.Files {
		if f.Content == "" {
			continue
		}
		lines := strings.Split(f.Content, "\n")
		end := s.opts.CodeReferenceMaxLines
		if end > len(lines) {
			end = len(lines)
		}
		refs = append(refs, models.CodeReference{
			File:      f.Path,
			StartLine: 1,
			EndLine:   end,
			Content:   strings.Join(lines[:end], "\n"),
			URL:       repo.BlobURL(f.Path),
		})
	}

	return models.QueryOutcome{
		Success:        true,
		Answer:         answer,
		Sources:        dedupe(sources),
		CodeReferences: refs,
	}
}

// githubFailure maps an evidence-client error from the front-door call into a
// failed outcome with actionable guidance.
func githubFailure(err error) models.QueryOutcome {
	var apiErr *github.APIError
	if !errors.As(err, &apiErr) {
		return models.FailedOutcome(models.ErrKindNetwork, err.Error())
	}
	switch apiErr.Kind {
	case github.KindAuthRequired, github.KindUnauthorized:
		return models.FailedOutcome(models.ErrKindAuthRequired, "GitHub rejected the token; sign in again")
	case github.KindNotFound:
		return models.FailedOutcome(models.ErrKindRepositoryNotFound, "repository not found; check the URL and your access permissions")
	case github.KindRateLimited:
		return models.FailedOutcome(models.ErrKindRateLimited, "GitHub rate limit reached; wait a few minutes and retry")
	case github.KindNetwork:
		return models.FailedOutcome(models.ErrKindNetwork, "could not reach GitHub; check your connectivity")
	default:
		return models.FailedOutcome(models.ErrKindNetwork, apiErr.Error())
	}
}

// llmFailure distinguishes a rejected provider key from everything else, so
// the user knows which credential to fix.
func llmFailure(err error) models.QueryOutcome {
	var llmErr *LLMError
	if errors.As(err, &llmErr) && llmErr.Auth {
		return models.FailedOutcome(models.ErrKindLLMAuth, "the LLM provider rejected your API key; check your provider configuration")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.FailedOutcome(models.ErrKindNetwork, "the query timed out before the answer completed")
	}
	return models.FailedOutcome(models.ErrKindLLM, err.Error())
}

// dedupe removes duplicate strings preserving first-occurrence order.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
