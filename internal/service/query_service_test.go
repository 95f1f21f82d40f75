package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/anupa-perera/Githubpedia/internal/github"
	"github.com/anupa-perera/Githubpedia/internal/models"
)

type fakeLLM struct {
	answer     string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (f *fakeLLM) Generate(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeLLM) GenerateStream(ctx context.Context, system, user string, sink func(string)) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	for _, tok := range strings.SplitAfter(f.answer, " ") {
		sink(tok)
	}
	return f.answer, nil
}

var testLLMConfig = models.LLMConfig{
	Provider: models.ProviderOpenAI,
	APIKey:   "sk-test",
	Model:    "gpt-4o",
}

// newTestService wires a QueryService around fakes, returning a counter for
// GitHub client constructions so tests can assert "no network work happened".
func newTestService(t *testing.T, fake *fakeGitHub, llm *fakeLLM, opts Options) (QueryService, *int) {
	t.Helper()
	svc := NewQueryService(opts, zap.NewNop()).(*queryService)

	ghBuilds := 0
	svc.newEvidenceClient = func(token string) EvidenceClient {
		ghBuilds++
		return fake
	}
	svc.newLLMClient = func(cfg models.LLMConfig) (LLMClient, error) {
		if _, err := NewLLMClient(cfg); err != nil {
			return nil, err
		}
		return llm, nil
	}
	return svc, &ghBuilds
}

func TestMissingGitHubTokenFailsFastWithoutNetwork(t *testing.T) {
	fake := &fakeGitHub{}
	llm := &fakeLLM{answer: "hi"}
	svc, ghBuilds := newTestService(t, fake, llm, Options{})

	out := svc.ProcessQuery(context.Background(), testRepo, "how?", "", testLLMConfig, nil)

	if out.Success || out.ErrorKind != models.ErrKindAuthRequired {
		t.Fatalf("expected auth_required, got %+v", out)
	}
	if *ghBuilds != 0 || fake.repoCalls != 0 || llm.calls != 0 {
		t.Fatalf("no collaborator may be touched without a token")
	}
}

func TestMissingLLMKeyFailsFast(t *testing.T) {
	fake := &fakeGitHub{}
	svc, ghBuilds := newTestService(t, fake, &fakeLLM{}, Options{})

	cfg := testLLMConfig
	cfg.APIKey = ""
	out := svc.ProcessQuery(context.Background(), testRepo, "how?", "gh-token", cfg, nil)

	if out.Success || out.ErrorKind != models.ErrKindAuthRequired {
		t.Fatalf("expected auth_required, got %+v", out)
	}
	if *ghBuilds != 0 {
		t.Fatalf("GitHub client must not be built without an LLM key")
	}
}

func TestUnsupportedProviderFailsLocally(t *testing.T) {
	fake := &fakeGitHub{}
	svc, ghBuilds := newTestService(t, fake, &fakeLLM{}, Options{})

	cfg := models.LLMConfig{Provider: "vertex", APIKey: "k", Model: "m"}
	out := svc.ProcessQuery(context.Background(), testRepo, "how?", "gh-token", cfg, nil)

	if out.Success || out.ErrorKind != models.ErrKindUnsupportedProvider {
		t.Fatalf("expected unsupported_provider, got %+v", out)
	}
	if *ghBuilds != 0 || fake.repoCalls != 0 {
		t.Fatalf("no network work may happen for an unsupported provider")
	}
}

func TestEmptyQueryIsInvalid(t *testing.T) {
	svc, _ := newTestService(t, &fakeGitHub{}, &fakeLLM{}, Options{})

	out := svc.ProcessQuery(context.Background(), testRepo, "   ", "gh-token", testLLMConfig, nil)

	if out.Success || out.ErrorKind != models.ErrKindInvalidRequest {
		t.Fatalf("expected invalid_request, got %+v", out)
	}
}

// Scenario: code search matches src/auth.ts; the answer must cite it as both
// a source and a code reference, and the prompt must carry its tag.
func TestQueryWithSearchMatch(t *testing.T) {
	fake := &fakeGitHub{
		readme: "# Demo",
		searchHits: []github.CodeSearchHit{
			{Path: "src/auth.ts", Score: 5.2},
			{Path: "src/session.ts", Score: 3.0},
			{Path: "src/user.ts", Score: 2.0},
		},
		files: map[string]string{
			"src/auth.ts":    "export function login() {}",
			"src/session.ts": "export const session = {}",
			"src/user.ts":    "export class User {}",
		},
	}
	llm := &fakeLLM{answer: "Authentication uses src/auth.ts."}
	svc, _ := newTestService(t, fake, llm, Options{})

	out := svc.ProcessQuery(context.Background(), testRepo, "How does authentication work?", "gh-token", testLLMConfig, nil)

	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	if out.Answer != "Authentication uses src/auth.ts." {
		t.Fatalf("answer must be the LLM text unmodified, got %q", out.Answer)
	}
	if out.Sources[0] != "https://github.com/octo/demo" {
		t.Fatalf("sources[0] = %q, want canonical repository URL", out.Sources[0])
	}
	wantBlob := "https://github.com/octo/demo/blob/main/src/auth.ts"
	if !containsString(out.Sources, wantBlob) {
		t.Fatalf("sources missing %q: %v", wantBlob, out.Sources)
	}
	var ref *models.CodeReference
	for i := range out.CodeReferences {
		if out.CodeReferences[i].File == "src/auth.ts" {
			ref = &out.CodeReferences[i]
		}
	}
	if ref == nil {
		t.Fatalf("code reference for src/auth.ts missing: %+v", out.CodeReferences)
	}
	if ref.StartLine != 1 || ref.URL != wantBlob {
		t.Fatalf("unexpected reference %+v", ref)
	}
	if !strings.Contains(llm.lastSystem, "search match, score 5.2") {
		t.Fatalf("prompt must carry the relevance tag")
	}
	if llm.lastUser != "Question about octo/demo: How does authentication work?" {
		t.Fatalf("user prompt = %q", llm.lastUser)
	}
}

// Scenario: no README, no search hits, no common files and the tree is also
// unavailable; the pipeline still answers, via the limited-data prompt.
func TestQueryWithZeroEvidence(t *testing.T) {
	fake := &fakeGitHub{
		files:   map[string]string{},
		treeErr: &github.APIError{Kind: github.KindGeneric, StatusCode: 500, Message: "boom"},
	}
	llm := &fakeLLM{answer: "I could not retrieve repository content."}
	svc, _ := newTestService(t, fake, llm, Options{})

	out := svc.ProcessQuery(context.Background(), testRepo, "explain this project", "gh-token", testLLMConfig, nil)

	if !out.Success {
		t.Fatalf("zero evidence must degrade, not fail: %+v", out)
	}
	if !strings.Contains(llm.lastSystem, "No repository content could be retrieved") {
		t.Fatalf("expected limited-data prompt branch")
	}
	if len(out.CodeReferences) != 0 {
		t.Fatalf("no code references without evidence")
	}
	if len(out.Sources) != 1 || out.Sources[0] != "https://github.com/octo/demo" {
		t.Fatalf("sources must still lead with the canonical URL: %v", out.Sources)
	}
}

// Scenario: GitHub answers 403 on the repository-info call.
func TestRepository403BecomesRateLimited(t *testing.T) {
	fake := &fakeGitHub{
		repoErr: &github.APIError{Kind: github.KindRateLimited, StatusCode: 403, Message: "rate limit exceeded"},
	}
	svc, _ := newTestService(t, fake, &fakeLLM{}, Options{})

	out := svc.ProcessQuery(context.Background(), testRepo, "how?", "gh-token", testLLMConfig, nil)

	if out.Success || out.ErrorKind != models.ErrKindRateLimited {
		t.Fatalf("expected rate_limited, got %+v", out)
	}
	if !strings.Contains(out.ErrorMessage, "retry") {
		t.Fatalf("rate-limit message must suggest retrying: %q", out.ErrorMessage)
	}
}

func TestRepository404BecomesNotFound(t *testing.T) {
	fake := &fakeGitHub{repoErr: notFound()}
	svc, _ := newTestService(t, fake, &fakeLLM{}, Options{})

	out := svc.ProcessQuery(context.Background(), testRepo, "how?", "gh-token", testLLMConfig, nil)

	if out.Success || out.ErrorKind != models.ErrKindRepositoryNotFound {
		t.Fatalf("expected repository_not_found, got %+v", out)
	}
}

// Scenario: the same blob URL reachable through two routes appears once.
func TestSourcesAreDeduplicated(t *testing.T) {
	fake := &fakeGitHub{
		readme:     "# Demo",
		searchHits: []github.CodeSearchHit{{Path: "README.md", Score: 2.0}},
		files:      map[string]string{"README.md": "# Demo"},
		tree: []github.TreeEntry{
			{Path: "README.md", Kind: "file", Size: 6},
			{Path: "main.go", Kind: "file", Size: 10},
		},
	}
	fake.files["main.go"] = "package main"
	llm := &fakeLLM{answer: "ok"}
	svc, _ := newTestService(t, fake, llm, Options{})

	out := svc.ProcessQuery(context.Background(), testRepo, "readme", "gh-token", testLLMConfig, nil)

	if !out.Success {
		t.Fatalf("expected success: %+v", out)
	}
	seen := map[string]int{}
	for _, s := range out.Sources {
		seen[s]++
	}
	for url, n := range seen {
		if n > 1 {
			t.Fatalf("source %q appears %d times: %v", url, n, out.Sources)
		}
	}
	if out.Sources[0] != "https://github.com/octo/demo" {
		t.Fatalf("sources[0] = %q", out.Sources[0])
	}
}

func TestCodeReferenceBounds(t *testing.T) {
	longFile := strings.TrimSuffix(strings.Repeat("line\n", 250), "\n")
	fake := &fakeGitHub{
		searchHits: []github.CodeSearchHit{
			{Path: "long.go", Score: 2},
			{Path: "short.go", Score: 1},
		},
		files: map[string]string{
			"long.go":  longFile,
			"short.go": "one\ntwo\nthree",
		},
	}
	llm := &fakeLLM{answer: "ok"}
	svc, _ := newTestService(t, fake, llm, Options{CodeReferenceMaxLines: 100})

	out := svc.ProcessQuery(context.Background(), testRepo, "lines", "gh-token", testLLMConfig, nil)

	if len(out.CodeReferences) != 2 {
		t.Fatalf("expected 2 references, got %d", len(out.CodeReferences))
	}
	for _, ref := range out.CodeReferences {
		if ref.StartLine != 1 {
			t.Fatalf("StartLine must be 1: %+v", ref)
		}
		if ref.EndLine-ref.StartLine+1 > 100 {
			t.Fatalf("reference exceeds line cap: %+v", ref)
		}
	}
	if out.CodeReferences[0].EndLine != 100 {
		t.Fatalf("long file EndLine = %d, want 100", out.CodeReferences[0].EndLine)
	}
	if got := len(strings.Split(out.CodeReferences[0].Content, "\n")); got != 100 {
		t.Fatalf("long file excerpt has %d lines, want 100", got)
	}
	if out.CodeReferences[1].EndLine != 3 {
		t.Fatalf("short file EndLine = %d, want 3", out.CodeReferences[1].EndLine)
	}
}

func TestLLMAuthErrorIsDistinct(t *testing.T) {
	fake := &fakeGitHub{files: map[string]string{"README.md": "# Demo"}}
	llm := &fakeLLM{err: &LLMError{Auth: true, Message: "invalid api key"}}
	svc, _ := newTestService(t, fake, llm, Options{})

	out := svc.ProcessQuery(context.Background(), testRepo, "how?", "gh-token", testLLMConfig, nil)

	if out.Success || out.ErrorKind != models.ErrKindLLMAuth {
		t.Fatalf("expected llm_auth_error, got %+v", out)
	}
}

func TestSlowEvidenceDoesNotBlockForever(t *testing.T) {
	fake := &fakeGitHub{blockRepoOnCtx: true}
	svc, _ := newTestService(t, fake, &fakeLLM{}, Options{QueryTimeout: 50 * time.Millisecond})

	start := time.Now()
	out := svc.ProcessQuery(context.Background(), testRepo, "how?", "gh-token", testLLMConfig, nil)

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("pipeline blocked for %s despite deadline", elapsed)
	}
	if out.Success {
		t.Fatalf("expected failure after deadline, got %+v", out)
	}
}

func TestStreamProducesSameOutcomeShape(t *testing.T) {
	fake := &fakeGitHub{
		searchHits: []github.CodeSearchHit{{Path: "main.go", Score: 1}, {Path: "app.go", Score: 0.5}, {Path: "lib.go", Score: 0.2}},
		files:      map[string]string{"main.go": "package main", "app.go": "package app", "lib.go": "package lib"},
	}
	llm := &fakeLLM{answer: "streamed answer text"}
	svc, _ := newTestService(t, fake, llm, Options{})

	var tokens []string
	out := svc.ProcessQueryStream(context.Background(), testRepo, "how?", "gh-token", testLLMConfig, nil,
		func(tok string) { tokens = append(tokens, tok) })

	if !out.Success {
		t.Fatalf("expected success: %+v", out)
	}
	if strings.Join(tokens, "") != "streamed answer text" {
		t.Fatalf("sink tokens = %q", strings.Join(tokens, ""))
	}
	if out.Answer != "streamed answer text" {
		t.Fatalf("final answer = %q", out.Answer)
	}
	if out.Sources[0] != "https://github.com/octo/demo" || len(out.CodeReferences) != 3 {
		t.Fatalf("stream outcome shape differs: %+v", out)
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
