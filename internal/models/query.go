package models

// Provider names one of the supported LLM back ends. The set is closed:
// anything else fails locally as an unsupported-provider error.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderOpenRouter Provider = "openrouter"
)

// LLMConfig carries the user's LLM account for one query. The key arrives
// already decrypted from the session layer; the pipeline never logs or
// persists it.
type LLMConfig struct {
	Provider Provider `json:"provider"`
	APIKey   string   `json:"api_key"`
	Model    string   `json:"model"`
	BaseURL  string   `json:"base_url,omitempty"` // openrouter only; defaults to the public endpoint
}

// EvidenceFile is one file's text content plus a human-readable reason it was
// selected. Created transiently per query, never persisted.
type EvidenceFile struct {
	Path         string `json:"path"`
	Content      string `json:"content"`
	RelevanceTag string `json:"relevance_tag"`
}

// TreeEntry is one node of a repository tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Kind string `json:"kind"` // "file" or "dir"
	Size int    `json:"size,omitempty"`
}

// RepositoryContext is the bounded evidence bundle handed to the synthesizer.
// Files is already capped by the selector's fetch budget; Tree is present only
// when the structural-enrichment tier fetched it.
type RepositoryContext struct {
	Readme string         `json:"readme,omitempty"`
	Files  []EvidenceFile `json:"files"`
	Tree   []TreeEntry    `json:"tree,omitempty"`
}

// ErrorKind tags a failed QueryOutcome. Callers map these to HTTP statuses.
type ErrorKind string

const (
	ErrKindAuthRequired        ErrorKind = "auth_required"
	ErrKindRepositoryNotFound  ErrorKind = "repository_not_found"
	ErrKindRateLimited         ErrorKind = "rate_limited"
	ErrKindNetwork             ErrorKind = "network_error"
	ErrKindLLMAuth             ErrorKind = "llm_auth_error"
	ErrKindLLM                 ErrorKind = "llm_error"
	ErrKindUnsupportedProvider ErrorKind = "unsupported_provider"
	ErrKindInvalidRequest      ErrorKind = "invalid_request"
)

// CodeReference is a bounded excerpt of one selected file, linked back to the
// file's blob URL so the UI can deep-link it.
type CodeReference struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Content   string `json:"content"`
	URL       string `json:"url"`
}

// QueryOutcome is the sole externally visible result of the pipeline.
type QueryOutcome struct {
	Success        bool            `json:"success"`
	Answer         string          `json:"answer,omitempty"`
	Sources        []string        `json:"sources"`
	CodeReferences []CodeReference `json:"code_references"`
	ErrorKind      ErrorKind       `json:"error_kind,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
}

// FailedOutcome builds the uniform failure shape for a query.
func FailedOutcome(kind ErrorKind, message string) QueryOutcome {
	return QueryOutcome{
		Success:        false,
		Sources:        []string{},
		CodeReferences: []CodeReference{},
		ErrorKind:      kind,
		ErrorMessage:   message,
	}
}

// ChatMessage is one prior turn supplied by the caller as auxiliary context.
// The pipeline itself is single-turn; prior messages are folded into the
// prompt as plain text.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// QueryRequest is the payload for POST /api/v1/query and /api/v1/query/stream.
type QueryRequest struct {
	RepoURL     string        `json:"repo_url,omitempty"` // any accepted GitHub URL form
	Owner       string        `json:"owner,omitempty"`    // alternative to RepoURL
	Repo        string        `json:"repo,omitempty"`
	Query       string        `json:"query"`
	Messages    []ChatMessage `json:"messages,omitempty"`
	GitHubToken string        `json:"github_token,omitempty"`
	LLM         LLMConfig     `json:"llm"`
}
