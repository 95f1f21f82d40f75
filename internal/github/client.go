// Package github is a minimal typed wrapper around GitHub's REST API v3.
// It is intentionally light—just the endpoints the pipeline requires—and maps
// every failure into the small APIError taxonomy. It performs no retries and
// holds no state across calls; retry policy belongs to callers.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.github.com"

// Client issues authenticated GitHub REST calls.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// NewClient returns a ready-to-use GitHub API client. An empty token is
// allowed at construction time; individual calls then fail locally with an
// auth-required error instead of hitting the network.
func NewClient(token string) *Client {
	return NewClientWithBaseURL(token, defaultBaseURL)
}

// NewClientWithBaseURL overrides the API host, which lets tests point the
// client at an httptest server.
func NewClientWithBaseURL(token, baseURL string) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
	}
}

// ---- payload shapes --------------------------------------------------------

// contentEnvelope is GitHub's file-content response (base64 body).
type contentEnvelope struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	HTMLURL  string `json:"html_url"`
}

type treeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"` // "blob" or "tree"
		Size int    `json:"size"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

// TreeEntry is one node of a recursive tree listing.
type TreeEntry struct {
	Path string
	Kind string // "file" or "dir"
	Size int
}

// CodeSearchHit is one ranked result from code search. GitHub's own ranking
// order is preserved by callers; no re-sorting happens here.
type CodeSearchHit struct {
	Path    string  `json:"path"`
	Score   float64 `json:"score"`
	HTMLURL string  `json:"html_url"`
}

type codeSearchResponse struct {
	TotalCount int             `json:"total_count"`
	Items      []CodeSearchHit `json:"items"`
}

// RepoSummary captures the repository metadata fields the app surfaces.
type RepoSummary struct {
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	Stars         int    `json:"stargazers_count"`
	Language      string `json:"language"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
}

type repoSearchResponse struct {
	TotalCount int           `json:"total_count"`
	Items      []RepoSummary `json:"items"`
}

// CommitSummary is one entry of a commit listing.
type CommitSummary struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author struct {
		Login string `json:"login"`
	} `json:"author"`
}

// CommitFile is one changed file inside a commit or pull request.
type CommitFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
	Patch     string `json:"patch"`
}

// CommitDetail is a single commit with its file diffs.
type CommitDetail struct {
	CommitSummary
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
		Total     int `json:"total"`
	} `json:"stats"`
	Files []CommitFile `json:"files"`
}

// ListCommitsOptions narrows a commit listing.
type ListCommitsOptions struct {
	SHA     string // branch, tag or commit to start from
	Path    string // only commits touching this path
	PerPage int    // 1–100
}

// ---- operations ------------------------------------------------------------

// GetFileContents fetches and decodes one file's text content. Directories
// and submodules are errors; only regular files decode.
func (c *Client) GetFileContents(ctx context.Context, owner, repo, path, ref string) (string, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, url.PathEscape(owner), url.PathEscape(repo), escapePath(path))
	if ref != "" {
		u += "?ref=" + url.QueryEscape(ref)
	}

	var env contentEnvelope
	if err := c.get(ctx, u, &env); err != nil {
		return "", err
	}
	return decodeContent(env)
}

// GetReadme fetches the repository README via GitHub's readme endpoint, which
// resolves the filename variant (README.md, README.rst, ...) server-side.
func (c *Client) GetReadme(ctx context.Context, owner, repo string) (string, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/readme", c.baseURL, url.PathEscape(owner), url.PathEscape(repo))

	var env contentEnvelope
	if err := c.get(ctx, u, &env); err != nil {
		return "", err
	}
	return decodeContent(env)
}

// GetTree returns the full recursive tree of ref (default "main") as a flat
// list of entries.
func (c *Client) GetTree(ctx context.Context, owner, repo, ref string) ([]TreeEntry, error) {
	if ref == "" {
		ref = "main"
	}
	u := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(ref))

	var resp treeResponse
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}

	entries := make([]TreeEntry, 0, len(resp.Tree))
	for _, t := range resp.Tree {
		kind := "file"
		if t.Type == "tree" {
			kind = "dir"
		}
		entries = append(entries, TreeEntry{Path: t.Path, Kind: kind, Size: t.Size})
	}
	return entries, nil
}

// SearchCode runs GitHub code search, scoped to owner/repo when both are
// non-empty. Results keep GitHub's ranking order.
func (c *Client) SearchCode(ctx context.Context, query, owner, repo string) ([]CodeSearchHit, error) {
	q := query
	if owner != "" && repo != "" {
		q = fmt.Sprintf("%s repo:%s/%s", query, owner, repo)
	}
	u := fmt.Sprintf("%s/search/code?q=%s", c.baseURL, url.QueryEscape(q))

	var resp codeSearchResponse
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// SearchRepositories runs GitHub repository search.
func (c *Client) SearchRepositories(ctx context.Context, query string) ([]RepoSummary, error) {
	u := fmt.Sprintf("%s/search/repositories?q=%s", c.baseURL, url.QueryEscape(query))

	var resp repoSearchResponse
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// GetRepository fetches one repository's metadata. The pipeline uses this as
// its front-door existence and permission check.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (RepoSummary, error) {
	u := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, url.PathEscape(owner), url.PathEscape(repo))

	var summary RepoSummary
	if err := c.get(ctx, u, &summary); err != nil {
		return RepoSummary{}, err
	}
	return summary, nil
}

// ListCommits returns commit summaries, optionally narrowed by opts.
func (c *Client) ListCommits(ctx context.Context, owner, repo string, opts ListCommitsOptions) ([]CommitSummary, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/commits", c.baseURL, url.PathEscape(owner), url.PathEscape(repo))

	q := url.Values{}
	if opts.SHA != "" {
		q.Set("sha", opts.SHA)
	}
	if opts.Path != "" {
		q.Set("path", opts.Path)
	}
	if opts.PerPage > 0 {
		q.Set("per_page", fmt.Sprint(opts.PerPage))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var commits []CommitSummary
	if err := c.get(ctx, u, &commits); err != nil {
		return nil, err
	}
	return commits, nil
}

// GetCommit retrieves a single commit with its diffs.
func (c *Client) GetCommit(ctx context.Context, owner, repo, ref string) (CommitDetail, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/commits/%s",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(ref))

	var detail CommitDetail
	if err := c.get(ctx, u, &detail); err != nil {
		return CommitDetail{}, err
	}
	return detail, nil
}

// GetPullRequestFiles lists the changed files of a pull request.
func (c *Client) GetPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]CommitFile, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo), number)

	var files []CommitFile
	if err := c.get(ctx, u, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// ---- plumbing --------------------------------------------------------------

// get builds, authenticates and executes one GET request, decoding JSON into v.
func (c *Client) get(ctx context.Context, u string, v interface{}) error {
	if c.token == "" {
		return errAuthRequired()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &APIError{Kind: KindGeneric, Message: err.Error()}
	}
	c.addHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Kind: KindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return mapStatus(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		// Unexpected shape fails closed rather than propagating half-decoded data.
		return &APIError{Kind: KindGeneric, StatusCode: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return nil
}

// addHeaders sets authentication and Accept headers.
func (c *Client) addHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", "githubpedia-api")
}

// decodeContent unwraps GitHub's base64 content envelope.
func decodeContent(env contentEnvelope) (string, error) {
	if env.Type != "" && env.Type != "file" {
		return "", &APIError{Kind: KindGeneric, Message: fmt.Sprintf("path is a %s, not a file", env.Type)}
	}
	if env.Encoding != "" && env.Encoding != "base64" {
		return "", &APIError{Kind: KindGeneric, Message: "unexpected content encoding " + env.Encoding}
	}

	// GitHub inserts newlines into the base64 body.
	raw := strings.ReplaceAll(env.Content, "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", &APIError{Kind: KindGeneric, Message: "decode content: " + err.Error()}
	}
	return string(decoded), nil
}

// escapePath escapes each path segment while keeping the separators.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
