package models

import (
	"fmt"
	"regexp"
	"strings"
)

// Repository identifies one GitHub repository. It is derived once from the
// user-supplied URL/string and used as the lookup key for every downstream call.
type Repository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// GitHub usernames: alphanumeric plus single internal hyphens, max 39 chars,
// no leading/trailing hyphen. Repo names additionally allow '.' and '_'.
var (
	ownerPattern = regexp.MustCompile(`^[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*$`)
	namePattern  = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// ParseRepository extracts owner/name from the common GitHub URL formats:
// full https URLs (with or without .git), "github.com/owner/repo", the SSH
// form "git@github.com:owner/repo" and a bare "owner/repo".
func ParseRepository(input string) (Repository, error) {
	s := strings.TrimSpace(input)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")
	s = strings.TrimPrefix(s, "https://github.com/")
	s = strings.TrimPrefix(s, "http://github.com/")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimPrefix(s, "git@github.com:")

	parts := strings.Split(s, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Repository{}, fmt.Errorf("invalid GitHub repository %q: expected owner/repo", input)
	}
	return Repository{Owner: parts[0], Name: parts[1]}, nil
}

// Validate applies GitHub's strict naming rules to both fields.
func (r Repository) Validate() error {
	if r.Owner == "" || r.Name == "" {
		return fmt.Errorf("repository owner and name must be non-empty")
	}
	if len(r.Owner) > 39 || !ownerPattern.MatchString(r.Owner) {
		return fmt.Errorf("invalid repository owner %q", r.Owner)
	}
	if len(r.Name) > 100 || !namePattern.MatchString(r.Name) {
		return fmt.Errorf("invalid repository name %q", r.Name)
	}
	return nil
}

// FullName returns "owner/name".
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// URL returns the canonical browser URL for the repository.
func (r Repository) URL() string {
	return "https://github.com/" + r.Owner + "/" + r.Name
}

// BlobURL returns the browser URL of a file on the main branch.
func (r Repository) BlobURL(path string) string {
	return r.URL() + "/blob/main/" + path
}
