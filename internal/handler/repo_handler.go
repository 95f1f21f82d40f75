package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/anupa-perera/Githubpedia/internal/github"
)

// RepoHandler exposes thin read-only passthroughs over the GitHub client:
// repository search for the picker, commit history and pull-request diffs for
// the browsing panels.
type RepoHandler struct {
	newClient     func(token string) *github.Client
	fallbackToken string
}

// NewRepoHandler takes a client factory so each request runs with the
// caller's own token.
func NewRepoHandler(newClient func(token string) *github.Client, fallbackToken string) *RepoHandler {
	return &RepoHandler{newClient: newClient, fallbackToken: fallbackToken}
}

// Register mounts the repository endpoints on the supplied router group.
func (h *RepoHandler) Register(r fiber.Router) {
	r.Get("/repositories/search", h.search)
	r.Get("/repositories/:owner/:repo/commits", h.listCommits)
	r.Get("/repositories/:owner/:repo/commits/:ref", h.getCommit)
	r.Get("/repositories/:owner/:repo/pulls/:number/files", h.pullFiles)
}

func (h *RepoHandler) search(c *fiber.Ctx) error {
	q := c.Query("q")
	if q == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query parameter q is required")
	}

	repos, err := h.client(c).SearchRepositories(c.UserContext(), q)
	if err != nil {
		return githubHTTPError(err)
	}
	return c.JSON(fiber.Map{"repositories": repos})
}

func (h *RepoHandler) listCommits(c *fiber.Ctx) error {
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	opts := github.ListCommitsOptions{
		SHA:     c.Query("sha"),
		Path:    c.Query("path"),
		PerPage: perPage,
	}

	commits, err := h.client(c).ListCommits(c.UserContext(), c.Params("owner"), c.Params("repo"), opts)
	if err != nil {
		return githubHTTPError(err)
	}
	return c.JSON(fiber.Map{"commits": commits})
}

func (h *RepoHandler) getCommit(c *fiber.Ctx) error {
	detail, err := h.client(c).GetCommit(c.UserContext(), c.Params("owner"), c.Params("repo"), c.Params("ref"))
	if err != nil {
		return githubHTTPError(err)
	}
	return c.JSON(detail)
}

func (h *RepoHandler) pullFiles(c *fiber.Ctx) error {
	number, err := strconv.Atoi(c.Params("number"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "pull request number must be an integer")
	}

	files, err := h.client(c).GetPullRequestFiles(c.UserContext(), c.Params("owner"), c.Params("repo"), number)
	if err != nil {
		return githubHTTPError(err)
	}
	return c.JSON(fiber.Map{"files": files})
}

func (h *RepoHandler) client(c *fiber.Ctx) *github.Client {
	token := c.Get("X-GitHub-Token")
	if token == "" {
		token = h.fallbackToken
	}
	return h.newClient(token)
}

// githubHTTPError translates the client's error taxonomy into fiber errors.
func githubHTTPError(err error) error {
	var apiErr *github.APIError
	if !errors.As(err, &apiErr) {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	switch apiErr.Kind {
	case github.KindAuthRequired, github.KindUnauthorized:
		return fiber.NewError(fiber.StatusUnauthorized, "GitHub authentication required")
	case github.KindNotFound:
		return fiber.NewError(fiber.StatusNotFound, "not found on GitHub")
	case github.KindRateLimited:
		return fiber.NewError(fiber.StatusTooManyRequests, "GitHub rate limit reached; retry later")
	case github.KindNetwork:
		return fiber.NewError(fiber.StatusBadGateway, "could not reach GitHub")
	default:
		return fiber.NewError(fiber.StatusBadGateway, apiErr.Message)
	}
}
