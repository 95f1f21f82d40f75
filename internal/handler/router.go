package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/anupa-perera/Githubpedia/internal/github"
	"github.com/anupa-perera/Githubpedia/internal/service"
)

// RegisterRoutes mounts every API endpoint under /api/v1.
func RegisterRoutes(app *fiber.App,
	querySvc service.QueryService,
	newGitHubClient func(token string) *github.Client,
	fallbackToken string,
) {
	v1 := app.Group("/api/v1")
	NewQueryHandler(querySvc, fallbackToken).Register(v1)
	NewRepoHandler(newGitHubClient, fallbackToken).Register(v1)
}
