package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/anupa-perera/Githubpedia/internal/models"
	"github.com/anupa-perera/Githubpedia/internal/service"
)

// QueryHandler wires HTTP → QueryService.
type QueryHandler struct {
	svc service.QueryService
	// fallbackToken is the optional server-level GitHub token used when a
	// request carries none (local development).
	fallbackToken string
}

// NewQueryHandler returns a struct pointer so you can call Register on it.
func NewQueryHandler(svc service.QueryService, fallbackToken string) *QueryHandler {
	return &QueryHandler{svc: svc, fallbackToken: fallbackToken}
}

// Register mounts the query endpoints on the supplied router group.
func (h *QueryHandler) Register(r fiber.Router) {
	r.Post("/query", h.query)
	r.Post("/query/stream", h.queryStream)
}

// query handles POST /query and returns the complete QueryOutcome as JSON.
func (h *QueryHandler) query(c *fiber.Ctx) error {
	repo, req, err := h.parseRequest(c)
	if err != nil {
		return err
	}

	outcome := h.svc.ProcessQuery(c.UserContext(), repo, req.Query, h.token(c, req), req.LLM, req.Messages)
	return c.Status(statusForOutcome(outcome)).JSON(outcome)
}

// queryStream handles POST /query/stream with Server-Sent-Events framing:
// one `data:` event per token, then a final `done` event carrying the full
// QueryOutcome.
func (h *QueryHandler) queryStream(c *fiber.Ctx) error {
	repo, req, err := h.parseRequest(c)
	if err != nil {
		return err
	}
	token := h.token(c, req)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// The fiber context is recycled once this handler returns, so the stream
	// writer runs against a fresh background context.
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		outcome := h.svc.ProcessQueryStream(context.Background(), repo, req.Query, token, req.LLM, req.Messages,
			func(tok string) {
				writeEvent(w, "", fiber.Map{"token": tok})
			})
		writeEvent(w, "done", outcome)
	}))
	return nil
}

// parseRequest decodes the body and resolves the repository identity from
// either repo_url or the owner/repo pair.
func (h *QueryHandler) parseRequest(c *fiber.Ctx) (models.Repository, models.QueryRequest, error) {
	var req models.QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return models.Repository{}, req, fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if req.Query == "" {
		return models.Repository{}, req, fiber.NewError(fiber.StatusBadRequest, "query is required")
	}

	var repo models.Repository
	if req.RepoURL != "" {
		parsed, err := models.ParseRepository(req.RepoURL)
		if err != nil {
			return models.Repository{}, req, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		repo = parsed
	} else {
		repo = models.Repository{Owner: req.Owner, Name: req.Repo}
	}
	if err := repo.Validate(); err != nil {
		return models.Repository{}, req, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return repo, req, nil
}

// token resolves the GitHub token: request body, then header, then the
// server-level fallback.
func (h *QueryHandler) token(c *fiber.Ctx, req models.QueryRequest) string {
	if req.GitHubToken != "" {
		return req.GitHubToken
	}
	if hdr := c.Get("X-GitHub-Token"); hdr != "" {
		return hdr
	}
	return h.fallbackToken
}

// statusForOutcome maps pipeline error kinds to HTTP status codes. The
// pipeline itself never deals in statuses.
func statusForOutcome(o models.QueryOutcome) int {
	if o.Success {
		return fiber.StatusOK
	}
	switch o.ErrorKind {
	case models.ErrKindAuthRequired, models.ErrKindLLMAuth:
		return fiber.StatusUnauthorized
	case models.ErrKindRepositoryNotFound:
		return fiber.StatusNotFound
	case models.ErrKindRateLimited:
		return fiber.StatusTooManyRequests
	case models.ErrKindUnsupportedProvider, models.ErrKindInvalidRequest:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusBadGateway
	}
}

// writeEvent frames one SSE event and flushes it immediately.
func writeEvent(w *bufio.Writer, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	w.Flush()
}
