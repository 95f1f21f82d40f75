package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/anupa-perera/Githubpedia/internal/github"
	"github.com/anupa-perera/Githubpedia/internal/models"
)

// ---- GitHub contract -------------------------------------------------------

// EvidenceClient is the slice of the GitHub API the pipeline consumes. The
// concrete implementation is internal/github.Client; tests supply fakes.
type EvidenceClient interface {
	GetFileContents(ctx context.Context, owner, repo, path, ref string) (string, error)
	GetReadme(ctx context.Context, owner, repo string) (string, error)
	GetTree(ctx context.Context, owner, repo, ref string) ([]github.TreeEntry, error)
	SearchCode(ctx context.Context, query, owner, repo string) ([]github.CodeSearchHit, error)
	GetRepository(ctx context.Context, owner, repo string) (github.RepoSummary, error)
}

// ---- Selector contract -----------------------------------------------------

// Selection is what a FileSelector hands back: the gathered evidence files in
// selection order, the repository tree when (and only when) the structural
// tier fetched it, and any soft errors collected along the way.
type Selection struct {
	Files      []models.EvidenceFile
	Tree       []models.TreeEntry
	SoftErrors []string
}

// FileSelector decides which files to fetch content for, given a query and a
// repository. The default is the deterministic heuristic below; an LLM-driven
// planner can be substituted without touching the rest of the pipeline.
type FileSelector interface {
	SelectFiles(ctx context.Context, repo models.Repository, query string) Selection
}

// Selection tiers and budgets.
const (
	searchTierLimit = 5 // top code-search hits fetched
	fallbackTarget  = 3 // conventional files gathered before stopping
	enrichTierLimit = 5 // top structurally-scored blobs fetched
	enrichThreshold = 3 // enrichment runs only while fewer files gathered
	largeFileBytes  = 50000
	deepPathSlashes = 4
	treeRef         = "main"
)

// conventionalFiles is the ordered fallback list: README variants, manifests
// of the common ecosystems, then common entry points.
var conventionalFiles = []string{
	"README.md",
	"README.rst",
	"README.txt",
	"README",
	"package.json",
	"requirements.txt",
	"Cargo.toml",
	"go.mod",
	"pom.xml",
	"src/index.js",
	"src/index.ts",
	"src/main.js",
	"src/main.ts",
	"app.js",
	"app.py",
	"main.py",
	"main.go",
	"main.rs",
}

type heuristicSelector struct {
	gh  EvidenceClient
	log *zap.Logger
}

// NewHeuristicSelector returns the default three-tier selector: code search,
// conventional-file fallback, then structural scoring over the full tree.
func NewHeuristicSelector(gh EvidenceClient, log *zap.Logger) FileSelector {
	return &heuristicSelector{gh: gh, log: log}
}

// SelectFiles runs the tiers in order. Individual file-fetch failures are
// skipped, never fatal; a failure of the code-search call itself is recorded
// as a soft error and execution falls through to the next tier.
func (s *heuristicSelector) SelectFiles(ctx context.Context, repo models.Repository, query string) Selection {
	var sel Selection

	// Tier 1: code search scoped to the repository, GitHub's ranking kept.
	hits, err := s.gh.SearchCode(ctx, query, repo.Owner, repo.Name)
	if err != nil {
		sel.SoftErrors = append(sel.SoftErrors, fmt.Sprintf("code search failed: %v", err))
		s.log.Warn("code search failed, falling back", zap.String("repo", repo.FullName()), zap.Error(err))
	} else {
		if len(hits) > searchTierLimit {
			hits = hits[:searchTierLimit]
		}
		candidates := make([]fileCandidate, 0, len(hits))
		for _, h := range hits {
			candidates = append(candidates, fileCandidate{
				path: h.Path,
				tag:  fmt.Sprintf("search match, score %.1f", h.Score),
			})
		}
		files, softErrs := s.fetchAll(ctx, repo, candidates)
		sel.Files = append(sel.Files, files...)
		sel.SoftErrors = append(sel.SoftErrors, softErrs...)
	}

	// Tier 2: conventional files, only when search yielded nothing usable.
	// Ordered with an early stop, so fetched sequentially.
	if len(sel.Files) == 0 {
		for _, path := range conventionalFiles {
			content, err := s.gh.GetFileContents(ctx, repo.Owner, repo.Name, path, "")
			if err != nil {
				// A missing conventional file is expected, not an error.
				continue
			}
			sel.Files = append(sel.Files, models.EvidenceFile{
				Path:         path,
				Content:      content,
				RelevanceTag: "common project file",
			})
			if len(sel.Files) >= fallbackTarget {
				break
			}
		}
	}

	// Tier 3: structural scoring over the full tree, only while evidence is
	// still thin. The tree is kept on the selection so the assembler can
	// attach it without a second fetch.
	if len(sel.Files) < enrichThreshold {
		tree, err := s.gh.GetTree(ctx, repo.Owner, repo.Name, treeRef)
		if err != nil {
			sel.SoftErrors = append(sel.SoftErrors, fmt.Sprintf("tree fetch failed: %v", err))
			return sel
		}
		sel.Tree = toModelTree(tree)

		scored := scoreTree(tree, query, selectedPaths(sel.Files))
		if len(scored) > enrichTierLimit {
			scored = scored[:enrichTierLimit]
		}
		candidates := make([]fileCandidate, 0, len(scored))
		for _, sc := range scored {
			candidates = append(candidates, fileCandidate{
				path: sc.path,
				tag:  fmt.Sprintf("structure analysis, score %d", sc.score),
			})
		}
		files, softErrs := s.fetchAll(ctx, repo, candidates)
		sel.Files = append(sel.Files, files...)
		sel.SoftErrors = append(sel.SoftErrors, softErrs...)
	}

	return sel
}

// ---- concurrent content fetching -------------------------------------------

type fileCandidate struct {
	path string
	tag  string
}

// fetchAll fetches content for every candidate concurrently (at most one tier
// cap's worth at a time), preserving candidate order in the result. A failed
// fetch is skipped; the batch never aborts for one failure.
func (s *heuristicSelector) fetchAll(ctx context.Context, repo models.Repository, candidates []fileCandidate) ([]models.EvidenceFile, []string) {
	if len(candidates) == 0 {
		return nil, nil
	}

	type slot struct {
		file models.EvidenceFile
		err  error
		ok   bool
	}
	slots := make([]slot, len(candidates))

	var wg sync.WaitGroup
	for i, cand := range candidates {
		wg.Add(1)
		go func(i int, cand fileCandidate) {
			defer wg.Done()
			content, err := s.gh.GetFileContents(ctx, repo.Owner, repo.Name, cand.path, "")
			if err != nil {
				slots[i] = slot{err: err}
				return
			}
			slots[i] = slot{
				file: models.EvidenceFile{Path: cand.path, Content: content, RelevanceTag: cand.tag},
				ok:   true,
			}
		}(i, cand)
	}
	wg.Wait()

	var files []models.EvidenceFile
	var softErrs []string
	for i, sl := range slots {
		if !sl.ok {
			softErrs = append(softErrs, fmt.Sprintf("fetch %s failed: %v", candidates[i].path, sl.err))
			s.log.Warn("file fetch failed, skipping",
				zap.String("repo", repo.FullName()),
				zap.String("path", candidates[i].path),
				zap.Error(sl.err))
			continue
		}
		files = append(files, sl.file)
	}
	return files, softErrs
}

// ---- structural scoring ----------------------------------------------------

type scoredPath struct {
	path  string
	score int
	order int // original tree position, the tie-breaker
}

// sourceExtensions are treated identically for scoring purposes.
var sourceExtensions = []string{".js", ".ts", ".py", ".go", ".rs"}

// scoreTree scores every blob not already selected. Sort is descending by
// score with ties broken by original tree order.
func scoreTree(tree []github.TreeEntry, query string, selected map[string]bool) []scoredPath {
	terms := strings.Fields(strings.ToLower(query))

	var scored []scoredPath
	for i, entry := range tree {
		if entry.Kind != "file" || selected[entry.Path] {
			continue
		}
		scored = append(scored, scoredPath{
			path:  entry.Path,
			score: scorePath(entry, terms),
			order: i,
		})
	}

	sort.SliceStable(scored, func(a, b int) bool {
		if scored[a].score != scored[b].score {
			return scored[a].score > scored[b].score
		}
		return scored[a].order < scored[b].order
	})
	return scored
}

func scorePath(entry github.TreeEntry, terms []string) int {
	path := strings.ToLower(entry.Path)

	score := 0
	for _, term := range terms {
		if strings.Contains(path, term) {
			score += 10
			break
		}
	}
	if strings.Contains(path, "src/") || strings.Contains(path, "lib/") {
		score += 5
	}
	for _, ext := range sourceExtensions {
		if strings.HasSuffix(path, ext) {
			score += 3
			break
		}
	}
	if strings.Contains(path, "main") || strings.Contains(path, "index") || strings.Contains(path, "app") {
		score += 4
	}
	if strings.Contains(path, "config") || strings.Contains(path, "setup") {
		score += 2
	}
	if strings.Contains(path, "test") || strings.Contains(path, "spec") {
		score++
	}
	if entry.Size > largeFileBytes {
		score -= 2
	}
	if strings.Count(path, "/") > deepPathSlashes {
		score--
	}
	return score
}

func selectedPaths(files []models.EvidenceFile) map[string]bool {
	m := make(map[string]bool, len(files))
	for _, f := range files {
		m[f.Path] = true
	}
	return m
}

func toModelTree(tree []github.TreeEntry) []models.TreeEntry {
	out := make([]models.TreeEntry, 0, len(tree))
	for _, t := range tree {
		out = append(out, models.TreeEntry{Path: t.Path, Kind: t.Kind, Size: t.Size})
	}
	return out
}
