package integrations

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/schema"
	"golang.org/x/sync/errgroup"
)

const githubPageSize = 100

// GitHubClient describes commits and pull requests through the GitHub REST API.
type GitHubClient struct {
	*client
}

// NewGitHubClient builds a client from the CI provider settings of cfg.
func NewGitHubClient(cfg *contract.Config) *GitHubClient {
	if cfg.CIBaseURL == "" {
		c := *cfg
		c.CIBaseURL = contract.DefaultGitHubBaseURL
		cfg = &c
	}
	token := cfg.CIToken
	return &GitHubClient{client: newClient(cfg, "github", func(req *http.Request) {
		req.Header.Set("Accept", "application/vnd.github.v3+json")
		if token != "" {
			req.Header.Set("Authorization", "token "+token)
		}
	})}
}

type githubCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Author struct {
			Name string `json:"name"`
		} `json:"author"`
		Message string `json:"message"`
	} `json:"commit"`
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
	Files []githubFile `json:"files"`
}

type githubFile struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

type githubPull struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
	Head struct {
		SHA string `json:"sha"`
	} `json:"head"`
}

// FetchChange describes ref in project ("owner/repo"). A ref of the form "#12"
// names a pull request; anything else is a commit sha.
func (c *GitHubClient) FetchChange(ctx context.Context, project, ref string) (schema.ChangeContext, error) {
	repo, err := githubRepoPath(project)
	if err != nil {
		return schema.ChangeContext{}, err
	}
	if n, ok := parseRequestRef(ref); ok {
		return c.fetchPullRequest(ctx, repo, n)
	}

	var commit githubCommit
	path := fmt.Sprintf("/repos/%s/commits/%s", repo, url.PathEscape(ref))
	if err := c.getJSON(ctx, path, "github commit", &commit); err != nil {
		return schema.ChangeContext{}, err
	}
	change := schema.ChangeContext{
		CommitHash:   commit.SHA,
		Author:       commit.Commit.Author.Name,
		Message:      commit.Commit.Message,
		Insertions:   commit.Stats.Additions,
		Deletions:    commit.Stats.Deletions,
		ChangedFiles: make([]string, 0, len(commit.Files)),
	}
	for _, f := range commit.Files {
		change.ChangedFiles = append(change.ChangedFiles, f.Filename)
	}
	c.logger.Info().Str("sha", change.CommitHash).Int("files", len(change.ChangedFiles)).Msg("Fetched GitHub commit")
	return change, nil
}

// fetchPullRequest loads the pull request and its files concurrently.
func (c *GitHubClient) fetchPullRequest(ctx context.Context, repo string, number int) (schema.ChangeContext, error) {
	var (
		pull  githubPull
		files []githubFile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.getJSON(gctx, fmt.Sprintf("/repos/%s/pulls/%d", repo, number), "github pull request", &pull)
	})
	g.Go(func() error {
		var err error
		files, err = c.pullRequestFiles(gctx, repo, number)
		return err
	})
	if err := g.Wait(); err != nil {
		return schema.ChangeContext{}, err
	}

	change := schema.ChangeContext{
		CommitHash:   pull.Head.SHA,
		Author:       pull.User.Login,
		Message:      pull.Title,
		ChangedFiles: make([]string, 0, len(files)),
	}
	for _, f := range files {
		change.Insertions += f.Additions
		change.Deletions += f.Deletions
		change.ChangedFiles = append(change.ChangedFiles, f.Filename)
	}
	c.logger.Info().Int("pull", number).Int("files", len(change.ChangedFiles)).Msg("Fetched GitHub pull request")
	return change, nil
}

// pullRequestFiles pages through the files of a pull request.
func (c *GitHubClient) pullRequestFiles(ctx context.Context, repo string, number int) ([]githubFile, error) {
	var all []githubFile
	for page := 1; ; page++ {
		var batch []githubFile
		path := fmt.Sprintf("/repos/%s/pulls/%d/files?per_page=%d&page=%d", repo, number, githubPageSize, page)
		if err := c.getJSON(ctx, path, "github pull request files", &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < githubPageSize {
			return all, nil
		}
	}
}

func githubRepoPath(project string) (string, error) {
	owner, repo, ok := strings.Cut(strings.Trim(project, "/"), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", fmt.Errorf("github project must be owner/repo (received %q)", project)
	}
	return url.PathEscape(owner) + "/" + url.PathEscape(repo), nil
}
