package integrations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/schema"
	"golang.org/x/sync/errgroup"
)

// GitLabClient describes commits and merge requests through the GitLab v4 API.
type GitLabClient struct {
	*client
}

// NewGitLabClient builds a client from the CI provider settings of cfg.
func NewGitLabClient(cfg *contract.Config) *GitLabClient {
	if cfg.CIBaseURL == "" {
		c := *cfg
		c.CIBaseURL = contract.DefaultGitLabBaseURL
		cfg = &c
	}
	token := cfg.CIToken
	return &GitLabClient{client: newClient(cfg, "gitlab", func(req *http.Request) {
		if token != "" {
			req.Header.Set("Private-Token", token)
		}
	})}
}

type gitlabCommit struct {
	ID         string `json:"id"`
	AuthorName string `json:"author_name"`
	Message    string `json:"message"`
	Stats      struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
}

type gitlabDiff struct {
	NewPath string `json:"new_path"`
	Diff    string `json:"diff"`
}

type gitlabMergeRequest struct {
	IID    int    `json:"iid"`
	Title  string `json:"title"`
	SHA    string `json:"sha"`
	Author struct {
		Username string `json:"username"`
	} `json:"author"`
	Changes []gitlabDiff `json:"changes"`
}

// FetchChange describes ref in project (numeric id or "group/name"). A ref of
// the form "!12" names a merge request; anything else is a commit sha.
func (c *GitLabClient) FetchChange(ctx context.Context, project, ref string) (schema.ChangeContext, error) {
	if project == "" {
		return schema.ChangeContext{}, errors.New("gitlab project is required")
	}
	base := "/projects/" + url.PathEscape(project)
	if n, ok := parseRequestRef(ref); ok {
		return c.fetchMergeRequest(ctx, base, n)
	}

	var (
		commit gitlabCommit
		diffs  []gitlabDiff
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.getJSON(gctx, base+"/repository/commits/"+url.PathEscape(ref), "gitlab commit", &commit)
	})
	g.Go(func() error {
		return c.getJSON(gctx, base+"/repository/commits/"+url.PathEscape(ref)+"/diff", "gitlab commit diff", &diffs)
	})
	if err := g.Wait(); err != nil {
		return schema.ChangeContext{}, err
	}

	change := schema.ChangeContext{
		CommitHash:   commit.ID,
		Author:       commit.AuthorName,
		Message:      commit.Message,
		Insertions:   commit.Stats.Additions,
		Deletions:    commit.Stats.Deletions,
		ChangedFiles: changedPaths(diffs),
	}
	c.logger.Info().Str("sha", change.CommitHash).Int("files", len(change.ChangedFiles)).Msg("Fetched GitLab commit")
	return change, nil
}

func (c *GitLabClient) fetchMergeRequest(ctx context.Context, base string, iid int) (schema.ChangeContext, error) {
	var mr gitlabMergeRequest
	if err := c.getJSON(ctx, fmt.Sprintf("%s/merge_requests/%d/changes", base, iid), "gitlab merge request", &mr); err != nil {
		return schema.ChangeContext{}, err
	}
	change := schema.ChangeContext{
		CommitHash:   mr.SHA,
		Author:       mr.Author.Username,
		Message:      mr.Title,
		ChangedFiles: changedPaths(mr.Changes),
	}
	for _, d := range mr.Changes {
		ins, del := countDiffLines(d.Diff)
		change.Insertions += ins
		change.Deletions += del
	}
	c.logger.Info().Int("merge_request", iid).Int("files", len(change.ChangedFiles)).Msg("Fetched GitLab merge request")
	return change, nil
}

func changedPaths(diffs []gitlabDiff) []string {
	paths := make([]string, 0, len(diffs))
	for _, d := range diffs {
		paths = append(paths, d.NewPath)
	}
	return paths
}
