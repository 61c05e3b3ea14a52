package integrations

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/schema"
	"golang.org/x/sync/errgroup"
)

// JenkinsClient reads per-build test reports from a Jenkins job.
type JenkinsClient struct {
	*client
	workers   int
	maxBuilds int
}

// NewJenkinsClient builds a client from the CI provider settings of cfg.
func NewJenkinsClient(cfg *contract.Config) *JenkinsClient {
	user, token := cfg.CIUser, cfg.CIToken
	workers := cfg.Workers
	if workers <= 0 {
		workers = contract.DefaultWorkers
	}
	return &JenkinsClient{
		client: newClient(cfg, "jenkins", func(req *http.Request) {
			if user != "" || token != "" {
				req.SetBasicAuth(user, token)
			}
		}),
		workers:   workers,
		maxBuilds: cfg.MaxCommits,
	}
}

type jenkinsJob struct {
	Builds []jenkinsBuild `json:"builds"`
}

type jenkinsBuild struct {
	Number  int `json:"number"`
	Actions []struct {
		LastBuiltRevision *struct {
			SHA1 string `json:"SHA1"`
		} `json:"lastBuiltRevision"`
	} `json:"actions"`
}

// commit returns the git revision the build ran against.
func (b jenkinsBuild) commit() string {
	for _, a := range b.Actions {
		if a.LastBuiltRevision != nil && a.LastBuiltRevision.SHA1 != "" {
			return a.LastBuiltRevision.SHA1
		}
	}
	return ""
}

type jenkinsTestReport struct {
	Suites []struct {
		Cases []struct {
			ClassName string `json:"className"`
			Name      string `json:"name"`
			Status    string `json:"status"`
		} `json:"cases"`
	} `json:"suites"`
}

// FetchOutcomes lists the builds of job project and reads their test reports
// concurrently. Builds without a revision or a test report are skipped.
func (c *JenkinsClient) FetchOutcomes(ctx context.Context, project string) ([]schema.TestOutcomeRecord, error) {
	if c.baseURL == "" {
		return nil, errors.New("jenkins base url is required")
	}
	jobPath, err := jenkinsJobPath(project)
	if err != nil {
		return nil, err
	}

	var job jenkinsJob
	tree := url.QueryEscape("builds[number,actions[lastBuiltRevision[SHA1]]]")
	if err := c.getJSON(ctx, jobPath+"/api/json?tree="+tree, "jenkins job", &job); err != nil {
		return nil, err
	}
	builds := job.Builds
	if c.maxBuilds > 0 && len(builds) > c.maxBuilds {
		builds = builds[:c.maxBuilds]
	}

	results := make([][]schema.TestOutcomeRecord, len(builds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, b := range builds {
		g.Go(func() error {
			sha := b.commit()
			if sha == "" {
				c.logger.Debug().Int("build", b.Number).Msg("Skipping build without revision")
				return nil
			}
			records, err := c.buildOutcomes(gctx, jobPath, b.Number, sha)
			if err != nil {
				return err
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []schema.TestOutcomeRecord
	for _, r := range results {
		out = append(out, r...)
	}
	c.logger.Info().Int("builds", len(builds)).Int("outcomes", len(out)).Msg("Fetched Jenkins test reports")
	return out, nil
}

func (c *JenkinsClient) buildOutcomes(ctx context.Context, jobPath string, number int, sha string) ([]schema.TestOutcomeRecord, error) {
	var report jenkinsTestReport
	path := jobPath + "/" + strconv.Itoa(number) + "/testReport/api/json"
	if err := c.getJSON(ctx, path, "jenkins test report", &report); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	var out []schema.TestOutcomeRecord
	for _, suite := range report.Suites {
		for _, tc := range suite.Cases {
			status := strings.ToUpper(tc.Status)
			if status == "SKIPPED" {
				continue
			}
			out = append(out, schema.TestOutcomeRecord{
				TestID:   jenkinsTestID(tc.ClassName, tc.Name),
				CommitID: sha,
				Failed:   status == "FAILED" || status == "REGRESSION",
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TestID < out[j].TestID })
	return out, nil
}

func jenkinsTestID(className, name string) string {
	if className == "" {
		return name
	}
	return className + "." + name
}

// jenkinsJobPath maps "folder/job" onto "/job/folder/job/job".
func jenkinsJobPath(project string) (string, error) {
	project = strings.Trim(project, "/")
	if project == "" {
		return "", errors.New("jenkins job name is required")
	}
	var b strings.Builder
	for part := range strings.SplitSeq(project, "/") {
		if part == "" {
			continue
		}
		b.WriteString("/job/")
		b.WriteString(url.PathEscape(part))
	}
	return b.String(), nil
}
