package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func providerConfig(baseURL string) *contract.Config {
	return &contract.Config{
		CIBaseURL: baseURL,
		CIToken:   "secret",
		CIUser:    "ci",
		CIRate:    1000,
		Workers:   2,
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestGitHubFetchCommit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/shop/commits/abc123", r.URL.Path)
		assert.Equal(t, "token secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		writeJSON(t, w, map[string]any{
			"sha": "abc123",
			"commit": map[string]any{
				"author":  map[string]any{"name": "Ann"},
				"message": "fix: handle nil cart",
			},
			"stats": map[string]any{"additions": 7, "deletions": 2},
			"files": []map[string]any{{"filename": "cart.go"}, {"filename": "cart_test.go"}},
		})
	}))
	defer srv.Close()

	change, err := NewGitHubClient(providerConfig(srv.URL)).FetchChange(context.Background(), "acme/shop", "abc123")
	require.NoError(t, err)
	assert.Equal(t, schema.ChangeContext{
		CommitHash:   "abc123",
		Author:       "Ann",
		Message:      "fix: handle nil cart",
		Insertions:   7,
		Deletions:    2,
		ChangedFiles: []string{"cart.go", "cart_test.go"},
	}, change)
}

func TestGitHubFetchPullRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/shop/pulls/12":
			writeJSON(t, w, map[string]any{
				"number": 12,
				"title":  "feat: coupons",
				"user":   map[string]any{"login": "bob"},
				"head":   map[string]any{"sha": "def456"},
			})
		case "/repos/acme/shop/pulls/12/files":
			assert.Equal(t, "1", r.URL.Query().Get("page"))
			writeJSON(t, w, []map[string]any{
				{"filename": "coupon.go", "additions": 40, "deletions": 0},
				{"filename": "cart.go", "additions": 3, "deletions": 5},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	change, err := NewGitHubClient(providerConfig(srv.URL)).FetchChange(context.Background(), "acme/shop", "#12")
	require.NoError(t, err)
	assert.Equal(t, "def456", change.CommitHash)
	assert.Equal(t, "bob", change.Author)
	assert.Equal(t, "feat: coupons", change.Message)
	assert.Equal(t, 43, change.Insertions)
	assert.Equal(t, 5, change.Deletions)
	assert.Equal(t, []string{"coupon.go", "cart.go"}, change.ChangedFiles)
}

func TestGitHubErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewGitHubClient(providerConfig(srv.URL))
	_, err := c.FetchChange(context.Background(), "acme/shop", "abc")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "Bad credentials")

	_, err = c.FetchChange(context.Background(), "shop", "abc")
	assert.Error(t, err)
}

func TestGitLabFetchCommit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Private-Token"))
		switch r.URL.EscapedPath() {
		case "/projects/acme%2Fshop/repository/commits/abc123":
			writeJSON(t, w, map[string]any{
				"id":          "abc123",
				"author_name": "Ann",
				"message":     "refactor: split cart",
				"stats":       map[string]any{"additions": 10, "deletions": 4},
			})
		case "/projects/acme%2Fshop/repository/commits/abc123/diff":
			writeJSON(t, w, []map[string]any{{"new_path": "cart.go"}, {"new_path": "cart/items.go"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	change, err := NewGitLabClient(providerConfig(srv.URL)).FetchChange(context.Background(), "acme/shop", "abc123")
	require.NoError(t, err)
	assert.Equal(t, schema.ChangeContext{
		CommitHash:   "abc123",
		Author:       "Ann",
		Message:      "refactor: split cart",
		Insertions:   10,
		Deletions:    4,
		ChangedFiles: []string{"cart.go", "cart/items.go"},
	}, change)
}

func TestGitLabFetchMergeRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/42/merge_requests/7/changes", r.URL.Path)
		writeJSON(t, w, map[string]any{
			"iid":    7,
			"title":  "test: cover coupons",
			"sha":    "fff000",
			"author": map[string]any{"username": "cy"},
			"changes": []map[string]any{
				{"new_path": "coupon_test.go", "diff": "@@ -1,2 +1,3 @@\n a\n-b\n+c\n+d\n"},
			},
		})
	}))
	defer srv.Close()

	change, err := NewGitLabClient(providerConfig(srv.URL)).FetchChange(context.Background(), "42", "!7")
	require.NoError(t, err)
	assert.Equal(t, "fff000", change.CommitHash)
	assert.Equal(t, "cy", change.Author)
	assert.Equal(t, 2, change.Insertions)
	assert.Equal(t, 1, change.Deletions)
	assert.Equal(t, []string{"coupon_test.go"}, change.ChangedFiles)

	_, err = NewGitLabClient(providerConfig(srv.URL)).FetchChange(context.Background(), "", "abc")
	assert.Error(t, err)
}

func TestJenkinsFetchOutcomes(t *testing.T) {
	var reports atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ci", user)
		assert.Equal(t, "secret", pass)

		switch r.URL.Path {
		case "/job/team/job/shop/api/json":
			writeJSON(t, w, map[string]any{"builds": []map[string]any{
				{"number": 3, "actions": []map[string]any{{}, {"lastBuiltRevision": map[string]any{"SHA1": "ccc"}}}},
				{"number": 2, "actions": []map[string]any{{"lastBuiltRevision": map[string]any{"SHA1": "bbb"}}}},
				{"number": 1, "actions": []map[string]any{}},
			}})
		case "/job/team/job/shop/3/testReport/api/json":
			reports.Add(1)
			writeJSON(t, w, map[string]any{"suites": []map[string]any{{"cases": []map[string]any{
				{"className": "shop.CartTest", "name": "testAdd", "status": "REGRESSION"},
				{"className": "shop.CartTest", "name": "testRemove", "status": "PASSED"},
				{"className": "shop.CartTest", "name": "testSkip", "status": "SKIPPED"},
			}}}})
		case "/job/team/job/shop/2/testReport/api/json":
			reports.Add(1)
			http.NotFound(w, r)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, err := NewJenkinsClient(providerConfig(srv.URL)).FetchOutcomes(context.Background(), "team/shop")
	require.NoError(t, err)
	assert.Equal(t, []schema.TestOutcomeRecord{
		{TestID: "shop.CartTest.testAdd", CommitID: "ccc", Failed: true},
		{TestID: "shop.CartTest.testRemove", CommitID: "ccc", Failed: false},
	}, out)
	assert.Equal(t, int32(2), reports.Load())
}

func TestJenkinsErrors(t *testing.T) {
	_, err := NewJenkinsClient(&contract.Config{}).FetchOutcomes(context.Background(), "shop")
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewJenkinsClient(providerConfig(srv.URL))
	_, err = c.FetchOutcomes(context.Background(), "shop")
	assert.Error(t, err)

	_, err = c.FetchOutcomes(context.Background(), "")
	assert.Error(t, err)
}

func TestLimiterHonorsContext(t *testing.T) {
	cfg := providerConfig("http://127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGitHubClient(cfg).FetchChange(ctx, "acme/shop", "abc")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHelpers(t *testing.T) {
	n, ok := parseRequestRef("#12")
	assert.True(t, ok)
	assert.Equal(t, 12, n)
	_, ok = parseRequestRef("abc123")
	assert.False(t, ok)
	_, ok = parseRequestRef("!0")
	assert.False(t, ok)

	ins, del := countDiffLines("--- a/x\n+++ b/x\n@@ -1 +1 @@\n-a\n+b\n+c\n")
	assert.Equal(t, 2, ins)
	assert.Equal(t, 1, del)

	path, err := jenkinsJobPath("/folder/app/")
	require.NoError(t, err)
	assert.Equal(t, "/job/folder/job/app", path)

	assert.Equal(t, "name", jenkinsTestID("", "name"))
}
