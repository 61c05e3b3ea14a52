package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/internal/iocache"
	"github.com/huangsam/pts/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// logFields joins commit header fields the way git prints them.
func logFields(fields ...string) string {
	return "--" + strings.Join(fields, contract.CommitFieldSeparator)
}

var sampleLog = logFields("aaa111", "Ann", "2024-03-04T10:15:00Z", "feat: add cart") + `
10	2	cart.go
3	0	cart_test.go
` + logFields("bbb222", "Bob", "2024-03-05T23:00:00Z", "fix: rounding") + `
-	-	logo.png
1	1	price.go
` + logFields("ccc333", "Ann", "2024-03-10T08:00:00Z", "refactor: split") + "\n"

func sampleCommits() []schema.CommitRecord {
	return ParseCommitLog([]byte(sampleLog))
}

func TestParseCommitLog(t *testing.T) {
	commits := sampleCommits()
	require.Len(t, commits, 3)

	assert.Equal(t, "aaa111", commits[0].Hash)
	assert.Equal(t, "Ann", commits[0].Author)
	assert.Equal(t, "feat: add cart", commits[0].Message)
	assert.Equal(t, 13, commits[0].Insertions)
	assert.Equal(t, 2, commits[0].Deletions)
	assert.Equal(t, 2, commits[0].FilesChanged)
	assert.Equal(t, 15, commits[0].Churn())

	assert.Equal(t, 1, commits[1].Insertions)
	assert.Equal(t, 2, commits[1].FilesChanged)
	assert.Equal(t, 0, commits[2].FilesChanged)

	assert.Empty(t, ParseCommitLog([]byte("garbage\n--bad|header\n")))
}

func TestParseCommitLogPipesInFields(t *testing.T) {
	out := logFields("ddd444", "Ann | Bob", "2024-04-01T12:00:00Z", "fix: a|b parsing") + "\n2\t1\tparse.go\n"
	commits := ParseCommitLog([]byte(out))
	require.Len(t, commits, 1)
	assert.Equal(t, "Ann | Bob", commits[0].Author)
	assert.Equal(t, "fix: a|b parsing", commits[0].Message)
	assert.Equal(t, time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC), commits[0].Timestamp.UTC())
	assert.Equal(t, 3, commits[0].Churn())
}

func TestProcessor(t *testing.T) {
	p := NewProcessor("")
	commits := sampleCommits()

	t.Run("transform commits", func(t *testing.T) {
		f := p.CleanAndTransformCommits(commits)
		assert.Equal(t, 3, f.Len())
		exp, err := f.Float64s(schema.ColAuthorExperience)
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 1, 2}, exp)

		days, err := f.Float64s(schema.ColDayOfWeek)
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 1, 6}, days) // Monday, Tuesday, Sunday

		hours, err := f.Float64s(schema.ColHourOfDay)
		require.NoError(t, err)
		assert.Equal(t, []float64{10, 23, 8}, hours)
	})

	t.Run("merge drops unknown commits", func(t *testing.T) {
		outcomes := []schema.TestOutcomeRecord{
			{TestID: "t1", CommitID: "aaa111", Failed: true},
			{TestID: "t1", CommitID: "zzz999", Failed: false},
			{TestID: "t2", CommitID: "bbb222", Failed: false},
		}
		merged, err := p.RunProcessingPipeline(commits, outcomes)
		require.NoError(t, err)
		assert.Equal(t, 2, merged.Len())
		ids, err := merged.Strings(schema.ColCommitID)
		require.NoError(t, err)
		assert.Equal(t, []string{"aaa111", "bbb222"}, ids)
		assert.True(t, merged.Has(schema.ColMessage))
		assert.True(t, merged.Has(schema.ColDefaultTarget))
	})

	t.Run("merge requires commit ids", func(t *testing.T) {
		_, err := p.MergeData(mustFrame(t, strCol("author_name", "a")), mustFrame(t, strCol("commit_id", "a")))
		assert.ErrorIs(t, err, schema.ErrSchema)
	})
}

func TestReadCSV(t *testing.T) {
	input := "test_id,count,ratio,flag,note\nt1,1,0.5,true,x\nt2,,1,FALSE,\n"
	f, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, schema.StringKind, f.Kind("test_id"))
	assert.Equal(t, schema.IntKind, f.Kind("count"))
	assert.Equal(t, schema.FloatKind, f.Kind("ratio"))
	assert.Equal(t, schema.BoolKind, f.Kind("flag"))
	assert.Equal(t, schema.StringKind, f.Kind("note"))

	count, _ := f.Column("count")
	assert.True(t, count.IsNull(1))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, f))
	assert.Equal(t, "test_id,count,ratio,flag,note\nt1,1,0.5,true,x\nt2,,1,false,\n", buf.String())

	_, err = ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestDatasetConversions(t *testing.T) {
	t.Run("commits", func(t *testing.T) {
		commits := sampleCommits()
		back, err := CommitsFromFrame(CommitsFrame(commits))
		require.NoError(t, err)
		assert.Equal(t, commits[0].Hash, back[0].Hash)
		assert.True(t, commits[1].Timestamp.Equal(back[1].Timestamp))
		assert.Equal(t, commits[0].Insertions, back[0].Insertions)
	})

	t.Run("outcomes", func(t *testing.T) {
		outcomes := []schema.TestOutcomeRecord{{TestID: "t1", CommitID: "c1", Failed: true}}
		back, err := OutcomesFromFrame(OutcomesFrame(outcomes, "broke"), "broke")
		require.NoError(t, err)
		assert.Equal(t, outcomes, back)
	})

	t.Run("predictions keep full precision through csv", func(t *testing.T) {
		set := schema.PredictionSet{Records: []schema.PredictionRecord{
			{TestID: "t1", FailureProbability: 0.49999999999, Source: schema.FallbackSource},
		}}
		path := filepath.Join(t.TempDir(), "preds.csv")
		require.NoError(t, WriteCSVFile(path, PredictionsFrame(set)))

		f, err := ReadCSVFile(path)
		require.NoError(t, err)
		back, err := PredictionsFromFrame(f)
		require.NoError(t, err)
		assert.Equal(t, set.Records, back)
	})

	t.Run("ground truth falls back to failed column", func(t *testing.T) {
		f := mustFrame(t, strCol("test_id", "a", "b"), intCol("failed", 1, 0))
		truth, err := GroundTruthFromFrame(f, "test_failed")
		require.NoError(t, err)
		assert.Equal(t, []schema.GroundTruthRecord{{TestID: "a", Failed: true}, {TestID: "b"}}, truth)

		_, err = GroundTruthFromFrame(mustFrame(t, strCol("test_id", "a")), "test_failed")
		assert.ErrorIs(t, err, schema.ErrSchema)
	})
}

func TestSimulateOutcomes(t *testing.T) {
	commits := sampleCommits()
	out := SimulateOutcomes(commits, 20, 10)
	assert.Len(t, out, 60)

	var failed []string
	for _, o := range out {
		if o.Failed {
			failed = append(failed, o.TestID+"@"+o.CommitID)
		}
	}
	assert.Equal(t, []string{"test_0@aaa111", "test_13@ccc333", "test_14@bbb222", "test_15@aaa111"}, failed[:4])
	assert.Equal(t, []string{"test_0", "test_1"}, SimulatedTestIDs(2))
}

func TestParseJUnit(t *testing.T) {
	report := `<?xml version="1.0"?>
<testsuites>
  <testsuite name="shop">
    <properties><property name="commit" value="abc"/></properties>
    <testcase classname="cart" name="adds"/>
    <testcase classname="cart" name="removes"><failure message="boom"/></testcase>
    <testcase name="flaky"><skipped/></testcase>
    <testcase name="crash"><error/></testcase>
  </testsuite>
</testsuites>`

	records, err := ParseJUnitReport([]byte(report), "fallback")
	require.NoError(t, err)
	assert.Equal(t, []schema.TestOutcomeRecord{
		{TestID: "cart.adds", CommitID: "abc"},
		{TestID: "cart.removes", CommitID: "abc", Failed: true},
		{TestID: "crash", CommitID: "abc", Failed: true},
	}, records)

	_, err = ParseJUnitReport([]byte("<html/>"), "x")
	assert.Error(t, err)

	dir := t.TempDir()
	sub := filepath.Join(dir, "def456")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	suite := `<testsuite name="s"><testcase name="one"/></testsuite>`
	require.NoError(t, os.WriteFile(filepath.Join(sub, "report.xml"), []byte(suite), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "notes.txt"), []byte("skip me"), 0o644))

	fromDir, err := ParseJUnitDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []schema.TestOutcomeRecord{{TestID: "one", CommitID: "def456"}}, fromDir)
}

type stubOutcomeFetcher struct {
	project string
}

func (s *stubOutcomeFetcher) FetchOutcomes(_ context.Context, project string) ([]schema.TestOutcomeRecord, error) {
	s.project = project
	return []schema.TestOutcomeRecord{{TestID: "ci", CommitID: "c"}}, nil
}

func TestCollectOutcomes(t *testing.T) {
	ctx := context.Background()

	cfg := &contract.Config{OutcomeSource: schema.SimulatedOutcomes}
	out, err := CollectOutcomes(ctx, cfg, sampleCommits(), nil)
	require.NoError(t, err)
	assert.Len(t, out, DefaultSimulatedTests*3)

	cfg = &contract.Config{OutcomeSource: schema.JenkinsOutcomes, CIProject: "shop"}
	_, err = CollectOutcomes(ctx, cfg, nil, nil)
	assert.Error(t, err)

	fetcher := &stubOutcomeFetcher{}
	out, err = CollectOutcomes(ctx, cfg, nil, fetcher)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, "shop", fetcher.project)
}

func TestCollectChange(t *testing.T) {
	ctx := context.Background()
	client := &contract.MockGitClient{}
	client.On("GetCommitDetails", ctx, "/repo", "HEAD").Return([]byte(strings.SplitAfter(sampleLog, "cart_test.go\n")[0]), nil)
	client.On("GetChangedFiles", ctx, "/repo", "HEAD").Return([]string{"cart.go", "cart_test.go"}, nil)

	change, err := CollectChange(ctx, client, "/repo", "HEAD")
	require.NoError(t, err)
	assert.Equal(t, schema.ChangeContext{
		CommitHash:   "aaa111",
		Author:       "Ann",
		Message:      "feat: add cart",
		Insertions:   13,
		Deletions:    2,
		ChangedFiles: []string{"cart.go", "cart_test.go"},
	}, change)
	client.AssertExpectations(t)

	empty := &contract.MockGitClient{}
	empty.On("GetCommitDetails", ctx, "/repo", "nope").Return([]byte(""), nil)
	_, err = CollectChange(ctx, empty, "/repo", "nope")
	assert.Error(t, err)
}

func TestChangeFeatures(t *testing.T) {
	lm := &LogisticModel{
		Features:         []string{"churn", "type_fix", "type_feature"},
		TestFailureRates: map[string]float64{"b": 0.5, "a": 0.1},
		AuthorExperience: map[string]int{"Ann": 4},
	}
	assert.Equal(t, []string{"a", "b"}, ModelTests(lm))
	assert.Nil(t, ModelTests(nil))

	change := schema.ChangeContext{Author: "Ann", Message: "fix: bug", Insertions: 6, Deletions: 2, ChangedFiles: []string{"x.go"}}
	when := time.Date(2024, 3, 6, 14, 0, 0, 0, time.UTC) // Wednesday
	f, err := ChangeFeatures(lm, change, when, ModelTests(lm))
	require.NoError(t, err)

	row := f.Row(1)
	assert.Equal(t, "b", row["test_id"])
	assert.Equal(t, 8.0, row["churn"])
	assert.Equal(t, 1.0, row["files_changed"])
	assert.Equal(t, 4.0, row["author_experience"])
	assert.Equal(t, 0.5, row["historical_failure_rate"])
	assert.Equal(t, 4.0, row["churn_failure_interaction"])
	assert.Equal(t, 0.5, row["exp_churn_ratio"])
	assert.Equal(t, 2.0, row["day_of_week"])
	assert.Equal(t, 14.0, row["hour_of_day"])
	assert.Equal(t, 1.0, row["type_fix"])
	assert.Equal(t, 0.0, row["type_feature"])

	bare, err := ChangeFeatures(nil, change, when, []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, bare.Row(0)["historical_failure_rate"])
}

func TestChangeFromDiff(t *testing.T) {
	patch := `diff --git a/cart.go b/cart.go
index 1111111..2222222 100644
--- a/cart.go
+++ b/cart.go
@@ -1,2 +1,3 @@
 package cart
-var total = 0
+var total = 1
+var count = 0
diff --git a/old.go b/old.go
deleted file mode 100644
index 3333333..0000000
--- a/old.go
+++ /dev/null
@@ -1,2 +0,0 @@
-package old
-// gone
`
	change, err := ChangeFromDiff([]byte(patch))
	require.NoError(t, err)
	assert.Equal(t, []string{"cart.go", "old.go"}, change.ChangedFiles)
	assert.Equal(t, 2, change.Insertions)
	assert.Equal(t, 3, change.Deletions)

	_, err = ChangeFromDiff([]byte(""))
	assert.Error(t, err)
}

func TestCollectCommitHistory(t *testing.T) {
	ctx := context.Background()
	cfg := &contract.Config{RepoPath: "/repo", MaxCommits: 50}

	newClient := func() *contract.MockGitClient {
		client := &contract.MockGitClient{}
		client.On("GetRepoHash", ctx, "/repo").Return("head1", nil)
		client.On("GetCommitLog", ctx, "/repo", 50).Return([]byte(sampleLog), nil)
		return client
	}

	t.Run("without cache", func(t *testing.T) {
		client := newClient()
		commits, err := CollectCommitHistory(ctx, cfg, client, nil)
		require.NoError(t, err)
		assert.Len(t, commits, 3)
		client.AssertNotCalled(t, "GetRepoHash", ctx, "/repo")
	})

	t.Run("cache miss stores result", func(t *testing.T) {
		client := newClient()
		store := &iocache.MockCacheStore{}
		store.On("Get", mock.Anything).Return(nil, 0, int64(0), errors.New("miss"))
		store.On("Set", mock.Anything, mock.Anything, currentCacheVersion, mock.Anything).Return(nil)
		mgr := &iocache.MockCacheManager{}
		mgr.On("GetCommitStore").Return(store)

		commits, err := CollectCommitHistory(ctx, cfg, client, mgr)
		require.NoError(t, err)
		assert.Len(t, commits, 3)
		store.AssertExpectations(t)
	})

	t.Run("cache hit skips git log", func(t *testing.T) {
		client := &contract.MockGitClient{}
		client.On("GetRepoHash", ctx, "/repo").Return("head1", nil)
		data, err := json.Marshal(sampleCommits())
		require.NoError(t, err)
		store := &iocache.MockCacheStore{}
		store.On("Get", mock.Anything).Return(data, currentCacheVersion, time.Now().Unix(), nil)
		mgr := &iocache.MockCacheManager{}
		mgr.On("GetCommitStore").Return(store)

		commits, err := CollectCommitHistory(ctx, cfg, client, mgr)
		require.NoError(t, err)
		assert.Len(t, commits, 3)
		client.AssertNotCalled(t, "GetCommitLog", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stale entry is recomputed", func(t *testing.T) {
		client := newClient()
		store := &iocache.MockCacheStore{}
		stale := time.Now().Add(-2 * maxCacheAge).Unix()
		store.On("Get", mock.Anything).Return([]byte("[]"), currentCacheVersion, stale, nil)
		store.On("Set", mock.Anything, mock.Anything, currentCacheVersion, mock.Anything).Return(nil)
		mgr := &iocache.MockCacheManager{}
		mgr.On("GetCommitStore").Return(store)

		commits, err := CollectCommitHistory(ctx, cfg, client, mgr)
		require.NoError(t, err)
		assert.Len(t, commits, 3)
		client.AssertCalled(t, "GetCommitLog", ctx, "/repo", 50)
	})

	t.Run("key changes with head", func(t *testing.T) {
		a := &contract.MockGitClient{}
		a.On("GetRepoHash", ctx, "/repo").Return("head1", nil)
		b := &contract.MockGitClient{}
		b.On("GetRepoHash", ctx, "/repo").Return("head2", nil)
		assert.NotEqual(t, generateCacheKey(ctx, cfg, a), generateCacheKey(ctx, cfg, b))
	})
}
