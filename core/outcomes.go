package core

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/internal/logger"
	"github.com/huangsam/pts/schema"
)

// Simulation defaults.
const (
	DefaultSimulatedTests   = 100
	DefaultSimulatedCommits = 10
	simulatedFailurePeriod  = 15
)

// OutcomeFetcher retrieves test outcomes from a CI server.
type OutcomeFetcher interface {
	FetchOutcomes(ctx context.Context, project string) ([]schema.TestOutcomeRecord, error)
}

// CollectOutcomes gathers test outcomes from the configured source.
func CollectOutcomes(ctx context.Context, cfg *contract.Config, commits []schema.CommitRecord, fetcher OutcomeFetcher) ([]schema.TestOutcomeRecord, error) {
	switch cfg.OutcomeSource {
	case schema.JUnitOutcomes:
		return ParseJUnitDir(cfg.JUnitDir)
	case schema.JenkinsOutcomes:
		if fetcher == nil {
			return nil, errors.New("jenkins outcomes require a configured jenkins client")
		}
		return fetcher.FetchOutcomes(ctx, cfg.CIProject)
	default:
		return SimulateOutcomes(commits, DefaultSimulatedTests, DefaultSimulatedCommits), nil
	}
}

// SimulatedTestIDs returns test_0 ... test_{n-1}.
func SimulatedTestIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("test_%d", i)
	}
	return ids
}

// SimulateOutcomes generates a deterministic outcome for numTests tests over the
// first numCommits commits. Test i fails on commit j when (i+j) is a multiple of 15.
func SimulateOutcomes(commits []schema.CommitRecord, numTests, numCommits int) []schema.TestOutcomeRecord {
	numCommits = min(numCommits, len(commits))
	out := make([]schema.TestOutcomeRecord, 0, numTests*numCommits)
	for i, id := range SimulatedTestIDs(numTests) {
		for j := 0; j < numCommits; j++ {
			out = append(out, schema.TestOutcomeRecord{
				TestID:   id,
				CommitID: commits[j].Hash,
				Failed:   (i+j)%simulatedFailurePeriod == 0,
			})
		}
	}
	logger.Named("collector").Info().Int("outcomes", len(out)).Msg("Simulated test outcomes")
	return out
}

type junitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type junitCase struct {
	Name      string    `xml:"name,attr"`
	ClassName string    `xml:"classname,attr"`
	Failure   *struct{} `xml:"failure"`
	Error     *struct{} `xml:"error"`
	Skipped   *struct{} `xml:"skipped"`
}

// junitSuite decodes both <testsuites> and <testsuite> roots.
type junitSuite struct {
	XMLName    xml.Name
	Name       string          `xml:"name,attr"`
	Properties []junitProperty `xml:"properties>property"`
	Cases      []junitCase     `xml:"testcase"`
	Suites     []junitSuite    `xml:"testsuite"`
}

// ParseJUnitDir reads every .xml report under dir. The commit of a report is
// taken from a "commit" suite property, or else the report's parent directory name.
func ParseJUnitDir(dir string) ([]schema.TestOutcomeRecord, error) {
	var out []schema.TestOutcomeRecord
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".xml") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		records, err := ParseJUnitReport(data, filepath.Base(filepath.Dir(path)))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, records...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Named("collector").Info().Int("outcomes", len(out)).Str("dir", dir).Msg("Parsed JUnit reports")
	return out, nil
}

// ParseJUnitReport parses one JUnit XML document. Skipped cases are ignored;
// a failure or error element marks the test as failed.
func ParseJUnitReport(data []byte, defaultCommit string) ([]schema.TestOutcomeRecord, error) {
	var root junitSuite
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.XMLName.Local != "testsuites" && root.XMLName.Local != "testsuite" {
		return nil, fmt.Errorf("unexpected root element <%s>", root.XMLName.Local)
	}
	var out []schema.TestOutcomeRecord
	collectSuite(root, defaultCommit, &out)
	return out, nil
}

func collectSuite(s junitSuite, commit string, out *[]schema.TestOutcomeRecord) {
	for _, p := range s.Properties {
		if p.Name == "commit" && p.Value != "" {
			commit = p.Value
		}
	}
	for _, c := range s.Cases {
		if c.Skipped != nil {
			continue
		}
		id := c.Name
		if c.ClassName != "" {
			id = c.ClassName + "." + c.Name
		}
		*out = append(*out, schema.TestOutcomeRecord{
			TestID:   id,
			CommitID: commit,
			Failed:   c.Failure != nil || c.Error != nil,
		})
	}
	for _, child := range s.Suites {
		collectSuite(child, commit, out)
	}
}
