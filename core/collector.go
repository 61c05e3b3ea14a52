package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/internal/logger"
	"github.com/huangsam/pts/schema"
)

// collectCommits runs a single repository-wide git log and parses every commit
// with its numstat totals.
func collectCommits(ctx context.Context, cfg *contract.Config, client contract.GitClient) ([]schema.CommitRecord, error) {
	out, err := client.GetCommitLog(ctx, cfg.RepoPath, cfg.MaxCommits)
	if err != nil {
		return nil, err
	}
	commits := ParseCommitLog(out)
	logger.Named("collector").Info().Int("commits", len(commits)).Str("repo", cfg.RepoPath).Msg("Collected commit history")
	return commits, nil
}

// ParseCommitLog processes numstat log output into commit records, newest first.
func ParseCommitLog(out []byte) []schema.CommitRecord {
	lines := strings.Split(string(out), "\n")
	var commits []schema.CommitRecord
	var current *schema.CommitRecord

	for _, l := range lines {
		l = strings.Trim(l, " \t\r\n'")

		if strings.HasPrefix(l, "--") {
			// Commit header line
			if c, ok := parseCommitHeader(l); ok {
				commits = append(commits, c)
				current = &commits[len(commits)-1]
			} else {
				current = nil
			}
			continue
		}
		if l == "" || current == nil {
			continue
		}

		// File stats line
		add, del, ok := parseFileStatsLine(l)
		if !ok {
			continue
		}
		current.Insertions += add
		current.Deletions += del
		current.FilesChanged++
	}
	return commits
}

// parseCommitHeader extracts hash, author, date and subject from a commit header line.
func parseCommitHeader(line string) (schema.CommitRecord, bool) {
	if !strings.HasPrefix(line, "--") || len(line) < 7 {
		return schema.CommitRecord{}, false
	}
	parts := strings.SplitN(line[2:], contract.CommitFieldSeparator, 4)
	if len(parts) != 4 || parts[0] == "" {
		return schema.CommitRecord{}, false
	}
	date, err := time.Parse(time.RFC3339, parts[2])
	if err != nil {
		return schema.CommitRecord{}, false
	}
	return schema.CommitRecord{
		Hash:      parts[0],
		Author:    parts[1],
		Timestamp: date,
		Message:   parts[3],
	}, true
}

// parseFileStatsLine parses a numstat line into its added and deleted counts.
func parseFileStatsLine(line string) (int, int, bool) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) < 3 {
		return 0, 0, false
	}
	return parseChurnValue(parts[0]), parseChurnValue(parts[1]), true
}

// parseChurnValue converts a churn string to int, handling "-" as 0.
func parseChurnValue(s string) int {
	if s == "-" {
		return 0
	}
	if val, err := strconv.Atoi(s); err == nil && val >= 0 {
		return val
	}
	return 0
}

// CollectChange describes a single commit of the repository as a change to score.
func CollectChange(ctx context.Context, client contract.GitClient, repoPath, ref string) (schema.ChangeContext, error) {
	out, err := client.GetCommitDetails(ctx, repoPath, ref)
	if err != nil {
		return schema.ChangeContext{}, err
	}
	commits := ParseCommitLog(out)
	if len(commits) == 0 {
		return schema.ChangeContext{}, fmt.Errorf("no commit found for ref %s", ref)
	}
	files, err := client.GetChangedFiles(ctx, repoPath, ref)
	if err != nil {
		return schema.ChangeContext{}, err
	}
	c := commits[0]
	return schema.ChangeContext{
		CommitHash:   c.Hash,
		Author:       c.Author,
		Message:      c.Message,
		Insertions:   c.Insertions,
		Deletions:    c.Deletions,
		ChangedFiles: files,
	}, nil
}
