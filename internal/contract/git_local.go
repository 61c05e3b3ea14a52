package contract

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommitFieldSeparator splits the fields of a commit header. The unit
// separator cannot appear in author names or subjects.
const CommitFieldSeparator = "\x1f"

// CommitLogFormat is the pretty format shared by the log and show commands.
// Each commit header is --<hash>, <author>, <iso date> and <subject> joined
// by CommitFieldSeparator.
const CommitLogFormat = "--pretty=format:'--%H%x1f%an%x1f%ad%x1f%s'"

// LocalGitClient implements the GitClient interface by executing the
// local 'git' binary installed on the machine.
type LocalGitClient struct{}

var _ GitClient = &LocalGitClient{} // Compile-time check

// NewLocalGitClient creates a new instance of the local Git client.
func NewLocalGitClient() *LocalGitClient {
	return &LocalGitClient{}
}

// Run executes a git command and returns its stdout output.
func (c *LocalGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	fullArgs := append([]string{"-C", repoPath}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stderr := strings.TrimSpace(string(exitErr.Stderr))
		return nil, fmt.Errorf("git command failed in %q: %s. If this is not a Git repository, verify the path or run 'git init'", repoPath, stderr)
	} else if err != nil {
		return nil, fmt.Errorf("git command failed: %w. Ensure Git is installed and available on your PATH", err)
	}
	return out, nil
}

// GetRepoHash implements the GitClient interface.
func (c *LocalGitClient) GetRepoHash(ctx context.Context, repoPath string) (string, error) {
	out, err := c.Run(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// GetRepoRoot implements the GitClient interface.
func (c *LocalGitClient) GetRepoRoot(ctx context.Context, contextPath string) (string, error) {
	out, err := c.Run(ctx, contextPath, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// GetCommitLog implements the GitClient interface.
func (c *LocalGitClient) GetCommitLog(ctx context.Context, repoPath string, maxCommits int) ([]byte, error) {
	args := []string{
		"log",
		"--numstat",
		CommitLogFormat,
		"--date=iso-strict",
	}
	if maxCommits > 0 {
		args = append(args, fmt.Sprintf("-n%d", maxCommits))
	}
	return c.Run(ctx, repoPath, args...)
}

// GetCommitDetails implements the GitClient interface.
func (c *LocalGitClient) GetCommitDetails(ctx context.Context, repoPath string, ref string) ([]byte, error) {
	args := []string{
		"show",
		"--numstat",
		CommitLogFormat,
		"--date=iso-strict",
		ref,
	}
	return c.Run(ctx, repoPath, args...)
}

// GetChangedFiles implements the GitClient interface.
func (c *LocalGitClient) GetChangedFiles(ctx context.Context, repoPath string, ref string) ([]string, error) {
	args := []string{
		"diff-tree", "--no-commit-id", "--name-only", "-r",
		ref,
	}
	out, err := c.Run(ctx, repoPath, args...)
	if err != nil {
		return nil, err
	}
	files := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(files) == 1 && files[0] == "" {
		return []string{}, nil
	}
	return files, nil
}
