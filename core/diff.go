package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/huangsam/pts/schema"
	"github.com/sourcegraph/go-diff/diff"
)

// ChangeFromDiff describes a unified patch as a change to score. The patch
// carries no author or message, so those stay empty.
func ChangeFromDiff(patch []byte) (schema.ChangeContext, error) {
	fileDiffs, err := diff.NewMultiFileDiffReader(bytes.NewReader(patch)).ReadAllFiles()
	if err != nil {
		return schema.ChangeContext{}, fmt.Errorf("invalid patch: %w", err)
	}

	var change schema.ChangeContext
	for _, fd := range fileDiffs {
		path := fd.NewName
		if path == "" || path == "/dev/null" {
			path = fd.OrigName
		}
		// Strip a/ or b/ prefix from git diffs
		path = strings.TrimPrefix(path, "a/")
		path = strings.TrimPrefix(path, "b/")
		change.ChangedFiles = append(change.ChangedFiles, path)

		for _, hunk := range fd.Hunks {
			for line := range strings.SplitSeq(string(hunk.Body), "\n") {
				switch {
				case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
					change.Insertions++
				case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
					change.Deletions++
				}
			}
		}
	}
	if len(change.ChangedFiles) == 0 {
		return schema.ChangeContext{}, fmt.Errorf("patch contains no file changes")
	}
	return change, nil
}
