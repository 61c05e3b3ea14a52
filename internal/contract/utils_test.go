package contract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetColorLabel(t *testing.T) {
	tests := []struct {
		name        string
		probability float64
		label       string
	}{
		{"low", 0.1, "Low"},
		{"moderate", 0.5, "Moderate"},
		{"high", 0.7, "High"},
		{"critical", 0.95, "Critical"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, GetColorLabel(tt.probability), tt.label)
		})
	}
}

func TestGetSelectionLabel(t *testing.T) {
	assert.Equal(t, RunValue, GetSelectionLabel(true, false))
	assert.Equal(t, SkipValue, GetSelectionLabel(false, false))
	assert.Contains(t, GetSelectionLabel(true, true), RunValue)
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		file, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, file)
	})

	t.Run("valid path creates file", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "test_output.txt")

		file, err := SelectOutputFile(tempFile)
		require.NoError(t, err)
		assert.NotNil(t, file)
		_ = file.Close()

		_, err = os.Stat(tempFile)
		assert.NoError(t, err)
	})
}

func TestDBFilePaths(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	cachePath := GetCacheDBFilePath()
	assert.Contains(t, cachePath, ".pts_cache.db")
	assert.True(t, strings.HasPrefix(cachePath, homeDir), "path %s should start with home dir %s", cachePath, homeDir)

	historyPath := GetHistoryDBFilePath()
	assert.Contains(t, historyPath, ".pts_history.db")
	assert.NotEqual(t, cachePath, historyPath)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", TruncateID("short", 10))
	assert.Equal(t, "...ccdd", TruncateID("aabbccdd", 7))
	assert.Equal(t, "aabbccdd", TruncateID("aabbccdd", 3), "too narrow to truncate")
}

func TestParseBoolString(t *testing.T) {
	tests := []struct {
		input   string
		want    bool
		wantErr bool
	}{
		{"yes", true, false},
		{"TRUE", true, false},
		{"1", true, false},
		{"no", false, false},
		{"False", false, false},
		{"0", false, false},
		{"maybe", false, true},
		{"", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBoolString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCSVList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseCSVList(" a, ,b,"))
	assert.Nil(t, ParseCSVList(""))
}
