package contract

import (
	"testing"
	"unicode/utf8"
)

// FuzzTruncateID fuzzes TruncateID with random ids and widths.
func FuzzTruncateID(f *testing.F) {
	seeds := []struct {
		id    string
		width int
	}{
		{"tests/unit/test_parser.py::test_ok", 20},
		{"", 5},
		{"日本語のテスト名", 4},
		{"x", 0},
	}
	for _, seed := range seeds {
		f.Add(seed.id, seed.width)
	}

	f.Fuzz(func(t *testing.T, id string, width int) {
		if !utf8.ValidString(id) {
			t.Skip()
		}
		got := TruncateID(id, width)
		if width > 3 && utf8.RuneCountInString(got) > width {
			t.Errorf("TruncateID(%q, %d) = %q exceeds width", id, width, got)
		}
	})
}
