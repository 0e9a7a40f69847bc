package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.bin")
	if err := os.WriteFile(path, make([]byte, 1234), 0o644); err != nil {
		t.Fatal(err)
	}

	size, err := FileSize(path)
	if err != nil {
		t.Fatal(err)
	}
	if size != 1234 {
		t.Fatalf("size = %d, want 1234", size)
	}

	if _, err := FileSize(dir); err == nil {
		t.Fatal("expected error for directory")
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "My Video", "My Video"},
		{"slashes", "a/b\\c", "a-b-c"},
		{"removed", `what? "quoted" <tag> |pipe|`, "what quoted tag pipe"},
		{"colon", "Live: The Concert", "Live- The Concert"},
		{"trimdots", "  trailing.  ", "trailing"},
		{"empty", "   ", "untitled"},
		{"onlyunsafe", `?"<>|`, "untitled"},
		{"unicode", "café", "café"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFileName(tt.in); got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFileNameTruncates(t *testing.T) {
	long := strings.Repeat("word ", 100)
	got := SanitizeFileName(long)
	if len(got) > 180 {
		t.Fatalf("length = %d, want <= 180", len(got))
	}
	if !strings.HasSuffix(got, "word") {
		t.Fatalf("expected truncation on a word boundary, got %q", got)
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1500, "1.5 KB"},
		{431_500_000, "431.5 MB"},
		{2_000_000_000, "2.0 GB"},
	}
	for _, tt := range tests {
		if got := HumanSize(tt.in); got != tt.want {
			t.Errorf("HumanSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
