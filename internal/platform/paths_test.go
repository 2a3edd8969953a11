package platform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveDir(dir + string(filepath.Separator) + ".")
	if err != nil {
		t.Fatalf("ResolveDir failed: %v", err)
	}
	if got != filepath.Clean(dir) {
		t.Errorf("ResolveDir = %s, want %s", got, dir)
	}

	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"missing", filepath.Join(dir, "missing")},
		{"file", file},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveDir(tt.path)
			var perr *PathError
			if !errors.As(err, &perr) {
				t.Errorf("expected PathError, got %v", err)
			}
		})
	}
}

func TestCheckSeparate(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	nested := filepath.Join(a, "inner")
	sibling := filepath.Join(root, "a2")
	for _, d := range []string{a, b, nested, sibling} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		a, b    string
		wantErr bool
	}{
		{"disjoint", a, b, false},
		{"prefix sibling", a, sibling, false},
		{"same", a, a, true},
		{"reference inside source", a, nested, true},
		{"source inside reference", nested, a, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSeparate(tt.a, tt.b)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckSeparate(%s, %s) = %v, wantErr %v", tt.a, tt.b, err, tt.wantErr)
			}
		})
	}
}

func TestCheckSeparateSymlink(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	link := filepath.Join(root, "link")
	if err := os.Mkdir(a, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(a, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if err := CheckSeparate(a, link); err == nil {
		t.Error("a symlink to the same directory should be rejected")
	}
}

func TestNormalizePath(t *testing.T) {
	if got := NormalizePath("a//b/../c/"); got != filepath.Join("a", "c") {
		t.Errorf("NormalizePath = %s", got)
	}
}
