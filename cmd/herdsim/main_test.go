package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureParentDir(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"bare name", "trace.db", false},
		{"memory", ":memory:", false},
		{"nested", filepath.Join(root, "a", "b", "trace.db"), false},
		{"under a file", filepath.Join(blocker, "sub", "trace.db"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ensureParentDir(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ensureParentDir(%q): err %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if !tt.wantErr && filepath.IsAbs(tt.path) {
				if _, err := os.Stat(filepath.Dir(tt.path)); err != nil {
					t.Fatalf("dir not created: %v", err)
				}
			}
		})
	}
}
