package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanKBNameForPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"simple", "/tmp/my-docs", "scan_path_my_docs"},
		{"trailing slash", "/tmp/my-docs/", "scan_path_my_docs"},
		{"dots and spaces", "./weird path.v2", "scan_path_weird_path_v2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scanKBNameForPath(tt.path)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanKBNameForPath_Deterministic(t *testing.T) {
	a := scanKBNameForPath("/tmp/fixture")
	b := scanKBNameForPath("/tmp/fixture")
	assert.Equal(t, a, b)
}
