package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmd_HasExpectedSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}

	assert.ElementsMatch(t, []string{
		"sync", "scan", "multi-source", "status", "info",
		"connectivity", "analytics", "version",
	}, names)
}

func TestMultiSourceCmd_HasSyncMultiKB(t *testing.T) {
	var names []string
	for _, c := range multiSourceCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "sync-multi-kb")
}

func TestParseMultiSourceFlags_RejectsInvalidSyncMode(t *testing.T) {
	_, err := parseMultiSourceFlags("not-a-real-mode", "")
	assert.Error(t, err)
}

func TestParseMultiSourceFlags_SelectiveRequiresSources(t *testing.T) {
	_, err := parseMultiSourceFlags("selective", "")
	assert.Error(t, err)
}

func TestParseMultiSourceFlags_SplitsCSV(t *testing.T) {
	selected, err := parseMultiSourceFlags("selective", "a, b ,c")
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, selected)
}
