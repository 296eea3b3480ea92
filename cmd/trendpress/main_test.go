package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "crawl", "generate", "trends", "recommend", "publish", "run"}, names)
}

func TestGenerateRequiresKeyword(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"generate"})
	assert.Error(t, root.Execute())
}

func TestPublishRejectsBadID(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"publish", "abc"})
	err := root.Execute()
	assert.ErrorContains(t, err, "invalid article id")
}
