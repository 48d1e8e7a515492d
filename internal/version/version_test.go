package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = oldVersion, oldCommit })

	Version, GitCommit = "1.2.0", "unknown"
	assert.Equal(t, "1.2.0", String())

	GitCommit = "abc1234"
	assert.Equal(t, "1.2.0 (abc1234)", String())
	assert.Equal(t, VersionInfo{Version: "1.2.0", GitCommit: "abc1234", BuildTime: BuildTime}, Info())
}
