package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	orig := []string{Version, Commit, Date}
	t.Cleanup(func() { Version, Commit, Date = orig[0], orig[1], orig[2] })

	Version, Commit, Date = "0.3.0", "deadbeefcafe", "2026-02-01"

	info := Info()
	assert.Contains(t, info, "agentdesk 0.3.0")
	assert.Contains(t, info, "deadbee")
	assert.NotContains(t, info, "deadbeefcafe")
	assert.Contains(t, info, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "agentdesk/"+Version, UserAgent())
}

func TestShort(t *testing.T) {
	assert.Equal(t, "1234567", short("12345678"))
	assert.Equal(t, "abc", short("abc"))
	assert.Equal(t, "", short(""))
}
