package sharing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeturn-ai/opencode/pkg/types"
)

func TestShare_IssuesStableOpaqueToken(t *testing.T) {
	m := NewManager("")
	id := types.NewSessionID()

	url, err := m.Share(id)
	require.NoError(t, err)
	assert.NotContains(t, url, id.String(), "share URL must not leak the session id")

	again, err := m.Share(id)
	require.NoError(t, err)
	assert.Equal(t, url, again)

	token := url[strings.LastIndex(url, "/")+1:]
	resolved, ok := m.GetByToken(token)
	require.True(t, ok)
	assert.Equal(t, id, resolved)
}

func TestUnshare_RevokesToken(t *testing.T) {
	m := NewManager("http://localhost/share")
	id := types.NewSessionID()

	url, err := m.Share(id)
	require.NoError(t, err)
	token := url[strings.LastIndex(url, "/")+1:]

	m.Unshare(id)
	_, ok := m.GetByToken(token)
	assert.False(t, ok)
	_, ok = m.GetBySession(id)
	assert.False(t, ok)
}
