package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionID_Unique(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()
	assert.NotEqual(t, a, b)

	parsed, err := ParseSessionID(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
}

func TestParseSessionID_Invalid(t *testing.T) {
	_, err := ParseSessionID("not-a-ulid")
	assert.Error(t, err)
}

func TestSession_PushMessage(t *testing.T) {
	s := NewSession()
	require.True(t, s.IsEmpty())

	before := s.UpdatedAt
	s.PushMessage(NewMessage(RoleUser, "hello"))

	assert.False(t, s.IsEmpty())
	require.Len(t, s.Messages, 1)
	assert.Equal(t, RoleUser, s.Messages[0].Role)
	assert.True(t, s.UpdatedAt.After(before))
}

func TestSession_UpdatedAtMonotonic(t *testing.T) {
	s := NewSession()
	var last time.Time
	for i := 0; i < 5; i++ {
		s.PushMessage(NewMessage(RoleUser, "m"))
		assert.True(t, s.UpdatedAt.After(last))
		last = s.UpdatedAt
	}
}

func TestSession_Title(t *testing.T) {
	s := NewSession()
	assert.Equal(t, "New session", s.Title())

	s.PushMessage(NewMessage(RoleUser, "  fix the rendering bug\nin the sidebar"))
	assert.Equal(t, "fix the rendering bug", s.Title())
}

func TestSession_Title_SkipsSummaryMessages(t *testing.T) {
	s := NewSession()
	sm := NewMessage(RoleAssistant, "Summary of the earlier conversation:\nstuff happened")
	sm.Meta = &MessageMeta{Summary: true}
	s.PushMessage(sm)
	assert.Equal(t, "New session", s.Title())

	s.PushMessage(NewMessage(RoleUser, "fix the build"))
	assert.Equal(t, "fix the build", s.Title())
}

func TestSession_Title_Truncates(t *testing.T) {
	s := NewSession()
	s.PushMessage(NewMessage(RoleUser, strings.Repeat("x", 100)))
	title := s.Title()
	assert.LessOrEqual(t, len([]rune(title)), maxTitleLen+1)
	assert.True(t, strings.HasSuffix(title, "…"))
}

func TestSession_JSON_RoundTrip(t *testing.T) {
	s := NewSession()
	s.PushMessage(NewMessage(RoleUser, "hi"))
	s.PushMessage(Message{
		Role:      RoleTool,
		Content:   "output here",
		CreatedAt: time.Now().UTC(),
		Meta:      &MessageMeta{ToolName: "bash", ToolCallID: "call-1"},
	})
	s.PushMessage(NewMessage(RoleAssistant, "done"))

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded Session
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, s.ID, decoded.ID)
	require.Len(t, decoded.Messages, 3)
	assert.Equal(t, RoleTool, decoded.Messages[1].Role)
	require.NotNil(t, decoded.Messages[1].Meta)
	assert.Equal(t, "bash", decoded.Messages[1].Meta.ToolName)

	// serialize(deserialize(serialize(s))) == serialize(s)
	again, err := json.Marshal(&decoded)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestMessage_TimestampsAreRFC3339UTC(t *testing.T) {
	m := NewMessage(RoleUser, "hi")
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	stamp, ok := raw["created_at"].(string)
	require.True(t, ok)

	parsed, err := time.Parse(time.RFC3339Nano, stamp)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, parsed.Location())
}

func TestMessage_MetaOmittedWhenNil(t *testing.T) {
	data, err := json.Marshal(NewMessage(RoleAssistant, "hi"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	_, ok := raw["meta"]
	assert.False(t, ok)
}

func TestPreviewInput_Truncates(t *testing.T) {
	short := "ls -la"
	assert.Equal(t, short, PreviewInput(short))

	long := strings.Repeat("a", 300)
	preview := PreviewInput(long)
	assert.Less(t, len([]rune(preview)), len([]rune(long)))
	assert.True(t, strings.HasSuffix(preview, "…"))
}

func TestConfiguration_JSON_RoundTrip(t *testing.T) {
	maxIter := 25
	cfg := Configuration{
		Providers: []ProviderDescriptor{
			{ID: "anthropic", Kind: ProviderKindAnthropic, APIKey: "sk-test"},
		},
		DefaultAgent:       "build",
		MaxAgentIterations: &maxIter,
		Storage:            StorageConfig{SessionDir: ".opencode/sessions", ConfigDir: ".opencode"},
		Command: map[string]CommandConfig{
			"deploy": {Template: "run deploy.sh $ARGUMENTS"},
		},
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var decoded Configuration
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Len(t, decoded.Providers, 1)
	assert.Equal(t, ProviderKindAnthropic, decoded.Providers[0].Kind)
	assert.Equal(t, "build", decoded.DefaultAgent)
	require.NotNil(t, decoded.MaxAgentIterations)
	assert.Equal(t, 25, *decoded.MaxAgentIterations)
	assert.Contains(t, decoded.Command, "deploy")
}
