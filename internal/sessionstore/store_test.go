package sessionstore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeturn-ai/opencode/pkg/types"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	st := New(t.TempDir())

	sess := types.NewSession()
	sess.PushMessage(types.NewMessage(types.RoleUser, "hi"))
	sess.PushMessage(types.NewMessage(types.RoleAssistant, "hello"))
	require.NoError(t, st.Save(sess))

	loaded, err := st.Load(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, "hi", loaded.Messages[0].Content)

	// A second save-load cycle yields byte-identical documents.
	first, err := json.Marshal(sess)
	require.NoError(t, err)
	second, err := json.Marshal(loaded)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSave_LeavesNoTempFile(t *testing.T) {
	st := New(t.TempDir())
	sess := types.NewSession()
	require.NoError(t, st.Save(sess))

	dir := filepath.Join(st.Dir(), sess.ID.String())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session.json", entries[0].Name())
}

func TestLoad_MissingVsCorrupt(t *testing.T) {
	st := New(t.TempDir())

	_, err := st.Load(types.NewSessionID())
	assert.True(t, errors.Is(err, ErrNotFound))

	// A torn or garbage document is a parse error, not ErrNotFound.
	id := types.NewSessionID()
	dir := filepath.Join(st.Dir(), id.String())
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.json"), []byte("{half a doc"), 0o644))

	_, err = st.Load(id)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestDelete_Idempotent(t *testing.T) {
	st := New(t.TempDir())

	sess := types.NewSession()
	require.NoError(t, st.Save(sess))
	require.NoError(t, st.Delete(sess.ID))

	_, err := st.Load(sess.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	// Deleting again is a no-op, not an error.
	assert.NoError(t, st.Delete(sess.ID))
}

func TestList_SkipsGarbageAndSortsByRecency(t *testing.T) {
	st := New(t.TempDir())

	older := types.NewSession()
	older.PushMessage(types.NewMessage(types.RoleUser, "older session"))
	require.NoError(t, st.Save(older))

	time.Sleep(10 * time.Millisecond)

	newer := types.NewSession()
	newer.PushMessage(types.NewMessage(types.RoleUser, "newer session"))
	require.NoError(t, st.Save(newer))

	// A directory that isn't a session id, and one with a corrupt
	// document, must both be skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(st.Dir(), "not-a-session"), 0o755))
	torn := types.NewSessionID()
	require.NoError(t, os.MkdirAll(filepath.Join(st.Dir(), torn.String()), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), torn.String(), "session.json"), []byte("{"), 0o644))

	listings, err := st.List()
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, newer.ID, listings[0].ID)
	assert.Equal(t, "newer session", listings[0].Title)
	assert.Equal(t, older.ID, listings[1].ID)
}

func TestList_EmptyStore(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "never-created"))
	listings, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, listings)
}
