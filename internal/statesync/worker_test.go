package statesync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeturn-ai/opencode/internal/sessionstore"
	"github.com/codeturn-ai/opencode/pkg/types"
)

func putSession(t *testing.T, store *sessionstore.Store, title string) types.SessionID {
	t.Helper()
	sess := types.NewSession()
	sess.PushMessage(types.NewMessage(types.RoleUser, title))
	require.NoError(t, store.Save(sess))
	return sess.ID
}

func TestWorker_ScanAndPublish(t *testing.T) {
	dir := t.TempDir()
	store := sessionstore.New(dir)
	idA := putSession(t, store, "session a")
	idB := putSession(t, store, "session b")

	w := New(store, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, dir)

	select {
	case listings := <-w.Updates():
		require.Len(t, listings, 2)
		ids := []types.SessionID{listings[0].ID, listings[1].ID}
		assert.Contains(t, ids, idA)
		assert.Contains(t, ids, idB)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial scan")
	}
}

func TestWorker_DetectsNewSessionBeforeNextPollTick(t *testing.T) {
	dir := t.TempDir()
	store := sessionstore.New(dir)

	// A long poll interval means only the filesystem watch can plausibly
	// deliver this within the test timeout.
	w := New(store, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, dir)

	<-w.Updates() // drain the initial (empty) scan

	id := putSession(t, store, "late arrival")

	select {
	case listings := <-w.Updates():
		require.Len(t, listings, 1)
		assert.Equal(t, id, listings[0].ID)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for filesystem-triggered scan")
	}
}

func TestNew_DefaultsInterval(t *testing.T) {
	w := New(sessionstore.New(t.TempDir()), 0)
	assert.Equal(t, DefaultScanInterval, w.interval)
}
