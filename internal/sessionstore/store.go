// Package sessionstore persists sessions, one JSON document per session:
// <session_dir>/<session_id>/session.json. Saves are atomic (write a
// temporary sibling, then rename), so a session.json on disk is always
// either the old document or the new one, never half-written.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/codeturn-ai/opencode/pkg/types"
)

// ErrNotFound reports a session id with no stored document, distinct from
// a document that exists but fails to parse.
var ErrNotFound = errors.New("session not found")

const documentName = "session.json"

// Store reads and writes session documents under one directory. It does no
// locking; the engine runs at most one turn per session at a time.
type Store struct {
	dir string
}

// New creates a store rooted at sessionDir.
func New(sessionDir string) *Store {
	return &Store{dir: sessionDir}
}

// Dir returns the directory the store is rooted at.
func (st *Store) Dir() string { return st.dir }

func (st *Store) documentPath(id types.SessionID) string {
	return filepath.Join(st.dir, id.String(), documentName)
}

// Save writes the session's document, creating its directory if missing.
// The document is marshaled pretty and renamed over the target, so a crash
// mid-save never leaves a corrupt file behind.
func (st *Store) Save(sess *types.Session) error {
	dir := filepath.Join(st.dir, sess.ID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmp := filepath.Join(dir, documentName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, documentName)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename session: %w", err)
	}
	return nil
}

// Load reads a session document. A missing file returns ErrNotFound; a
// present but unparseable file returns the parse error, so the two are
// distinguishable to the caller.
func (st *Store) Load(id types.SessionID) (*types.Session, error) {
	data, err := os.ReadFile(st.documentPath(id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var sess types.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse %s: %w", id, err)
	}
	return &sess, nil
}

// Delete removes the session's directory tree. Deleting an absent session
// is a no-op.
func (st *Store) Delete(id types.SessionID) error {
	return os.RemoveAll(filepath.Join(st.dir, id.String()))
}

// Listing is one row of a session listing.
type Listing struct {
	ID      types.SessionID `json:"id"`
	Title   string          `json:"title"`
	Updated time.Time       `json:"updated"`
}

// List enumerates the store's sessions, newest first by the document's
// modified time. Entries whose directory name is not a session id, or whose
// document is missing or unreadable, are skipped rather than failing the
// listing.
func (st *Store) List() ([]Listing, error) {
	entries, err := os.ReadDir(st.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	type row struct {
		listing Listing
		mtime   time.Time
	}
	var rows []row

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := types.ParseSessionID(entry.Name())
		if err != nil {
			continue
		}

		info, err := os.Stat(st.documentPath(id))
		if err != nil {
			continue
		}
		sess, err := st.Load(id)
		if err != nil {
			continue
		}

		rows = append(rows, row{
			listing: Listing{ID: id, Title: sess.Title(), Updated: sess.UpdatedAt},
			mtime:   info.ModTime(),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].mtime.After(rows[j].mtime) })

	listings := make([]Listing, len(rows))
	for i, r := range rows {
		listings[i] = r.listing
	}
	return listings, nil
}
