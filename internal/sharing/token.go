// Package sharing issues opaque share tokens for sessions, so a share URL
// never embeds the session id itself.
package sharing

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/codeturn-ai/opencode/pkg/types"
)

const defaultBaseURL = "https://opencode.ai/share"

// Manager tracks which sessions are shared and under which token.
type Manager struct {
	mu        sync.Mutex
	baseURL   string
	bySession map[types.SessionID]string
	byToken   map[string]types.SessionID
}

// NewManager creates a manager; an empty baseURL uses the default.
func NewManager(baseURL string) *Manager {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Manager{
		baseURL:   baseURL,
		bySession: make(map[types.SessionID]string),
		byToken:   make(map[string]types.SessionID),
	}
}

// Share returns the session's share URL, issuing a token on first use.
// Sharing an already-shared session returns the same URL.
func (m *Manager) Share(id types.SessionID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.bySession[id]
	if !ok {
		raw := make([]byte, 16)
		if _, err := rand.Read(raw); err != nil {
			return "", fmt.Errorf("generate share token: %w", err)
		}
		token = base64.RawURLEncoding.EncodeToString(raw)
		m.bySession[id] = token
		m.byToken[token] = id
	}
	return m.baseURL + "/" + token, nil
}

// Unshare revokes the session's token, if any.
func (m *Manager) Unshare(id types.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token, ok := m.bySession[id]; ok {
		delete(m.byToken, token)
		delete(m.bySession, id)
	}
}

// GetByToken resolves a token back to its session.
func (m *Manager) GetByToken(token string) (types.SessionID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byToken[token]
	return id, ok
}

// GetBySession reports whether a session is shared and under which token.
func (m *Manager) GetBySession(id types.SessionID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.bySession[id]
	return token, ok
}
