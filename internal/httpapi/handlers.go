package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codeturn-ai/opencode/internal/session"
	"github.com/codeturn-ai/opencode/internal/sessionstore"
	"github.com/codeturn-ai/opencode/pkg/types"
)

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (types.SessionID, bool) {
	id, err := types.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "bad session id")
		return types.SessionID{}, false
	}
	return id, true
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	listings, err := s.service.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if listings == nil {
		listings = []sessionstore.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Create()
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	sess, err := s.service.Get(id)
	if errors.Is(err, sessionstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	if err := s.service.Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	sess, err := s.service.Get(id)
	if errors.Is(err, sessionstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess.Messages)
}

type sendMessageRequest struct {
	Text  string `json:"text"`
	Agent string `json:"agent,omitempty"`
	Model string `json:"model,omitempty"`
}

// sendMessage runs a turn and streams its updates back as SSE: a "chunk"
// event per reply fragment, "log" events for diagnostics, and one terminal
// "done" event.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	sink := make(chan session.Envelope, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for env := range sink {
			switch u := env.Update.(type) {
			case session.ReplyChunk:
				sse.writeEvent("chunk", map[string]any{"session_id": env.SessionID.String(), "content": u.Text})
			case session.Log:
				sse.writeEvent("log", map[string]any{"session_id": env.SessionID.String(), "level": u.Level, "message": u.Message})
			case session.ReplyDone:
				sse.writeEvent("done", map[string]any{"session_id": env.SessionID.String()})
			}
		}
	}()

	ctx := session.WithUpdateSink(r.Context(), id, sink)
	_, runErr := s.service.ProcessMessage(ctx, id, req.Text, req.Agent, req.Model)
	close(sink)
	<-done

	if runErr != nil {
		// The error already reached the stream as a chunk + done; this is
		// informational for non-streaming clients that gave up early.
		return
	}
}

func (s *Server) abortSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	if err := s.service.Abort(id); err != nil {
		writeError(w, http.StatusConflict, ErrCodeInvalidRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type executeCommandRequest struct {
	Command string `json:"command"`
}

func (s *Server) executeCommand(w http.ResponseWriter, r *http.Request) {
	var req executeCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.service.ExecuteCommand(r.Context(), req.Command))
}

type runShellRequest struct {
	Command string `json:"command"`
}

func (s *Server) runShell(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	var req runShellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	output, err := s.service.RunShell(r.Context(), id, req.Command)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": output})
}

type respondPermissionRequest struct {
	Answer string `json:"answer"` // "once" | "always" | "reject"
}

func (s *Server) respondPermission(w http.ResponseWriter, r *http.Request) {
	var req respondPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	if err := s.service.RespondPermission(chi.URLParam(r, "permissionID"), req.Answer); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
