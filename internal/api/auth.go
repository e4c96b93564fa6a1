package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/homesim-core/internal/auth"
	"github.com/nerrad567/homesim-core/internal/session"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	SessionID   string `json:"session_id"`
}

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use, expire after ticketTTL and are bound to the
// session that requested them.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
}

type ticketEntry struct {
	sessionID string
	subject   string
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticketEntry)}
}

func (t *ticketStore) issue(sessionID, subject string, now time.Time) (string, error) {
	ticket, err := auth.GenerateOpaqueToken()
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	t.tickets[ticket] = ticketEntry{sessionID: sessionID, subject: subject, expiresAt: now.Add(ticketTTL)}
	t.mu.Unlock()
	return ticket, nil
}

// consume validates and removes a ticket. A ticket is usable once, even
// when it turns out to be expired.
func (t *ticketStore) consume(ticket string, now time.Time) (ticketEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}
	delete(t.tickets, ticket)
	return entry, now.Before(entry.expiresAt)
}

// clean removes expired tickets and returns how many were dropped.
func (t *ticketStore) clean(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for ticket, entry := range t.tickets {
		if now.After(entry.expiresAt) {
			delete(t.tickets, ticket)
			n++
		}
	}
	return n
}

// handleLogin checks the configured credential, starts a fresh simulated
// home and returns a token bound to it.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.auth.Verify(req.Username, req.Password); err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Error("credential check failed", "error", err)
		}
		writeUnauthorized(w, "invalid credentials")
		return
	}

	sess, err := s.sessions.Create(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, session.ErrTooManySessions) {
			s.logger.Error("creating session", "error", err)
		}
		writeDomainError(w, err)
		return
	}

	token, err := auth.IssueToken(req.Username, sess.ID(), s.secret, s.tokenTTL)
	if err != nil {
		s.logger.Error("issuing token", "error", err)
		// Don't leave an orphan home behind.
		_ = s.sessions.Delete(r.Context(), sess.ID()) //nolint:errcheck // best effort
		writeInternalError(w, "failed to generate token")
		return
	}

	ttl := s.tokenTTL
	if ttl <= 0 {
		ttl = auth.DefaultTokenTTL
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
		SessionID:   sess.ID(),
	})
}

// handleLogout ends the caller's session. The token stays
// cryptographically valid but is rejected from now on because its session
// is gone.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if err := s.sessions.Delete(r.Context(), claims.SessionID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWSTicket generates a single-use WebSocket authentication ticket.
// The client uses this ticket to authenticate the WebSocket connection
// without exposing the JWT in the URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	ticket, err := s.tickets.issue(claims.SessionID, claims.Subject, time.Now())
	if err != nil {
		writeInternalError(w, "failed to generate ticket")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// cleanTicketsLoop drops expired tickets periodically until the context is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.tickets.clean(now); n > 0 {
				s.logger.Debug("expired websocket tickets removed", "count", n)
			}
		}
	}
}
