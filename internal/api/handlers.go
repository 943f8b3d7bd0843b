// Package api provides HTTP handlers for SevaFlow endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/digicsc/sevaflow/internal/models"
)

// MessageRequest is the body of POST /v1/messages.
type MessageRequest struct {
	SessionKey   string `json:"session_key"`
	Message      string `json:"message"`
	DocumentType string `json:"document_type,omitempty"`
	Language     string `json:"language,omitempty"`
}

// MessageReply is the result payload of POST /v1/messages.
type MessageReply struct {
	Reply string `json:"reply"`
}

func (s *Server) messageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.messageHandler: processing message", "method", r.Method, "path", r.URL.Path)

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.messageHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if strings.TrimSpace(req.SessionKey) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: session_key"))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: message"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultTurnTimeout)
	defer cancel()

	reply, err := s.engine.HandleTurn(ctx, req.SessionKey, req.DocumentType, req.Message, req.Language)
	if err != nil {
		if errors.Is(err, models.ErrEmptySessionKey) || errors.Is(err, models.ErrEmptyMessage) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.messageHandler: turn failed", "error", err, "sessionKey", req.SessionKey)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}

	slog.Debug("Server.messageHandler: turn handled", "sessionKey", req.SessionKey)
	writeJSONResponse(w, http.StatusOK, models.Success(MessageReply{Reply: reply}))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	slog.Debug("Server.getSessionHandler: fetching session", "sessionKey", key)

	session, err := s.engine.ActiveSession(r.Context(), key)
	if err != nil {
		if errors.Is(err, models.ErrEmptySessionKey) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.getSessionHandler: load failed", "error", err, "sessionKey", key)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}
	if session == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No active session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(session))
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	slog.Debug("Server.deleteSessionHandler: cancelling session", "sessionKey", key)

	err := s.engine.CancelSession(r.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptySessionKey):
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		case errors.Is(err, models.ErrNoActiveSession):
			writeJSONResponse(w, http.StatusNotFound, models.Error("No active session"))
		default:
			slog.Error("Server.deleteSessionHandler: cancel failed", "error", err, "sessionKey", key)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to cancel session"))
		}
		return
	}

	slog.Info("Server.deleteSessionHandler: session cancelled", "sessionKey", key)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session cancelled", nil))
}

// submissionsResult is the result payload of GET /v1/submissions.
type submissionsResult struct {
	Submissions []submissionView           `json:"submissions"`
	Receipts    []models.SubmissionReceipt `json:"receipts,omitempty"`
}

// submissionView hides the raw payload JSON from API consumers.
type submissionView struct {
	ID           string                  `json:"id"`
	DocumentType models.DocumentType     `json:"document_type"`
	Status       models.SubmissionStatus `json:"status"`
	Attempt      int                     `json:"attempt"`
	LastError    string                  `json:"last_error,omitempty"`
	CreatedAt    string                  `json:"created_at"`
	UpdatedAt    string                  `json:"updated_at"`
}

func (s *Server) listSubmissionsHandler(w http.ResponseWriter, r *http.Request) {
	sessionKey := r.URL.Query().Get("session_key")
	if sessionKey == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required parameter: session_key"))
		return
	}
	slog.Debug("Server.listSubmissionsHandler: listing submissions", "sessionKey", sessionKey)

	subs, err := s.repo.ListSubmissions(sessionKey)
	if err != nil {
		slog.Error("Server.listSubmissionsHandler: list failed", "error", err, "sessionKey", sessionKey)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list submissions"))
		return
	}
	receipts, err := s.repo.ListReceipts(sessionKey)
	if err != nil {
		slog.Error("Server.listSubmissionsHandler: receipts failed", "error", err, "sessionKey", sessionKey)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list receipts"))
		return
	}

	views := make([]submissionView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, submissionView{
			ID:           sub.ID,
			DocumentType: sub.DocumentType,
			Status:       sub.Status,
			Attempt:      sub.Attempt,
			LastError:    sub.LastError,
			CreatedAt:    sub.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:    sub.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSONResponse(w, http.StatusOK, models.Success(submissionsResult{Submissions: views, Receipts: receipts}))
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}
