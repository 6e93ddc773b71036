package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/truepath-leads/intake-cli/internal/intake"
	"github.com/truepath-leads/intake-cli/internal/model"
	"github.com/truepath-leads/intake-cli/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSubmit accepts a public lead submission. The lead is persisted
// first and then pushed to the CRM once; a CRM failure never fails the
// request, it is recorded on the row for operator retry.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(clientIP(r)) {
		writeJSON(w, http.StatusTooManyRequests, model.SubmissionResponse{
			Error: "Too many requests. Please try again later.",
		})
		return
	}

	var req model.SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.SubmissionResponse{
			Error: "Unable to process your request.",
		})
		return
	}

	sanitized, err := intake.Validate(req)
	if err != nil {
		var rejection *intake.RejectionError
		msg := "Unable to process your request."
		if errors.As(err, &rejection) {
			msg = rejection.Reason.Message()
		}
		writeJSON(w, http.StatusBadRequest, model.SubmissionResponse{Error: msg})
		return
	}

	now := time.Now().UTC()
	lead, err := s.store.CreateLead(r.Context(), model.Lead{
		ID:               uuid.NewString(),
		Name:             sanitized.Name,
		Email:            sanitized.Email,
		Phone:            sanitized.Phone,
		DebtAmount:       sanitized.DebtAmount,
		DebtTypes:        sanitized.DebtTypes,
		EmploymentStatus: sanitized.EmploymentStatus,
		BehindOnPayments: sanitized.BehindOnPayments,
		TimelineGoal:     sanitized.TimelineGoal,
		SMSOptIn:         sanitized.SMSOptIn,
		Status:           model.LeadStatusNew,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		zap.L().Error("failed to save lead", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, model.SubmissionResponse{
			Error: "We could not save your information. Please try again.",
		})
		return
	}

	result := s.syncer.Sync(r.Context(), lead)

	writeJSON(w, http.StatusOK, model.SubmissionResponse{
		Success:   true,
		LeadID:    lead.ID,
		CRMSynced: result.Success,
	})
}

// handleAdminList returns stored leads newest first.
func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	leads, err := s.store.ListLeads(r.Context(), store.LeadFilter{})
	if err != nil {
		zap.L().Error("failed to list leads", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch leads"})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]model.Lead{"leads": leads})
}

// adminActionRequest is the admin mutation envelope.
type adminActionRequest struct {
	Action string `json:"action"`
	LeadID string `json:"leadId"`
	Notes  string `json:"notes"`
}

func (s *Server) handleAdminAction(w http.ResponseWriter, r *http.Request) {
	var req adminActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	switch req.Action {
	case "retry-crm":
		s.handleRetryCRM(w, r, req.LeadID)
	case "retry-all":
		s.handleRetryAll(w, r)
	case "update-notes":
		s.handleUpdateNotes(w, r, req.LeadID, req.Notes)
	case "mark-manually-imported":
		s.handleMarkImported(w, r, req.LeadID)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unknown action"})
	}
}

func (s *Server) handleRetryCRM(w http.ResponseWriter, r *http.Request, leadID string) {
	if leadID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "leadId is required"})
		return
	}
	result, err := s.syncer.SyncByID(r.Context(), leadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Lead not found"})
			return
		}
		zap.L().Error("retry failed", zap.String("lead_id", leadID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Retry failed"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRetryAll(w http.ResponseWriter, r *http.Request) {
	summary, err := s.syncer.RetryAll(r.Context())
	if err != nil {
		zap.L().Error("retry-all failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Retry failed"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleUpdateNotes(w http.ResponseWriter, r *http.Request, leadID, notes string) {
	if leadID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "leadId is required"})
		return
	}
	if err := s.store.UpdateNotes(r.Context(), leadID, notes); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Lead not found"})
			return
		}
		zap.L().Error("failed to update notes", zap.String("lead_id", leadID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Update failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMarkImported(w http.ResponseWriter, r *http.Request, leadID string) {
	if leadID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "leadId is required"})
		return
	}
	if err := s.store.MarkManuallyImported(r.Context(), leadID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Lead not found"})
			return
		}
		zap.L().Error("failed to mark imported", zap.String("lead_id", leadID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Update failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// clientIP is the rate-limit key for a request. RealIP middleware has
// already normalized RemoteAddr to the originating address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
