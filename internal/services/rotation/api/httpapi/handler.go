// Package httpapi exposes the rotation services as a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	platformerrors "github.com/eastcourt/residency/internal/platform/errors"
	"github.com/eastcourt/residency/internal/services/rotation/domain"
	"github.com/eastcourt/residency/internal/services/rotation/scheduler"
)

// SchedulerService defines the schedule operations the API dispatches to.
type SchedulerService interface {
	CalculateNextYear(ctx context.Context, year int) (domain.LeaderSchedule, error)
	Recalculate(ctx context.Context, year int) (scheduler.RecalculateResult, error)
	Confirm(ctx context.Context, scheduleID string, newStatus domain.ScheduleStatus) (domain.LeaderSchedule, error)
	Explain(ctx context.Context, year int) (scheduler.Explanation, error)
}

// ExemptionService defines the exemption workflow operations.
type ExemptionService interface {
	Submit(ctx context.Context, householdID string, year int, reason string) (domain.ExemptionRequest, error)
	Approve(ctx context.Context, requestID string, approverID string) error
	Reject(ctx context.Context, requestID string, approverID string, rejectReason string) error
	List(ctx context.Context, year int) ([]domain.ExemptionRequest, error)
}

// PolicyService defines the policy versioning operations.
type PolicyService interface {
	PublishVersion(ctx context.Context, priority []string, exclusionConditions []string, reason string) (domain.RotationPolicy, error)
	Current(ctx context.Context) (domain.RotationPolicy, error)
}

// Handler routes rotation API requests to the underlying services.
type Handler struct {
	schedules  SchedulerService
	exemptions ExemptionService
	policies   PolicyService
}

// NewHandler builds the HTTP handler for the rotation API.
func NewHandler(schedules SchedulerService, exemptions ExemptionService, policies PolicyService) http.Handler {
	h := &Handler{schedules: schedules, exemptions: exemptions, policies: policies}

	mux := http.NewServeMux()
	mux.HandleFunc("/rotation/v1/schedules/calculate", h.handleCalculate)
	mux.HandleFunc("/rotation/v1/schedules/recalculate", h.handleRecalculate)
	mux.HandleFunc("/rotation/v1/schedules/explain", h.handleExplain)
	mux.HandleFunc("/rotation/v1/schedules/", h.handleSchedulePath)
	mux.HandleFunc("/rotation/v1/exemptions", h.handleExemptions)
	mux.HandleFunc("/rotation/v1/exemptions/", h.handleExemptionPath)
	mux.HandleFunc("/rotation/v1/policies", h.handlePolicies)
	mux.HandleFunc("/rotation/v1/policies/current", h.handleCurrentPolicy)
	return mux
}

type yearRequest struct {
	Year int `json:"year"`
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req yearRequest
	if !decodeBody(w, r, &req) {
		return
	}
	schedule, err := h.schedules.CalculateNextYear(r.Context(), req.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, schedulePayloadFrom(schedule))
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req yearRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.schedules.Recalculate(r.Context(), req.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recalculatePayload{
		Schedule:       schedulePayloadFrom(result.Schedule),
		CandidateCount: result.CandidateCount,
	})
}

func (h *Handler) handleExplain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, r, platformerrors.New(platformerrors.CodeYearInvalid, "year query parameter is required"))
		return
	}
	explanation, err := h.schedules.Explain(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, explanationPayloadFrom(explanation))
}

// handleSchedulePath dispatches /rotation/v1/schedules/{id}/confirm.
func (h *Handler) handleSchedulePath(w http.ResponseWriter, r *http.Request) {
	parts := splitPathParts(strings.TrimPrefix(r.URL.Path, "/rotation/v1/schedules/"))
	if len(parts) != 2 || parts[1] != "confirm" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	status, err := domain.ParseScheduleStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	schedule, err := h.schedules.Confirm(r.Context(), parts[0], status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedulePayloadFrom(schedule))
}

func (h *Handler) handleExemptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			HouseholdID string `json:"householdId"`
			Year        int    `json:"year"`
			Reason      string `json:"reason"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		request, err := h.exemptions.Submit(r.Context(), req.HouseholdID, req.Year, req.Reason)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, exemptionPayloadFrom(request))
	case http.MethodGet:
		year, err := strconv.Atoi(r.URL.Query().Get("year"))
		if err != nil {
			writeError(w, r, platformerrors.New(platformerrors.CodeYearInvalid, "year query parameter is required"))
			return
		}
		requests, err := h.exemptions.List(r.Context(), year)
		if err != nil {
			writeError(w, r, err)
			return
		}
		payload := make([]exemptionPayload, 0, len(requests))
		for _, request := range requests {
			payload = append(payload, exemptionPayloadFrom(request))
		}
		writeJSON(w, http.StatusOK, payload)
	default:
		methodNotAllowed(w, http.MethodPost, http.MethodGet)
	}
}

// handleExemptionPath dispatches /rotation/v1/exemptions/{id}/approve and
// /rotation/v1/exemptions/{id}/reject.
func (h *Handler) handleExemptionPath(w http.ResponseWriter, r *http.Request) {
	parts := splitPathParts(strings.TrimPrefix(r.URL.Path, "/rotation/v1/exemptions/"))
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req struct {
		ApproverID string `json:"approverId"`
		Reason     string `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	var err error
	switch parts[1] {
	case "approve":
		err = h.exemptions.Approve(r.Context(), parts[0], req.ApproverID)
	case "reject":
		err = h.exemptions.Reject(r.Context(), parts[0], req.ApproverID, req.Reason)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": parts[0]})
}

func (h *Handler) handlePolicies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req struct {
		Priority            []string `json:"priority"`
		ExclusionConditions []string `json:"exclusionConditions"`
		Reason              string   `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	policy, err := h.policies.PublishVersion(r.Context(), req.Priority, req.ExclusionConditions, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, policyPayloadFrom(policy))
}

func (h *Handler) handleCurrentPolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	policy, err := h.policies.Current(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policyPayloadFrom(policy))
}

type schedulePayload struct {
	ID                 string    `json:"id"`
	Year               int       `json:"year"`
	PrimaryHouseholdID string    `json:"primaryHouseholdId"`
	BackupHouseholdID  string    `json:"backupHouseholdId"`
	Status             string    `json:"status"`
	Reason             string    `json:"reason"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func schedulePayloadFrom(schedule domain.LeaderSchedule) schedulePayload {
	return schedulePayload{
		ID:                 schedule.ID,
		Year:               schedule.Year,
		PrimaryHouseholdID: schedule.PrimaryHouseholdID,
		BackupHouseholdID:  schedule.BackupHouseholdID,
		Status:             string(schedule.Status),
		Reason:             schedule.Reason,
		CreatedAt:          schedule.CreatedAt,
		UpdatedAt:          schedule.UpdatedAt,
	}
}

type recalculatePayload struct {
	Schedule       schedulePayload `json:"schedule"`
	CandidateCount int             `json:"candidateCount"`
}

type exemptionPayload struct {
	ID           string     `json:"id"`
	HouseholdID  string     `json:"householdId"`
	Year         int        `json:"year"`
	Version      int        `json:"version"`
	Reason       string     `json:"reason"`
	Status       string     `json:"status"`
	DecidedBy    string     `json:"decidedBy,omitempty"`
	DecidedAt    *time.Time `json:"decidedAt,omitempty"`
	RejectReason string     `json:"rejectReason,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func exemptionPayloadFrom(request domain.ExemptionRequest) exemptionPayload {
	return exemptionPayload{
		ID:           request.ID,
		HouseholdID:  request.HouseholdID,
		Year:         request.Year,
		Version:      request.Version,
		Reason:       request.Reason,
		Status:       string(request.Status),
		DecidedBy:    request.DecidedBy,
		DecidedAt:    request.DecidedAt,
		RejectReason: request.RejectReason,
		CreatedAt:    request.CreatedAt,
	}
}

type policyPayload struct {
	Version             int       `json:"version"`
	Priority            []string  `json:"priority"`
	ExclusionConditions []string  `json:"exclusionConditions"`
	Reason              string    `json:"reason"`
	CreatedAt           time.Time `json:"createdAt"`
}

func policyPayloadFrom(policy domain.RotationPolicy) policyPayload {
	return policyPayload{
		Version:             policy.Version,
		Priority:            policy.Priority,
		ExclusionConditions: policy.ExclusionConditions,
		Reason:              policy.Reason,
		CreatedAt:           policy.CreatedAt,
	}
}

type householdReportPayload struct {
	HouseholdID        string     `json:"householdId"`
	MoveInDate         *time.Time `json:"moveInDate,omitempty"`
	LeaderHistoryCount int        `json:"leaderHistoryCount"`
	Codes              []string   `json:"codes"`
	IsCandidate        bool       `json:"isCandidate"`
}

type explanationPayload struct {
	Year       int                      `json:"year"`
	Households []householdReportPayload `json:"households"`
	Schedule   *schedulePayload         `json:"schedule,omitempty"`
}

func explanationPayloadFrom(explanation scheduler.Explanation) explanationPayload {
	payload := explanationPayload{Year: explanation.Year}
	for _, report := range explanation.Households {
		codes := make([]string, 0, len(report.Codes))
		for _, code := range report.Codes {
			codes = append(codes, string(code))
		}
		payload.Households = append(payload.Households, householdReportPayload{
			HouseholdID:        report.HouseholdID,
			MoveInDate:         report.MoveInDate,
			LeaderHistoryCount: report.LeaderHistoryCount,
			Codes:              codes,
			IsCandidate:        report.IsCandidate,
		})
	}
	if explanation.Schedule != nil {
		schedule := schedulePayloadFrom(*explanation.Schedule)
		payload.Schedule = &schedule
	}
	return payload
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := platformerrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[ROTATION] %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, map[string]errorPayload{"error": {
		Code:    string(platformerrors.GetCode(err)),
		Message: platformerrors.UserMessage(err, r.Header.Get("Accept-Language")),
	}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[ROTATION] encode response: %v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]errorPayload{"error": {
			Code:    string(platformerrors.CodeUnknown),
			Message: "request body is not valid JSON",
		}})
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, map[string]errorPayload{"error": {
		Code:    string(platformerrors.CodeUnknown),
		Message: "method not allowed",
	}})
}

func splitPathParts(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
