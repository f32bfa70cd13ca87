package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/mqtt-verify/internal/verify"
)

const (
	invalidIDError   = "Invalid device ID format"
	invalidIDMessage = "Device ID must be H or P followed by 9 digits"
)

// verifyResponse is the body of a verify request.
//
// Exists is a pointer so Unknown outcomes encode as null.
type verifyResponse struct {
	Success    bool   `json:"success"`
	Exists     *bool  `json:"exists"`
	DeviceID   string `json:"deviceId"`
	Message    string `json:"message"`
	Cached     bool   `json:"cached"`
	DataLength *int   `json:"dataLength,omitempty"`
	Hint       string `json:"hint,omitempty"`
	Error      string `json:"error,omitempty"`
	CheckedAt  string `json:"checkedAt,omitempty"`
}

// invalidIDResponse is returned when the device ID is malformed.
type invalidIDResponse struct {
	Success  bool   `json:"success"`
	Exists   bool   `json:"exists"`
	DeviceID string `json:"deviceId"`
	Error    string `json:"error"`
	Message  string `json:"message"`
}

// handleVerify checks whether a device is publishing.
//
// The verification is detached from the request context: a client that
// disconnects does not abort the broker session, and the outcome is still
// cached for the next caller.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")
	if err := s.validator.Validate(deviceID); err != nil {
		writeJSON(w, http.StatusBadRequest, invalidIDResponse{
			Success:  false,
			Exists:   false,
			DeviceID: deviceID,
			Error:    invalidIDError,
			Message:  invalidIDMessage,
		})
		return
	}

	timeout := s.parseTimeout(r.URL.Query().Get("timeout"))
	res := s.verifier.Verify(context.WithoutCancel(r.Context()), deviceID, timeout)

	writeJSON(w, http.StatusOK, toVerifyResponse(res))
}

// parseTimeout reads the timeout query value in milliseconds.
// Missing, unparsable, or non-positive values use the default; larger
// values are clamped to the configured maximum.
func (s *Server) parseTimeout(raw string) time.Duration {
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return s.defaultTimeout
	}
	timeout := time.Duration(ms) * time.Millisecond
	if timeout > s.maxTimeout {
		return s.maxTimeout
	}
	return timeout
}

func toVerifyResponse(res verify.Result) verifyResponse {
	resp := verifyResponse{
		Success:  true,
		Exists:   res.Exists(),
		DeviceID: res.DeviceID,
		Message:  res.Message,
		Cached:   res.Cached,
		Hint:     res.Hint,
		Error:    res.Error,
	}
	if res.Kind == verify.KindExists {
		n := res.DataLength
		resp.DataLength = &n
	}
	if !res.CheckedAt.IsZero() {
		resp.CheckedAt = res.CheckedAt.UTC().Format(time.RFC3339Nano)
	}
	return resp
}

// historyResponse is the body of a history request.
type historyResponse struct {
	Success  bool             `json:"success"`
	DeviceID string           `json:"deviceId"`
	Attempts []verify.Attempt `json:"attempts"`
}

// handleHistory lists recent live verifications for a device.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")
	if err := s.validator.Validate(deviceID); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, invalidIDMessage)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit")) //nolint:errcheck // Zero means default

	attempts, err := s.verifier.History(r.Context(), deviceID, limit)
	switch {
	case errors.Is(err, verify.ErrHistoryDisabled):
		writeUnavailable(w, "verification history is disabled")
		return
	case err != nil:
		s.logger.Error("listing verification history failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to load verification history")
		return
	}
	if attempts == nil {
		attempts = []verify.Attempt{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Success:  true,
		DeviceID: verify.Normalize(deviceID),
		Attempts: attempts,
	})
}

// clearResponse is the body of a cache clear request.
type clearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Cleared int    `json:"cleared"`
}

// handleClearCache drops every cached outcome.
func (s *Server) handleClearCache(w http.ResponseWriter, _ *http.Request) {
	n := s.verifier.Clear()
	writeJSON(w, http.StatusOK, clearResponse{
		Success: true,
		Message: "Cleared " + strconv.Itoa(n) + " cached entries",
		Cleared: n,
	})
}
