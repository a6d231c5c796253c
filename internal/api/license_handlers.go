package api

import (
	"net/http"
	"time"

	"github.com/prudhvinik1/seatkeeper/internal/models"
	"github.com/prudhvinik1/seatkeeper/internal/services"
)

type checkRequest struct {
	Key        string `json:"key" validate:"required,max=64"`
	HWID       string `json:"hwid" validate:"required,max=255"`
	Hostname   string `json:"hostname" validate:"max=255"`
	Platform   string `json:"platform" validate:"max=64"`
	AppVersion string `json:"app_version" validate:"max=32"`
}

type checkResponse struct {
	Valid       bool       `json:"valid"`
	Reason      string     `json:"reason"`
	Message     string     `json:"message"`
	Plan        *string    `json:"plan,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	MaxVersion  *string    `json:"max_version,omitempty"`
	MaxDevices  int        `json:"max_devices"`
	UsedDevices int        `json:"used_devices"`
	Payload     *string    `json:"payload,omitempty"`
}

// handleCheck answers 200 for every business outcome, valid or not.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req checkRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := s.licenses.Validate(r.Context(), services.CheckRequest{
		Key:  req.Key,
		HWID: req.HWID,
		Metadata: models.DeviceMetadata{
			Hostname:   req.Hostname,
			Platform:   req.Platform,
			AppVersion: req.AppVersion,
		},
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	outcome := "none"
	if result.Outcome != 0 {
		outcome = result.Outcome.String()
	}
	s.metrics.ObserveCheck(string(result.Reason), outcome, time.Since(start))

	writeJSON(w, r, http.StatusOK, checkResponse{
		Valid:       result.Valid,
		Reason:      string(result.Reason),
		Message:     result.Message,
		Plan:        result.Plan,
		ExpiresAt:   result.ExpiresAt,
		MaxVersion:  result.MaxVersion,
		MaxDevices:  result.MaxDevices,
		UsedDevices: result.UsedDevices,
		Payload:     result.Payload,
	})
}

type tokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := s.auth.IssueToken(req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, tokenResponse{Token: resp.Token, ExpiresAt: resp.ExpiresAt})
}
