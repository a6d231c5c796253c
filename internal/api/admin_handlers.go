package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prudhvinik1/seatkeeper/internal/models"
	"github.com/prudhvinik1/seatkeeper/internal/services"
)

type createLicenseRequest struct {
	Key        string     `json:"key" validate:"required,max=64"`
	Status     string     `json:"status" validate:"max=20"`
	Plan       string     `json:"plan" validate:"max=50"`
	MaxDevices *int       `json:"max_devices" validate:"omitnil,gte=0"`
	MaxVersion *string    `json:"max_version" validate:"omitnil,max=50"`
	ExpiresAt  *time.Time `json:"expires_at"`
	Payload    *string    `json:"payload"`
	Notes      *string    `json:"notes"`
}

// nullableTime tells an absent field apart from an explicit null.
type nullableTime struct {
	Set   bool
	Value *time.Time
}

func (n *nullableTime) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(data, []byte("null")) {
		n.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	n.Value = &t
	return nil
}

type updateLicenseRequest struct {
	Key        *string      `json:"key" validate:"omitnil,min=1,max=64"`
	Status     *string      `json:"status" validate:"omitnil,min=1,max=20"`
	Plan       *string      `json:"plan" validate:"omitnil,min=1,max=50"`
	MaxDevices *int         `json:"max_devices" validate:"omitnil,gte=0"`
	MaxVersion *string      `json:"max_version" validate:"omitnil,max=50"`
	ExpiresAt  nullableTime `json:"expires_at"`
	Payload    *string      `json:"payload"`
	Notes      *string      `json:"notes"`
}

func (req updateLicenseRequest) toUpdate() models.LicenseUpdate {
	update := models.LicenseUpdate{
		Key:        req.Key,
		Status:     req.Status,
		Plan:       req.Plan,
		MaxDevices: req.MaxDevices,
		MaxVersion: req.MaxVersion,
		Payload:    req.Payload,
		Notes:      req.Notes,
	}
	if req.ExpiresAt.Set {
		if req.ExpiresAt.Value == nil {
			update.ClearExpiry = true
		} else {
			update.ExpiresAt = req.ExpiresAt.Value
		}
	}
	return update
}

type listLicensesResponse struct {
	Licenses []*models.License `json:"licenses"`
	Offset   int               `json:"offset"`
	Limit    int               `json:"limit"`
}

func (s *Server) handleListLicenses(w http.ResponseWriter, r *http.Request) {
	offset, ok := queryInt(r, "offset", 0)
	if !ok || offset < 0 {
		writeError(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, ok := queryInt(r, "limit", services.DefaultPageLimit)
	if !ok || limit < 1 || limit > services.MaxPageLimit {
		writeError(w, r, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(services.MaxPageLimit))
		return
	}

	licenses, err := s.admin.ListLicenses(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, listLicensesResponse{Licenses: licenses, Offset: offset, Limit: limit})
}

func (s *Server) handleCreateLicense(w http.ResponseWriter, r *http.Request) {
	var req createLicenseRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	license, err := s.admin.CreateLicense(r.Context(), services.CreateLicenseInput{
		Key:        req.Key,
		Status:     req.Status,
		Plan:       req.Plan,
		MaxDevices: req.MaxDevices,
		MaxVersion: req.MaxVersion,
		ExpiresAt:  req.ExpiresAt,
		Payload:    req.Payload,
		Notes:      req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, license)
}

func (s *Server) handleGetLicense(w http.ResponseWriter, r *http.Request) {
	id, ok := licenseID(w, r)
	if !ok {
		return
	}

	license, err := s.admin.GetLicense(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, license)
}

func (s *Server) handleUpdateLicense(w http.ResponseWriter, r *http.Request) {
	id, ok := licenseID(w, r)
	if !ok {
		return
	}

	var req updateLicenseRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	license, err := s.admin.UpdateLicense(r.Context(), id, req.toUpdate())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, license)
}

func (s *Server) handleDeleteLicense(w http.ResponseWriter, r *http.Request) {
	id, ok := licenseID(w, r)
	if !ok {
		return
	}

	if err := s.admin.DeleteLicense(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.admin.ListDevices(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"devices": devices})
}

func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	err := s.admin.RemoveDevice(r.Context(), chi.URLParam(r, "key"), chi.URLParam(r, "hwid"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func licenseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid license id")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
