package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/househealth/househealth-api/internal/app/families"
	"github.com/househealth/househealth-api/internal/domain"
)

func familyIDParam(r *http.Request) domain.FamilyID {
	return domain.FamilyID(chi.URLParam(r, "familyId"))
}

func etag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}

// familyDetailsETag sets ETag from an encoded FamilyDetails body.
func familyDetailsETag(h http.Header, body []byte) {
	var d FamilyDetails
	if err := json.Unmarshal(body, &d); err != nil {
		return
	}
	h.Set("ETag", etag(d.Family.Version))
}

// ifMatchVersion parses If-Match as a family version. ok is false when the header is malformed.
func ifMatchVersion(r *http.Request) (version *int64, ok bool) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return nil, true
	}
	raw = strings.TrimPrefix(raw, "W/")
	v, err := strconv.ParseInt(strings.Trim(raw, `"`), 10, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

func (s *Server) CreateFamily(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body CreateFamilyRequest
	if !s.decode(w, r, &body) {
		return
	}
	canon := CreateFamilyRequest{Name: domain.NormalizeFamilyName(body.Name)}
	s.idempotent(w, r, "/families", canon, familyDetailsETag, func() (int, any, error) {
		d, err := s.Directory.CreateFamily(r.Context(), body.Name, caller)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, familyDetailsFromDomain(d), nil
	})
}

func (s *Server) ListMyFamilies(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	fs, err := s.Directory.ListFamiliesForUser(r.Context(), caller)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]Family, 0, len(fs))
	for _, f := range fs {
		out = append(out, familyFromDomain(f))
	}
	writeJSON(w, http.StatusOK, FamiliesResponse{Families: out})
}

func (s *Server) GetFamily(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	d, err := s.Directory.GetFamilyDetails(r.Context(), familyIDParam(r), caller)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("ETag", etag(d.Family.Version))
	writeJSON(w, http.StatusOK, familyDetailsFromDomain(d))
}

func (s *Server) RenameFamily(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	expected, ok := ifMatchVersion(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "If-Match must be a quoted family version", nil)
		return
	}
	var body RenameFamilyRequest
	if !s.decode(w, r, &body) {
		return
	}
	f, err := s.Directory.RenameFamily(r.Context(), familyIDParam(r), body.Name, caller, expected)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("ETag", etag(f.Version))
	writeJSON(w, http.StatusOK, familyFromDomain(f))
}

func (s *Server) DeleteFamily(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.Directory.PermanentlyDeleteFamily(r.Context(), familyIDParam(r), caller); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ListMembers(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	views, err := s.Engine.ListMembers(r.Context(), familyIDParam(r), caller)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MembersResponse{Members: membersFromDomain(views)})
}

func (s *Server) AddMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body UserRefRequest
	if !s.decode(w, r, &body) {
		return
	}
	familyID := familyIDParam(r)
	fingerprint := struct {
		FamilyID domain.FamilyID `json:"familyId"`
		UserRefRequest
	}{familyID, body}
	s.idempotent(w, r, "/families/{familyId}/members", fingerprint, nil, func() (int, any, error) {
		m, err := s.Engine.AddMember(r.Context(), familyID, domain.UserID(body.UserID.String()), caller)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, membershipFromDomain(m), nil
	})
}

func (s *Server) UpdateMembership(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body UpdateMembershipRequest
	if !s.decode(w, r, &body) {
		return
	}
	var in families.MembershipSettingsInput
	if body.Role.IsSpecified() {
		v, err := body.Role.Get()
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid role", map[string]any{"role": "cannot be null"})
			return
		}
		role := domain.MembershipRole(v)
		in.Role = &role
	}
	if body.NotificationsEnabled.IsSpecified() {
		v, err := body.NotificationsEnabled.Get()
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid notificationsEnabled", map[string]any{"notificationsEnabled": "cannot be null"})
			return
		}
		in.NotificationsEnabled = &v
	}
	m, err := s.Engine.UpdateMembershipSettings(r.Context(), familyIDParam(r), domain.UserID(chi.URLParam(r, "userId")), caller, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipFromDomain(m))
}

func (s *Server) RemoveMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.Engine.RemoveMember(r.Context(), familyIDParam(r), domain.UserID(chi.URLParam(r, "userId")), caller); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) LeaveFamily(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.Engine.LeaveFamily(r.Context(), familyIDParam(r), caller); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) AddOwner(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body UserRefRequest
	if !s.decode(w, r, &body) {
		return
	}
	m, err := s.Engine.AddOwner(r.Context(), familyIDParam(r), domain.UserID(body.UserID.String()), caller)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipFromDomain(m))
}

func (s *Server) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body UserRefRequest
	if !s.decode(w, r, &body) {
		return
	}
	m, err := s.Engine.TransferOwnership(r.Context(), familyIDParam(r), domain.UserID(body.UserID.String()), caller)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipFromDomain(m))
}

func (s *Server) GetMembership(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	m, err := s.Engine.GetVisibleMembership(r.Context(), domain.MembershipID(chi.URLParam(r, "membershipId")), caller)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipFromDomain(m))
}
