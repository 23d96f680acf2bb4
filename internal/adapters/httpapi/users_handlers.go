package httpapi

import (
	"net/http"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/househealth/househealth-api/internal/app/users"
)

func (s *Server) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var body RegisterUserRequest
	if !s.decode(w, r, &body) {
		return
	}
	u, err := s.Users.RegisterUser(r.Context(), users.RegisterUserInput{
		DisplayName: body.DisplayName,
		Email:       string(body.Email),
		Password:    body.Password,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userFromDomain(u))
}

func (s *Server) GetMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	u, err := s.Users.GetUserByID(r.Context(), caller)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userFromDomain(u))
}

func (s *Server) UpdateMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body UpdateProfileRequest
	if !s.decode(w, r, &body) {
		return
	}
	u, err := s.Users.UpdateMyProfile(r.Context(), caller, users.UpdateProfileInput{
		DisplayName: optionalFromNullable(body.DisplayName),
		Email:       optionalEmailFromNullable(body.Email),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userFromDomain(u))
}

func optionalFromNullable[T any](n nullable.Nullable[T]) users.Optional[T] {
	if !n.IsSpecified() {
		return users.Unspecified[T]()
	}
	if n.IsNull() {
		return users.Null[T]()
	}
	v, err := n.Get()
	if err != nil {
		return users.Unspecified[T]()
	}
	return users.Some(v)
}

func optionalEmailFromNullable(n nullable.Nullable[openapi_types.Email]) users.Optional[string] {
	o := optionalFromNullable(n)
	switch {
	case !o.IsSpecified():
		return users.Unspecified[string]()
	case o.IsNull():
		return users.Null[string]()
	default:
		return users.Some(string(o.Value()))
	}
}
