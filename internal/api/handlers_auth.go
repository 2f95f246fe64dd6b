package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"muadati/internal/service"
)

const maxJSONBody = 1 << 20

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) (int, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, "request body too large", false
		}
		return http.StatusBadRequest, "invalid request body", false
	}
	return 0, "", true
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if code, msg, ok := decodeJSON(w, r, &in); !ok {
		s.errs.message(w, code, msg)
		return
	}
	sess, err := s.auth.Register(r.Context(), in)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "registered successfully", sess)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if code, msg, ok := decodeJSON(w, r, &in); !ok {
		s.errs.message(w, code, msg)
		return
	}
	sess, err := s.auth.Login(r.Context(), in, clientIP(r))
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "logged in successfully", sess)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	writeData(w, http.StatusOK, "", user)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), claimsFrom(r.Context())); err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "logged out", nil)
}
