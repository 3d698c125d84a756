package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/ppinheiro86/doctalk/internal/auth"
	"github.com/ppinheiro86/doctalk/internal/storage"
)

const maxAuthBodySize = 64 << 10

const minPasswordLength = 8

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func handleRegister(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodySize)
		defer r.Body.Close()

		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if _, err := mail.ParseAddress(req.Email); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid email address")
			return
		}
		if len(req.Password) < minPasswordLength {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "password must be at least %d characters", minPasswordLength)
			return
		}

		if _, err := deps.Auth.Register(req.Email, req.Password); err != nil {
			if errors.Is(err, storage.ErrEmailTaken) {
				httpError(w, http.StatusConflict, "invalid_request_error", "email already registered")
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "failed to register: %v", err)
			return
		}

		// A fresh account gets a session right away, same shape as login.
		sess, err := deps.Auth.Login(req.Email, req.Password)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to start session: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{
			"token":     sess.Token,
			"expiresAt": sess.ExpiresAt.Format(time.RFC3339),
		})
	}
}

func handleLogin(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodySize)
		defer r.Body.Close()

		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		sess, err := deps.Auth.Login(req.Email, req.Password)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			httpError(w, http.StatusUnauthorized, "authentication_error", "invalid email or password")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to log in: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"token":     sess.Token,
			"expiresAt": sess.ExpiresAt.Format(time.RFC3339),
		})
	}
}
