package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/searchdeck/searchdeck/internal/auth"
	"github.com/searchdeck/searchdeck/internal/users"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=2,max=64"`
	Name     string `json:"name" validate:"-"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// invalidCredentials is the single message for both unknown email and
// wrong password, so the two cases are indistinguishable to a caller.
const invalidCredentials = "Invalid credentials"

// RegisterHandler handles user signup.
func (api *Api) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// The web client posts the field as "name".
	if req.Username == "" {
		req.Username = req.Name
	}

	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	ctx := r.Context()

	exists, err := api.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		api.log.Error("signup existence check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Signup failed")
		return
	}
	if exists {
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		api.log.Error("password hashing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Signup failed")
		return
	}

	user := &users.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := api.users.Create(ctx, user); err != nil {
		api.log.Error("user insert failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Signup failed")
		return
	}

	token, err := api.tokens.Issue(user)
	if err != nil {
		api.log.Error("token issuance failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Signup failed")
		return
	}

	api.setTokenCookie(w, token)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"user":    user.Public(),
	})
}

// LoginHandler handles user login.
func (api *Api) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := api.users.GetByEmail(r.Context(), req.Email)
	if errors.Is(err, users.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, invalidCredentials)
		return
	}
	if err != nil {
		api.log.Error("login lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, invalidCredentials)
		return
	}

	token, err := api.tokens.Issue(user)
	if err != nil {
		api.log.Error("token issuance failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	api.setTokenCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user.Public(),
	})
}

// VerifyTokenHandler runs behind the auth gate and echoes the verified
// identity back to the client.
func (api *Api) VerifyTokenHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		// Unreachable when routed behind RequireAuth.
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": users.Public{
			ID:       identity.UserID,
			Username: identity.Username,
			Email:    identity.Email,
		},
	})
}

// LogoutHandler clears the session cookie. Sessions are stateless, so
// there is nothing to revoke server-side.
func (api *Api) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	api.clearTokenCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (api *Api) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(api.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   api.Config.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}

func (api *Api) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   api.Config.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}
