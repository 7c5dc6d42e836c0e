package webapp

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"woofpack.dev/dogtracker/internal/auth"
	"woofpack.dev/dogtracker/internal/model"
	"woofpack.dev/dogtracker/internal/store"
	"woofpack.dev/dogtracker/internal/util"
)

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	util.JsonWrite(w, map[string]string{"status": "ok"})
}

type signUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Nickname string `json:"nickname" validate:"required"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	UUID     string `json:"uuid"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

func (a *API) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.serverError(w, err)
		return
	}
	u := model.User{
		UUID:      util.GenUUID(),
		Email:     req.Email,
		Password:  hash,
		Nickname:  req.Nickname,
		Role:      model.RoleUser,
		CreatedAt: time.Now(),
	}
	if err := a.st.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			http.Error(w, "Email already registered", http.StatusBadRequest)
			return
		}
		a.serverError(w, err)
		return
	}
	token, err := a.auth.Issue(u.UUID)
	if err != nil {
		a.serverError(w, err)
		return
	}
	a.logger.Info().Str("uid", u.UUID).Msg("user registered")
	util.JsonWrite(w, tokenResponse{Token: token, UUID: u.UUID, Email: u.Email, Nickname: u.Nickname})
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (a *API) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	u, err := a.st.UserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		a.serverError(w, err)
		return
	}
	if !auth.CheckPassword(req.Password, u.Password) {
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if err := a.st.UpdateUserLastSeen(r.Context(), u.UUID, time.Now()); err != nil {
		a.logger.Warn().Err(err).Str("uid", u.UUID).Msg("error updating last seen")
	}
	token, err := a.auth.Issue(u.UUID)
	if err != nil {
		a.serverError(w, err)
		return
	}
	util.JsonWrite(w, tokenResponse{Token: token, UUID: u.UUID, Email: u.Email, Nickname: u.Nickname})
}
