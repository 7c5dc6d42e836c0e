package webapp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"woofpack.dev/dogtracker/internal/model"
	"woofpack.dev/dogtracker/internal/store"
	"woofpack.dev/dogtracker/internal/util"
)

func (a *API) getFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := a.st.FriendsOf(r.Context(), currentUser(r))
	if err != nil {
		a.serverError(w, err)
		return
	}
	util.JsonWrite(w, friends)
}

type addFriendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// addFriend creates a pending edge toward the user with the given email
// and notifies them live when connected.
func (a *API) addFriend(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r)
	var req addFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	target, err := a.st.UserByEmail(r.Context(), req.Email)
	if err != nil {
		a.storeError(w, err, "No user with that email")
		return
	}
	if target.UUID == uid {
		http.Error(w, "Cannot befriend yourself", http.StatusBadRequest)
		return
	}
	exists, err := a.st.FriendEdgeExists(r.Context(), uid, target.UUID)
	if err != nil {
		a.serverError(w, err)
		return
	}
	if exists {
		http.Error(w, "Friend request already exists", http.StatusBadRequest)
		return
	}
	if err := a.st.AddFriendRequest(r.Context(), uid, target.UUID); err != nil {
		a.serverError(w, err)
		return
	}
	me, err := a.st.UserByID(r.Context(), uid)
	if err != nil {
		a.serverError(w, err)
		return
	}
	a.reg.Send(r.Context(), target.UUID, model.FriendRequestPush(uid, me.Email))
	util.JsonWrite(w, map[string]string{"status": "pending"})
}

func (a *API) acceptFriend(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r)
	requester := chi.URLParam(r, "uuid")
	err := a.st.AcceptFriendRequest(r.Context(), requester, uid)
	if err != nil {
		a.storeError(w, err, "No pending friend request from that user")
		return
	}
	a.reg.Send(r.Context(), requester, model.FriendAcceptedPush(uid))
	util.JsonWrite(w, map[string]string{"status": "accepted"})
}

func (a *API) removeFriend(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r)
	other := chi.URLParam(r, "uuid")
	if err := a.st.RemoveFriend(r.Context(), uid, other); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Not friends with that user", http.StatusNotFound)
			return
		}
		a.serverError(w, err)
		return
	}
	util.JsonWrite(w, map[string]string{"status": "removed"})
}
