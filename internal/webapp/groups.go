package webapp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"woofpack.dev/dogtracker/internal/model"
	"woofpack.dev/dogtracker/internal/util"
)

func (a *API) getGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := a.st.GroupsFor(r.Context(), currentUser(r))
	if err != nil {
		a.serverError(w, err)
		return
	}
	util.JsonWrite(w, groups)
}

type createGroupRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
}

func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r)
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	g := model.Group{
		ID:          util.GenUUID(),
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     uid,
		MemberIDs:   []string{uid},
		CreatedAt:   time.Now(),
	}
	if err := a.st.CreateGroup(r.Context(), g); err != nil {
		a.serverError(w, err)
		return
	}
	util.JsonWrite(w, g)
}

func (a *API) deleteGroup(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r)
	id := chi.URLParam(r, "id")
	owner, err := a.st.GroupOwner(r.Context(), id)
	if err != nil {
		a.storeError(w, err, "Group not found")
		return
	}
	if owner != uid {
		http.Error(w, "Only the group owner can delete the group", http.StatusForbidden)
		return
	}
	if err := a.st.DeleteGroup(r.Context(), id); err != nil {
		a.serverError(w, err)
		return
	}
	util.JsonWrite(w, map[string]string{"status": "deleted"})
}

type groupMemberRequest struct {
	UUID string `json:"uuid" validate:"required"`
}

// addGroupMember lets any current member grow the group, matching the
// invite-by-member model of the client apps.
func (a *API) addGroupMember(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r)
	id := chi.URLParam(r, "id")
	var req groupMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ok, err := a.st.GroupMemberOrOwner(r.Context(), id, uid)
	if err != nil {
		a.storeError(w, err, "Group not found")
		return
	}
	if !ok {
		http.Error(w, "Not a member of this group", http.StatusForbidden)
		return
	}
	if _, err := a.st.UserByID(r.Context(), req.UUID); err != nil {
		a.storeError(w, err, "No such user")
		return
	}
	if err := a.st.AddGroupMember(r.Context(), id, req.UUID); err != nil {
		a.storeError(w, err, "Group not found")
		return
	}
	a.reg.Send(r.Context(), req.UUID, model.GroupInvitationPush(id, uid))
	util.JsonWrite(w, map[string]string{"status": "added"})
}

func (a *API) removeGroupMember(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r)
	id := chi.URLParam(r, "id")
	member := chi.URLParam(r, "uuid")
	owner, err := a.st.GroupOwner(r.Context(), id)
	if err != nil {
		a.storeError(w, err, "Group not found")
		return
	}
	// Members may leave on their own; evicting someone else is for the
	// owner only.
	if uid != owner && uid != member {
		http.Error(w, "Only the owner can remove other members", http.StatusForbidden)
		return
	}
	if err := a.st.RemoveGroupMember(r.Context(), id, member); err != nil {
		a.storeError(w, err, "Not a member of this group")
		return
	}
	util.JsonWrite(w, map[string]string{"status": "removed"})
}
