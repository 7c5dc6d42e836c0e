package webapp

import (
	"net/http"

	"woofpack.dev/dogtracker/internal/util"
)

func (a *API) adminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.st.ListUsers(r.Context())
	if err != nil {
		a.serverError(w, err)
		return
	}
	util.JsonWrite(w, users)
}

func (a *API) adminDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := a.st.ListDevices(r.Context())
	if err != nil {
		a.serverError(w, err)
		return
	}
	util.JsonWrite(w, devices)
}
