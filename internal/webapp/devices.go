package webapp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"woofpack.dev/dogtracker/internal/model"
	"woofpack.dev/dogtracker/internal/util"
)

func (a *API) getDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := a.st.DevicesOwnedBy(r.Context(), currentUser(r))
	if err != nil {
		a.serverError(w, err)
		return
	}
	util.JsonWrite(w, devices)
}

type addDeviceRequest struct {
	IMEI string `json:"imei" validate:"required"`
	Name string `json:"name" validate:"required"`
}

func (a *API) addDevice(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r)
	var req addDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d := model.Device{
		IMEI:      req.IMEI,
		OwnerUUID: uid,
		Name:      req.Name,
		CreatedAt: time.Now(),
	}
	if err := a.st.CreateDevice(r.Context(), d); err != nil {
		a.storeError(w, err, "Device not found")
		return
	}
	util.JsonWrite(w, d)
}

type updateDeviceRequest struct {
	Name string `json:"name" validate:"required"`
}

func (a *API) updateDevice(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r)
	imei := chi.URLParam(r, "imei")
	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.st.UpdateDeviceName(r.Context(), imei, uid, req.Name); err != nil {
		a.storeError(w, err, "No such device owned by you")
		return
	}
	util.JsonWrite(w, map[string]string{"status": "updated"})
}

func (a *API) removeDevice(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r)
	imei := chi.URLParam(r, "imei")
	if err := a.st.DeleteDevice(r.Context(), imei, uid); err != nil {
		a.storeError(w, err, "No such device owned by you")
		return
	}
	util.JsonWrite(w, map[string]string{"status": "deleted"})
}

type shareDeviceRequest struct {
	UUID string `json:"uuid" validate:"required"`
}

// shareDevice grants another principal read access to the device's
// location stream and notifies them live when connected.
func (a *API) shareDevice(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r)
	imei := chi.URLParam(r, "imei")
	var req shareDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.UUID == uid {
		http.Error(w, "Cannot share a device with yourself", http.StatusBadRequest)
		return
	}
	if _, err := a.st.UserByID(r.Context(), req.UUID); err != nil {
		a.storeError(w, err, "No such user")
		return
	}
	if err := a.st.ShareDevice(r.Context(), imei, uid, req.UUID); err != nil {
		a.storeError(w, err, "No such device owned by you")
		return
	}
	d, err := a.st.DeviceByIMEI(r.Context(), imei)
	if err != nil {
		a.serverError(w, err)
		return
	}
	a.reg.Send(r.Context(), req.UUID, model.DeviceSharedPush(d.IMEI, d.Name, uid))
	util.JsonWrite(w, map[string]string{"status": "shared"})
}

func (a *API) unshareDevice(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r)
	imei := chi.URLParam(r, "imei")
	with := chi.URLParam(r, "uuid")
	if err := a.st.UnshareDevice(r.Context(), imei, uid, with); err != nil {
		a.storeError(w, err, "No such share")
		return
	}
	util.JsonWrite(w, map[string]string{"status": "unshared"})
}
