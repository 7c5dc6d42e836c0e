package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"woofpack.dev/dogtracker/internal/model"
	"woofpack.dev/dogtracker/internal/store"
)

var (
	ErrMissingDeviceID = errors.New("device report carries no device id")
	ErrNotOwner        = errors.New("device is not owned by the reporting principal")
)

// Normalizer turns the two raw inbound shapes into canonical location
// records. Optional fields absent from the wire stay nil in the record.
type Normalizer struct {
	validate *validator.Validate
	devices  store.DeviceStore
}

func NewNormalizer(devices store.DeviceStore) *Normalizer {
	return &Normalizer{validate: validator.New(), devices: devices}
}

// NormalizeUserReport parses a user_location data payload for the
// reporting principal.
func (n *Normalizer) NormalizeUserReport(uid string, data json.RawMessage, now time.Time) (model.UserLocationRecord, error) {
	var rep model.UserLocationReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return model.UserLocationRecord{}, err
	}
	if err := n.validate.Struct(rep); err != nil {
		return model.UserLocationRecord{}, err
	}
	return model.UserLocationRecord{
		UUID:      uid,
		Latitude:  *rep.Latitude,
		Longitude: *rep.Longitude,
		Altitude:  rep.Altitude,
		Speed:     rep.Speed,
		Battery:   rep.Battery,
		Accuracy:  rep.Accuracy,
		Timestamp: now,
	}, nil
}

// NormalizeDeviceReport parses a device_location data payload, resolves
// the legacy alias keys and enforces that the reporting principal owns
// the device. Rejections are the caller's cue to drop silently; the
// protocol is fire-and-forget for this message class.
func (n *Normalizer) NormalizeDeviceReport(ctx context.Context, uid string, data json.RawMessage, now time.Time) (model.DeviceLocationRecord, error) {
	var rep model.DeviceLocationReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return model.DeviceLocationRecord{}, err
	}
	imei := rep.DeviceID
	if imei == "" {
		imei = rep.IMEI
	}
	if imei == "" {
		return model.DeviceLocationRecord{}, ErrMissingDeviceID
	}
	dev, err := n.devices.DeviceByIMEI(ctx, imei)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.DeviceLocationRecord{}, ErrNotOwner
		}
		return model.DeviceLocationRecord{}, err
	}
	if dev.OwnerUUID != uid {
		return model.DeviceLocationRecord{}, ErrNotOwner
	}
	lat := rep.Latitude
	if lat == nil {
		lat = rep.Lat
	}
	lon := rep.Longitude
	if lon == nil {
		lon = rep.Lon
	}
	return model.DeviceLocationRecord{
		DeviceID:       imei,
		Latitude:       lat,
		Longitude:      lon,
		Altitude:       rep.Altitude,
		Speed:          rep.Speed,
		Battery:        rep.Battery,
		BatteryMV:      rep.BatteryMV,
		Bark:           rep.Bark,
		Satellites:     rep.Satellites,
		LTESignal:      rep.LTESignal,
		LoraRSSI:       rep.LoraRSSI,
		ConnectionType: rep.ConnectionType,
		Time:           rep.Time,
		Timestamp:      now,
	}, nil
}
