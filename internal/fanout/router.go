// Package fanout decides who receives a location update and dispatches
// it through the presence registry. Audiences are re-derived from the
// store on every update; relationship changes take effect immediately.
package fanout

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"woofpack.dev/dogtracker/internal/model"
	"woofpack.dev/dogtracker/internal/registry"
	"woofpack.dev/dogtracker/internal/store"
)

type Router struct {
	reg    *registry.Registry
	st     store.Store
	logger zerolog.Logger
}

func NewRouter(reg *registry.Registry, st store.Store, logger zerolog.Logger) *Router {
	return &Router{reg: reg, st: st, logger: logger.With().Str("module", "fanout").Logger()}
}

// RouteUserUpdate stores the principal's new position and pushes it to
// every accepted friend. The sender itself is never in the audience.
func (ro *Router) RouteUserUpdate(ctx context.Context, rec model.UserLocationRecord) error {
	if err := ro.st.UpsertUserLocation(ctx, rec); err != nil {
		return err
	}
	if err := ro.st.UpdateUserLastSeen(ctx, rec.UUID, rec.Timestamp); err != nil {
		return err
	}
	locs, err := ro.st.FriendLocations(ctx, rec.UUID, true)
	if err != nil {
		return err
	}
	var own *model.UserLocation
	for i := range locs {
		if locs[i].UUID == rec.UUID {
			own = &locs[i]
			break
		}
	}
	if own == nil {
		return nil
	}
	audience, err := ro.st.AcceptedFriends(ctx, rec.UUID)
	if err != nil {
		return err
	}
	push := model.UserLocationsPush([]model.UserLocation{*own})
	seen := make(map[string]bool, len(audience))
	for _, uid := range audience {
		if uid == rec.UUID || seen[uid] {
			continue
		}
		seen[uid] = true
		ro.reg.Send(ctx, uid, push)
	}
	ro.logger.Debug().Str("uid", rec.UUID).Int("audience", len(seen)).Msg("user location routed")
	return nil
}

// RouteDeviceUpdate stores a device observation and pushes it to the
// owner's accepted friends (tag friend) and to every principal the
// device is shared with (tag shared). Group membership is one of the
// modeled visibility kinds but is deliberately not a dispatch segment
// for devices.
func (ro *Router) RouteDeviceUpdate(ctx context.Context, rec model.DeviceLocationRecord) error {
	dev, err := ro.st.DeviceByIMEI(ctx, rec.DeviceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ro.logger.Warn().Str("imei", rec.DeviceID).Msg("update for unknown device dropped")
			return nil
		}
		return err
	}
	if err := ro.st.UpsertDeviceLocation(ctx, rec); err != nil {
		return err
	}
	if err := ro.st.UpdateDeviceLastSeen(ctx, rec.DeviceID, rec.Timestamp); err != nil {
		return err
	}
	loc, err := ro.st.DeviceLocationByIMEI(ctx, rec.DeviceID)
	if err != nil {
		return err
	}

	friends, err := ro.st.AcceptedFriends(ctx, dev.OwnerUUID)
	if err != nil {
		return err
	}
	friendPush := model.DeviceLocationsPush([]model.DeviceLocation{loc.Retag(model.VisibilityFriend)})
	seen := make(map[string]bool, len(friends))
	for _, uid := range friends {
		if seen[uid] {
			continue
		}
		seen[uid] = true
		ro.reg.Send(ctx, uid, friendPush)
	}

	shared, err := ro.st.SharedUsers(ctx, rec.DeviceID)
	if err != nil {
		return err
	}
	sharedPush := model.DeviceLocationsPush([]model.DeviceLocation{loc.Retag(model.VisibilityShared)})
	sharedSeen := make(map[string]bool, len(shared))
	for _, uid := range shared {
		if sharedSeen[uid] {
			continue
		}
		sharedSeen[uid] = true
		ro.reg.Send(ctx, uid, sharedPush)
	}
	ro.logger.Debug().Str("imei", rec.DeviceID).Int("friends", len(seen)).Int("shared", len(sharedSeen)).Msg("device location routed")
	return nil
}

// RouteTelemetryReport feeds an assembled collar reading through the
// device dispatch path. The feed has no reporting principal; unknown
// devices are dropped inside RouteDeviceUpdate.
func (ro *Router) RouteTelemetryReport(ctx context.Context, deviceID string, lat, lon float64, battery, bark int, at time.Time) error {
	rec := model.DeviceLocationRecord{
		DeviceID:  deviceID,
		Latitude:  &lat,
		Longitude: &lon,
		Battery:   &battery,
		Bark:      &bark,
		Timestamp: at,
	}
	return ro.RouteDeviceUpdate(ctx, rec)
}
