// Package telemetry ingests the collar sensor feed. Readings arrive as
// single-field MQTT fragments and are merged per device until a full
// position report can be emitted downstream.
package telemetry

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
)

// Report is one complete collar reading: emitted the first time all
// four required fields have been seen, then again on every later
// fragment using the retained merged state.
type Report struct {
	DeviceID   string
	Latitude   float64
	Longitude  float64
	Battery    int
	Bark       int
	LastUpdate time.Time
}

type buffer struct {
	latitude   *float64
	longitude  *float64
	battery    *int
	bark       *int
	lastUpdate time.Time
}

func (b *buffer) complete() bool {
	return b.latitude != nil && b.longitude != nil && b.battery != nil && b.bark != nil
}

type Assembler struct {
	mu      sync.Mutex
	prefix  string
	buffers map[string]*buffer
	emit    func(Report)
	log     log.Logger
	now     func() time.Time
}

func NewAssembler(prefix string, emit func(Report), logger log.Logger) *Assembler {
	logger.Context = log.NewContext(nil).Str("module", "telemetry").Value()
	return &Assembler{
		prefix:  prefix,
		buffers: make(map[string]*buffer),
		emit:    emit,
		log:     logger,
		now:     time.Now,
	}
}

// HandleFragment merges one sensor message into the device's buffer and
// emits a Report when the merged state is complete. The buffer is
// retained after emission so later single-field fragments keep
// producing reports from the latest known values. Malformed fragments
// are dropped with a warning, never fatal.
func (a *Assembler) HandleFragment(topic string, payload []byte) {
	if !strings.HasPrefix(topic, a.prefix) {
		a.log.Warn().Str("topic", topic).Msg("fragment outside topic prefix dropped")
		return
	}
	parts := strings.Split(topic[len(a.prefix):], "/")
	if len(parts) < 2 {
		a.log.Warn().Str("topic", topic).Msg("fragment with too few path segments dropped")
		return
	}
	deviceID := parts[0]
	field := strings.Join(parts[1:], "/")

	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.buffers[deviceID]
	if !ok {
		buf = &buffer{}
		a.buffers[deviceID] = buf
	}

	text := string(payload)
	switch field {
	case "Position/latitude":
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			a.log.Warn().Str("device", deviceID).Str("payload", text).Msg("non-numeric latitude dropped")
			return
		}
		buf.latitude = &v
	case "Position/longitude":
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			a.log.Warn().Str("device", deviceID).Str("payload", text).Msg("non-numeric longitude dropped")
			return
		}
		buf.longitude = &v
	case "battery":
		v, err := strconv.Atoi(text)
		if err != nil {
			a.log.Warn().Str("device", deviceID).Str("payload", text).Msg("non-numeric battery dropped")
			return
		}
		buf.battery = &v
	case "bark":
		v, err := strconv.Atoi(text)
		if err != nil {
			a.log.Warn().Str("device", deviceID).Str("payload", text).Msg("non-numeric bark dropped")
			return
		}
		buf.bark = &v
	default:
		a.log.Warn().Str("device", deviceID).Str("field", field).Msg("unrecognized field suffix dropped")
		return
	}
	buf.lastUpdate = a.now()

	if buf.complete() {
		a.log.Debug().Str("device", deviceID).Msg("dispatching full report")
		a.emit(Report{
			DeviceID:   deviceID,
			Latitude:   *buf.latitude,
			Longitude:  *buf.longitude,
			Battery:    *buf.battery,
			Bark:       *buf.bark,
			LastUpdate: buf.lastUpdate,
		})
	}
}
