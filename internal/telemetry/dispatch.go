package telemetry

import (
	"context"

	"github.com/mustafaturan/bus/v3"
	"github.com/mustafaturan/monoton/v2"
	"github.com/mustafaturan/monoton/v2/sequencer"
	"github.com/phuslu/log"

	"woofpack.dev/dogtracker/internal/fanout"
)

const topicReport = "telemetry.report"

// Dispatcher carries assembled reports from the ingest path to the
// fan-out router over an in-process topic bus, keeping the single
// writer of the fragment buffers decoupled from store and registry
// latency on the dispatch side.
type Dispatcher struct {
	bus *bus.Bus
	log log.Logger
}

func NewDispatcher(router *fanout.Router, logger log.Logger) (*Dispatcher, error) {
	logger.Context = log.NewContext(nil).Str("module", "telemetry-dispatch").Value()
	node := uint64(1)
	m, err := monoton.New(sequencer.NewMillisecond(), node, 0)
	if err != nil {
		return nil, err
	}
	var next bus.Next = m.Next
	b, err := bus.NewBus(next)
	if err != nil {
		return nil, err
	}
	b.RegisterTopics(topicReport)

	d := &Dispatcher{bus: b, log: logger}
	b.RegisterHandler("fanout-router", bus.Handler{
		Matcher: topicReport,
		Handle: func(ctx context.Context, e bus.Event) {
			rep, ok := e.Data.(Report)
			if !ok {
				return
			}
			err := router.RouteTelemetryReport(ctx, rep.DeviceID, rep.Latitude, rep.Longitude, rep.Battery, rep.Bark, rep.LastUpdate)
			if err != nil {
				d.log.Error().Err(err).Str("device", rep.DeviceID).Msg("error routing telemetry report")
			}
		},
	})
	return d, nil
}

// Publish hands one assembled report to the bus; handlers run inline.
func (d *Dispatcher) Publish(rep Report) {
	if err := d.bus.Emit(context.Background(), topicReport, rep); err != nil {
		d.log.Error().Err(err).Str("device", rep.DeviceID).Msg("error emitting report")
	}
}
