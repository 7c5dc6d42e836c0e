package telemetry

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/phuslu/log"
)

type IngestConfig struct {
	BrokerURL   string
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
}

// Ingest is the MQTT side of the telemetry feed: it subscribes to the
// four per-device sensor topics and forwards every message to the
// assembler. The assembler is the single writer of the fragment
// buffers; paho delivers messages to one handler at a time per
// subscription, and the assembler locks its map besides.
type Ingest struct {
	client mqtt.Client
	asm    *Assembler
	config IngestConfig
	log    log.Logger
}

func NewIngest(config IngestConfig, asm *Assembler, logger log.Logger) *Ingest {
	logger.Context = log.NewContext(nil).Str("module", "mqtt-ingest").Value()
	ing := &Ingest{asm: asm, config: config, log: logger}

	opts := mqtt.NewClientOptions().
		AddBroker(config.BrokerURL).
		SetClientID(config.ClientID).
		SetOrderMatters(false).
		SetAutoReconnect(true)
	if config.Username != "" {
		opts = opts.SetUsername(config.Username).SetPassword(config.Password)
	}
	opts.OnConnect = ing.onConnect
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		ing.log.Warn().Err(err).Msg("broker connection lost")
	}
	ing.client = mqtt.NewClient(opts)
	return ing
}

func (ing *Ingest) onConnect(c mqtt.Client) {
	ing.log.Info().Str("broker", ing.config.BrokerURL).Msg("connected to broker")
	for _, suffix := range []string{"+/Position/latitude", "+/Position/longitude", "+/battery", "+/bark"} {
		topic := ing.config.TopicPrefix + suffix
		token := c.Subscribe(topic, 0, ing.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			ing.log.Error().Err(err).Str("topic", topic).Msg("subscribe failed")
		}
	}
}

func (ing *Ingest) onMessage(_ mqtt.Client, m mqtt.Message) {
	ing.log.Debug().Str("topic", m.Topic()).Str("payload", string(m.Payload())).Msg("fragment received")
	ing.asm.HandleFragment(m.Topic(), m.Payload())
}

func (ing *Ingest) Start() error {
	token := ing.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("timeout connecting to broker %s", ing.config.BrokerURL)
	}
	return token.Error()
}

func (ing *Ingest) Stop() {
	ing.client.Disconnect(250)
}
