package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	phuslu "github.com/phuslu/log"
	"github.com/pires/go-proxyproto"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"woofpack.dev/dogtracker/internal/auth"
	"woofpack.dev/dogtracker/internal/fanout"
	"woofpack.dev/dogtracker/internal/model"
	"woofpack.dev/dogtracker/internal/registry"
	"woofpack.dev/dogtracker/internal/store"
	"woofpack.dev/dogtracker/internal/store/memstore"
	"woofpack.dev/dogtracker/internal/store/pgstore"
	"woofpack.dev/dogtracker/internal/telemetry"
	"woofpack.dev/dogtracker/internal/util"
	"woofpack.dev/dogtracker/internal/webapp"
	"woofpack.dev/dogtracker/internal/ws"
)

func main() {
	viper.SetDefault("listen_addr", ":8000")
	viper.SetDefault("proxy_protocol", false)
	viper.SetDefault("db_url", "")
	viper.SetDefault("jwt_secret", "")
	viper.SetDefault("jwt_ttl", "720h")
	viper.SetDefault("mqtt_broker", "")
	viper.SetDefault("mqtt_username", "")
	viper.SetDefault("mqtt_password", "")
	viper.SetDefault("mqtt_client_id", "dogtracker-backend")
	viper.SetDefault("mqtt_topic_prefix", "collar/")
	viper.SetDefault("bootstrap_admin_email", "")
	viper.SetDefault("bootstrap_admin_password", "")
	viper.SetEnvPrefix("dogtracker")
	viper.AutomaticEnv()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	plog := phuslu.DefaultLogger
	plog.Level = phuslu.DebugLevel

	secret := viper.GetString("jwt_secret")
	if secret == "" {
		logger.Fatal().Msg("jwt_secret must be set")
	}
	a := auth.New(secret, viper.GetDuration("jwt_ttl"))

	ctx := context.Background()
	var st store.Store
	if dbURL := viper.GetString("db_url"); dbURL != "" {
		pool, err := pgxpool.Connect(ctx, dbURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("error connecting to database")
		}
		pg := pgstore.New(pool)
		if err := pg.InitSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("error initializing schema")
		}
		st = pg
		logger.Info().Msg("using postgres store")
	} else {
		st = memstore.New()
		logger.Warn().Msg("no db_url configured, using in-memory store")
	}

	bootstrapAdmin(ctx, st, logger)

	reg := registry.New(logger)
	router := fanout.NewRouter(reg, st, logger)
	norm := fanout.NewNormalizer(st)
	wsrv := ws.NewServer(reg, router, norm, st, a, logger)
	api := webapp.New(st, a, reg, logger)

	if broker := viper.GetString("mqtt_broker"); broker != "" {
		disp, err := telemetry.NewDispatcher(router, plog)
		if err != nil {
			logger.Fatal().Err(err).Msg("error creating telemetry dispatcher")
		}
		asm := telemetry.NewAssembler(viper.GetString("mqtt_topic_prefix"), disp.Publish, plog)
		ing := telemetry.NewIngest(telemetry.IngestConfig{
			BrokerURL:   broker,
			Username:    viper.GetString("mqtt_username"),
			Password:    viper.GetString("mqtt_password"),
			ClientID:    viper.GetString("mqtt_client_id"),
			TopicPrefix: viper.GetString("mqtt_topic_prefix"),
		}, asm, plog)
		// Auto-reconnect keeps retrying in the background, so a broker
		// that is down at boot is not fatal.
		if err := ing.Start(); err != nil {
			logger.Warn().Err(err).Msg("telemetry ingest not connected yet")
		}
		defer ing.Stop()
	} else {
		logger.Info().Msg("no mqtt_broker configured, telemetry ingest disabled")
	}

	addr := viper.GetString("listen_addr")
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", addr).Msg("error listening")
	}
	if viper.GetBool("proxy_protocol") {
		ln = &proxyproto.Listener{Listener: ln}
	}

	logger.Info().Str("addr", addr).Msg("server listening")
	srv := &http.Server{Handler: api.Router(wsrv)}
	if err := srv.Serve(ln); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

// bootstrapAdmin creates the initial admin account when the store has
// none and credentials are configured. Without it a fresh deployment
// has no way to reach the admin endpoints.
func bootstrapAdmin(ctx context.Context, st store.Store, logger zerolog.Logger) {
	email := viper.GetString("bootstrap_admin_email")
	password := viper.GetString("bootstrap_admin_password")
	if email == "" || password == "" {
		return
	}
	exists, err := st.AdminExists(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("error checking for admin account")
	}
	if exists {
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		logger.Fatal().Err(err).Msg("error hashing bootstrap password")
	}
	u := model.User{
		UUID:      util.GenUUID(),
		Email:     email,
		Password:  hash,
		Nickname:  "admin",
		Role:      model.RoleAdmin,
		CreatedAt: time.Now(),
	}
	if err := st.CreateUser(ctx, u); err != nil {
		logger.Fatal().Err(err).Msg("error creating bootstrap admin")
	}
	logger.Info().Str("email", email).Msg("bootstrap admin created")
}
