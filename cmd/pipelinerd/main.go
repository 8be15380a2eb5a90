package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vrischmann/envconfig"
	"golang.org/x/time/rate"

	bindingsetcd "github.com/openfabric/pipeliner/internal/bindings/etcd"
	"github.com/openfabric/pipeliner/internal/devicelink"
	"github.com/openfabric/pipeliner/internal/groupwatcher"
	"github.com/openfabric/pipeliner/internal/metrics"
	"github.com/openfabric/pipeliner/internal/objserver"
	"github.com/openfabric/pipeliner/internal/pending"
	"github.com/openfabric/pipeliner/internal/pipeliner"
)

const appID = "org.openfabric.pipeliner"

func loggerLevelFromString(level string) zerolog.Level {
	level = strings.ToLower(level)
	switch level {
	case "error":
		return zerolog.ErrorLevel
	case "warn":
		return zerolog.WarnLevel
	case "info":
		return zerolog.InfoLevel
	case "debug":
		return zerolog.DebugLevel
	}
	return zerolog.WarnLevel
}

type Config struct {
	DeviceID    string `envconfig:"PIPELINER_DEVICE_ID"`
	LoggerLevel string `envconfig:"LOGGER_LEVEL"`

	DeviceAgentAddr    string        `envconfig:"DEVICE_AGENT_ADDR"`
	DeviceAgentTimeout time.Duration `envconfig:"DEVICE_AGENT_TIMEOUT,default=3s"`

	EtcdAddr string `envconfig:"ETCD_ADDR"`

	QueueAddr        string `envconfig:"QUEUE_ADDR"`
	GroupEventsTopic string `envconfig:"QUEUE_GROUP_EVENTS_TOPIC"`

	GroupLease      time.Duration `envconfig:"GROUP_PENDING_LEASE,default=20s"`
	SweepInterval   time.Duration `envconfig:"GROUP_SWEEP_INTERVAL,default=500ms"`
	SweepQueryRate  float64       `envconfig:"GROUP_SWEEP_QUERY_RATE,default=64"`
	StatsdAddr      string        `envconfig:"STATSD_ADDR,optional"`
	ListenAddr      string        `envconfig:"LISTEN_ADDR,default=0.0.0.0:9090"`
	ProbeListenAddr string        `envconfig:"PROBE_LISTEN_ADDR,default=0.0.0.0:8080"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	_ = godotenv.Load()

	appCfg := Config{}
	err := envconfig.Init(&appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read app config")
	}
	log.Logger = log.Level(loggerLevelFromString(appCfg.LoggerLevel))

	log.Warn().Msgf("running pipeliner for device %s", appCfg.DeviceID)

	var m metrics.Metrics = metrics.Noop{}
	if appCfg.StatsdAddr != "" {
		m = metrics.NewStatsd(appCfg.DeviceID, appCfg.StatsdAddr)
	}

	device, err := devicelink.NewClient(appCfg.DeviceAgentAddr, appCfg.DeviceAgentTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create device agent client")
	}

	bindingStore, err := bindingsetcd.NewStore(ctx, appCfg.EtcdAddr, appCfg.DeviceID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create etcd binding store")
	}
	defer bindingStore.Close()

	tracker := pending.NewTracker(bindingStore, appCfg.GroupLease, m)

	sweeper := pending.NewSweeper(
		tracker,
		device,
		appCfg.SweepInterval,
		rate.Limit(appCfg.SweepQueryRate),
	)
	go sweeper.Run(ctx)

	watcher := groupwatcher.New(
		appCfg.DeviceID,
		appCfg.QueueAddr,
		appCfg.GroupEventsTopic,
		tracker,
	)
	defer watcher.Close()
	go func() {
		err := watcher.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal().Err(err).Msg("group event watcher stopped")
		}
	}()

	ppl := pipeliner.New(
		appCfg.DeviceID,
		appID,
		device,
		device,
		tracker,
		bindingStore,
		m,
	)
	err = ppl.InstallDefaultProgram(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to install default table program")
	}
	log.Info().Msg("default table program submitted")

	objSrv := http.Server{
		Handler: objserver.NewServer(ppl).Routes(),
		Addr:    appCfg.ListenAddr,
	}
	go func() {
		err := objSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start objective server")
		}
	}()
	defer objSrv.Close()
	log.Info().Msgf("accepting objectives on %s", appCfg.ListenAddr)

	serverClose := startProbeServer(appCfg.ProbeListenAddr)
	defer serverClose()

	<-ctx.Done()
}

func startProbeServer(addr string) func() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		w.WriteHeader(http.StatusOK)
	})
	srv := http.Server{
		Handler: mux,
		Addr:    addr,
	}
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start probe server")
		}
	}()
	return func() {
		_ = srv.Close()
	}
}
