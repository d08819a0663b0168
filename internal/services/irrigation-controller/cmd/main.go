package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/garden_controller/internal/services/device"
	"github.com/LeonardoBeccarini/garden_controller/internal/services/gateway/app"
	controller "github.com/LeonardoBeccarini/garden_controller/internal/services/irrigation-controller"
	"github.com/LeonardoBeccarini/garden_controller/internal/services/persistence"
	"github.com/LeonardoBeccarini/garden_controller/pkg/dedup"
	"github.com/LeonardoBeccarini/garden_controller/pkg/rabbitmq"
)

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64); err == nil {
			return f
		}
	}
	return def
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := controller.LoadConfig(env("CONTROLLER_CONFIG_PATH", "/app/config/controller.yaml"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Settings store
	store, err := persistence.Open(env("SETTINGS_DB_PATH", "/var/lib/garden/settings.db"))
	if err != nil {
		log.Fatalf("settings store: %v", err)
	}
	defer store.Close()

	// MQTT: events out, panel commands in
	var commands atomic.Pointer[rabbitmq.Consumer]
	mqClient, err := rabbitmq.NewConn(ctx, &rabbitmq.Config{
		Host:     env("RABBITMQ_HOST", "localhost"),
		Port:     envInt("RABBITMQ_PORT", 1883),
		User:     env("RABBITMQ_USER", "guest"),
		Password: env("RABBITMQ_PASSWORD", "guest"),
		ClientID: fmt.Sprintf("GardenController-%s", env("HOSTNAME", "local")),
		OnConnect: func(mqtt.Client) {
			if c := commands.Load(); c != nil {
				c.Subscribe()
			}
		},
	})
	if err != nil {
		log.Fatalf("MQTT connect failed: %v", err)
	}
	notifier := controller.NewMQTTNotifier(rabbitmq.NewPublisher(mqClient, ""), envInt("NOTIFY_QUEUE", 256))
	go notifier.Run(ctx)

	// Board: the simulated board stands in for the pin bring-up.
	board := device.NewBoard(cfg.Pins, envInt("SIM_VALVE_TRAVEL_TICKS", 3))
	board.SetTank(envFloat("SIM_TANK_LEVEL", 0.6), cfg.TankHeightCm)
	weather := device.NewWeather(board, envFloat("SIM_TEMP_MIN", 12), envFloat("SIM_TEMP_MAX", 28), time.Now().UnixNano())
	go weather.Run(ctx, cfg.TickInterval)

	var temp controller.TemperatureSensor = weather
	if key := env("OWM_API_KEY", ""); key != "" {
		owm := controller.NewOWMTemperature(key, envFloat("LATITUDE", 41.9), envFloat("LONGITUDE", 12.5), 30*time.Minute)
		go owm.Run(ctx, 10*time.Minute)
		temp = owm
	}

	ctrl, err := controller.NewController(cfg, controller.Deps{
		IO:          board,
		Temperature: temp,
		Store:       store,
		Notifier:    notifier,
		Registerer:  prometheus.DefaultRegisterer,
	})
	if err != nil {
		log.Fatalf("controller init: %v", err)
	}
	board.SetEchoSink(ctrl.EchoEdge)

	consumer := rabbitmq.NewConsumer(mqClient,
		app.CommandHandler(ctx, ctrl, dedup.New(10*time.Minute, 20000)),
		app.CommandTopicPrefix+"#")
	commands.Store(consumer)
	go consumer.ConsumeMessage(ctx)

	// HTTP panel + metrics
	gw := app.NewGateway(ctx, ctrl, app.Config{
		EventsBaseURL:   env("EVENT_URL", ""),
		HTTPTimeout:     time.Duration(envInt("TIMEOUT_MS", 3000)) * time.Millisecond,
		BreakerFailures: envInt("BREAKER_FAILURES", 3),
		BreakerOpenFor:  time.Duration(envInt("BREAKER_OPEN_MS", 10000)) * time.Millisecond,
	})
	r := mux.NewRouter()
	gw.LoadAPI(r)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !ctrl.Alive(5 * time.Second) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = w.Write([]byte("ok"))
	})
	httpPort := env("PORT", "8080")
	srv := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("controller: HTTP listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	// gRPC health
	grpcAddr := ":" + env("GRPC_PORT", "50051")
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", grpcAddr, err)
	}
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	go func() {
		log.Printf("controller: gRPC health on %s", grpcAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("gRPC serve error: %v", err)
		}
	}()

	go func() {
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("controller: loop stopped: %v", err)
		}
	}()
	go supervise(ctx, ctrl, hs)

	<-ctx.Done()
	log.Println("controller: shutting down...")
	hs.Shutdown()
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	grpcServer.GracefulStop()
}

// supervise reports loop liveness to gRPC health and systemd.
func supervise(ctx context.Context, ctrl *controller.Controller, hs *health.Server) {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Printf("systemd: notify ready: %v", err)
	} else if ok {
		log.Printf("systemd: READY sent")
	}
	every := time.Second
	watchdog, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Printf("systemd: watchdog: %v", err)
	}
	if watchdog > 0 && watchdog/2 < every {
		every = watchdog / 2
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
			return
		case <-t.C:
		}
		if !ctrl.Alive(5 * time.Second) {
			hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
			continue
		}
		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		if watchdog > 0 {
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
