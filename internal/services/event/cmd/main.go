package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/mux"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/garden_controller/internal/services/event"
	"github.com/LeonardoBeccarini/garden_controller/pkg/dedup"
	"github.com/LeonardoBeccarini/garden_controller/pkg/rabbitmq"
)

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func splitTopics(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fieldID := envStr("FIELD_ID", "garden")
	influxOrg := envStr("INFLUX_ORG", "garden")
	influxBucket := envStr("INFLUX_BUCKET", "events")
	flush := time.Duration(envInt("WRITE_FLUSH_INTERVAL_MS", 200)) * time.Millisecond
	topics := splitTopics(envStr("EVENT_SUB_TOPICS", "event/StateChange/#,event/dosage/#,event/cycle/#,event/dayRecord/#"))

	// === InfluxDB ===
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(envInt("WRITE_BATCH_SIZE", 10))).
		SetFlushInterval(uint(flush.Milliseconds()))
	influx := influxdb2.NewClientWithOptions(envStr("INFLUX_URL", "http://localhost:8086"), os.Getenv("INFLUX_TOKEN"), opts)
	defer influx.Close()

	reg := prometheus.NewRegistry()
	writer := event.NewWriter(influx.WriteAPI(influxOrg, influxBucket), reg)

	// === MQTT ===
	d := dedup.New(10*time.Minute, 20000)
	handler := event.NewMQTTHandler(writer.Write)
	handle := func(topic string, m mqtt.Message) error {
		if !d.ShouldProcessPayload(m.Payload()) {
			return nil
		}
		return handler.Handle(topic, m)
	}

	client, err := rabbitmq.NewConn(ctx, &rabbitmq.Config{
		Host:     envStr("RABBITMQ_HOST", "localhost"),
		Port:     envInt("RABBITMQ_PORT", 1883),
		User:     envStr("RABBITMQ_USER", "guest"),
		Password: envStr("RABBITMQ_PASSWORD", "guest"),
		ClientID: envStr("HOSTNAME", "event-service"),
	})
	if err != nil {
		log.Fatalf("mqtt connection error: %v", err)
	}
	go rabbitmq.NewConsumer(client, handle, topics...).ConsumeMessage(ctx)

	// === HTTP ===
	health := event.NewHealth(client, writer, 30*time.Second)
	r := mux.NewRouter()
	r.HandleFunc("/healthz", health.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", health.Readyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	event.NewHistoryAPI(influx.QueryAPI(influxOrg), influxBucket, fieldID).LoadAPI(r)

	port := envInt("HTTP_PORT", 8080)
	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("event-svc: HTTP listening on :%d, topics=%v", port, topics)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("event-svc: shutting down...")
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hs.Shutdown(shCtx)
	time.Sleep(flush + 100*time.Millisecond)
}
