package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sensor_simulator "github.com/LeonardoBeccarini/greenhouse_node/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/greenhouse_node/internal/services/datamanager"
	"github.com/LeonardoBeccarini/greenhouse_node/internal/services/delivery"
	"github.com/LeonardoBeccarini/greenhouse_node/internal/services/mirror"
	"github.com/LeonardoBeccarini/greenhouse_node/internal/services/registration"
	"github.com/LeonardoBeccarini/greenhouse_node/internal/services/status"
	"github.com/LeonardoBeccarini/greenhouse_node/internal/services/timekeeper"
	"github.com/LeonardoBeccarini/greenhouse_node/internal/services/uplink"
	"github.com/LeonardoBeccarini/greenhouse_node/pkg/mqttbus"
	"github.com/LeonardoBeccarini/greenhouse_node/pkg/statestore"
	"github.com/LeonardoBeccarini/greenhouse_node/pkg/watchdog"
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deviceID := env("DEVICE_ID", "greenhouse-node-01")
	dataDir := env("DATA_DIR", "./data")
	clock := timekeeper.NewSystemClock()

	// --- Uplink ---
	client := uplink.NewClient(uplink.Config{
		Endpoint: env("API_ENDPOINT", "http://localhost:8080/api/v1/readings"),
		APIToken: env("API_TOKEN", ""),
		DeviceID: deviceID,
	})

	// --- Registration ---
	confStore := registration.NewFileConfirmationStore(dataDir + "/confirmation_id")
	reg, err := registration.NewManager(client, confStore, clock, registration.DeviceInfo{
		HardwareID:      env("HARDWARE_ID", deviceID),
		BootID:          registration.NewBootID(),
		FirmwareVersion: env("FIRMWARE_VERSION", "dev"),
		FriendlyName:    env("FRIENDLY_NAME", ""),
	})
	if err != nil {
		log.Fatalf("registration init failed: %v", err)
	}

	// --- Buffers, restored from the last run ---
	acc := datamanager.NewAccumulator(envInt("PUBLISH_SAMPLES", 60))
	queue := datamanager.NewTransmissionQueue()
	history := datamanager.NewDisplayHistory()
	store := statestore.NewFileStore(dataDir + "/node-state.json")
	if err := datamanager.RestoreState(store, queue, history); err != nil {
		log.Printf("state restore failed, starting fresh: %v", err)
	}

	// --- Status + metrics ---
	statusMgr := status.NewManager(clock, prometheus.DefaultRegisterer)

	// --- Local mirror (optional: needs a broker and an Influx token) ---
	var mir delivery.Mirror
	if env("MIRROR_ENABLED", "") == "true" {
		mqttClient, err := mqttbus.NewConn(ctx, &mqttbus.Config{
			Host:     env("MQTT_HOST", "localhost"),
			Port:     envInt("MQTT_PORT", 1883),
			User:     env("MQTT_USER", "mqtt_user"),
			Password: env("MQTT_PASS", "mqtt_pwd"),
			ClientID: deviceID,
		})
		if err != nil {
			log.Fatalf("mqtt connect failed: %v", err)
		}
		publisher := mqttbus.NewPublisher(mqttClient, env("MQTT_TOPIC", "greenhouse/readings/"+deviceID))
		m, err := mirror.NewService(deviceID, publisher, mirror.InfluxConfig{
			InfluxURL:    env("INFLUX_URL", "http://localhost:8086"),
			InfluxToken:  env("INFLUX_TOKEN", ""),
			InfluxOrg:    env("INFLUX_ORG", "org"),
			InfluxBucket: env("INFLUX_BUCKET", "greenhouse"),
			Measurement:  env("MEASUREMENT", "greenhouse_readings"),
		})
		if err != nil {
			log.Fatalf("mirror init failed: %v", err)
		}
		mir = m
	}

	coord := delivery.NewCoordinator(delivery.Deps{
		DeviceID:    deviceID,
		Accumulator: acc,
		Queue:       queue,
		History:     history,
		Sender:      client,
		Registrar:   reg,
		Mirror:      mir,
		Status:      statusMgr,
		Clock:       clock,
	})

	// --- HTTP: /healthz + /metrics ---
	mux := http.NewServeMux()
	mux.Handle("/healthz", status.NewHealthHandler(statusMgr))
	mux.Handle("/metrics", promhttp.Handler())
	httpPort := env("PORT", "8080")
	srv := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("node HTTP listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	// --- Watchdog over the sample loop ---
	sampleInterval := time.Duration(envInt("SAMPLE_INTERVAL_SEC", 30)) * time.Second
	wd := watchdog.New("sample-loop", 4*sampleInterval, nil)
	go wd.Run(ctx)

	log.Printf("greenhouse node %s is running...", deviceID)
	coord.Run(ctx, delivery.RunConfig{
		Source:         sensor_simulator.NewDataGenerator(time.Now().UnixNano()),
		Store:          store,
		SampleInterval: sampleInterval,
		FlushInterval:  time.Duration(envInt("FLUSH_INTERVAL_SEC", 300)) * time.Second,
		SaveInterval:   time.Duration(envInt("SAVE_INTERVAL_SEC", 600)) * time.Second,
		Watchdog:       wd,
	})

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Println("greenhouse node: shutdown complete")
}
