// navekfd runs the strapdown inertial navigation filter as a standalone
// daemon: it predicts on simulated IMU samples and exposes the resulting
// estimate over an HTTP query API, a WebSocket live feed, Prometheus
// metrics, and an optional serial export. It applies no aiding updates
// (GPS, baro or magnetometer).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HANARO2024/polaris/internal/config"
	"github.com/HANARO2024/polaris/internal/logging"
	"github.com/HANARO2024/polaris/internal/navekf"
	"github.com/HANARO2024/polaris/internal/telemetry"
	"github.com/HANARO2024/polaris/pkg/spatial"
	"github.com/sirupsen/logrus"
)

var (
	version = "0.1.0"

	configFile = flag.String("config", "configs/config.yaml", "configuration file path")
	httpPort   = flag.Int("http-port", 0, "HTTP query API port (overrides config file)")

	predictHz = flag.Float64("predict-hz", 100.0, "simulated IMU predict rate")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("navekfd: failed to load config: %v", err)
	}
	if *httpPort != 0 {
		cfg.HTTPPort = *httpPort
	}

	logging.Configure(cfg.LogLevel, cfg.LogOutput)
	logger := logging.Logger
	logger.Infof("navekfd %s starting", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	filter := buildFilter(cfg)

	var authority *telemetry.Authority
	if cfg.Auth.Secret != "" {
		ttl := cfg.Auth.TTL
		if ttl <= 0 {
			ttl = time.Hour
		}
		authority = telemetry.NewAuthority([]byte(cfg.Auth.Secret), ttl)
	}

	stream := telemetry.NewStream(logger, authority)
	metrics := telemetry.GetMetrics()

	var exporter *telemetry.SerialExporter
	if cfg.Serial.Port != "" {
		exporter = telemetry.NewSerialExporter(telemetry.SerialConfig(cfg.Serial), logger)
		if err := exporter.Connect(); err != nil {
			logger.WithError(err).Warn("navekfd: serial export disabled, connect failed")
			exporter = nil
		}
	}

	apiRouter := telemetry.NewRouter(filter, authority)
	apiServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.HTTPPort), Handler: apiRouter}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", telemetry.MetricsHandler())
	metricsServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: metricsMux}

	streamMux := http.NewServeMux()
	streamMux.HandleFunc("/ws", stream.HandleWebSocket)

	go func() {
		logger.Infof("navekfd: HTTP query API listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("navekfd: HTTP query API stopped")
		}
	}()
	go func() {
		logger.Infof("navekfd: metrics listening on %s", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("navekfd: metrics server stopped")
		}
	}()
	go func() {
		if err := stream.Run(ctx); err != nil && err != context.Canceled {
			logger.WithError(err).Warn("navekfd: stream stopped")
		}
	}()

	go runSimulatedIMU(ctx, filter, stream, exporter, metrics, *predictHz, logger)

	logger.Info("navekfd operational, press Ctrl+C to stop")
	<-sigChan
	logger.Info("navekfd: shutdown signal received")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)
	if exporter != nil {
		exporter.Disconnect()
	}

	logger.Info("navekfd: shutdown complete")
}

func buildFilter(cfg config.Config) *navekf.Filter {
	f := navekf.New()
	f.SetLogger(logging.Logger)

	fc := cfg.Filter
	f.SetProcessNoise(fc.ProcessSigmaPos, fc.ProcessSigmaVel, fc.ProcessSigmaAtt, fc.ProcessSigmaGBias, fc.ProcessSigmaABias)
	f.SetGPSNoise(fc.GPSSigmaPos, fc.GPSSigmaVel)
	f.SetBaroNoise(fc.BaroSigma)
	f.SetMagNoise(fc.MagSigma)
	f.SetEarthMagneticField(spatial.Vector3{
		X: float32(fc.EarthMagNED[0]), Y: float32(fc.EarthMagNED[1]), Z: float32(fc.EarthMagNED[2]),
	})

	f.SetInitialState(spatial.Vector3{}, spatial.Vector3{}, spatial.IdentityQuaternion())
	return f
}

// runSimulatedIMU drives the filter with a gentle constant-rate rotation
// and gravity-only specific force, standing in for a real IMU driver. It
// publishes a Sample to the live feed and serial exporter after every
// predict step.
func runSimulatedIMU(ctx context.Context, f *navekf.Filter, stream *telemetry.Stream, exporter *telemetry.SerialExporter, metrics *telemetry.Metrics, hz float64, logger *logrus.Logger) {
	if hz <= 0 {
		hz = 100
	}
	dt := 1.0 / hz
	ticker := time.NewTicker(time.Duration(dt * float64(time.Second)))
	defer ticker.Stop()

	gyro := spatial.Vector3{Z: 0.01}
	accel := spatial.Vector3{Z: -float32(navekf.DefaultGravity)}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !f.Predict(gyro, accel, dt) {
				continue
			}
			metrics.PredictionsTotal.Inc()

			sample := sampleFromFilter(f)
			metrics.QuaternionNorm.Set(quaternionNormOf(f))
			if f.DegradedAttitude() {
				metrics.DegradedAttitude.Set(1)
			}

			stream.Publish(sample)
			if exporter != nil {
				if err := exporter.Write(sample); err != nil {
					logger.Warn(err)
				}
			}
		}
	}
}

func sampleFromFilter(f *navekf.Filter) *telemetry.Sample {
	pos := f.Position()
	vel := f.Velocity()
	roll, pitch, yaw := f.Euler()
	return &telemetry.Sample{
		Timestamp: time.Now(),
		Position:  [3]float64{float64(pos.X), float64(pos.Y), float64(pos.Z)},
		Velocity:  [3]float64{float64(vel.X), float64(vel.Y), float64(vel.Z)},
		Euler:     [3]float64{roll, pitch, yaw},
		Clearance: telemetry.ClearancePublic,
	}
}

func quaternionNormOf(f *navekf.Filter) float64 {
	q := f.Attitude()
	return math.Sqrt(float64(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z))
}
