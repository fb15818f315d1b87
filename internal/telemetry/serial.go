package telemetry

import (
	"bufio"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// SerialExporter writes one CSV-formatted telemetry line per sample to a
// serial port, for ground stations that want the filter's estimate without
// speaking the query API's JSON. It is a much narrower protocol than a full
// flight-controller link: one line out, nothing read back.
type SerialExporter struct {
	mu        sync.Mutex
	port      serial.Port
	portName  string
	baudRate  int
	connected bool
	logger    *logrus.Logger

	linesSent uint64
}

// SerialConfig configures a SerialExporter.
type SerialConfig struct {
	Port     string
	BaudRate int
}

// NewSerialExporter builds an exporter bound to the given port and baud
// rate. Connect must be called before Write.
func NewSerialExporter(cfg SerialConfig, logger *logrus.Logger) *SerialExporter {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &SerialExporter{portName: cfg.Port, baudRate: cfg.BaudRate, logger: logger}
}

// Connect opens the serial port. Calling Connect on an already-connected
// exporter is a no-op.
func (s *SerialExporter) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}

	mode := &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(s.portName, mode)
	if err != nil {
		return fmt.Errorf("telemetry: failed to open serial port %s: %w", s.portName, err)
	}

	s.port = port
	s.connected = true
	s.logger.WithFields(logrus.Fields{"port": s.portName, "baud": s.baudRate}).Info("telemetry: serial exporter connected")
	return nil
}

// Disconnect closes the serial port. It is safe to call even if not
// connected.
func (s *SerialExporter) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}
	err := s.port.Close()
	s.connected = false
	return err
}

// Write emits one CSV line: unix-nano timestamp, NED position, NED
// velocity, roll/pitch/yaw.
func (s *SerialExporter) Write(sample *Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return fmt.Errorf("telemetry: serial exporter not connected")
	}

	line := fmt.Sprintf("%d,%.4f,%.4f,%.4f,%.4f,%.4f,%.4f,%.6f,%.6f,%.6f\n",
		sample.Timestamp.UnixNano(),
		sample.Position[0], sample.Position[1], sample.Position[2],
		sample.Velocity[0], sample.Velocity[1], sample.Velocity[2],
		sample.Euler[0], sample.Euler[1], sample.Euler[2],
	)

	w := bufio.NewWriter(s.port)
	if _, err := w.WriteString(line); err != nil {
		return fmt.Errorf("telemetry: serial write failed: %w", err)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	s.linesSent++
	return nil
}

// Stats reports how many lines have been written and whether the port is
// currently open.
func (s *SerialExporter) Stats() (connected bool, linesSent uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected, s.linesSent
}

// RunPeriodic writes a fresh sample from next every interval until stop is
// closed.
func (s *SerialExporter) RunPeriodic(interval time.Duration, next func() *Sample, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sample := next()
			if sample == nil {
				continue
			}
			if err := s.Write(sample); err != nil {
				s.logger.WithError(err).Warn("telemetry: serial write failed")
			}
		}
	}
}
