package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Dependency is an external collaborator whose liveness gates the service health.
type Dependency interface {
	Name() string
	Ping(ctx context.Context) error
}

// HealthMonitoringWorker pings every dependency on each tick and publishes the
// aggregated result on the gRPC health service. It also samples the process
// CPU and memory usage for the logs.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	healthServer   *health.Server
	service        string
	dependencies   []Dependency
	metricInterval time.Duration
	pingTimeout    time.Duration
}

func NewHealthMonitoringWorker(log *slog.Logger, healthServer *health.Server, service string,
	metricInterval time.Duration, dependencies ...Dependency) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		healthServer:   healthServer,
		service:        service,
		dependencies:   dependencies,
		metricInterval: metricInterval,
		pingTimeout:    metricInterval / 2,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		w.log.Debug("Process sampling disabled", "error", err)
	}

	w.check(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			w.check(ctx)
			if self != nil {
				w.sample(self)
			}
		}
	}
}

// check sets SERVING only when every dependency answers.
func (w *HealthMonitoringWorker) check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	for _, dep := range w.dependencies {
		pingCtx, cancel := context.WithTimeout(ctx, w.pingTimeout)
		err := dep.Ping(pingCtx)
		cancel()
		if err != nil {
			w.log.Warn("Dependency unhealthy", "dependency", dep.Name(), "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	w.healthServer.SetServingStatus(w.service, status)
	w.healthServer.SetServingStatus("", status)
}

func (w *HealthMonitoringWorker) sample(p *process.Process) {
	cpu, err := p.CPUPercent()
	if err != nil {
		w.log.Debug("Error while finding process cpu usage", "error", err)
		return
	}
	ram, err := p.MemoryPercent()
	if err != nil {
		w.log.Debug("Error while finding process ram usage", "error", err)
		return
	}
	w.log.Debug("Process usage", "cpu_percent", cpu, "ram_percent", ram)
}
