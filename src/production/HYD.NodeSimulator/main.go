package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	container "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Container"
	"gitlab.com/hydrahome/hyd.control_server/src/production/HYD.NodeSimulator/simulator"
)

func main() {
	ctr, err := container.NewNodeContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	config := ctr.GetConfig()
	apiClient := ctr.GetAPIClient()

	logger.WithFields(map[string]interface{}{
		"api":       config.APIBaseURL,
		"device_id": config.DeviceID,
		"room":      config.Room,
		"interval":  config.PollInterval.String(),
	}).Info("Starting node simulator")

	healthCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := apiClient.Health(healthCtx); err != nil {
		logger.WithError(err).Warn("API not reachable yet, continuing")
	}
	cancel()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := simulator.New(apiClient, config.DeviceID, config.Room, logger)
	if err := sim.Run(ctx, config.PollInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorWithError(err, "Simulator stopped")
	}

	// mark the node offline on the way out
	offCtx, offCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer offCancel()
	if err := apiClient.ReportSystemStatus(offCtx, config.DeviceID, false); err != nil {
		logger.WithError(err).Warn("Failed to report offline status")
	}

	logger.WithField("circuit_breaker", apiClient.GetCircuitBreakerStatus()["state"]).Info("Node simulator stopped")
}
