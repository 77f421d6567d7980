/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/portmap/pkg/config"
	"github.com/carverauto/portmap/pkg/logger"
	"github.com/carverauto/portmap/pkg/mapper"
	"github.com/carverauto/portmap/pkg/models"
	"github.com/carverauto/portmap/pkg/version"
)

const (
	serviceName     = "portmap"
	shutdownTimeout = 5 * time.Second

	// exitUnavailable is returned when the run produced no usable topology.
	exitUnavailable = 2
)

var (
	errFailedToLoadConfig    = errors.New("failed to load portmap configuration")
	errFailedToLoadInventory = errors.New("failed to load inventory")
	errFailedToInitEngine    = errors.New("failed to initialize port mapping engine")
)

func main() {
	status, err := run()
	if err != nil {
		log.Fatalf("Fatal error: %v", err)
	}

	if status == models.StatusUnavailable {
		os.Exit(exitUnavailable)
	}
}

func run() (models.ResultStatus, error) {
	configFile := flag.String("config", "/etc/portmap/portmap.json", "Path to portmap config file")
	inventoryFile := flag.String("inventory", "inventory.json", "Path to the inventory document")
	outFile := flag.String("out", "", "Write the mapping result here instead of stdout")
	showVersion := flag.Bool("version", false, "Print the version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Println(serviceName, version.GetFullVersion())
		return models.StatusAvailable, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg mapper.Config

	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configFile, &cfg); err != nil {
		return "", fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logCfg := cfg.Logging
	if logCfg == nil {
		logCfg = logger.DefaultConfig()
	}

	mainLogger, err := logger.New(logCfg)
	if err != nil {
		return "", fmt.Errorf("failed to initialize logger: %w", err)
	}

	shutdown := initTelemetry(ctx, &cfg, mainLogger)
	defer shutdown()

	// Loaded without validation: the engine reports a bad inventory in the
	// result instead of failing the process.
	var inv models.Inventory

	if err := (&config.FileConfigLoader{}).Load(ctx, *inventoryFile, &inv); err != nil {
		return "", fmt.Errorf("%w: %w", errFailedToLoadInventory, err)
	}

	dialers, err := mapper.NewDialers(&cfg, mainLogger)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errFailedToInitEngine, err)
	}

	var opts []mapper.Option

	if cfg.Publish != nil {
		publisher, nc, err := mapper.ConnectNATSPublisher(ctx, cfg.Publish, mainLogger)
		if err != nil {
			return "", err
		}
		defer nc.Close()

		opts = append(opts, mapper.WithPublisher(publisher))
	}

	engine, err := mapper.NewEngine(&cfg, mainLogger, dialers, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errFailedToInitEngine, err)
	}

	res := engine.Run(ctx, &inv)

	if err := writeResult(*outFile, res); err != nil {
		return res.Status, err
	}

	return res.Status, nil
}

// initTelemetry installs tracing and, when an exporter is configured,
// metrics. The returned func flushes both.
func initTelemetry(ctx context.Context, cfg *mapper.Config, log logger.Logger) func() {
	var shutdowns []func(context.Context) error

	tp, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		Logger:         log,
		Exporter:       cfg.Tracing,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Tracing disabled")
	} else {
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	mp, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		Exporter:       cfg.Metrics,
	})

	switch {
	case errors.Is(err, logger.ErrMetricsDisabled):
	case err != nil:
		log.Warn().Err(err).Msg("Metrics disabled")
	default:
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		for _, fn := range shutdowns {
			if err := fn(flushCtx); err != nil {
				log.Debug().Err(err).Msg("Telemetry shutdown failed")
			}
		}
	}
}

func writeResult(path string, res *models.MappingResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mapping result: %w", err)
	}

	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
