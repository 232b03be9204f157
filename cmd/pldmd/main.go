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
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/carverauto/pldmd/pkg/config"
	"github.com/carverauto/pldmd/pkg/lifecycle"
	"github.com/carverauto/pldmd/pkg/logger"
	"github.com/carverauto/pldmd/pkg/models"
	"github.com/carverauto/pldmd/pkg/pldmd"
)

const (
	defaultConfigPath = "/etc/pldmd/pldmd.json"
	shutdownTimeout   = 10 * time.Second
)

var (
	errFailedToLoadConfig  = errors.New("failed to load pldmd configuration")
	errFailedToInitLogger  = errors.New("failed to initialize logger")
	errFailedToInitService = errors.New("failed to initialize pldmd")
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}

		log.Fatalf("Fatal error: %v", err)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("pldmd", pflag.ContinueOnError)

	configPath := defaultConfigPath
	if env := os.Getenv("PLDMD_CONFIG"); env != "" {
		configPath = env
	}

	flagSet.StringVar(&configPath, "config", configPath, "Path to pldmd config file")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg models.PLDMDConfig

	if err := config.NewConfig(nil).LoadAndValidate(ctx, configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	loggerConfig := cfg.Logging
	if loggerConfig == nil {
		loggerConfig = logger.DefaultConfig()
	}

	mainLogger, err := lifecycle.CreateComponentLogger("pldmd", loggerConfig)
	if err != nil {
		return fmt.Errorf("%w: %w", errFailedToInitLogger, err)
	}

	server, err := pldmd.NewServer(ctx, &cfg, mainLogger)
	if err != nil {
		return fmt.Errorf("%w: %w", errFailedToInitService, err)
	}

	if err := server.Start(ctx); err != nil {
		return err
	}

	snapshots := make(chan os.Signal, 1)
	signal.Notify(snapshots, syscall.SIGUSR1)

	defer signal.Stop(snapshots)

	mainLogger.Info().Str("config", configPath).Msg("pldmd running")

	for {
		select {
		case <-snapshots:
			if err := server.WriteSnapshot(ctx); err != nil {
				mainLogger.Error().Err(err).Msg("Failed to write PDR snapshot")
			}
		case <-ctx.Done():
			mainLogger.Info().Msg("Shutdown requested")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			err := server.Stop(shutdownCtx)
			if lerr := lifecycle.ShutdownLogger(shutdownCtx); lerr != nil {
				log.Printf("Failed to flush logs: %v", lerr)
			}

			cancel()

			return err
		}
	}
}
