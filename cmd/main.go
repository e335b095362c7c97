/*
Copyright 2024.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"xispeech.dev/cmd/admin"
	"xispeech.dev/cmd/gateway"
	"xispeech.dev/config"
	"xispeech.dev/pkg/bootkit"
	"xispeech.dev/pkg/elevenlabs"
	"xispeech.dev/pkg/filters/usage"
)

func main() {
	var listenerAddr string
	var adminAddr string
	var configPath string

	flag.StringVar(&listenerAddr, "gateway-listener-address", "", "The address the gateway listener binds to. Overrides gateway.listen_address.")
	flag.StringVar(&adminAddr, "admin-listener-address", "", "The address the admin listener binds to. Overrides gateway.admin_address.")
	flag.StringVar(&configPath, "config", "config/config.yaml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if listenerAddr != "" {
		cfg.Gateway.ListenAddress = listenerAddr
	}

	if adminAddr != "" {
		cfg.Gateway.AdminAddress = adminAddr
	}

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	app := bootkit.New(bootkit.StartTimeout(time.Second * 10)) //nolint:mnd

	pool, err := gateway.NewClientPool(cfg.ElevenLabs, elevenlabs.WithLogger(slog.Default()))
	if err != nil {
		slog.Error("failed to create upstream clients", "error", err)
		os.Exit(1)
	}

	usageFilter := usage.New()

	app.Add(func(ctx context.Context, lifeCycle bootkit.LifeCycle) error {
		return gateway.StartGateway(ctx, lifeCycle, cfg, pool, usageFilter)
	})
	app.Add(func(ctx context.Context, lifeCycle bootkit.LifeCycle) error {
		return admin.NewAdminServer(ctx, cfg, pool.Primary(), usageFilter, lifeCycle)
	})

	app.Start()
}
