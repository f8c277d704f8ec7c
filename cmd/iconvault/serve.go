// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/AleutianAI/IconVault/services/icons/api"
	"github.com/AleutianAI/IconVault/services/icons/settings"
)

func runServeCommand(cmd *cobra.Command, args []string) {
	cfg := resolveConfig()

	st, err := buildStack(cfg, false)
	if err != nil {
		log.Fatalf("Error building icon stack: %v", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := setupTracing(ctx, st)
	defer shutdownTracing()

	// Restore provider state from the cache before serving.
	if err := st.ctrl.Rehydrate(ctx); err != nil {
		st.logger.Warn("rehydrate failed, continuing with partial state", "error", err.Error())
	}

	// React to out-of-band settings edits while serving.
	watcher, err := settings.NewWatcher(st.settings, st.logger.Slog())
	if err != nil {
		st.logger.Warn("settings watcher unavailable", "error", err.Error())
	} else {
		watcher.Start(ctx)
		defer watcher.Close()
		st.settings.Subscribe(func(settings.Settings) {
			go func() {
				if err := st.ctrl.Sync(context.Background()); err != nil {
					st.logger.Warn("settings-triggered sync failed", "error", err.Error())
				}
			}()
		})
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, api.NewHandlers(st.ctrl, st.registry, st.settings))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		st.logger.Info("Starting IconVault server", "address", addr, "workspace", cfg.Workspace)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			st.logger.Error("Server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	st.logger.Info("Shutting down IconVault server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		st.logger.Warn("server shutdown incomplete", "error", err.Error())
	}
}

// setupTracing installs a stdout span exporter when ICONVAULT_TRACE=1.
//
// Returns a shutdown function; a no-op when tracing is disabled.
func setupTracing(ctx context.Context, st *stack) func() {
	if os.Getenv("ICONVAULT_TRACE") == "" {
		return func() {}
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		st.logger.Warn("trace exporter unavailable", "error", err.Error())
		return func() {}
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("iconvault"),
		semconv.ServiceVersion(api.ServiceVersion),
	))
	if err != nil {
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			st.logger.Warn("tracer shutdown incomplete", "error", err.Error())
		}
	}
}
