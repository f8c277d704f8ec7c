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
	"fmt"

	"github.com/AleutianAI/IconVault/pkg/logging"
	"github.com/AleutianAI/IconVault/pkg/validation"
	"github.com/AleutianAI/IconVault/services/icons/controller"
	"github.com/AleutianAI/IconVault/services/icons/fetch"
	"github.com/AleutianAI/IconVault/services/icons/registry"
	"github.com/AleutianAI/IconVault/services/icons/settings"
	"github.com/AleutianAI/IconVault/services/icons/store"
)

// stack wires the icon service components for one workspace.
type stack struct {
	cfg      Config
	logger   *logging.Logger
	settings *settings.FileStore
	assets   *store.Store
	registry *registry.Registry
	ctrl     *controller.Controller
}

// buildStack constructs the full component stack from config.
func buildStack(cfg Config, quiet bool) (*stack, error) {
	if err := validation.ValidateWorkspaceID(cfg.Workspace); err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		LogDir:  cfg.LogDir,
		Service: "iconvault",
		JSON:    cfg.JSONLogs,
		Quiet:   quiet,
	})
	slogger := logger.Slog()

	setts, err := settings.NewFileStore(cfg.SettingsPath, slogger)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("open settings: %w", err)
	}

	assets, err := store.New(store.Config{
		BaseDir:     cfg.DataDir,
		WorkspaceID: cfg.Workspace,
		SyncWrites:  true,
		Logger:      slogger,
	})
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("create asset store: %w", err)
	}

	reg := registry.New(slogger)
	ctrl, err := controller.New(controller.Config{
		Settings: setts,
		Assets:   assets,
		Fetcher:  fetch.NewClient(slogger),
		Registry: reg,
		Logger:   slogger,
	})
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("create controller: %w", err)
	}

	return &stack{
		cfg:      cfg,
		logger:   logger,
		settings: setts,
		assets:   assets,
		registry: reg,
		ctrl:     ctrl,
	}, nil
}

// Close shuts the stack down in dependency order.
func (s *stack) Close() {
	if err := s.ctrl.Close(); err != nil {
		s.logger.Warn("controller close failed", "error", err.Error())
	}
	s.logger.Close()
}
