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
	"log"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/IconVault/services/icons/provider"
)

// --- Global Command Variables ---
var (
	flagWorkspace string
	flagDataDir   string
	flagPort      int
	flagLogLevel  string

	rootCmd = &cobra.Command{
		Use:   "iconvault",
		Short: "A cli to manage the IconVault external icon provider cache",
		Long: `IconVault downloads, caches, and serves external icon provider
assets (fonts plus icon metadata) for a workspace, keeping the
cache reconciled with the provider settings.`,
	}

	installCmd = &cobra.Command{
		Use:   "install [provider...]",
		Short: "Download and activate one or more icon providers",
		Args:  cobra.MinimumNArgs(1),
		Run:   runInstallCommand,
	}

	removeCmd = &cobra.Command{
		Use:     "remove [provider...]",
		Short:   "Deactivate icon providers and delete their cached assets",
		Aliases: []string{"rm"},
		Args:    cobra.MinimumNArgs(1),
		Run:     runRemoveCommand,
	}

	listCmd = &cobra.Command{
		Use:     "list",
		Short:   "List known icon providers and their install state",
		Aliases: []string{"ls"},
		Run:     runListCommand,
	}

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Reconcile cached providers against the settings file",
		Run:   runSyncCommand,
	}

	searchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Search icons across all active providers",
		Args:  cobra.ExactArgs(1),
		Run:   runSearchCommand,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the IconVault HTTP API server",
		Run:   runServeCommand,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagWorkspace, "workspace", "", "Workspace ID (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (default ~/.aleutian/iconvault)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "HTTP listen port (default 8080)")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(serveCmd)
}

// resolveConfig loads the config and applies flag overrides.
func resolveConfig() Config {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	if flagWorkspace != "" {
		cfg.Workspace = flagWorkspace
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagPort != 0 {
		cfg.Port = flagPort
	}
	return cfg
}

func runInstallCommand(cmd *cobra.Command, args []string) {
	st, err := buildStack(resolveConfig(), false)
	if err != nil {
		log.Fatalf("Error building icon stack: %v", err)
	}
	defer st.Close()

	// Installing from the CLI implies the feature should be on.
	st.settings.SetUseExternalProviders(true)

	ctx := cmd.Context()
	for _, arg := range args {
		id := provider.ID(arg)
		if err := st.ctrl.Install(ctx, id); err != nil {
			log.Fatalf("Error installing %s: %v", id, err)
		}
		fmt.Printf("installed %s %s\n", id, st.ctrl.Version(id))
	}
}

func runRemoveCommand(cmd *cobra.Command, args []string) {
	st, err := buildStack(resolveConfig(), false)
	if err != nil {
		log.Fatalf("Error building icon stack: %v", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	for _, arg := range args {
		id := provider.ID(arg)
		if err := st.ctrl.Remove(ctx, id); err != nil {
			log.Fatalf("Error removing %s: %v", id, err)
		}
		fmt.Printf("removed %s\n", id)
	}
}

func runListCommand(cmd *cobra.Command, args []string) {
	st, err := buildStack(resolveConfig(), true)
	if err != nil {
		log.Fatalf("Error building icon stack: %v", err)
	}
	defer st.Close()

	if err := st.ctrl.Rehydrate(cmd.Context()); err != nil {
		log.Fatalf("Error reading provider state: %v", err)
	}

	snap := st.settings.Current()
	fmt.Printf("%-24s %-12s %-10s %-8s %s\n", "PROVIDER", "VERSION", "INSTALLED", "ENABLED", "NAME")
	for _, cfg := range provider.All() {
		version := st.ctrl.Version(cfg.ID)
		if version == "" {
			version = "-"
		}
		fmt.Printf("%-24s %-12s %-10t %-8t %s\n",
			cfg.ID, version, st.ctrl.IsInstalled(cfg.ID), snap.Enabled(cfg.ID), cfg.DisplayName)
	}
}

func runSyncCommand(cmd *cobra.Command, args []string) {
	st, err := buildStack(resolveConfig(), false)
	if err != nil {
		log.Fatalf("Error building icon stack: %v", err)
	}
	defer st.Close()

	if err := st.ctrl.Sync(cmd.Context()); err != nil {
		log.Fatalf("Error syncing providers: %v", err)
	}
	fmt.Printf("sync complete: %d provider(s) active\n", st.registry.Len())
}

func runSearchCommand(cmd *cobra.Command, args []string) {
	st, err := buildStack(resolveConfig(), true)
	if err != nil {
		log.Fatalf("Error building icon stack: %v", err)
	}
	defer st.Close()

	if err := st.ctrl.Rehydrate(cmd.Context()); err != nil {
		log.Fatalf("Error reading provider state: %v", err)
	}

	results := st.registry.Search(args[0])
	if len(results) == 0 {
		fmt.Println("no matches")
		return
	}

	ids := make([]provider.ID, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		for _, ic := range results[id] {
			fmt.Printf("%-24s %-28s U+%s  %s\n", id, ic.ID, ic.Unicode, ic.Label)
		}
	}
}
