// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package controller

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/IconVault/services/icons/fetch"
	"github.com/AleutianAI/IconVault/services/icons/provider"
	"github.com/AleutianAI/IconVault/services/icons/registry"
	"github.com/AleutianAI/IconVault/services/icons/settings"
	"github.com/AleutianAI/IconVault/services/icons/store"
)

// fakeFetcher serves a canned manifest and payload, counting calls.
type fakeFetcher struct {
	mu            sync.Mutex
	version       string
	delay         time.Duration
	manifestErr   error
	downloadErr   error
	manifestCalls int
	downloadCalls int
}

func (f *fakeFetcher) Manifest(ctx context.Context, cfg provider.Config) (*provider.Manifest, error) {
	f.mu.Lock()
	f.manifestCalls++
	version, err, delay := f.version, f.manifestErr, f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return &provider.Manifest{
		Version:        version,
		FontURL:        "https://example.com/font.woff2",
		MetadataURL:    "https://example.com/meta.json",
		FontMimeType:   "font/woff2",
		MetadataFormat: "json",
	}, nil
}

func (f *fakeFetcher) Download(ctx context.Context, m *provider.Manifest) (*fetch.Payload, error) {
	f.mu.Lock()
	f.downloadCalls++
	err := f.downloadErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &fetch.Payload{
		Font:           []byte{0x77, 0x4f, 0x46, 0x32},
		FontMimeType:   m.FontMimeType,
		Metadata:       `{"home":{"unicode":"f015","label":"Home"}}`,
		MetadataFormat: m.MetadataFormat,
	}, nil
}

func (f *fakeFetcher) setVersion(v string) {
	f.mu.Lock()
	f.version = v
	f.mu.Unlock()
}

func (f *fakeFetcher) calls() (manifest, download int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.manifestCalls, f.downloadCalls
}

type harness struct {
	ctrl     *Controller
	settings *settings.FileStore
	assets   *store.Store
	reg      *registry.Registry
	fetcher  *fakeFetcher
}

func newHarness(t *testing.T, assetCfg store.Config, settingsPath string) *harness {
	t.Helper()

	setts, err := settings.NewFileStore(settingsPath, nil)
	require.NoError(t, err)
	setts.SetUseExternalProviders(true)

	assets, err := store.New(assetCfg)
	require.NoError(t, err)

	h := &harness{
		settings: setts,
		assets:   assets,
		reg:      registry.New(nil),
		fetcher:  &fakeFetcher{version: "7.1.0"},
	}
	h.ctrl, err = New(Config{
		Settings: setts,
		Assets:   assets,
		Fetcher:  h.fetcher,
		Registry: h.reg,
	})
	require.NoError(t, err)
	return h
}

func newMemHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, store.InMemoryConfig(), filepath.Join(t.TempDir(), "settings.json"))
	t.Cleanup(func() { h.ctrl.Close() })
	return h
}

// TestController_Install verifies the full install path: download,
// persistence, settings flag, activation.
func TestController_Install(t *testing.T) {
	h := newMemHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Install(ctx, provider.FontAwesomeRegular))

	assert.True(t, h.ctrl.IsInstalled(provider.FontAwesomeRegular))
	assert.Equal(t, "7.1.0", h.ctrl.Version(provider.FontAwesomeRegular))
	assert.True(t, h.settings.Current().Enabled(provider.FontAwesomeRegular))

	p, ok := h.reg.Provider(provider.FontAwesomeRegular)
	require.True(t, ok)
	assert.True(t, p.Available())
	assert.Equal(t, "7.1.0", p.Version())

	rec, err := h.assets.Get(ctx, provider.FontAwesomeRegular)
	require.NoError(t, err)
	assert.Equal(t, "7.1.0", rec.Version)

	// Settings were persisted, not just held in memory.
	reopened, err := settings.NewFileStore(h.settings.Path(), nil)
	require.NoError(t, err)
	assert.True(t, reopened.Current().Enabled(provider.FontAwesomeRegular))
}

// TestController_InstallIdempotent verifies reinstalling at the same
// version re-checks the manifest but downloads nothing and does not
// rebuild the active provider.
func TestController_InstallIdempotent(t *testing.T) {
	h := newMemHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Install(ctx, provider.FontAwesomeRegular))
	first, ok := h.reg.Provider(provider.FontAwesomeRegular)
	require.True(t, ok)

	require.NoError(t, h.ctrl.Install(ctx, provider.FontAwesomeRegular))

	manifests, downloads := h.fetcher.calls()
	assert.Equal(t, 2, manifests)
	assert.Equal(t, 1, downloads)

	second, ok := h.reg.Provider(provider.FontAwesomeRegular)
	require.True(t, ok)
	assert.Same(t, first, second)
	assert.Equal(t, 1, h.reg.Len())
}

// TestController_ConcurrentInstallsJoin verifies overlapping installs of
// the same provider collapse into one download.
func TestController_ConcurrentInstallsJoin(t *testing.T) {
	h := newMemHarness(t)
	h.fetcher.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.ctrl.Install(context.Background(), provider.FontAwesomeRegular))
		}()
	}
	wg.Wait()

	_, downloads := h.fetcher.calls()
	assert.Equal(t, 1, downloads)
	assert.Equal(t, 1, h.reg.Len())
}

// TestController_VersionUpgrade verifies a version change disposes the
// old provider before the replacement registers.
func TestController_VersionUpgrade(t *testing.T) {
	h := newMemHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Install(ctx, provider.FontAwesomeRegular))
	old, ok := h.reg.Provider(provider.FontAwesomeRegular)
	require.True(t, ok)

	h.fetcher.setVersion("7.2.0")
	require.NoError(t, h.ctrl.Install(ctx, provider.FontAwesomeRegular))

	assert.False(t, old.Available())
	assert.Equal(t, "7.2.0", h.ctrl.Version(provider.FontAwesomeRegular))

	current, ok := h.reg.Provider(provider.FontAwesomeRegular)
	require.True(t, ok)
	assert.Equal(t, "7.2.0", current.Version())
	assert.Equal(t, 1, h.reg.Len())
}

// TestController_RemoveWaitsForInstall verifies a removal issued during
// an install executes after it, leaving the provider fully removed.
func TestController_RemoveWaitsForInstall(t *testing.T) {
	h := newMemHarness(t)
	h.fetcher.delay = 50 * time.Millisecond
	ctx := context.Background()

	installDone := make(chan error, 1)
	go func() { installDone <- h.ctrl.Install(ctx, provider.FontAwesomeRegular) }()

	// Give the install task time to start executing.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, h.ctrl.Remove(ctx, provider.FontAwesomeRegular))
	require.NoError(t, <-installDone)

	// The install completed (the download happened) and the removal then
	// undid it.
	_, downloads := h.fetcher.calls()
	assert.Equal(t, 1, downloads)
	assert.False(t, h.ctrl.IsInstalled(provider.FontAwesomeRegular))
	assert.Equal(t, 0, h.reg.Len())
	assert.False(t, h.settings.Current().Enabled(provider.FontAwesomeRegular))

	_, err := h.assets.Get(ctx, provider.FontAwesomeRegular)
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

// TestController_RemoveNotInstalled verifies removing an uninstalled
// provider succeeds and clears its settings flag.
func TestController_RemoveNotInstalled(t *testing.T) {
	h := newMemHarness(t)
	h.settings.SetProviderEnabled(provider.Phosphor, true)

	require.NoError(t, h.ctrl.Remove(context.Background(), provider.Phosphor))
	assert.False(t, h.settings.Current().Enabled(provider.Phosphor))
}

// TestController_UnknownProvider verifies unknown IDs are rejected
// without queueing work.
func TestController_UnknownProvider(t *testing.T) {
	h := newMemHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.ctrl.Install(ctx, provider.ID("bogus")), provider.ErrUnknownProvider)
	assert.ErrorIs(t, h.ctrl.Remove(ctx, provider.ID("bogus")), provider.ErrUnknownProvider)
}

// TestController_SyncInstallsEnabled verifies a sync pass installs every
// enabled provider and notifies subscribers exactly once.
func TestController_SyncInstallsEnabled(t *testing.T) {
	h := newMemHarness(t)
	h.settings.SetProviderEnabled(provider.FontAwesomeRegular, true)
	h.settings.SetProviderEnabled(provider.Phosphor, true)

	notifications := 0
	h.settings.Subscribe(func(settings.Settings) { notifications++ })

	require.NoError(t, h.ctrl.Sync(context.Background()))

	assert.True(t, h.ctrl.IsInstalled(provider.FontAwesomeRegular))
	assert.True(t, h.ctrl.IsInstalled(provider.Phosphor))
	assert.Equal(t, 2, h.reg.Len())
	assert.Equal(t, 1, notifications)
}

// TestController_SyncDeactivatesDisabled verifies a sync pass
// deactivates a provider whose flag was turned off while keeping its
// cached assets and installed state: only Remove deletes.
func TestController_SyncDeactivatesDisabled(t *testing.T) {
	h := newMemHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Install(ctx, provider.FontAwesomeRegular))
	h.settings.SetProviderEnabled(provider.FontAwesomeRegular, false)

	notifications := 0
	h.settings.Subscribe(func(settings.Settings) { notifications++ })

	require.NoError(t, h.ctrl.Sync(ctx))

	assert.Equal(t, 0, h.reg.Len())
	assert.Equal(t, 1, notifications)

	// Installed-but-inactive: the record and state survive.
	assert.True(t, h.ctrl.IsInstalled(provider.FontAwesomeRegular))
	assert.Equal(t, "7.1.0", h.ctrl.Version(provider.FontAwesomeRegular))
	rec, err := h.assets.Get(ctx, provider.FontAwesomeRegular)
	require.NoError(t, err)
	assert.Equal(t, "7.1.0", rec.Version)
}

// TestController_SyncGlobalToggleOff verifies the global toggle
// deactivates everything without touching the cache.
func TestController_SyncGlobalToggleOff(t *testing.T) {
	h := newMemHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Install(ctx, provider.FontAwesomeRegular))
	h.settings.SetUseExternalProviders(false)

	require.NoError(t, h.ctrl.Sync(ctx))

	assert.Equal(t, 0, h.reg.Len())
	assert.True(t, h.ctrl.IsInstalled(provider.FontAwesomeRegular))
	rec, err := h.assets.Get(ctx, provider.FontAwesomeRegular)
	require.NoError(t, err)
	assert.Equal(t, "7.1.0", rec.Version)
}

// TestController_SyncReenableActivatesFromCache verifies a provider
// disabled and re-enabled comes back from its cached assets without a
// second download.
func TestController_SyncReenableActivatesFromCache(t *testing.T) {
	h := newMemHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Install(ctx, provider.FontAwesomeRegular))
	h.settings.SetProviderEnabled(provider.FontAwesomeRegular, false)
	require.NoError(t, h.ctrl.Sync(ctx))
	require.Equal(t, 0, h.reg.Len())

	h.settings.SetProviderEnabled(provider.FontAwesomeRegular, true)
	require.NoError(t, h.ctrl.Sync(ctx))

	_, downloads := h.fetcher.calls()
	assert.Equal(t, 1, downloads)

	p, ok := h.reg.Provider(provider.FontAwesomeRegular)
	require.True(t, ok)
	assert.True(t, p.Available())
	assert.Equal(t, "7.1.0", p.Version())
}

// TestController_SyncSteadyStateSilent verifies a sync pass that changes
// nothing issues no notification and keeps the active instance.
func TestController_SyncSteadyStateSilent(t *testing.T) {
	h := newMemHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Install(ctx, provider.FontAwesomeRegular))
	before, ok := h.reg.Provider(provider.FontAwesomeRegular)
	require.True(t, ok)

	notifications := 0
	h.settings.Subscribe(func(settings.Settings) { notifications++ })

	require.NoError(t, h.ctrl.Sync(ctx))

	assert.Equal(t, 0, notifications)
	after, ok := h.reg.Provider(provider.FontAwesomeRegular)
	require.True(t, ok)
	assert.Same(t, before, after)
}

// TestController_SyncProviderFailureIsolated verifies one provider's
// fetch failure does not disturb the others or fail the pass.
func TestController_SyncProviderFailureIsolated(t *testing.T) {
	h := newMemHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Install(ctx, provider.FontAwesomeRegular))
	h.settings.SetProviderEnabled(provider.Phosphor, true)
	h.fetcher.manifestErr = fetch.ErrManifest

	require.NoError(t, h.ctrl.Sync(ctx))

	// Phosphor could not install, but fontawesome stays active.
	assert.False(t, h.ctrl.IsInstalled(provider.Phosphor))
	assert.True(t, h.ctrl.IsInstalled(provider.FontAwesomeRegular))
	_, ok := h.reg.Provider(provider.FontAwesomeRegular)
	assert.True(t, ok)
}

// TestController_SyncNoChangesNoNotify verifies a no-op sync stays
// silent.
func TestController_SyncNoChangesNoNotify(t *testing.T) {
	h := newMemHarness(t)

	notifications := 0
	h.settings.Subscribe(func(settings.Settings) { notifications++ })

	require.NoError(t, h.ctrl.Sync(context.Background()))
	assert.Equal(t, 0, notifications)
}

// TestController_RehydrateActivatesFromCache verifies a restart
// reactivates providers from stored assets without touching the network.
func TestController_RehydrateActivatesFromCache(t *testing.T) {
	base := t.TempDir()
	assetCfg := store.Config{BaseDir: base, WorkspaceID: "vault"}
	settingsPath := filepath.Join(base, "settings.json")
	ctx := context.Background()

	h1 := newHarness(t, assetCfg, settingsPath)
	require.NoError(t, h1.ctrl.Install(ctx, provider.FontAwesomeRegular))
	require.NoError(t, h1.ctrl.Close())

	h2 := newHarness(t, assetCfg, settingsPath)
	defer h2.ctrl.Close()
	require.NoError(t, h2.ctrl.Rehydrate(ctx))

	manifests, downloads := h2.fetcher.calls()
	assert.Equal(t, 0, manifests)
	assert.Equal(t, 0, downloads)

	assert.True(t, h2.ctrl.IsInstalled(provider.FontAwesomeRegular))
	assert.Equal(t, "7.1.0", h2.ctrl.Version(provider.FontAwesomeRegular))
	p, ok := h2.reg.Provider(provider.FontAwesomeRegular)
	require.True(t, ok)
	assert.True(t, p.Available())
}

// TestController_RehydrateSelfHeals verifies an enabled provider whose
// record has gone missing is reinstalled at startup.
func TestController_RehydrateSelfHeals(t *testing.T) {
	h := newMemHarness(t)
	h.settings.SetProviderEnabled(provider.FontAwesomeRegular, true)

	require.NoError(t, h.ctrl.Rehydrate(context.Background()))

	_, downloads := h.fetcher.calls()
	assert.Equal(t, 1, downloads)
	assert.True(t, h.ctrl.IsInstalled(provider.FontAwesomeRegular))
	assert.Equal(t, 1, h.reg.Len())
}

// TestController_Close verifies post-close submissions are rejected and
// active providers are disposed.
func TestController_Close(t *testing.T) {
	h := newHarness(t, store.InMemoryConfig(), filepath.Join(t.TempDir(), "settings.json"))
	ctx := context.Background()

	require.NoError(t, h.ctrl.Install(ctx, provider.FontAwesomeRegular))
	p, ok := h.reg.Provider(provider.FontAwesomeRegular)
	require.True(t, ok)

	require.NoError(t, h.ctrl.Close())
	require.NoError(t, h.ctrl.Close()) // Idempotent.

	assert.False(t, p.Available())
	assert.Equal(t, 0, h.reg.Len())
	assert.ErrorIs(t, h.ctrl.Install(ctx, provider.FontAwesomeRegular), ErrClosed)
	assert.ErrorIs(t, h.ctrl.Remove(ctx, provider.FontAwesomeRegular), ErrClosed)
}

// TestController_InstallFetchFailure verifies a manifest failure
// surfaces to the caller and leaves no partial state.
func TestController_InstallFetchFailure(t *testing.T) {
	h := newMemHarness(t)
	h.fetcher.manifestErr = fetch.ErrManifest
	ctx := context.Background()

	err := h.ctrl.Install(ctx, provider.FontAwesomeRegular)
	assert.ErrorIs(t, err, fetch.ErrManifest)

	assert.False(t, h.ctrl.IsInstalled(provider.FontAwesomeRegular))
	assert.Equal(t, 0, h.reg.Len())
	_, err = h.assets.Get(ctx, provider.FontAwesomeRegular)
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}
