// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes the icon controller over HTTP.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/IconVault/pkg/validation"
	"github.com/AleutianAI/IconVault/services/icons/controller"
	"github.com/AleutianAI/IconVault/services/icons/fetch"
	"github.com/AleutianAI/IconVault/services/icons/provider"
	"github.com/AleutianAI/IconVault/services/icons/registry"
	"github.com/AleutianAI/IconVault/services/icons/settings"
)

// ServiceVersion is the icon service version.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the icon service.
type Handlers struct {
	ctrl     *controller.Controller
	reg      *registry.Registry
	settings settings.Store
}

// NewHandlers creates handlers over the given controller, registry, and
// settings store.
func NewHandlers(ctrl *controller.Controller, reg *registry.Registry, setts settings.Store) *Handlers {
	return &Handlers{ctrl: ctrl, reg: reg, settings: setts}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "iconvault",
		Version: ServiceVersion,
	})
}

// HandleListProviders handles GET /v1/icons/providers.
//
// Description:
//
//	Lists every known provider with its settings flag, install state,
//	activation state, and installed version.
//
// Response:
//
//	200 OK: ProvidersResponse
func (h *Handlers) HandleListProviders(c *gin.Context) {
	snap := h.settings.Current()

	var out []ProviderStatus
	for _, cfg := range provider.All() {
		_, active := h.reg.Provider(cfg.ID)
		out = append(out, ProviderStatus{
			ID:          cfg.ID,
			DisplayName: cfg.DisplayName,
			Enabled:     snap.Enabled(cfg.ID),
			Installed:   h.ctrl.IsInstalled(cfg.ID),
			Active:      active,
			Version:     h.ctrl.Version(cfg.ID),
		})
	}
	c.JSON(http.StatusOK, ProvidersResponse{Providers: out})
}

// HandleInstall handles POST /v1/icons/providers/:id/install.
//
// Description:
//
//	Downloads the provider's assets, enables it, persists the settings,
//	and activates it. Idempotent.
//
// Response:
//
//	200 OK: InstallResponse
//	404 Not Found: Unknown provider
//	502 Bad Gateway: Upstream fetch failure
//	503 Service Unavailable: Controller closed
func (h *Handlers) HandleInstall(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleInstall")

	id, ok := providerIDParam(c)
	if !ok {
		return
	}
	logger.Info("Installing icon provider", "provider", id)

	if err := h.ctrl.Install(c.Request.Context(), id); err != nil {
		status, code := installErrorStatus(err)
		logger.Warn("Install failed", "provider", id, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	c.JSON(http.StatusOK, InstallResponse{ID: id, Version: h.ctrl.Version(id)})
}

// HandleRemove handles DELETE /v1/icons/providers/:id.
//
// Response:
//
//	204 No Content: Removed (or was not installed)
//	404 Not Found: Unknown provider
//	503 Service Unavailable: Controller closed
func (h *Handlers) HandleRemove(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRemove")

	id, ok := providerIDParam(c)
	if !ok {
		return
	}
	logger.Info("Removing icon provider", "provider", id)

	if err := h.ctrl.Remove(c.Request.Context(), id); err != nil {
		status, code := installErrorStatus(err)
		logger.Warn("Remove failed", "provider", id, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleSync handles POST /v1/icons/sync.
//
// Description:
//
//	Reconciles active providers against the current settings.
//	Per-provider failures are logged and reflected in the returned
//	state rather than failing the request.
//
// Response:
//
//	200 OK: ProvidersResponse with post-sync state
func (h *Handlers) HandleSync(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSync")

	if err := h.ctrl.Sync(c.Request.Context()); err != nil {
		logger.Warn("Sync failed", "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: "SYNC_FAILED"})
		return
	}

	h.HandleListProviders(c)
}

// HandleProviderIcons handles GET /v1/icons/providers/:id/icons.
//
// Description:
//
//	Lists the icons an active provider serves. With ?q= the listing is
//	filtered to matching icons.
//
// Response:
//
//	200 OK: IconsResponse
//	404 Not Found: Unknown or inactive provider
func (h *Handlers) HandleProviderIcons(c *gin.Context) {
	id, ok := providerIDParam(c)
	if !ok {
		return
	}

	p, ok := h.reg.Provider(id)
	if !ok || !p.Available() {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "provider not active",
			Code:  "PROVIDER_NOT_ACTIVE",
		})
		return
	}

	icons := p.All()
	if q := c.Query("q"); q != "" {
		icons = p.Search(q)
	}
	c.JSON(http.StatusOK, IconsResponse{Provider: id, Icons: icons, Count: len(icons)})
}

// HandleSearch handles GET /v1/icons/search.
//
// Description:
//
//	Searches every active provider; hits are grouped by provider.
//
// Response:
//
//	200 OK: SearchResponse
//	400 Bad Request: Missing query
func (h *Handlers) HandleSearch(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query parameter q is required",
			Code:  "MISSING_QUERY",
		})
		return
	}

	results := h.reg.Search(q)
	count := 0
	for _, hits := range results {
		count += len(hits)
	}
	c.JSON(http.StatusOK, SearchResponse{Results: results, Count: count})
}

// installErrorStatus maps controller errors to HTTP status codes.
func installErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, provider.ErrUnknownProvider):
		return http.StatusNotFound, "UNKNOWN_PROVIDER"
	case errors.Is(err, controller.ErrClosed):
		return http.StatusServiceUnavailable, "CONTROLLER_CLOSED"
	case errors.Is(err, fetch.ErrManifest), errors.Is(err, fetch.ErrDownload), errors.Is(err, fetch.ErrChecksum):
		return http.StatusBadGateway, "UPSTREAM_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// providerIDParam validates the :id path parameter, writing a 400 when
// it is malformed.
func providerIDParam(c *gin.Context) (provider.ID, bool) {
	raw := c.Param("id")
	if err := validation.ValidateProviderID(raw); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_PROVIDER_ID"})
		return "", false
	}
	return provider.ID(raw), true
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
