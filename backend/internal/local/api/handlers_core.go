package api

import (
	"net/http"
	"time"

	localtypes "greenhouse-monitor/backend/internal/local/api/types"
	apitypes "greenhouse-monitor/backend/internal/shared/api"
	sharedtypes "greenhouse-monitor/backend/internal/shared/types"
	"greenhouse-monitor/backend/pkg/mqtt"
	"greenhouse-monitor/backend/pkg/router"
	"greenhouse-monitor/backend/pkg/utils"
)

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) error {
	apitypes.RespondJSON(w, r, http.StatusOK, sharedtypes.PingResponse{
		Message:    "Pong",
		Status:     sharedtypes.PingStatusOK,
		Build:      utils.GetBuildVersion(),
		ServerTime: time.Now().UTC(),
	})

	return nil
}

func (h *Handler) RegisterPing(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "ping",
		Summary:     "Ping the server",
		Description: "Checks that the server is alive and reports the running build and server time.",
		Group:       CoreGroup,
		Handler:     apitypes.ErrorHandler(h.Ping),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) error {
	status := h.svc.Core.Health(r.Context())
	resp := localtypes.HealthResponse{
		Database:        status.Database,
		MQTT:            status.MQTT,
		MQTTEnabled:     status.MQTTEnabled,
		Configured:      status.Configured,
		CacheAgeSeconds: status.CacheAgeSeconds,
		Build:           utils.GetBuildInfo(),
	}

	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}

	apitypes.RespondJSON(w, r, code, resp)

	return nil
}

func (h *Handler) RegisterHealth(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "health",
		Summary:     "Check server health",
		Description: "Reports database and MQTT connectivity, whether credentials are configured and the age of the cached reading. Responds 503 when a required dependency is down.",
		Group:       CoreGroup,
		Handler:     apitypes.ErrorHandler(h.Health),
	})
}

// RegisterOperations documents the registered routes and the MQTT operations.
func (h *Handler) RegisterOperations(path string, rb *router.RouteBuilder, mqttOps func() []mqtt.OperationInfo) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "listOperations",
		Summary:     "List API operations",
		Description: "Lists every documented HTTP route and MQTT operation.",
		Group:       CoreGroup,
		Handler: apitypes.ErrorHandler(func(w http.ResponseWriter, r *http.Request) error {
			resp := localtypes.OperationsResponse{Routes: rb.Routes(), MQTT: []mqtt.OperationInfo{}}
			if mqttOps != nil {
				resp.MQTT = mqttOps()
			}

			apitypes.RespondJSON(w, r, http.StatusOK, resp)

			return nil
		}),
	})
}
