package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"greenhouse-monitor/backend/internal/commandlog"
	"greenhouse-monitor/backend/internal/controller"
	localtypes "greenhouse-monitor/backend/internal/local/api/types"
	apitypes "greenhouse-monitor/backend/internal/shared/api"
	"greenhouse-monitor/backend/pkg/router"
)

func (h *Handler) DeviceStatus(w http.ResponseWriter, r *http.Request) error {
	remote, live := h.svc.Telemetry.FetchStatusLive(r.Context())

	intended := h.svc.Controller.State()
	if live {
		intended = h.svc.Controller.Reconcile(remote)
	}

	apitypes.RespondJSON(w, r, http.StatusOK, localtypes.DeviceStatusResponse{Remote: remote, Live: live, Intended: intended})

	return nil
}

func (h *Handler) RegisterDeviceStatus(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getDeviceStatus",
		Summary:     "Get actuator status",
		Description: "Reads the actuator status from the channel and reconciles the intended state with it. When the channel is unreachable the remote status reads all off, live is false and the intended state is left alone.",
		Group:       DevicesGroup,
		Handler:     apitypes.ErrorHandler(h.DeviceStatus),
	})
}

func (h *Handler) DeviceState(w http.ResponseWriter, r *http.Request) error {
	apitypes.RespondJSON(w, r, http.StatusOK, h.svc.Controller.State())

	return nil
}

func (h *Handler) RegisterDeviceState(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getDeviceState",
		Summary:     "Get intended actuator state",
		Description: "Returns the locally intended actuator state, including a pending watering auto-stop. No remote call is made.",
		Group:       DevicesGroup,
		Handler:     apitypes.ErrorHandler(h.DeviceState),
	})
}

func (h *Handler) SetActuator(w http.ResponseWriter, r *http.Request) error {
	req, err := apitypes.DecodeJSON[localtypes.ActuatorRequest](r)
	if err != nil {
		return err
	}

	ctx := controller.WithOrigin(r.Context(), controller.OriginAPI)

	state, err := h.svc.Controller.Apply(ctx, controller.Command{
		Actuator:        chi.URLParam(r, "actuator"),
		On:              req.On,
		DurationSeconds: req.DurationSeconds,
	})

	switch {
	case errors.Is(err, controller.ErrUnknownActuator):
		return apitypes.NewError(http.StatusNotFound, "Unknown actuator, expected growLight, watering or autoMode")
	case errors.Is(err, controller.ErrInvalidDuration):
		return apitypes.NewValidationError(map[string]string{
			"durationSeconds": "must be between 0 and 3600",
		})
	case errors.Is(err, controller.ErrDispatchFailed):
		return apitypes.NewError(http.StatusBadGateway, "The channel did not accept the command, state was reverted")
	case err != nil:
		return err
	}

	apitypes.RespondJSON(w, r, http.StatusOK, state)

	return nil
}

func (h *Handler) RegisterSetActuator(path string, rb *router.RouteBuilder) {
	rb.MustPut(path, router.RouteSpec{
		OperationID: "setActuator",
		Summary:     "Switch an actuator",
		Description: "Applies the change optimistically and sends it to the channel. Turning watering on schedules an automatic stop. Responds 502 and reverts when the channel rejects the command.",
		Group:       DevicesGroup,
		Parameters:  pathParam("Actuator name: growLight, watering or autoMode"),
		Handler:     apitypes.ErrorHandler(h.SetActuator),
	})
}

func (h *Handler) CommandLog(w http.ResponseWriter, r *http.Request) error {
	limit := commandlog.DefaultLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > commandlog.MaxLimit {
			return apitypes.NewValidationError(map[string]string{
				"limit": "must be an integer between 1 and " + strconv.Itoa(commandlog.MaxLimit),
			})
		}

		limit = n
	}

	entries, err := h.svc.Commands.Recent(r.Context(), limit)
	if err != nil {
		return err
	}

	if entries == nil {
		entries = []commandlog.Entry{}
	}

	apitypes.RespondJSON(w, r, http.StatusOK, localtypes.CommandLogResponse{Commands: entries})

	return nil
}

func (h *Handler) RegisterCommandLog(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "listCommands",
		Summary:     "List recent commands",
		Description: "Lists dispatched actuator commands newest first, including rejected ones and automatic stops.",
		Group:       DevicesGroup,
		Parameters: map[string]router.ParameterSpec{
			"limit": {In: router.ParameterInQuery, Description: "Maximum entries to return (1-500, default 50)"},
		},
		Handler: apitypes.ErrorHandler(h.CommandLog),
	})
}
