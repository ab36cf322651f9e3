package api

import (
	"net/http"
	"strings"

	localtypes "greenhouse-monitor/backend/internal/local/api/types"
	apitypes "greenhouse-monitor/backend/internal/shared/api"
	"greenhouse-monitor/backend/internal/telemetry"
	"greenhouse-monitor/backend/pkg/router"
)

func credentialsResponse(creds telemetry.Credentials) localtypes.CredentialsResponse {
	return localtypes.CredentialsResponse{
		Credentials:     creds.Masked(),
		ReadConfigured:  creds.ReadConfigured(),
		WriteConfigured: creds.WriteConfigured(),
	}
}

func (h *Handler) GetCredentials(w http.ResponseWriter, r *http.Request) error {
	creds, err := h.svc.Credentials.Credentials(r.Context())
	if err != nil {
		return err
	}

	apitypes.RespondJSON(w, r, http.StatusOK, credentialsResponse(creds))

	return nil
}

func (h *Handler) RegisterGetCredentials(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getCredentials",
		Summary:     "Get channel credentials",
		Description: "Returns the channel id and masked API keys.",
		Group:       CredentialsGroup,
		Handler:     apitypes.ErrorHandler(h.GetCredentials),
	})
}

func (h *Handler) PutCredentials(w http.ResponseWriter, r *http.Request) error {
	req, err := apitypes.DecodeJSON[telemetry.Credentials](r)
	if err != nil {
		return err
	}

	req = telemetry.Credentials{
		ChannelID: strings.TrimSpace(req.ChannelID),
		ReadKey:   strings.TrimSpace(req.ReadKey),
		WriteKey:  strings.TrimSpace(req.WriteKey),
	}

	if req == (telemetry.Credentials{}) {
		return apitypes.NewValidationError(map[string]string{
			"credentials": "at least one of channelID, readKey or writeKey is required",
		})
	}

	if err := h.svc.ReplaceCredentials(r.Context(), req); err != nil {
		return err
	}

	creds, err := h.svc.Credentials.Credentials(r.Context())
	if err != nil {
		return err
	}

	apitypes.RespondJSON(w, r, http.StatusOK, credentialsResponse(creds))

	return nil
}

func (h *Handler) RegisterPutCredentials(path string, rb *router.RouteBuilder) {
	rb.MustPut(path, router.RouteSpec{
		OperationID: "putCredentials",
		Summary:     "Update channel credentials",
		Description: "Stores the given fields, leaving omitted ones unchanged. Switching to another channel clears the cached reading.",
		Group:       CredentialsGroup,
		Handler:     apitypes.ErrorHandler(h.PutCredentials),
	})
}

func (h *Handler) DeleteCredentials(w http.ResponseWriter, r *http.Request) error {
	if err := h.svc.Logout(r.Context()); err != nil {
		return err
	}

	apitypes.RespondJSON(w, r, http.StatusNoContent, nil)

	return nil
}

func (h *Handler) RegisterDeleteCredentials(path string, rb *router.RouteBuilder) {
	rb.MustDelete(path, router.RouteSpec{
		OperationID: "deleteCredentials",
		Summary:     "Log out",
		Description: "Removes the stored credentials and the cached reading.",
		Group:       CredentialsGroup,
		Handler:     apitypes.ErrorHandler(h.DeleteCredentials),
	})
}
