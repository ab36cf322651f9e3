package api

import (
	"net/http"
	"strconv"

	localtypes "greenhouse-monitor/backend/internal/local/api/types"
	apitypes "greenhouse-monitor/backend/internal/shared/api"
	"greenhouse-monitor/backend/internal/telemetry"
	"greenhouse-monitor/backend/pkg/router"
)

const (
	defaultHistoryResults = 10
	maxHistoryResults     = 8000
)

func (h *Handler) readingResponse(res telemetry.Result) localtypes.ReadingResponse {
	resp := localtypes.ReadingResponse{Reading: res.Reading, Source: res.Source}

	if res.Source != telemetry.SourceDefault && !res.FetchedAt.IsZero() {
		fetchedAt := res.FetchedAt
		age := h.now().Sub(fetchedAt).Seconds()
		resp.FetchedAt = &fetchedAt
		resp.AgeSeconds = &age
	}

	return resp
}

func (h *Handler) LatestReading(w http.ResponseWriter, r *http.Request) error {
	res := h.svc.Telemetry.FetchLatest(r.Context())
	apitypes.RespondJSON(w, r, http.StatusOK, h.readingResponse(res))

	return nil
}

func (h *Handler) RegisterLatestReading(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getLatestReading",
		Summary:     "Get the latest reading",
		Description: "Fetches the most recent reading. Falls back to the cached reading, then to a default reading, so this never fails.",
		Group:       ReadingsGroup,
		Handler:     apitypes.ErrorHandler(h.LatestReading),
	})
}

// RefreshReading runs a poll cycle now so MQTT and stream subscribers receive the result too.
func (h *Handler) RefreshReading(w http.ResponseWriter, r *http.Request) error {
	res := h.svc.Poller.Trigger(r.Context())
	apitypes.RespondJSON(w, r, http.StatusOK, h.readingResponse(res))

	return nil
}

func (h *Handler) RegisterRefreshReading(path string, rb *router.RouteBuilder) {
	rb.MustPost(path, router.RouteSpec{
		OperationID: "refreshReading",
		Summary:     "Poll now",
		Description: "Triggers an immediate poll and fans the result out to every subscriber.",
		Group:       ReadingsGroup,
		Handler:     apitypes.ErrorHandler(h.RefreshReading),
	})
}

func (h *Handler) ReadingHistory(w http.ResponseWriter, r *http.Request) error {
	count := defaultHistoryResults

	if raw := r.URL.Query().Get("results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryResults {
			return apitypes.NewValidationError(map[string]string{
				"results": "must be an integer between 1 and " + strconv.Itoa(maxHistoryResults),
			})
		}

		count = n
	}

	readings := h.svc.Telemetry.FetchHistory(r.Context(), count)
	if readings == nil {
		readings = []telemetry.Reading{}
	}

	apitypes.RespondJSON(w, r, http.StatusOK, localtypes.HistoryResponse{Readings: readings})

	return nil
}

func (h *Handler) RegisterReadingHistory(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getReadingHistory",
		Summary:     "Get recent readings",
		Description: "Returns up to N recent readings oldest first; zero readings are kept as served. An unavailable service yields an empty list.",
		Group:       ReadingsGroup,
		Parameters: map[string]router.ParameterSpec{
			"results": {In: router.ParameterInQuery, Description: "Number of feed entries to request (1-8000, default 10)"},
		},
		Handler: apitypes.ErrorHandler(h.ReadingHistory),
	})
}

func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) error {
	h.svc.Telemetry.Cache().Clear()
	apitypes.RespondJSON(w, r, http.StatusNoContent, nil)

	return nil
}

func (h *Handler) RegisterClearCache(path string, rb *router.RouteBuilder) {
	rb.MustDelete(path, router.RouteSpec{
		OperationID: "clearReadingCache",
		Summary:     "Clear the cached reading",
		Description: "Drops the last known good reading so the next failed fetch falls back to the default reading.",
		Group:       ReadingsGroup,
		Handler:     apitypes.ErrorHandler(h.ClearCache),
	})
}
