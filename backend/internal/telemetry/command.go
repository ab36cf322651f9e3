package telemetry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"greenhouse-monitor/backend/pkg/utils"
)

// Send sets a single actuator. See SendMany.
func (c *Client) Send(ctx context.Context, field ControlField, on bool) bool {
	return c.SendMany(ctx, map[ControlField]bool{field: on})
}

// SendMany writes the given actuator values in one update request and reports whether the
// service accepted it (status 200). There are no retries and no local state changes; the
// effect becomes visible on a later FetchStatus or FetchLatest.
func (c *Client) SendMany(ctx context.Context, updates map[ControlField]bool) bool {
	ok := c.sendMany(ctx, updates)
	c.observer.ObserveCommand(ok)

	return ok
}

func (c *Client) sendMany(ctx context.Context, updates map[ControlField]bool) bool {
	if len(updates) == 0 {
		c.l.Warn("refusing empty command")
		return false
	}

	creds := c.credentials(ctx)
	if !creds.WriteConfigured() {
		c.l.Warn("command not sent", slog.String("reason", ErrUnconfigured.Error()))
		return false
	}

	q := url.Values{}
	q.Set("api_key", creds.WriteKey)

	attrs := make([]any, 0, len(updates))

	for field, on := range updates {
		if !field.Valid() {
			c.l.Warn("command not sent", slog.String("reason", "unknown actuator"), slog.Int("field", int(field)))
			return false
		}

		q.Set(field.Key(), wireBool(on))
		attrs = append(attrs, slog.Bool(field.String(), on))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Command)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/update?"+q.Encode(), nil)
	if err != nil {
		c.l.Error("failed to create command request", utils.ErrAttr(err))
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logFailure(opCommand, AccessKeyedRead, err)
		return false
	}
	defer utils.LogOnError(c.l, resp.Body.Close, "failed to close response body")

	// The body is the new entry id; "0" means the service dropped the update (usually the
	// per-channel rate limit) even though it answered 200.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64))

	if resp.StatusCode != http.StatusOK {
		c.logFailure(opCommand, AccessKeyedRead, &StatusError{Code: resp.StatusCode})
		return false
	}

	entry := strings.TrimSpace(string(body))
	if entry == "0" {
		c.l.Warn("command accepted with entry id 0, update may have been rate limited", attrs...)
	} else {
		c.l.Info("command sent", append(attrs, slog.String("entryID", entry))...)
	}

	return true
}
