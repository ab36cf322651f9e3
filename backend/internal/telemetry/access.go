package telemetry

import (
	"context"
	"log/slog"
)

// resolveAccess probes whether the channel is publicly readable. It is run for every top-level
// read so that a channel switched between public and private mid-session is picked up without
// a restart.
func (c *Client) resolveAccess(ctx context.Context, creds Credentials) AccessMode {
	_, err := c.get(ctx, c.feedsURL(creds, AccessPublic, 1), c.timeouts.Probe)
	if err != nil {
		c.l.Debug("public access probe failed, using read key",
			slog.String("channel", creds.ChannelID),
			slog.Int("status", statusCode(err)))

		return AccessKeyedRead
	}

	c.l.Debug("channel is public", slog.String("channel", creds.ChannelID))

	return AccessPublic
}
