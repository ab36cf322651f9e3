package helpers

import (
	"log/slog"
	"os"

	"greenhouse-monitor/backend/internal/config"
	"greenhouse-monitor/backend/pkg/utils"
)

func GetLogger(c *config.Config) *slog.Logger {
	logOptions := slog.HandlerOptions{
		Level:       c.LogLevel,
		ReplaceAttr: utils.SlogReplacer,
	}

	var logHandler slog.Handler = slog.NewJSONHandler(c.LogOutput, &logOptions)
	if c.LogFormat == config.LogFormatText {
		logHandler = slog.NewTextHandler(c.LogOutput, &logOptions)
	}

	return slog.New(logHandler).With(slog.String("version", utils.GetVersionShort()))
}

// FatalIfErr logs err and exits. Deferred functions do not run.
func FatalIfErr(l *slog.Logger, err error) {
	if err == nil {
		return
	}

	l.Error("error", utils.ErrAttr(err))
	os.Exit(1)
}
