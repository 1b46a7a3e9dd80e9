package observability

import (
	"io"
	"log/slog"
	"os"

	"github.com/fairyhunter13/career-agent-api/internal/config"
)

// SetupLogger configures a JSON slog logger on stdout with service and env
// fields. Dev runs at debug level.
func SetupLogger(cfg config.Config) *slog.Logger {
	return NewLogger(os.Stdout, cfg)
}

// NewLogger is SetupLogger with an explicit destination.
func NewLogger(w io.Writer, cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{}
	if cfg.IsDev() {
		opts.Level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(w, opts)
	return slog.New(h).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
}
