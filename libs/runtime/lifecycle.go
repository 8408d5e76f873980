package runtime

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"
)

func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// ShutdownFunc releases one resource during graceful shutdown.
type ShutdownFunc struct {
	Name string
	Fn   func(context.Context) error
}

// Shutdown runs fns in reverse registration order, each bounded by timeout.
// Failures are logged and do not stop the remaining steps.
func Shutdown(logger *slog.Logger, timeout time.Duration, fns ...ShutdownFunc) {
	for i := len(fns) - 1; i >= 0; i-- {
		f := fns[i]
		if f.Fn == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := f.Fn(ctx); err != nil {
			logger.Error("shutdown step failed", "step", f.Name, "err", err)
		}
		cancel()
	}
}
