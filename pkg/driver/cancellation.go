package driver

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/geoinv/aem-rjmcmc/pkg/logging"
)

// CancellationControllerConfig configures CancellationController. Adapted
// from the teacher's pkg/emergency.Config (stop-file path + poll interval +
// signal handling toggle).
type CancellationControllerConfig struct {
	StopFile             string
	PollInterval         time.Duration
	EnableSignalHandlers bool
}

// CancellationController watches for a stop-file or SIGINT/SIGTERM and
// cancels a context.Context when triggered, broadcasting the spec's "kill"
// signal to every in-flight Inference1D.Run without any MPI point-to-point
// message: cancellation here is per-process (each worker watches its own
// stop file / signals), not routed through rank 0.
type CancellationController struct {
	cfg    CancellationControllerConfig
	log    *logging.Logger
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
}

// NewCancellationController wraps parent with a cancellable context and
// starts watching for the configured stop conditions. Call the returned
// context's Done() in dispatch loops between datapoints.
func NewCancellationController(parent context.Context, cfg CancellationControllerConfig, log *logging.Logger) (context.Context, *CancellationController) {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	ctx, cancel := context.WithCancel(parent)
	c := &CancellationController{cfg: cfg, log: log, cancel: cancel}

	if cfg.StopFile != "" {
		go c.watchStopFile(ctx)
	}
	if cfg.EnableSignalHandlers {
		go c.watchSignals(ctx)
	}
	return ctx, c
}

func (c *CancellationController) watchStopFile(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(c.cfg.StopFile); err == nil {
				c.trigger("stop file detected: " + c.cfg.StopFile)
				return
			}
		}
	}
}

func (c *CancellationController) watchSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case <-ctx.Done():
		return
	case sig := <-sigCh:
		c.trigger("signal received: " + sig.String())
	}
}

func (c *CancellationController) trigger(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	c.log.Warn("cancellation triggered", "reason", reason)
	c.cancel()
}

// Stop triggers cancellation manually (e.g. from cmd/infer's own
// os.Signal handling, or a test).
func (c *CancellationController) Stop(reason string) { c.trigger(reason) }

// Stopped reports whether cancellation has already been triggered.
func (c *CancellationController) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
