package engines

import (
	"context"
	"fmt"
	"os"

	"github.com/unarc/unarc/internal/engine"
	"go.uber.org/zap"
)

// Fallback composes a primary and a secondary engine. The secondary runs at
// most once, and only when the primary failed for a reason another engine
// could plausibly recover from. Password failures are never retried here:
// the password is the blocking factor, not the engine, so they propagate to
// the caller's password resolution.
type Fallback struct {
	logger    *zap.Logger
	primary   engine.Engine
	secondary engine.Engine
}

func NewFallback(logger *zap.Logger, primary, secondary engine.Engine) *Fallback {
	return &Fallback{
		logger:    logger,
		primary:   primary,
		secondary: secondary,
	}
}

func (e *Fallback) Name() string {
	return fmt.Sprintf("fallback(%s->%s)", e.primary.Name(), e.secondary.Name())
}

func (e *Fallback) Extract(ctx context.Context, req engine.Request) error {
	primaryErr := e.primary.Extract(ctx, req)
	if primaryErr == nil {
		return nil
	}
	if engine.IsWrongPassword(primaryErr) {
		return primaryErr
	}
	if err := ctx.Err(); err != nil {
		return primaryErr
	}

	e.logger.Warn("primary engine failed, trying fallback",
		zap.String("archive", req.Archive),
		zap.String("primary", e.primary.Name()),
		zap.String("class", string(engine.ClassOf(primaryErr))),
		zap.Error(primaryErr),
	)

	// The primary may have written partial output before failing. Wipe the
	// destination so the fallback starts from a clean directory.
	if err := resetDir(req.Dest); err != nil {
		return engine.Errorf(engine.ClassOther, e.Name(), "reset destination before fallback: %w", err)
	}

	if secondaryErr := e.secondary.Extract(ctx, req); secondaryErr != nil {
		return secondaryErr
	}
	return nil
}

// resetDir empties dir, recreating it.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
