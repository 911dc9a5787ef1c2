// Package async runs background work with panic recovery and timeout
// enforcement. Use it instead of bare `go func()` for fire-and-forget
// tasks so a panic in one task never takes the process down.
package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/folio-cms/folio/pkg/observability"
)

// Go executes fn in a goroutine with a timeout-bounded context. Panics are
// recovered and logged with a stack trace; returned errors are logged and
// dropped.
func Go(parent context.Context, logger *observability.Logger, timeout time.Duration, task string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]interface{}{
					"task":  task,
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				}).Error("background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", task).Error("background task failed")
		}
	}()
}
