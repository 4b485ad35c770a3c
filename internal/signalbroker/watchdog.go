// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"

	"github.com/matt-FFFFFF/cmdrunner/internal/ctxlog"
)

// Handlers are the reactions to signals. Nil handlers are skipped.
type Handlers struct {
	// Graceful runs on the first signal of a kind.
	Graceful func()
	// Force runs on the second signal of the same kind, after which Watch returns.
	Force func()
}

// Watch reads signals from sigCh until ctx is done, sigCh is closed, or Force has run.
func Watch(ctx context.Context, sigCh <-chan os.Signal, h Handlers) {
	seen := make(map[os.Signal]struct{})

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}

			if _, dup := seen[sig]; dup {
				ctxlog.Info(ctx, "watchdog", "detail", "received second signal of type, killing", "signal", sig.String())

				if h.Force != nil {
					h.Force()
				}

				return
			}

			seen[sig] = struct{}{}

			ctxlog.Info(ctx, "watchdog", "detail", "received first signal of type, stopping after current commands", "signal", sig.String())

			if h.Graceful != nil {
				h.Graceful()
			}
		}
	}
}
