// Copyright 2025 The utzip authors.
//
// SIGINT handling: spec.md §5 says there is "no cancellation primitive
// beyond process termination; on SIGINT the staging file is removed
// via a deferred cleanup hook and the process exits with code 130."

package staging

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// WatchInterrupt installs a one-shot SIGINT/SIGTERM handler that aborts
// s (deleting its staging file) and exits the process with code 130.
// Cancel stops the watch once the session has committed normally.
func (s *Session) WatchInterrupt() (cancel func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once

	go func() {
		select {
		case <-sigCh:
			s.Abort()
			os.Exit(130)
		case <-done:
		}
	}()

	return func() {
		once.Do(func() { close(done) })
		signal.Stop(sigCh)
	}
}
