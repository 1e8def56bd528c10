// Package revalidate tells the presentation layer which pages went stale
// after a ledger mutation. Delivery is fire-and-forget.
package revalidate

import (
	"context"
	"log"
	"strings"
	"sync"
)

const DashboardPath = "/dashboard"

func AccountPath(accountID string) string {
	return "/account/" + accountID
}

type Notifier interface {
	Invalidate(ctx context.Context, paths ...string)
}

// LogNotifier writes stale paths to the process log.
type LogNotifier struct{}

func (LogNotifier) Invalidate(_ context.Context, paths ...string) {
	if len(paths) == 0 {
		return
	}
	log.Printf("revalidate %s", strings.Join(paths, " "))
}

type Nop struct{}

func (Nop) Invalidate(context.Context, ...string) {}

// Recorder keeps every invalidated path in memory.
type Recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *Recorder) Invalidate(_ context.Context, paths ...string) {
	r.mu.Lock()
	r.paths = append(r.paths, paths...)
	r.mu.Unlock()
}

// Drain returns the recorded paths and forgets them.
func (r *Recorder) Drain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.paths
	r.paths = nil
	return out
}
