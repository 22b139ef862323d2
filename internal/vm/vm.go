// Package vm holds the presentation state holders. Each view model owns a
// mutex-guarded snapshot, recomputes it synchronously on cache events from
// the bus, and signals the consumer through a buffered refresh channel.
package vm

// refresher is the shared refresh-signal half of every view model.
type refresher struct {
	ch chan struct{}
}

func newRefresher() refresher {
	return refresher{ch: make(chan struct{}, 1)}
}

// RefreshCh returns the channel that signals a state change. The signal is
// coalescing: a slow consumer sees at most one pending tick.
func (r *refresher) RefreshCh() <-chan struct{} {
	return r.ch
}

func (r *refresher) signalRefresh() {
	select {
	case r.ch <- struct{}{}:
	default:
	}
}
