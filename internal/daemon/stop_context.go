package daemon

import "context"

// stopAwareContext returns a context canceled when either parent is done or the
// daemon is stopped.
//
// Callers must call the returned cancel func; otherwise the stop listener lives
// as long as parent.
func (d *Daemon) stopAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	if d == nil || d.stopChan == nil {
		return ctx, cancel
	}
	go func() {
		select {
		case <-d.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
