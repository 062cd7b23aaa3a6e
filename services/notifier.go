package services

import "context"

// Notifier pushes events to hub channels. The ws hub implements it.
type Notifier interface {
	Emit(ctx context.Context, channel, event string, data any) error
	// Evict unsubscribes userID's connections from channel. An empty userID
	// evicts every connection.
	Evict(ctx context.Context, channel, userID string) error
}

type nopNotifier struct{}

func (nopNotifier) Emit(context.Context, string, string, any) error { return nil }
func (nopNotifier) Evict(context.Context, string, string) error     { return nil }

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
