package services

import "context"

// detachedContext keeps ctx values but drops its cancellation, for cleanup
// work that must run after the request is gone.
func detachedContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
