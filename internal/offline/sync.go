package offline

import (
	"context"
	"errors"
	"fmt"
)

// SyncTag is the only background sync the worker knows
const SyncTag = "sync-tasks"

// ErrUnknownSyncTag is returned for sync tags other than SyncTag
var ErrUnknownSyncTag = errors.New("offline: unknown sync tag")

// Sync runs a background sync. Reconcile failures are logged and reported
// to pages but never returned.
func (r *Registration) Sync(ctx context.Context, tag string) error {
	if tag != SyncTag {
		return fmt.Errorf("%w: %q", ErrUnknownSyncTag, tag)
	}

	if r.reconcile == nil {
		r.log.Printf("offline: %s: nothing to reconcile", tag)
		r.clients.Broadcast(onlineStatus(true, nil))
		return nil
	}

	if err := r.reconcile(ctx); err != nil {
		r.log.Printf("offline: %s failed: %v", tag, err)
		r.clients.Broadcast(onlineStatus(r.net.Online(), err))
		return nil
	}
	r.clients.Broadcast(onlineStatus(true, nil))
	return nil
}
