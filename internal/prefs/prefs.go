package prefs

import (
	"context"
	"fmt"

	"github.com/phuslu/log"
)

const (
	Namespace        string = "location_tracking_prefs"
	TrackingStateKey string = "is_tracking"
	PermissionKey    string = "location_permission_granted"
)

// Store is a namespaced boolean key/value store. PutBool must not return
// before the value is durable.
type Store interface {
	GetBool(ctx context.Context, namespace, key string) (value bool, found bool, err error)
	PutBool(ctx context.Context, namespace, key string, value bool) error
	Close() error
}

// Flag is a single durable boolean, false until first written.
type Flag struct {
	store     Store
	namespace string
	key       string
	log       log.Logger
}

func NewFlag(store Store, namespace, key string) *Flag {
	f := &Flag{store: store, namespace: namespace, key: key}
	f.log = log.DefaultLogger
	f.log.Context = log.NewContext(nil).Str("module", "prefs").Str("namespace", namespace).Str("key", key).Value()
	return f
}

func TrackingFlag(store Store) *Flag {
	return NewFlag(store, Namespace, TrackingStateKey)
}

func PermissionFlag(store Store) *Flag {
	return NewFlag(store, Namespace, PermissionKey)
}

func (f *Flag) Read(ctx context.Context) (bool, error) {
	v, found, err := f.store.GetBool(ctx, f.namespace, f.key)
	if err != nil {
		return false, fmt.Errorf("read %s/%s: %w", f.namespace, f.key, err)
	}
	if !found {
		return false, nil
	}
	return v, nil
}

func (f *Flag) Write(ctx context.Context, v bool) error {
	err := f.store.PutBool(ctx, f.namespace, f.key, v)
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", f.namespace, f.key, err)
	}
	f.log.Debug().Bool("value", v).Msg("flag committed")
	return nil
}
