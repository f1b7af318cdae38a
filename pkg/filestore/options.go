package filestore

import (
	"time"

	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/marmos91/dittostore/pkg/metadata/memory"
	"github.com/marmos91/dittostore/pkg/observer"
)

type options struct {
	metadata metadata.Factory
	notifier observer.Notifier
	now      func() time.Time
	newID    func() string
}

// Option configures Open.
type Option func(*options)

// WithMetadata selects the metadata backend. The default is the YAML memory
// store at <root>/meta.yaml, saved after every mutation.
func WithMetadata(factory metadata.Factory) Option {
	return func(o *options) {
		o.metadata = factory
	}
}

// WithNotifier attaches the notifier receiving STORE_* actions. Without it
// the store uses the null notifier.
func WithNotifier(n observer.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithClock replaces time.Now for daily directories and the descriptor.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithIDSource replaces the identifier candidate source (uuid.NewString).
func WithIDSource(newID func() string) Option {
	return func(o *options) {
		o.newID = newID
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	o.notifier = observer.OrNop(o.notifier)
	if o.metadata == nil {
		o.metadata = memory.Factory(memory.Config{Sync: true}, o.notifier)
	}
	return o
}
