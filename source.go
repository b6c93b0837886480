package formz

import (
	"context"
	"fmt"

	"github.com/zoobzio/capitan"
)

// Source observes an external location for value documents and emits raw
// bytes on a channel. Implementations must emit the current value immediately
// upon Watch() being called to support initial prefill.
type Source interface {
	// Watch begins observing the source and returns a channel that emits raw
	// bytes when changes occur. The channel is closed when the context is
	// canceled or an unrecoverable error occurs.
	Watch(ctx context.Context) (<-chan []byte, error)
}

// ChannelSource wraps an existing byte channel as a Source.
// Useful for testing and custom sources that already produce bytes.
type ChannelSource struct {
	ch   <-chan []byte
	sync bool
}

// NewChannelSource creates a ChannelSource that forwards values from the
// given channel through an internal goroutine.
func NewChannelSource(ch <-chan []byte) *ChannelSource {
	return &ChannelSource{ch: ch, sync: false}
}

// NewSyncChannelSource creates a ChannelSource that returns the source
// channel directly without an intermediate goroutine.
// Use with a sync-mode store binding for deterministic testing.
func NewSyncChannelSource(ch <-chan []byte) *ChannelSource {
	return &ChannelSource{ch: ch, sync: true}
}

// Watch returns a channel that emits values from the wrapped channel.
func (c *ChannelSource) Watch(ctx context.Context) (<-chan []byte, error) {
	if c.sync {
		return c.ch, nil
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-c.ch:
				if !ok {
					return
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Binding feeds decoded value documents from a Source into a Store through
// the normal PatchValues path: registered fields update as external edits
// with one batched cross-field pass, names without a controller become
// retained values.
type Binding struct {
	store *Store
	codec Codec

	changes <-chan []byte
}

// BindingOption configures a source binding.
type BindingOption func(*Binding)

// WithCodec sets the codec used to decode source emissions.
// The default detects JSON and YAML from content.
func WithCodec(c Codec) BindingOption {
	return func(b *Binding) {
		b.codec = c
	}
}

// BindSource starts feeding the store from a source. It blocks until the
// first document is applied (or rejected), then continues asynchronously. A
// document that fails to decode is discarded and the previous values are
// retained; the binding keeps watching for valid updates.
//
// In sync mode the initial document is the only one applied automatically;
// use Apply to process subsequent emissions deterministically.
func (s *Store) BindSource(ctx context.Context, src Source, opts ...BindingOption) (*Binding, error) {
	b := &Binding{store: s, codec: AutoCodec{}}
	for _, opt := range opts {
		opt(b)
	}

	changes, err := src.Watch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start source: %w", err)
	}

	capitan.Emit(ctx, SourceBound)

	var initialErr error
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case raw, ok := <-changes:
		if !ok {
			return nil, fmt.Errorf("source closed before emitting initial value")
		}
		initialErr = b.apply(ctx, raw)
	}

	if s.syncMode {
		b.changes = changes
		return b, initialErr
	}

	go b.watch(ctx, changes)
	return b, initialErr
}

// Apply reads and processes the next emission from the source. Only available
// in sync mode; returns false if no emission is pending or the channel is
// closed.
func (b *Binding) Apply(ctx context.Context) bool {
	if b.changes == nil {
		return false
	}
	select {
	case raw, ok := <-b.changes:
		if !ok {
			return false
		}
		_ = b.apply(ctx, raw) //nolint:errcheck // Rejections emitted via signal
		return true
	default:
		return false
	}
}

// apply decodes one emission and patches it into the store.
func (b *Binding) apply(ctx context.Context, raw []byte) error {
	var values map[string]any
	if err := b.codec.Unmarshal(raw, &values); err != nil {
		capitan.Emit(ctx, SourceRejected,
			KeyError.Field(err.Error()),
		)
		return fmt.Errorf("decode failed: %w", err)
	}
	b.store.PatchValues(values)
	return nil
}

// watch processes emissions from the source channel.
func (b *Binding) watch(ctx context.Context, changes <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-changes:
			if !ok {
				return
			}
			_ = b.apply(ctx, raw) //nolint:errcheck // Rejections emitted via signal
		}
	}
}
