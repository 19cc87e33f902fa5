// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package interop

// Option configures a Producer or Consumer.
type Option func(*options)

type options struct {
	arena *Arena
	name  string
}

func defaultOptions() options {
	return options{name: "dstex"}
}

// WithArena makes a Producer allocate from a. By default each Producer
// owns a private arena. Consumers ignore this option.
func WithArena(a *Arena) Option {
	return func(o *options) {
		o.arena = a
	}
}

// WithName sets the name used for OS memory objects and log records.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
