package repository

import (
	"github.com/sirupsen/logrus"

	"github.com/marshallshelly/pebble-catalog/pkg/registry"
)

type options struct {
	registry *registry.Registry
	logger   logrus.FieldLogger
	eager    []string
	lazy     []string
}

// Option configures a Repository.
type Option func(*options)

// WithRegistry sets the model registry. The default is registry.Default().
func WithRegistry(r *registry.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithLogger overrides the logger, which defaults to the DB's logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithEager restricts eager resolution on reads to the named relationship
// fields. Without it every declared relationship is resolved.
func WithEager(fields ...string) Option {
	return func(o *options) { o.eager = append(o.eager, fields...) }
}

// WithLazy excludes the named relationship fields from eager resolution.
// They stay nil on reads until Resolve or Deferred loads them.
func WithLazy(fields ...string) Option {
	return func(o *options) { o.lazy = append(o.lazy, fields...) }
}
