// Package discovery decides whether a test method is disabled, so that the
// outcome of a method the host skipped without running it can be recorded
// as ignored.
package discovery

import (
	"context"
	"strings"
)

// SkipResolver reports whether a method of a class is disabled
type SkipResolver interface {
	IsDisabled(class string, method string, paramTypes []string) (bool, error)
}

// Preloader is implemented by resolvers that can warm their lookups for a
// set of classes before a run
type Preloader interface {
	Preload(ctx context.Context, classes []string) error
}

// StaticResolver resolves disabled methods from a fixed list of
// "Class.method" keys
type StaticResolver struct {
	disabled map[string]struct{}
}

func NewStaticResolver(keys ...string) *StaticResolver {
	r := &StaticResolver{disabled: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k != "" {
			r.disabled[k] = struct{}{}
		}
	}
	return r
}

func (r *StaticResolver) IsDisabled(class string, method string, _ []string) (bool, error) {
	_, ok := r.disabled[class+"."+method]
	return ok, nil
}

// ChainResolver reports a method as disabled when any of its resolvers does.
// The first error stops the lookup.
type ChainResolver []SkipResolver

func (c ChainResolver) IsDisabled(class string, method string, paramTypes []string) (bool, error) {
	for _, r := range c {
		disabled, err := r.IsDisabled(class, method, paramTypes)
		if err != nil {
			return false, err
		}
		if disabled {
			return true, nil
		}
	}
	return false, nil
}

// Preload preloads every resolver of the chain that supports it
func (c ChainResolver) Preload(ctx context.Context, classes []string) error {
	for _, r := range c {
		if p, ok := r.(Preloader); ok {
			if err := p.Preload(ctx, classes); err != nil {
				return err
			}
		}
	}
	return nil
}

// NoneDisabled is a SkipResolver for which no method is disabled
type NoneDisabled struct{}

func (NoneDisabled) IsDisabled(string, string, []string) (bool, error) {
	return false, nil
}
