package sqlite

import "github.com/docker/briefing/pkg/cache"

// registerSQLite registers the sqlite store factory via package side-effects.
//
//nolint:unparam // Return value exists only to allow calling from a var initializer.
func registerSQLite() struct{} {
	cache.RegisterFactory(cache.KindSQLite, &Factory{})
	return struct{}{}
}

var _ = registerSQLite()
