// Package di wires the process-wide singletons (SPEC_FULL.md §9a) through a
// root-owned github.com/samber/do/v2 injector: the Service Locator, Rate
// Limiters, Long-Poll Notifier, shared HTTP client, and the services those
// depend on. Namespace-scoped collaborators (Dispatcher, Repository,
// Facade) are not injector singletons — Container builds one set per
// watched namespace on demand.
package di

import "github.com/samber/do/v2"

// RegisterSingletons registers every process-wide service as a do/v2
// singleton, in dependency order:
//  1. Config        (no dependencies)
//  2. Logger         (depends on Config)
//  3. HTTP client    (no dependencies)
//  4. Rate limiters  (depends on Config)
//  5. Cache          (depends on Config)
//  6. Store          (depends on Config)
//  7. Service Locator (depends on Config, HTTP client, Logger)
//  8. Notifier       (depends on Config, HTTP client, Locator, Rate limiters, Logger)
func RegisterSingletons(i do.Injector) {
	do.Provide(i, NewConfig)
	do.Provide(i, NewLogger)
	do.Provide(i, NewHTTPClient)
	do.Provide(i, NewRateLimiters)
	do.Provide(i, NewCache)
	do.Provide(i, NewStore)
	do.Provide(i, NewLocator)
	do.Provide(i, NewNotifier)
}
