// Package notifications delivers run outcomes and health alerts via
// pluggable notifiers.
//
// The default implementation publishes to ntfy using the server and topic
// configured in config.toml and gracefully degrades to a no-op when no topic
// is set. Enumerated event types cover the notable outcomes (link update
// runs, process cleanups, performance alerts) so callers can emit consistent
// messages without duplicating HTTP glue, and the per-category toggles in
// configuration suppress whole event families.
//
// Extend this package if you need alternative transports; all callers depend
// only on the simple Service interface.
package notifications
