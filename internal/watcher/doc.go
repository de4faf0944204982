// Package watcher turns filesystem events under the registry's base paths
// into debounced "visit now" notifications.
//
// Events are best effort: callers should assume they can be coalesced or
// dropped under load and treat a notification only as a hint to re-scan.
package watcher
