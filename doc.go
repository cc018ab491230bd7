// Package assetcache resolves opaque assets by id from a set of prioritized
// backends and propagates resolved or freshly created assets into caching backends.
//
// Components:
//   - Backend: a source or cache of assets with a priority (memory, disk, file,
//     zip archive, HTTP, or any provider-backed byte store).
//   - Strategy: picks the backend that serves a read, the backend that accepts a
//     create, and the backends that receive a propagated copy.
//   - Manager: registry + worker pool. Sync and async get, create, remove, copy.
//   - progress.Reader: wraps backend streams and reports completion ratios to a
//     Listener, which may cancel the fetch by returning Cancel.
//
// Read path:
//
//	backend := strategy.SelectRead(regs, id)   // class order, then priority
//	asset   := backend.Get(ctx, id, listener)   // NotifyPartial* -> Notify
//	for _, b := range strategy.CacheTargets(regs, backend, asset) {
//	    _ = b.Cache(ctx, id, asset)            // best effort, logged
//	}
//
// A cancelled fetch ends with Notify(id, nil), which is indistinguishable from a
// miss at the listener. Hooks.FetchAborted tells the two apart.
package assetcache
