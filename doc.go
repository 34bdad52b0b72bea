// Package backend is the classifieds instant listings feed service.
//
// Binaries live under cmd:
//
//   - cmd/server: the HTTP API serving /feed/listings and cached meta
//   - cmd/migrate: creates the listings table and feed indexes
//   - cmd/seed: loads fake listings for development and tests
//   - cmd/feedctl: command-line client for walking the feed
//
// The feed itself (filters, sort modes, cursors, boosted injection and
// response shaping) is in internal/feed.
package backend
