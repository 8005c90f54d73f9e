// Package state persists what the engine applied for each stack so that
// later runs can preview changes, prune objects that are no longer declared
// and destroy everything that was created.
//
// A record stores references and content fingerprints only. Secret material
// such as the webhook private key is never written to a backend.
package state
