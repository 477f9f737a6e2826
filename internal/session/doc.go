// Package session owns the persistent subscribe/publish protocol core.
//
// Ownership boundary:
// - duplex transport contract and its websocket implementation
// - keepalive probing on idle receive connections
// - publish and subscribe session loops with receipt confirmation
// - the timeout/cancellation envelope around one session
package session
