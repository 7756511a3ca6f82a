// Package events publishes authgate lifecycle events over watermill.
//
// Each [authgate.Event] becomes one JSON message on "<prefix>.<type>", for
// example "authgate.auth.logout_all". The message UUID is fresh per publish
// and the event type is copied into metadata so consumers can route without
// decoding the payload.
//
// # What this package must NOT do
//
//   - Subscribe or act on events.
//   - Fail the caller's auth operation; the engine logs publish errors.
package events
