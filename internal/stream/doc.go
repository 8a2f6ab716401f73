// Package stream implements the stream connection manager.
//
// A Manager owns zero or one live push connection. Connect supersedes the
// current connection (close first, then open), Disconnect closes it, and any
// transport error closes it for good. Reconnecting is left to the caller.
package stream
