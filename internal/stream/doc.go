// Package stream implements the persistent streaming client.
//
// The client:
//   - Keeps one logical WebSocket connection to the streaming server
//   - Reconnects with bounded backoff on transport failure
//   - Replays the desired subscription set after every reconnect
//   - Detects silently-dead connections via envelope-level ping/pong
//   - Routes decoded messages to registered handlers in order
package stream
