// Package protocol defines the wire envelope exchanged with the streaming
// server and the typed payloads it carries.
//
// Every message is a single JSON object:
//
//	{"type": "...", "id": "...", "timestamp": 1705320000000, "channel": "...", "data": ...}
//
// Reserved types (connect, ping, pong, ack, subscription) drive the
// connection lifecycle; all other types are routed to caller handlers by
// message type.
package protocol
