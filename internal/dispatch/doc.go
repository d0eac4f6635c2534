// Package dispatch implements the handler dispatcher.
//
// The dispatcher maps a message type to an ordered set of callbacks.
// Registration order is invocation order, a handler may be registered for
// several types, and a panicking handler never prevents later handlers (or
// later messages) from running.
package dispatch
