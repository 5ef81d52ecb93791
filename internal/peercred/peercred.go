// Package peercred attaches the process id of a unix socket peer to the
// request context.
package peercred

import (
	"context"
	"net"
)

type contextKey struct{}

// WithPID returns a copy of ctx carrying the peer process id
func WithPID(ctx context.Context, pid int32) context.Context {
	return context.WithValue(ctx, contextKey{}, pid)
}

// FromContext returns the peer process id, if one was attached
func FromContext(ctx context.Context) (int32, bool) {
	pid, ok := ctx.Value(contextKey{}).(int32)
	return pid, ok
}

// ConnContext is an http.Server ConnContext hook. Connections that are not
// unix sockets, or whose credentials cannot be read, leave ctx unchanged.
func ConnContext(ctx context.Context, c net.Conn) context.Context {
	pid, ok := peerPID(c)
	if !ok {
		return ctx
	}
	return WithPID(ctx, pid)
}
