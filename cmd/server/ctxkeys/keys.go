// Package ctxkeys names the fiber.Ctx locals shared between middlewares and
// handlers.
package ctxkeys

const (
	// ParentCtxKey holds the request context handed to WebSocket handlers.
	ParentCtxKey = "parentCtx"
	// ConnIDKey holds the id assigned to a WebSocket connection at upgrade.
	ConnIDKey = "connID"
)
