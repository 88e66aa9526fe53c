package server

import (
	"context"
	"log"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// createLoggingMiddleware creates middleware that logs all MCP method calls
func createLoggingMiddleware() mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(
			ctx context.Context,
			method string,
			req mcp.Request,
		) (mcp.Result, error) {
			start := time.Now()
			sessionID := req.GetSession().ID()
			tool := toolName(req)

			// Log request details
			log.Printf("[REQUEST] Session: %s | Method: %s%s", sessionID, method, tool)

			// Call the actual handler
			result, err := next(ctx, method, req)

			// Log response details
			duration := time.Since(start)

			switch {
			case err != nil:
				log.Printf("[RESPONSE] Session: %s | Method: %s%s | Status: ERROR | Duration: %v | Error: %v",
					sessionID, method, tool, duration, err)
			case isToolError(result):
				log.Printf("[RESPONSE] Session: %s | Method: %s%s | Status: TOOL_ERROR | Duration: %v",
					sessionID, method, tool, duration)
			default:
				log.Printf("[RESPONSE] Session: %s | Method: %s%s | Status: OK | Duration: %v",
					sessionID, method, tool, duration)
			}

			return result, err
		}
	}
}

// toolName formats the tool being called for tools/call requests
func toolName(req mcp.Request) string {
	call, ok := req.(*mcp.CallToolRequest)
	if !ok || call.Params == nil {
		return ""
	}
	return " | Tool: " + call.Params.Name
}

// isToolError reports whether a tool call failed inside the tool handler
func isToolError(result mcp.Result) bool {
	res, ok := result.(*mcp.CallToolResult)
	return ok && res != nil && res.IsError
}
