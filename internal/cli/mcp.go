package cli

import (
	"context"
	"fmt"

	mcpadapter "github.com/afo-kingdom/chancellor/pkg/adapters/mcp"
)

// MCPOptions selects the MCP transport.
type MCPOptions struct {
	Options
	Transport string
	Addr      string
}

// ServeMCP exposes the engine as MCP tools over stdio or SSE.
func ServeMCP(ctx context.Context, opts MCPOptions) error {
	env, err := NewEnv(opts.Options)
	if err != nil {
		return err
	}
	defer env.Close()

	srv := mcpadapter.NewServer(env.Engine, env.Logger)
	switch opts.Transport {
	case "", "stdio":
		return srv.ServeStdio()
	case "sse":
		addr := opts.Addr
		if addr == "" {
			addr = ":8081"
		}
		return srv.ServeSSE(ctx, addr, "http://"+hostPort(addr))
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", opts.Transport)
	}
}
