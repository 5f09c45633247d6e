package cmds

import (
	"context"
	"strings"

	"github.com/go-go-golems/planexec/pkg/inference/planexec"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

const askToolName = "ask"

func NewMCPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Expose the agent as an MCP tool over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			loop, tb, err := buildLoop(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeToolbox(tb)

			return server.ServeStdio(newMCPServer(loop))
		},
	}
	return cmd
}

type answerer interface {
	Run(ctx context.Context, request string) (*planexec.Result, error)
}

func newMCPServer(loop answerer) *server.MCPServer {
	s := server.NewMCPServer("planexec", "1.0.0", server.WithLogging())
	s.AddTool(mcp.NewTool(askToolName,
		mcp.WithDescription("Plan the request as a task list, work through it with tools and return the answer"),
		mcp.WithString("request", mcp.Required(), mcp.Description("The question or task")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]interface{})
		request, _ := args["request"].(string)
		request = strings.TrimSpace(request)
		if request == "" {
			return mcp.NewToolResultError("request is required"), nil
		}
		res, err := loop.Run(ctx, request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(res.Answer), nil
	})
	return s
}
