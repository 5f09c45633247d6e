// Package mcptools registers the tools of Model Context Protocol servers as
// text-result tools.
package mcptools

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/go-go-golems/planexec/pkg/inference/tools"
	"github.com/iancoleman/strcase"
	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const clientName = "planexec"

// ServerConfig describes a stdio MCP server to launch.
type ServerConfig struct {
	Name    string            `mapstructure:"name" yaml:"name"`
	Command string            `mapstructure:"command" yaml:"command"`
	Args    []string          `mapstructure:"args" yaml:"args,omitempty"`
	Env     map[string]string `mapstructure:"env" yaml:"env,omitempty"`
	// Prefix the tool names with the server name.
	Prefix bool `mapstructure:"prefix" yaml:"prefix,omitempty"`
}

// Source is a connected MCP server and the tools it advertised.
type Source struct {
	name   string
	prefix bool
	client *client.Client
	tools  []mcp.Tool
}

// Dial launches the configured server and connects to it.
func Dial(ctx context.Context, cfg ServerConfig) (*Source, error) {
	if cfg.Command == "" {
		return nil, errors.Errorf("mcp server %s has no command", cfg.Name)
	}
	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	c, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return nil, errors.Wrapf(err, "could not start mcp server %s", cfg.Name)
	}
	s, err := Connect(ctx, cfg.Name, c, cfg.Prefix)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return s, nil
}

// Connect initializes an already started client and lists its tools.
func Connect(ctx context.Context, name string, c *client.Client, prefix bool) (*Source, error) {
	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: "1.0.0",
	}
	if _, err := c.Initialize(ctx, initRequest); err != nil {
		return nil, errors.Wrapf(err, "could not initialize mcp server %s", name)
	}

	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, errors.Wrapf(err, "could not list tools of mcp server %s", name)
	}

	log.Info().Str("server", name).Int("tools", len(res.Tools)).Msg("connected to mcp server")
	return &Source{
		name:   name,
		prefix: prefix,
		client: c,
		tools:  res.Tools,
	}, nil
}

func (s *Source) Name() string {
	return s.name
}

func (s *Source) Close() error {
	return s.client.Close()
}

// ToolName normalizes a remote tool name to snake case, optionally prefixed
// with the server name.
func ToolName(server, tool string, prefix bool) string {
	name := strcase.ToSnake(tool)
	if prefix && server != "" {
		return strcase.ToSnake(server) + "_" + name
	}
	return name
}

// Definitions converts every advertised tool into a text-result tool.
func (s *Source) Definitions() ([]*tools.ToolDefinition, error) {
	ret := make([]*tools.ToolDefinition, 0, len(s.tools))
	for _, t := range s.tools {
		schema, err := inputSchema(t)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid input schema for mcp tool %s", t.Name)
		}
		remote := t.Name
		def, err := tools.NewToolFromJSONFunc(
			ToolName(s.name, remote, s.prefix),
			t.Description,
			schema,
			func(ctx context.Context, args json.RawMessage) (interface{}, error) {
				return s.call(ctx, remote, args)
			},
			tools.WithTags("mcp", s.name),
		)
		if err != nil {
			return nil, err
		}
		ret = append(ret, def)
	}
	return ret, nil
}

// Register adds every tool of the source to reg.
func (s *Source) Register(reg *tools.InMemoryToolRegistry) error {
	defs, err := s.Definitions()
	if err != nil {
		return err
	}
	return reg.Register(defs...)
}

func (s *Source) call(ctx context.Context, name string, raw json.RawMessage) (string, error) {
	args := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", errors.Wrap(err, "mcp tool arguments must be a JSON object")
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := s.client.CallTool(ctx, req)
	if err != nil {
		return "", errors.Wrapf(err, "mcp call %s/%s failed", s.name, name)
	}

	text := resultText(res)
	if res.IsError {
		return "", errors.New(text)
	}
	return text, nil
}

func resultText(res *mcp.CallToolResult) string {
	parts := []string{}
	for _, c := range res.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		}
	}
	if len(parts) == 0 && res.StructuredContent != nil {
		if b, err := json.Marshal(res.StructuredContent); err == nil {
			parts = append(parts, string(b))
		}
	}
	return strings.Join(parts, "\n")
}

func inputSchema(t mcp.Tool) (*jsonschema.Schema, error) {
	raw := t.RawInputSchema
	if len(raw) == 0 {
		b, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(raw, schema); err != nil {
		return nil, err
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema, nil
}
