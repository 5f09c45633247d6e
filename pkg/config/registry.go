package config

import (
	"context"

	"github.com/go-go-golems/planexec/pkg/inference/tools"
	"github.com/go-go-golems/planexec/pkg/tools/mcptools"
	"github.com/go-go-golems/planexec/pkg/tools/search"
	"github.com/go-go-golems/planexec/pkg/tools/todo"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Toolbox is the registry built from the configuration together with the
// MCP connections backing some of its tools.
type Toolbox struct {
	Registry *tools.InMemoryToolRegistry
	sources  []*mcptools.Source
}

// Close disconnects every MCP server.
func (t *Toolbox) Close() error {
	var firstErr error
	for _, s := range t.sources {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "could not close mcp server %s", s.Name())
		}
	}
	t.sources = nil
	return firstErr
}

// BuildToolbox registers the search tool, the task-list tools and the tools
// of every configured MCP server.
func (c *Config) BuildToolbox(ctx context.Context) (*Toolbox, error) {
	tb := &Toolbox{Registry: tools.NewInMemoryToolRegistry()}

	if opts := c.SearchOptions(); opts != nil {
		searcher, err := search.New(*opts)
		if err != nil {
			return nil, errors.Wrap(err, "could not configure search")
		}
		def, err := search.NewTool(searcher, c.Search.MaxResults)
		if err != nil {
			return nil, err
		}
		if err := tb.Registry.Register(def); err != nil {
			return nil, err
		}
	}

	if c.Todo {
		if err := todo.Register(tb.Registry); err != nil {
			return nil, err
		}
	}

	for _, sc := range c.MCP.Servers {
		src, err := mcptools.Dial(ctx, sc)
		if err != nil {
			_ = tb.Close()
			return nil, err
		}
		tb.sources = append(tb.sources, src)
		if err := src.Register(tb.Registry); err != nil {
			_ = tb.Close()
			return nil, err
		}
	}

	log.Debug().Strs("tools", tools.Names(tb.Registry)).Msg("tool registry ready")
	return tb, nil
}
