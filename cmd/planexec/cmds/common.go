package cmds

import (
	"context"

	"github.com/go-go-golems/planexec/pkg/config"
	"github.com/go-go-golems/planexec/pkg/events"
	"github.com/go-go-golems/planexec/pkg/inference/engine/factory"
	"github.com/go-go-golems/planexec/pkg/inference/planexec"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if viper.GetBool("no-search") {
		cfg.Search.Enabled = false
	}
	return cfg, nil
}

// buildLoop wires the engine, the tools and the prompts described by cfg.
// The returned toolbox must be closed by the caller.
func buildLoop(ctx context.Context, cfg *config.Config, sinks ...events.EventSink) (*planexec.Loop, *config.Toolbox, error) {
	if err := cfg.ExportOllamaHost(); err != nil {
		return nil, nil, errors.Wrap(err, "could not export OLLAMA_HOST")
	}
	stepSettings, err := cfg.StepSettings()
	if err != nil {
		return nil, nil, err
	}
	eng, err := factory.NewStandardEngineFactory().CreateEngine(stepSettings)
	if err != nil {
		return nil, nil, err
	}
	renderer, err := cfg.Renderer()
	if err != nil {
		return nil, nil, err
	}
	tb, err := cfg.BuildToolbox(ctx)
	if err != nil {
		return nil, nil, err
	}

	log.Debug().Interface("engine", stepSettings.GetMetadata()).Msg("engine configured")

	loop := planexec.New(
		planexec.WithEngine(eng),
		planexec.WithRegistry(tb.Registry),
		planexec.WithLoopConfig(cfg.LoopConfig()),
		planexec.WithToolConfig(cfg.ToolConfig()),
		planexec.WithPrompts(renderer),
		planexec.WithEventSinks(sinks...),
	)
	return loop, tb, nil
}

func closeToolbox(tb *config.Toolbox) {
	if err := tb.Close(); err != nil {
		log.Warn().Err(err).Msg("could not close tool servers")
	}
}
