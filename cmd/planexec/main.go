package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/planexec/cmd/planexec/cmds"
	"github.com/go-go-golems/planexec/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "planexec",
	Short: "planexec answers requests with a plan-then-execute agent loop",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		initLogger()
	},
	SilenceUsage: true,
}

func initLogger() {
	logLevel := viper.GetString("log-level")
	verbose := viper.GetBool("verbose")
	if verbose && logLevel != "trace" {
		logLevel = "debug"
	}

	err := InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
	cobra.CheckErr(err)
}

// configFlags maps persistent flags onto configuration keys.
var configFlags = map[string]string{
	"ai-provider":    "ai.provider",
	"ai-model":       "ai.model",
	"ai-base-url":    "ai.base_url",
	"max-iterations": "loop.max_iterations",
	"timeout":        "loop.timeout",
	"search":         "search.provider",
}

func initCommands(rootCmd *cobra.Command, configPath string) error {
	viper.SetEnvPrefix("planexec")
	config.SetDefaults(viper.GetViper())

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.planexec")
		viper.AddConfigPath("/etc/planexec")

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(xdgConfigPath, "planexec"))
		}
	}

	err := viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// no config file, defaults and environment only
	} else if err != nil {
		return err
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	err = viper.BindPFlags(rootCmd.PersistentFlags())
	if err != nil {
		return err
	}
	for flag, key := range configFlags {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			return err
		}
	}

	initLogger()

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("with-caller", false, "Log caller")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "auto", "Log format (json, text, auto)")
	rootCmd.PersistentFlags().String("log-file", "", "Log file (default: stderr)")

	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ~/.planexec/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Verbose output")

	rootCmd.PersistentFlags().String("ai-provider", "openai", "Reasoning engine provider (openai, claude, ollama)")
	rootCmd.PersistentFlags().String("ai-model", "gpt-4o-mini", "Model name")
	rootCmd.PersistentFlags().String("ai-base-url", "", "Override the provider base URL")
	rootCmd.PersistentFlags().Int("max-iterations", 10, "Maximum number of dispatches per run")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Wall-clock limit of a run (default from config)")
	rootCmd.PersistentFlags().String("search", "tavily", "Web search provider (tavily, duckduckgo)")
	rootCmd.PersistentFlags().Bool("no-search", false, "Do not register the web search tool")

	// parse the flags one time just to catch --config
	configFile := ""
	for idx, arg := range os.Args {
		if arg == "--config" && len(os.Args) > idx+1 {
			configFile = os.Args[idx+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			configFile = strings.TrimPrefix(arg, "--config=")
		}
	}

	err := initCommands(rootCmd, configFile)
	if err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		cmds.NewRunCommand(),
		cmds.NewServeCommand(),
		cmds.NewMCPCommand(),
		cmds.NewConfigCommand(),
	)
}
