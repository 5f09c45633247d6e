package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/planexec/pkg/config"
	"github.com/go-go-golems/planexec/pkg/events"
	"github.com/go-go-golems/planexec/pkg/inference/planexec"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tcnksm/go-input"
	"golang.org/x/sync/errgroup"
)

const runEventsTopic = "planexec.run"

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [request...]",
		Short: "Plan and answer a single request",
		Long:  "Plan and answer a single request. Without arguments the request is read from the terminal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			printEvents, _ := cmd.Flags().GetBool("print-events")
			raw, _ := cmd.Flags().GetBool("raw")

			request := strings.TrimSpace(strings.Join(args, " "))
			if request == "" {
				var err error
				request, err = askRequest()
				if err != nil {
					return err
				}
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			res, err := runOnce(ctx, cmd.ErrOrStderr(), request, cfg, printEvents)
			if err != nil {
				var runErr *planexec.RunError
				if errors.As(err, &runErr) {
					log.Error().Str("run_id", runErr.RunID).Str("phase", string(runErr.Phase)).Msg("run failed")
				}
				return err
			}

			return printAnswer(cmd.OutOrStdout(), res.Answer, raw)
		},
	}

	cmd.Flags().Bool("print-events", false, "Print the loop events as JSON on stderr")
	cmd.Flags().Bool("raw", false, "Print the answer without markdown rendering")

	return cmd
}

// runOnce runs request. With printEvents the loop publishes into an event
// router that dumps every event to eventsOut while the run proceeds.
func runOnce(ctx context.Context, eventsOut io.Writer, request string, cfg *config.Config, printEvents bool) (*planexec.Result, error) {
	if !printEvents {
		loop, tb, err := buildLoop(ctx, cfg)
		if err != nil {
			return nil, err
		}
		defer closeToolbox(tb)
		return loop.Run(ctx, request)
	}

	router, err := events.NewEventRouter(events.WithOutput(eventsOut), events.WithVerbose(viper.GetBool("verbose")))
	if err != nil {
		return nil, err
	}
	defer func() { _ = router.Close() }()
	router.AddHandler("dump-events", runEventsTopic, router.DumpRawEvents)

	loop, tb, err := buildLoop(ctx, cfg, router.Sink(runEventsTopic))
	if err != nil {
		return nil, err
	}
	defer closeToolbox(tb)

	var res *planexec.Result
	routerDone := make(chan struct{})
	eg := errgroup.Group{}
	eg.Go(func() error {
		defer close(routerDone)
		return router.Run(ctx)
	})
	eg.Go(func() error {
		select {
		case <-router.Running():
		case <-routerDone:
			return errors.New("event router stopped before the run started")
		}
		var err error
		res, err = loop.Run(ctx, request)
		// publishing blocks until the handler acked; Close waits for running handlers
		if cerr := router.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("could not close event router")
		}
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func askRequest() (string, error) {
	ui := &input.UI{
		Writer: os.Stderr,
		Reader: os.Stdin,
	}
	answer, err := ui.Ask("What would you like to know?", &input.Options{
		Required:  true,
		Loop:      true,
		HideOrder: true,
		ValidateFunc: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("please enter a request")
			}
			return nil
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "could not read request")
	}
	return strings.TrimSpace(answer), nil
}

func printAnswer(w io.Writer, answer string, raw bool) error {
	if !raw {
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			styled, err := glamour.Render(answer, "dark")
			if err == nil {
				_, err = fmt.Fprint(w, styled)
				return err
			}
			log.Debug().Err(err).Msg("could not render answer as markdown")
		}
	}
	_, err := fmt.Fprintln(w, answer)
	return err
}
