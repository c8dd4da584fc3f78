package cmds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	scope "github.com/goliatone/go-scope"
	"github.com/goliatone/go-scope/pkg/activity"
	"github.com/goliatone/go-scope/pkg/activity/watermillsink"
	"github.com/goliatone/go-scope/pkg/config"
	"github.com/goliatone/go-scope/pkg/scenario"
)

type runOptions struct {
	Output  string
	Dump    bool
	Events  bool
	Publish bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and print what every read observed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.Load(args[0])
			if err != nil {
				return err
			}
			return runScenario(cmd.Context(), cmd.OutOrStdout(), f, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text, json)")
	cmd.Flags().BoolVar(&opts.Dump, "dump", false, "Dump the full report with go-spew")
	cmd.Flags().BoolVar(&opts.Events, "events", false, "Print scope lifecycle events")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "Publish lifecycle events to an in-memory watermill topic and print them")
	return cmd
}

func runScenario(ctx context.Context, out io.Writer, f *config.File, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := log.Logger.With().Str("component", "scopectl").Logger()

	scopeOpts, err := f.Options(logger)
	if err != nil {
		return err
	}

	var hooks activity.Hooks
	capture := &activity.CaptureHook{}
	if opts.Events {
		hooks = append(hooks, capture)
	}

	var published *publishCollector
	if opts.Publish {
		pubsub := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, watermill.NopLogger{})
		defer pubsub.Close()
		messages, err := pubsub.Subscribe(ctx, f.Activity.Topic)
		if err != nil {
			return errors.Wrap(err, "subscribe activity topic")
		}
		published = collect(messages)
		hooks = append(hooks, watermillsink.Hook{Publisher: pubsub, Topic: f.Activity.Topic})
	}
	if len(hooks) > 0 {
		scopeOpts = append(scopeOpts, scope.WithActivityHooks[any](hooks))
	}

	container := scope.New(scopeOpts...)
	report, runErr := scenario.NewRunner(container, logger).Run(f.Scenario)
	if report == nil {
		return runErr
	}

	switch opts.Output {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return errors.Wrap(err, "encode report")
		}
	case "text", "":
		printReport(out, report)
	default:
		return errors.Errorf("unknown output format %q", opts.Output)
	}

	if opts.Events {
		fmt.Fprintln(out, "events:")
		for _, event := range capture.Events() {
			fmt.Fprintf(out, "  %s %s %s\n", event.Verb, event.ObjectID, event.Method)
		}
	}
	if published != nil {
		fmt.Fprintf(out, "published to %s:\n", f.Activity.Topic)
		for _, payload := range published.Payloads() {
			fmt.Fprintf(out, "  %s %s\n", payload.Verb, payload.ObjectID)
		}
	}
	if opts.Dump {
		spew.Fdump(out, report)
	}
	return runErr
}

func printReport(out io.Writer, report *scenario.Report) {
	fmt.Fprintf(out, "run %s (instance %d) %d observation(s) in %s\n",
		report.RunID, report.Instance, len(report.Observations), report.Duration)
	for _, obs := range report.Observations {
		line := fmt.Sprintf("%-8s %-9s scope=%d", obs.Path, obs.Op, obs.ScopeID)
		if obs.Label != "" {
			line += " label=" + obs.Label
		}
		if obs.Outcome != "" {
			line += " outcome=" + string(obs.Outcome)
		}
		if obs.Value != nil {
			line += fmt.Sprintf(" value=%v", obs.Value)
		}
		if obs.Error != "" {
			line += fmt.Sprintf(" error=%q", obs.Error)
		}
		fmt.Fprintln(out, line)
	}
	if report.Failures > 0 {
		fmt.Fprintf(out, "%d expectation(s) failed\n", report.Failures)
	}
}

func countSteps(steps []scenario.Step) int {
	n := 0
	for _, step := range steps {
		n += 1 + countSteps(step.Steps)
	}
	return n
}

type publishCollector struct {
	mu       sync.Mutex
	payloads []watermillsink.Payload
}

func collect(messages <-chan *message.Message) *publishCollector {
	c := &publishCollector{}
	go func() {
		for msg := range messages {
			payload, err := watermillsink.Decode(msg)
			if err != nil {
				log.Warn().Err(err).Msg("skip undecodable activity message")
				msg.Ack()
				continue
			}
			c.mu.Lock()
			c.payloads = append(c.payloads, payload)
			c.mu.Unlock()
			// Publish waits for this ack, so the payload is visible first.
			msg.Ack()
		}
	}()
	return c
}

func (c *publishCollector) Payloads() []watermillsink.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]watermillsink.Payload(nil), c.payloads...)
}
