package cmds

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type RootOptions struct {
	LogLevel  string
	LogFormat string
}

func AddCommands(root *cobra.Command) error {
	root.AddCommand(newRunCmd())
	root.AddCommand(newCheckCmd())
	return nil
}

func AddRootFlags(root *cobra.Command) {
	addLoggingFlags(root.PersistentFlags())
}

func addLoggingFlags(flags *pflag.FlagSet) {
	flags.String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console, json)")
}

func getRootOptions(cmd *cobra.Command) (RootOptions, error) {
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return RootOptions{}, err
	}
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return RootOptions{}, err
	}
	return RootOptions{LogLevel: level, LogFormat: format}, nil
}

// InitLogger configures the global zerolog logger from the root flags.
func InitLogger(cmd *cobra.Command) error {
	opts, err := getRootOptions(cmd)
	if err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(strings.ToLower(opts.LogLevel))
	if err != nil {
		return errors.Wrapf(err, "parse log level %q", opts.LogLevel)
	}
	zerolog.SetGlobalLevel(level)
	switch opts.LogFormat {
	case "json":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	case "console", "":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	default:
		return errors.Errorf("unknown log format %q", opts.LogFormat)
	}
	return nil
}
