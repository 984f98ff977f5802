package cli

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	LogLevel string // zerolog level name; empty keeps the global level

	log *zerolog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ctorder CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ctorder",
		Short: "ctorder - construction and destruction order engine",
		Long: `Build and tear down objects of declared class hierarchies in the exact
order C++ prescribes: virtual bases first, then direct bases, then members,
then the constructor body, and the reverse on destruction or unwind.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.configureLogger(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error); overrides LOG_LEVEL")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// configureLogger builds the command logger on the command's stderr.
// --verbose and --log-level override the global level set from LOG_LEVEL.
func (o *RootOptions) configureLogger(cmd *cobra.Command) error {
	if o.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if o.LogLevel != "" {
		level, err := zerolog.ParseLevel(o.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", o.LogLevel, err)
		}
		zerolog.SetGlobalLevel(level)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		With().Timestamp().Logger()
	o.log = &logger
	return nil
}

// Logger returns the command logger, or a disabled one when the root
// command did not run.
func (o *RootOptions) Logger() zerolog.Logger {
	if o.log == nil {
		return zerolog.Nop()
	}
	return *o.log
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
