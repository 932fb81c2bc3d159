package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/velibadvisor/velibadvisor/internal/config"
)

// cli carries state shared by all subcommands.
type cli struct {
	cfgPath string
	verbose bool

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "velibctl",
		Short:        "Operator tool for the Vélib advisor",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&c.cfgPath, "config", "c", os.Getenv("CONFIG_FILE"), "configuration file (yaml or json)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log provider activity to stderr")

	root.AddCommand(newAnalyzeCmd(c), newStationsCmd(c), newTokenCmd(c))
	return root
}

func (c *cli) load(stderr io.Writer) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(c.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	level := zerolog.WarnLevel
	if c.verbose {
		level = zerolog.DebugLevel
	}
	c.logger = zerolog.New(zerolog.ConsoleWriter{Out: stderr}).Level(level).With().Timestamp().Logger()
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
