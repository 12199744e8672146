package main

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/alvarorichard/Gostream/internal/config"
	"github.com/alvarorichard/Gostream/internal/util"
)

type rootOptions struct {
	configPath string
	debug      bool
	perf       bool
	fs         afero.Fs
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{fs: afero.NewOsFs()}

	root := &cobra.Command{
		Use:           config.AppName,
		Short:         "Resolve playable video variants from a list of hoster servers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to "+config.AppName+".toml")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug mode")
	root.PersistentFlags().BoolVar(&opts.perf, "perf", false, "print timing metrics when done")

	root.AddCommand(
		newResolveCmd(opts),
		newServeCmd(opts),
		newSourcesCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration and applies the global flags on top of it
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.fs, o.configPath)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("debug") {
		cfg.Debug = o.debug
	}
	if cmd.Flags().Changed("perf") {
		cfg.Perf = o.perf
	}

	util.SetDebugMode(cfg.Debug)
	util.PerfEnabled = cfg.Perf
	util.InitLoggerWithWriter(cmd.ErrOrStderr())
	util.Debug("configuration loaded", "hosters", cfg.HosterNames(), "fallback", cfg.Fallback)
	return cfg, nil
}
