package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/alvarorichard/Gostream/internal/util"
	"github.com/alvarorichard/Gostream/pkg/gostream"
	"github.com/alvarorichard/Gostream/pkg/gostream/types"
)

type resolveOptions struct {
	handle      types.MediaHandle
	servers     []string
	serversFile string
	pref        types.Preference
	output      string
	concurrency int
	deadline    time.Duration
	pick        bool
}

func newResolveCmd(root *rootOptions) *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve every server of a media item and print the ranked variants",
		Example: `  gostream resolve --id tt0111161 --server "Mirror:direct=https://cdn.example/movie-720p.mp4"
  gostream resolve --id one-piece --episode 3 --servers-file servers.json --language English -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.handle.ID, "id", "", "media id (required)")
	f.StringVar(&opts.handle.Title, "title", "", "media title")
	f.IntVar(&opts.handle.Season, "season", 0, "season number")
	f.IntVar(&opts.handle.Episode, "episode", 0, "episode number")
	f.StringArrayVarP(&opts.servers, "server", "s", nil, `server as name[:family][@sub|dub|softsub]=locator (repeatable)`)
	f.StringVar(&opts.serversFile, "servers-file", "", "JSON file with a list of servers")
	f.StringVar(&opts.pref.Server, "prefer-server", "", "rank this server first")
	f.StringVar(&opts.pref.Language, "language", "", "rank this subtitle language or track kind first")
	f.StringVar(&opts.pref.Quality, "quality", "", "rank this quality tag first, e.g. 1080p")
	f.StringVarP(&opts.output, "output", "o", "table", "output format: table or json")
	f.IntVar(&opts.concurrency, "concurrency", 0, "maximum servers probed at once")
	f.DurationVar(&opts.deadline, "deadline", 0, "overall deadline for the run")
	f.BoolVar(&opts.pick, "pick", false, "choose one variant interactively and print its URL")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func runResolve(cmd *cobra.Command, root *rootOptions, opts *resolveOptions) error {
	if opts.output != "table" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q", opts.output)
	}
	if opts.pick && !isTerminal(os.Stdin) {
		return errors.New("--pick needs an interactive terminal")
	}

	cfg, err := root.load(cmd)
	if err != nil {
		return err
	}
	if opts.concurrency > 0 {
		cfg.Pipeline.MaxConcurrency = opts.concurrency
	}
	if opts.deadline > 0 {
		cfg.Pipeline.Deadline = opts.deadline
	}

	servers, err := collectServers(root.fs, opts.serversFile, opts.servers)
	if err != nil {
		return err
	}

	client, err := gostream.NewClient(*cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	var report gostream.Report
	var resolveErr error
	run := func() {
		report, resolveErr = client.ResolveDetailed(cmd.Context(), opts.handle, servers, opts.pref)
	}
	withSpinner(fmt.Sprintf("Resolving %s...", opts.handle.GetDisplayName()), run)
	defer writePerfReport(cmd, cfg.Perf)

	for _, f := range report.Failures {
		util.Debug("server failed", "server", f.Server, "stage", f.Stage, "error", f.Err)
	}
	if resolveErr != nil {
		if errors.Is(resolveErr, gostream.ErrNoPlayableSources) && len(report.Failures) > 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), renderFailures(report.Failures))
		}
		return resolveErr
	}

	out := cmd.OutOrStdout()
	if opts.pick {
		v, err := pickVariant(report.Variants)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, v.StreamURL)
		return nil
	}
	if opts.output == "json" {
		return writeJSON(out, report.Variants)
	}

	_, _ = fmt.Fprintln(out, renderVariants(report.Variants))
	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), resolveSummary(len(report.Variants), len(report.Failures), len(servers)))
	return nil
}

// resolveSummary describes the outcome of a run in one styled line
func resolveSummary(variants, failed, servers int) string {
	if failed > 0 {
		return util.Warning(fmt.Sprintf("%d variants, %d of %d servers failed", variants, failed, servers))
	}
	return util.Success(fmt.Sprintf("%d variants from %d servers", variants, servers))
}

// withSpinner runs action behind a spinner when stderr is a terminal
func withSpinner(title string, action func()) {
	if util.IsDebug || !isTerminal(os.Stderr) {
		action()
		return
	}
	if err := spinner.New().
		Title(title).
		Type(spinner.Dots).
		Action(action).
		Run(); err != nil {
		util.Debug("spinner failed", "error", err)
	}
}

// pickVariant shows a menu of the ranked variants
func pickVariant(variants []types.Variant) (types.Variant, error) {
	options := make([]huh.Option[int], 0, len(variants))
	for i, v := range variants {
		options = append(options, huh.NewOption(fmt.Sprintf("%s [%s]", v.DisplayLabel, v.TrackKind), i))
	}

	var choice int
	menu := huh.NewSelect[int]().
		Title("Choose a variant").
		Options(options...).
		Value(&choice)
	if err := menu.Run(); err != nil {
		return types.Variant{}, err
	}
	return variants[choice], nil
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func writePerfReport(cmd *cobra.Command, enabled bool) {
	if enabled {
		util.GetPerfTracker().WriteReport(cmd.ErrOrStderr())
	}
}
