package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spiretechnology/go-watchdir/v3"
	"go.uber.org/zap"
)

var (
	rootOpt = struct {
		Poll     time.Duration
		MaxDepth uint
		Exclude  []string
		Create   bool
		Debug    bool
	}{}

	rootCmd = cobra.Command{
		Use:          "watchdir DIR",
		Short:        "Print add, create, change and remove events for a directory tree",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0])
		},
	}
)

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.CallerKey = ""
	if !rootOpt.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func run(ctx context.Context, dir string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	// Use native notifications unless polling was asked for
	var notifier watchdir.Notifier
	if rootOpt.Poll > 0 {
		notifier = watchdir.NewPollNotifier(rootOpt.Poll)
	} else {
		fsNotifier, err := watchdir.NewFSNotifier(dir)
		if err != nil {
			return err
		}
		defer fsNotifier.Close()
		notifier = fsNotifier
	}

	options := []watchdir.Option{
		watchdir.WithNotifier(notifier),
		watchdir.WithMaxDepth(rootOpt.MaxDepth),
		watchdir.WithLogger(log.Named("watchdir")),
	}
	if len(rootOpt.Exclude) > 0 {
		options = append(options, watchdir.WithFilter(watchdir.ExcludeNames(rootOpt.Exclude...)))
	}
	if rootOpt.Create {
		options = append(options, watchdir.WithAddOrCreate(watchdir.FileCreated))
	}
	wd := watchdir.New(os.DirFS(dir), options...)

	// Create a context that is cancelled on SIGINT/SIGTERM (Ctrl+C)
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("Watching directory", zap.String("dir", dir))
	err = wd.Watch(ctx, watchdir.HandlerFunc(func(ctx context.Context, event watchdir.Event) error {
		if event.Type == watchdir.WatchError {
			log.Error("Watch error", zap.String("dir", event.File), zap.Error(event.Err))
			return nil
		}
		log.Info(event.Type.String(), zap.Object("event", event))
		return nil
	}))
	if errors.Is(err, context.Canceled) {
		log.Info("Received signal, stopped watching")
		return nil
	}
	return err
}

func main() {
	flags := rootCmd.Flags()
	flags.DurationVar(&rootOpt.Poll, "poll", 0, "Poll the directory tree at this interval instead of using native notifications")
	flags.UintVar(&rootOpt.MaxDepth, "max-depth", watchdir.DefaultMaxDepth, "Maximum number of directory levels to watch")
	flags.StringArrayVar(&rootOpt.Exclude, "exclude", nil, "Ignore entries whose base name matches this pattern (repeatable)")
	flags.BoolVar(&rootOpt.Create, "create", false, "Report entries present at startup as created instead of added")
	flags.BoolVar(&rootOpt.Debug, "debug", false, "Enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Failed to execute command", err)
		os.Exit(1)
	}
}
