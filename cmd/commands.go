package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/lemos/y7converter/internal/errs"
	"github.com/lemos/y7converter/internal/persistence"
	"github.com/lemos/y7converter/internal/service"
	"github.com/lemos/y7converter/pkg/icron"
	"github.com/lemos/y7converter/pkg/log"
)

func newGenerateCommand(cc *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "generate <media-file>",
		Short: "Transcribe the audio of a media file into an SRT subtitle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			res, err := cc.pipeline(*cfg).Generate(cmd.Context(), args[0], output)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Destination)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output SRT path (default: next to the media file)")
	return cmd
}

func newTranslateCommand(cc *commandContext) *cobra.Command {
	var output, source, target string

	cmd := &cobra.Command{
		Use:   "translate <srt-file>",
		Short: "Translate an SRT subtitle into the target language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			run := *cfg
			if source != "" {
				run.Translation.SourceLang = source
			}
			if target != "" {
				run.Translation.TargetLang = target
			}
			res, err := cc.pipeline(run).Translate(cmd.Context(), args[0], output)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Destination)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output SRT path (default: <name>.<lang>.srt next to the input)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Source language name or code, or \"auto\"")
	cmd.Flags().StringVarP(&target, "target", "t", "", "Target language name or code")
	return cmd
}

func newWatchCommand(cc *commandContext) *cobra.Command {
	var once bool
	var dirs []string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Periodically scan directories and process new media and subtitles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			run := *cfg
			if len(dirs) > 0 {
				run.Watch.Dirs = dirs
			}

			store, err := persistence.NewSQLiteStore(run.Watch.DBPath)
			if err != nil {
				return errs.Wrap(err, errs.FileIO, "failed to open run history").WithContext("path", run.Watch.DBPath)
			}
			defer store.Close()

			lock, err := lockWatch(run.Watch.DBPath)
			if err != nil {
				return err
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					log.Warn("Failed to release watch lock: %v", err)
				}
			}()

			scheduler := cron.New(cron.WithParser(icron.Parser))
			svc := service.NewWatchService(run, cc.pipeline(run), store, scheduler)

			ctx := cmd.Context()
			if once {
				summary, err := svc.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "found %d, succeeded %d, failed %d, skipped %d\n",
					summary.Found, summary.Succeeded, summary.Failed, summary.Skipped)
				return nil
			}

			if err := svc.Schedule(ctx); err != nil {
				return err
			}
			scheduler.Start()
			<-ctx.Done()
			log.Info("Stopping watch scheduler")
			<-scheduler.Stop().Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single scan and exit")
	cmd.Flags().StringSliceVar(&dirs, "dir", nil, "Directory to watch (repeatable, overrides watch.dirs)")
	return cmd
}

func newHistoryCommand(cc *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs recorded by the watch scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			store, err := persistence.NewSQLiteStore(cfg.Watch.DBPath)
			if err != nil {
				return errs.Wrap(err, errs.FileIO, "failed to open run history").WithContext("path", cfg.Watch.DBPath)
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return errs.Wrap(err, errs.FileIO, "failed to list runs")
			}
			return renderRuns(cmd.OutOrStdout(), runs, time.Now())
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

func renderRuns(w io.Writer, runs []persistence.Run, now time.Time) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded")
		return err
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"When", "Action", "Status", "Cues", "Elapsed", "Source", "Detail"})
	for _, r := range runs {
		detail := r.Destination
		if r.Status == persistence.RunFailed {
			detail = r.ErrorKind
		}
		tw.AppendRow(table.Row{
			humanize.RelTime(r.FinishedAt, now, "ago", "from now"),
			r.Action,
			string(r.Status),
			humanize.Comma(int64(r.Cues)),
			r.Elapsed().Round(time.Millisecond).String(),
			r.Source,
			detail,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

// lockWatch takes an exclusive lock next to the history database so two
// schedulers never process the same directories.
func lockWatch(dbPath string) (*flock.Flock, error) {
	lock := flock.New(dbPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, errs.Wrap(err, errs.FileIO, "failed to acquire watch lock").WithContext("path", lock.Path())
	}
	if !ok {
		return nil, errs.New(errs.Config, "another watch process is already running").WithContext("path", lock.Path())
	}
	return lock, nil
}
