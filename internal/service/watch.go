package service

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/lemos/y7converter/internal/config"
	"github.com/lemos/y7converter/internal/errs"
	"github.com/lemos/y7converter/internal/lang"
	"github.com/lemos/y7converter/internal/persistence"
	"github.com/lemos/y7converter/pkg/file"
	"github.com/lemos/y7converter/pkg/icron"
	"github.com/lemos/y7converter/pkg/log"
)

// Runner executes a single action. *Pipeline implements it.
type Runner interface {
	Generate(ctx context.Context, mediaPath string, destPath string) (*Result, error)
	Translate(ctx context.Context, srcPath string, destPath string) (*Result, error)
}

// RunStore keeps the history the watch scan uses to skip finished work.
type RunStore interface {
	RecordRun(ctx context.Context, run *persistence.Run) error
	LastRun(ctx context.Context, action string, source string) (persistence.Run, bool, error)
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Summary counts the outcome of one scan.
type Summary struct {
	Found     int
	Succeeded int
	Failed    int
	Skipped   int
}

type workItem struct {
	action Action
	source string
	dest   string
}

type WatchService struct {
	cfg    config.Config
	runner Runner
	store  RunStore
	cron   *cron.Cron
	group  singleflight.Group
	now    func() time.Time
}

func NewWatchService(
	cfg config.Config,
	runner Runner,
	store RunStore,
	cron *cron.Cron,
) *WatchService {
	return &WatchService{
		cfg:    cfg,
		runner: runner,
		store:  store,
		cron:   cron,
		now:    time.Now,
	}
}

// Schedule registers the scan with the cron scheduler. Overlapping triggers
// share the scan that is already running.
func (s *WatchService) Schedule(ctx context.Context) error {
	if len(s.cfg.Watch.Dirs) == 0 {
		return errs.New(errs.Config, "no watch directories configured")
	}

	runFunc := func() {
		_, _, _ = s.group.Do("scan", func() (any, error) {
			summary, err := s.RunOnce(ctx)
			if err != nil {
				log.Error("Watch scan failed: %v", err)
			}
			return summary, err
		})
		if info, err := icron.GetTriggerInfo(s.cfg.Watch.CronExpr, s.now()); err == nil {
			log.Info("Next scan at %s (in %s)", info.Next.Format(time.RFC3339), info.TimeUntilNext.Round(time.Second))
		}
	}

	if _, err := s.cron.AddFunc(s.cfg.Watch.CronExpr, runFunc); err != nil {
		return errs.Wrap(err, errs.Config, "invalid watch cron expression").WithContext("expr", s.cfg.Watch.CronExpr)
	}

	info, err := icron.GetTriggerInfo(s.cfg.Watch.CronExpr, s.now())
	if err != nil {
		return errs.Wrap(err, errs.Config, "invalid watch cron expression").WithContext("expr", s.cfg.Watch.CronExpr)
	}
	log.Info("Watching %s with schedule %q, first scan at %s",
		strings.Join(s.cfg.Watch.Dirs, ", "), info.Expression, info.Next.Format(time.RFC3339))
	return nil
}

// RunOnce scans every watch directory and runs the pending actions one at a
// time. Failures of single items are recorded and do not stop the scan.
func (s *WatchService) RunOnce(ctx context.Context) (Summary, error) {
	var summary Summary

	s.prune(ctx)

	items, err := s.scan()
	if err != nil {
		return summary, err
	}
	summary.Found = len(items)
	log.Info("Found %d pending items in %d directories", len(items), len(s.cfg.Watch.Dirs))

	for _, item := range items {
		if ctx.Err() != nil {
			return summary, errs.FromContext(ctx, "watch scan")
		}

		skip, err := s.shouldSkip(ctx, item)
		if err != nil {
			return summary, err
		}
		if skip {
			summary.Skipped++
			continue
		}

		if s.execute(ctx, item) {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	log.Info("Watch scan done: %d succeeded, %d failed, %d skipped",
		summary.Succeeded, summary.Failed, summary.Skipped)
	return summary, nil
}

func (s *WatchService) scan() ([]workItem, error) {
	target := s.targetTag()
	code := lang.Code(s.cfg.Translation.TargetLang)

	var items []workItem
	for _, dir := range s.cfg.Watch.Dirs {
		paths, err := file.FindFiles(dir, func(path string) bool {
			return file.HasExt(path, mediaExts...) || file.HasExt(path, ".srt")
		})
		if err != nil {
			return nil, errs.Wrap(err, errs.FileIO, "failed to scan watch directory").WithContext("dir", dir)
		}

		for _, path := range paths {
			switch {
			case file.HasExt(path, mediaExts...):
				if !s.cfg.Watch.Generate || hasSubtitle(path) {
					continue
				}
				items = append(items, workItem{action: ActionGenerate, source: path, dest: file.SubtitlePath(path)})
			case file.HasExt(path, ".srt"):
				if !s.cfg.Watch.Translate || isTranslatedOutput(path, target) {
					continue
				}
				dest := file.TranslatedPath(path, code)
				if exists(dest) {
					continue
				}
				items = append(items, workItem{action: ActionTranslate, source: path, dest: dest})
			}
		}
	}
	return items, nil
}

func (s *WatchService) shouldSkip(ctx context.Context, item workItem) (bool, error) {
	last, found, err := s.store.LastRun(ctx, string(item.action), item.source)
	if err != nil {
		return false, errs.Wrap(err, errs.FileIO, "failed to read run history").WithContext("source", item.source)
	}
	if !found {
		return false, nil
	}
	if last.Status == persistence.RunSucceeded {
		log.Debug("Skipping %s %s: already done at %s", item.action, item.source, last.FinishedAt.Format(time.RFC3339))
		return true, nil
	}
	if slices.Contains(nonRetryableKinds, last.ErrorKind) {
		log.Debug("Skipping %s %s: previous run failed with %s", item.action, item.source, last.ErrorKind)
		return true, nil
	}
	return false, nil
}

// nonRetryableKinds are failures that fail again until the input changes.
var nonRetryableKinds = []string{
	errs.Format.String(),
	errs.Extraction.String(),
}

func (s *WatchService) execute(ctx context.Context, item workItem) bool {
	run := &persistence.Run{
		Action:      string(item.action),
		Source:      item.source,
		Destination: item.dest,
		StartedAt:   s.now(),
	}

	var (
		res *Result
		err error
	)
	switch item.action {
	case ActionGenerate:
		res, err = s.runner.Generate(ctx, item.source, item.dest)
	case ActionTranslate:
		res, err = s.runner.Translate(ctx, item.source, item.dest)
	}
	run.FinishedAt = s.now()

	if err != nil {
		run.Status = persistence.RunFailed
		run.ErrorKind = errs.KindOf(err).String()
		run.Error = err.Error()
	} else {
		run.Status = persistence.RunSucceeded
		run.Cues = res.Cues
	}

	// canceled runs are not history
	if err != nil && errs.IsKind(err, errs.Canceled) {
		return false
	}

	if recErr := s.store.RecordRun(context.WithoutCancel(ctx), run); recErr != nil {
		log.Warn("Failed to record %s run for %s: %v", item.action, item.source, recErr)
	}
	return err == nil
}

func (s *WatchService) prune(ctx context.Context) {
	retention := s.cfg.Watch.Retention()
	if retention <= 0 {
		return
	}
	n, err := s.store.DeleteRunsBefore(ctx, s.now().Add(-retention))
	if err != nil {
		log.Warn("Failed to prune run history: %v", err)
		return
	}
	if n > 0 {
		log.Debug("Pruned %d runs older than %d days", n, s.cfg.Watch.RetentionDays)
	}
}

func (s *WatchService) targetTag() language.Tag {
	tag, err := lang.Resolve(s.cfg.Translation.TargetLang)
	if err != nil {
		return language.Und
	}
	return tag
}

// hasSubtitle reports whether a subtitle with the media file's base name
// already sits next to it.
func hasSubtitle(mediaPath string) bool {
	for _, ext := range subtitleExts {
		if exists(file.ReplaceExt(mediaPath, ext)) {
			return true
		}
	}
	return false
}

// isTranslatedOutput reports whether an SRT file was produced by Translate:
// "movie_translated.srt" or "movie.<target>.srt".
func isTranslatedOutput(path string, target language.Tag) bool {
	base := file.BaseName(path)
	if strings.HasSuffix(base, "_translated") {
		return true
	}
	idx := strings.LastIndex(base, ".")
	if idx < 0 {
		return false
	}
	return lang.Matches(base[idx+1:], target)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
