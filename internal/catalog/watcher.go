package catalog

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/logger"
)

const defaultDebounce = 500 * time.Millisecond

// LoadFunc reads a fresh catalog from disk.
type LoadFunc func(ctx context.Context) (*Catalog, error)

// Watcher reloads the catalog file when it is replaced and swaps it into a Holder.
type Watcher struct {
	path     string
	holder   *Holder
	load     LoadFunc
	logger   *zap.Logger
	debounce time.Duration
	// OnSwap, when set, is called after every successful swap.
	OnSwap func(next *Catalog)
}

func NewWatcher(path string, holder *Holder, load LoadFunc, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		holder:   holder,
		load:     load,
		logger:   log,
		debounce: defaultDebounce,
	}
}

// Run blocks until ctx is done. The parent directory is watched because Save
// replaces the file by rename.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			trigger = timer.C
		case <-trigger:
			trigger = nil
			w.reload(ctx)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalog watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	next, err := w.load(ctx)
	if err != nil {
		w.logger.Warn("catalog reload failed, keeping the active catalog",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}

	prev := w.holder.Swap(next)
	fields := logger.CatalogFields(next.Version(), next.Meta().Backend)
	if prev != nil {
		fields = append(fields, zap.String("previous_version", prev.Version()))
	}
	w.logger.Info("catalog swapped", append(fields, zap.Int("jobs", next.Len()))...)

	if w.OnSwap != nil {
		w.OnSwap(next)
	}
}
