package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// SourceWatcher tracks the policy source file. Evaluation always reads the
// file fresh through opa, so this exists for observability: edits are
// logged, and a deleted source is surfaced through Available.
type SourceWatcher struct {
	watcher   *fsnotify.Watcher
	path      string
	available atomic.Bool
	done      chan struct{}
}

func NewSourceWatcher(path string) (*SourceWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory so remove/recreate of the file itself is seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch policy directory: %w", err)
	}

	sw := &SourceWatcher{
		watcher: watcher,
		path:    path,
		done:    make(chan struct{}),
	}

	_, statErr := os.Stat(path)
	sw.available.Store(statErr == nil)

	go sw.watch()

	return sw, nil
}

// Available reports whether the policy source currently exists.
func (sw *SourceWatcher) Available() bool {
	return sw.available.Load()
}

func (sw *SourceWatcher) Close() error {
	close(sw.done)
	return sw.watcher.Close()
}

func (sw *SourceWatcher) watch() {
	debounce := time.NewTimer(0)
	<-debounce.C

	for {
		select {
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != filepath.Clean(sw.path) {
				continue
			}

			switch {
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				sw.available.Store(false)
				log.Warn().Str("path", sw.path).Msg("policy source removed")
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
				debounce.Reset(500 * time.Millisecond)
				go sw.waitAndLog(debounce)
			}

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("policy watcher error")

		case <-sw.done:
			return
		}
	}
}

func (sw *SourceWatcher) waitAndLog(timer *time.Timer) {
	<-timer.C
	sw.available.Store(true)
	log.Info().Str("path", sw.path).Msg("policy source updated")
}
