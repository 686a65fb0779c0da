// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package watch re-runs a callback when model files change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 300 * time.Millisecond

// ModelExt is the extension of files that trigger a rebuild besides the
// watched files themselves, so edits to imported models are picked up.
const ModelExt = ".malloy"

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   zerolog.Logger
}

// Watcher watches files and the model files next to them.
type Watcher struct {
	files    map[string]bool
	debounce time.Duration
	watcher  *fsnotify.Watcher
	log      zerolog.Logger
}

// New watches the directories containing files.
func New(files []string, opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		files:    make(map[string]bool, len(files)),
		debounce: opts.Debounce,
		watcher:  fw,
		log:      opts.Logger.With().Str("component", "watch").Logger(),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}

	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}
	return w, nil
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	path, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return w.files[path] || filepath.Ext(path) == ModelExt
}

// Run calls onChange once per burst of changes until ctx is done. Errors from
// onChange are logged and do not stop the watcher. Run closes the watcher.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				w.log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("change detected")
				timer.Reset(w.debounce)
				fire = timer.C
			}

		case <-fire:
			fire = nil
			if err := onChange(ctx); err != nil {
				w.log.Error().Err(err).Msg("rebuild failed")
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("watch error")
		}
	}
}
