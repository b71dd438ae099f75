// SPDX-License-Identifier: MIT
package state

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a preset file whenever it changes on disk and hands the
// decoded state to a callback. Invalid documents are logged and skipped.
type Watcher struct {
	w        *fsnotify.Watcher
	path     string
	onChange func(PluginState)
	done     chan struct{}
	once     sync.Once
}

// Watch starts watching path. The parent directory is watched so that
// editors which replace the file by rename are still picked up.
func Watch(path string, onChange func(PluginState)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}

	sw := &Watcher{w: w, path: abs, onChange: onChange, done: make(chan struct{})}
	go sw.loop()
	logger.Infof("watching %s", abs)
	return sw, nil
}

func (sw *Watcher) loop() {
	defer close(sw.done)
	for {
		select {
		case ev, ok := <-sw.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != sw.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			st, err := Load(sw.path)
			if err != nil {
				logger.Warnf("ignoring change: %v", err)
				continue
			}
			logger.Infof("reloaded %s", sw.path)
			sw.onChange(st)
		case err, ok := <-sw.w.Errors:
			if !ok {
				return
			}
			logger.Errorf("watch error: %v", err)
		}
	}
}

// Close stops the watcher and waits for the event loop to exit.
func (sw *Watcher) Close() error {
	var err error
	sw.once.Do(func() {
		err = sw.w.Close()
		<-sw.done
	})
	return err
}
