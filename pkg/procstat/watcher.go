package procstat

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// configWatcher calls reload when the watched file settles after a change.
type configWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	reload   func() error
	log      logr.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// newConfigWatcher watches the directory holding path rather than the file,
// so editors that save by renaming a temporary file are still seen.
func newConfigWatcher(path string, debounce time.Duration, reload func() error, log logr.Logger) (*configWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	cw := &configWatcher{
		watcher:  w,
		path:     filepath.Clean(path),
		debounce: debounce,
		reload:   reload,
		log:      log.WithValues("path", path),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go cw.loop()
	return cw, nil
}

// Stop ends the watch loop and waits for it to exit.
func (cw *configWatcher) Stop() {
	cw.stopOnce.Do(func() { close(cw.stopCh) })
	<-cw.doneCh
}

func (cw *configWatcher) loop() {
	defer close(cw.doneCh)
	defer cw.watcher.Close()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-cw.stopCh:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !cw.relevant(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(cw.debounce)
			timerCh = timer.C

		case <-timerCh:
			timer, timerCh = nil, nil
			if err := cw.reload(); err != nil {
				cw.log.Error(err, "config reload failed; keeping previous configuration")
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.log.Error(err, "config watch error")
		}
	}
}

// relevant reports whether event may have changed the watched file's content.
func (cw *configWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != cw.path && filepath.Base(event.Name) != filepath.Base(cw.path) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// WatchConfig reloads the configuration whenever its file changes, until
// Close. Reload failures are logged and leave the previous configuration in
// place. Calling it again is a no-op.
func (m *Monitor) WatchConfig() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.closed:
		return ErrClosed
	case m.configPath == "":
		return errors.New("procstat: monitor has no configuration file")
	case m.watcher != nil:
		return nil
	}

	w, err := newConfigWatcher(m.configPath, m.opts.WatchDebounce, m.ReloadConfig, m.log)
	if err != nil {
		return err
	}
	m.watcher = w
	m.log.V(1).Info("watching configuration", "path", m.configPath)
	return nil
}
