package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/quill/pkg/log"
)

// Watch reloads configPath whenever it changes on disk and hands the new
// config to onChange. It blocks until ctx is done. Reload failures are
// logged and the previous config stays in effect.
func Watch(ctx context.Context, configPath string, onChange func(*Config)) error {
	l := log.ForService("config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(configPath); err != nil {
		return fmt.Errorf("watching %s: %w", configPath, err)
	}
	l.Debugf("watching %s", configPath)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}

			// Editors replace files atomically; the watch is lost with the
			// old inode and has to be re-added.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					l.Warnf("config file %s removed, keeping current settings", configPath)
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					l.Warnf("re-adding %s to watcher: %v", configPath, err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}

			cfg, err := LoadConfig(configPath)
			if err != nil {
				l.Errorf("reloading config: %v", err)
				continue
			}
			l.Infof("configuration reloaded (%s)", event.Op)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.Warnf("config watcher error: %v", err)
		}
	}
}
