package main

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/spin/tts"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// watchConfig re-reads the config file at path whenever it is written and
// passes the new configuration to apply. Invalid files are logged and
// skipped. The returned function stops watching.
func watchConfig(path string, apply func(tts.Config)) (func(), error) {
	return watchConfigWith(viper.GetViper(), path, apply)
}

func watchConfigWith(v *viper.Viper, path string, apply func(tts.Config)) (func(), error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("error adding dir to fsnotify watcher: %w", err)
	}
	log.Debug("fsnotify watching dir", "dir", dir)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
				cfg, err := reloadConfig(v)
				if err != nil {
					log.Warn("ignoring config change", "err", err)
					continue
				}
				apply(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug("fsnotify error", "err", err)
			}
		}
	}()

	return func() {
		_ = watcher.Close()
		<-done
	}, nil
}

func reloadConfig(v *viper.Viper) (tts.Config, error) {
	if err := v.ReadInConfig(); err != nil {
		return tts.Config{}, fmt.Errorf("unable to read config file: %w", err)
	}
	return loadConfig(v)
}
