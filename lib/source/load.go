package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/ghodss/yaml"
	"github.com/sirupsen/logrus"
)

// Document is the on-disk form of a source list. YAML and JSON are both
// accepted since JSON is valid YAML.
type Document struct {
	Sources []*Source `json:"sources"`
}

func Parse(data []byte) ([]*Source, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse source list: %w", err)
	}
	return doc.Sources, nil
}

func Marshal(sources []*Source) ([]byte, error) {
	return yaml.Marshal(Document{Sources: sources})
}

// Load reads and validates a source list file.
func Load(path string) (*List, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sources, err := Parse(buf)
	if err != nil {
		return nil, err
	}
	return NewList(sources...)
}

// Reload re-reads path into l. On error l is left unchanged.
func (l *List) Reload(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sources, err := Parse(buf)
	if err != nil {
		return err
	}
	return l.Replace(sources)
}

// Watch reloads l whenever path is written or replaced, until ctx is done.
// onReload, if set, is called after every attempt with its result.
// The directory is watched so editors that replace the file are seen.
func (l *List) Watch(ctx context.Context, path string, onReload func(error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch source list: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return fmt.Errorf("watch source list: %w", err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				err := l.Reload(abs)
				fields := logrus.Fields{
					"function": "Watch",
					"path":     abs,
					"sources":  l.Count(),
				}
				if err != nil {
					logrus.WithFields(fields).WithError(err).Warn("Source list reload failed, keeping previous list")
				} else {
					logrus.WithFields(fields).Info("Source list reloaded")
				}
				if onReload != nil {
					onReload(err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logrus.WithFields(logrus.Fields{
					"function": "Watch",
					"path":     abs,
				}).WithError(err).Warn("Source list watcher error")
			}
		}
	}()
	return nil
}
