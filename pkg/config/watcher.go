package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/platinummonkey/auditable/pkg/audit"
	"github.com/sirupsen/logrus"
)

// PolicySink receives reloaded policies. *audit.Registry implements it.
type PolicySink interface {
	ConfigureAll(policies map[string]audit.Policy)
}

// PolicyWatcher reloads a policy file into a sink whenever it is written or
// replaced. A file that fails to parse is logged and the previous policies
// stay in effect.
type PolicyWatcher struct {
	path    string
	sink    PolicySink
	log     logrus.FieldLogger
	watcher *fsnotify.Watcher
}

// NewPolicyWatcher watches the directory holding path, so editors that
// replace the file by rename are seen too.
func NewPolicyWatcher(path string, sink PolicySink, log logrus.FieldLogger) (*PolicyWatcher, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve policy file path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch policy directory: %w", err)
	}

	return &PolicyWatcher{
		path:    abs,
		sink:    sink,
		log:     log.WithField("policy_file", abs),
		watcher: watcher,
	}, nil
}

// Reload loads the file and hands the policies to the sink
func (w *PolicyWatcher) Reload() error {
	policies, err := LoadPolicies(w.path)
	if err != nil {
		return err
	}
	w.sink.ConfigureAll(policies)
	w.log.WithField("entity_types", len(policies)).Info("audit policies loaded")
	return nil
}

// Run processes file events until ctx is done, then closes the watcher
func (w *PolicyWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.Reload(); err != nil {
				w.log.WithError(err).Error("policy reload failed; keeping previous policies")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("policy watcher error")
		}
	}
}
