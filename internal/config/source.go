package config

import (
	"errors"
	"io/fs"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/ralt/pkgfeed/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Source hands out the policy snapshot for one ingestion attempt
type Source interface {
	Snapshot() models.Snapshot
}

// Static always returns the same snapshot
type Static models.Snapshot

// Snapshot implements Source
func (s Static) Snapshot() models.Snapshot {
	return models.Snapshot(s)
}

// Live serves the latest valid snapshot of a viper configuration
type Live struct {
	v       *viper.Viper
	current atomic.Pointer[models.Snapshot]
}

// NewLive creates a Live source from the current state of v
func NewLive(v *viper.Viper) (*Live, error) {
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}
	snapshot, err := cfg.Snapshot()
	if err != nil {
		return nil, err
	}

	l := &Live{v: v}
	l.current.Store(&snapshot)
	return l, nil
}

// Snapshot implements Source
func (l *Live) Snapshot() models.Snapshot {
	return *l.current.Load()
}

// Reload re-reads the config file. An invalid file leaves the current
// snapshot in place.
func (l *Live) Reload() error {
	if err := l.v.ReadInConfig(); err != nil {
		return configError(err)
	}
	cfg, err := Decode(l.v)
	if err != nil {
		return err
	}
	snapshot, err := cfg.Snapshot()
	if err != nil {
		return err
	}

	l.current.Store(&snapshot)
	logrus.WithFields(logrus.Fields{
		"overwrite": snapshot.Overwrite,
		"retention": snapshot.Retention.Enabled(),
	}).Info("Reloaded ingestion policy")
	return nil
}

// Watch reloads the snapshot whenever the config file changes
func (l *Live) Watch() {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		logrus.Debugf("Config file %s changed (%s)", e.Name, e.Op)
		if err := l.Reload(); err != nil {
			logrus.Warnf("Ignoring invalid config change: %v", err)
		}
	})
	l.v.WatchConfig()
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
