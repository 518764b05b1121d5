// Package reload implements the "Reloading TLS"/"Reloading
// mTLS" certificate-reloader collaborator: it watches a certificate/key
// path pair for changes via github.com/fsnotify/fsnotify, and otherwise
// re-reads them on a fixed interval, retrying a failed read with
// github.com/cenkalti/backoff/v4 rather than giving up on a transient
// read error.
package reload

import (
	"crypto/tls"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
)

// Logger is structurally compatible with httpcore.Logger.
type Logger interface {
	Debugw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

// Watcher holds the currently active certificate and keeps it refreshed.
type Watcher struct {
	certPath, keyPath string
	interval          time.Duration
	logger            Logger

	current atomic.Pointer[tls.Certificate]
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// New loads the initial certificate and starts the background refresh
// loop. refreshIntervalSeconds <= 0 defaults to 30, matching the
// httpServer.transportSecurity.refreshInterval default.
func New(certPath, keyPath string, refreshIntervalSeconds int, logger Logger) (*Watcher, error) {
	if refreshIntervalSeconds <= 0 {
		refreshIntervalSeconds = 30
	}

	w := &Watcher{
		certPath: certPath,
		keyPath:  keyPath,
		interval: time.Duration(refreshIntervalSeconds) * time.Second,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	if err := w.reload(); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	_ = fw.Add(certPath)
	_ = fw.Add(keyPath)
	w.watcher = fw

	go w.loop()
	return w, nil
}

// Certificate returns the currently active certificate. Safe for
// concurrent use from tls.Config.GetCertificate callbacks.
func (w *Watcher) Certificate() *tls.Certificate {
	return w.current.Load()
}

// Stop halts the refresh loop and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func (w *Watcher) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.reloadWithRetry()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.reloadWithRetry()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Errorw("transport/reload: watch error",
					"cert_path", w.certPath, "error", err)
			}
		}
	}
}

func (w *Watcher) reloadWithRetry() {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = w.interval
	err := backoff.Retry(w.reload, b)
	if w.logger == nil {
		return
	}
	if err != nil {
		w.logger.Errorw("transport/reload: giving up reloading certificate",
			"cert_path", w.certPath, "error", err)
		return
	}
	w.logger.Debugw("transport/reload: certificate reloaded", "cert_path", w.certPath)
}

func (w *Watcher) reload() error {
	cert, err := tls.LoadX509KeyPair(w.certPath, w.keyPath)
	if err != nil {
		return err
	}
	w.current.Store(&cert)
	return nil
}
