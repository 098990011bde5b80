// Package hotplug watches the kernel DRM connector status files of the HDMI
// outputs and reports connection changes.
package hotplug

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultPattern = "/sys/class/drm/card*-HDMI-A-*/status"

type Handler func(connected bool)

type Watcher struct {
	pattern string
	handler Handler

	mux       sync.Mutex
	known     bool
	connected bool

	monitor *Monitor
}

func NewWatcher(pattern string, handler Handler) *Watcher {
	if pattern == "" {
		pattern = DefaultPattern
	}

	return &Watcher{
		pattern: pattern,
		handler: handler,
	}
}

func (watcher *Watcher) Start(longInterval time.Duration, shortInterval time.Duration, shortDuration time.Duration) {
	log.WithFields(log.Fields{
		"pattern": watcher.pattern,
	}).Info("Watching HDMI connector status")

	monitor := CreateMonitor(func() {}, watcher.Poll, longInterval, shortInterval, shortDuration)

	watcher.mux.Lock()
	watcher.monitor = monitor
	watcher.mux.Unlock()
}

// Trigger switches back to polling at the short interval.
func (watcher *Watcher) Trigger() {
	watcher.mux.Lock()
	monitor := watcher.monitor
	watcher.mux.Unlock()

	if monitor != nil {
		monitor.Reset()
	}
}

func (watcher *Watcher) Stop() {
	watcher.mux.Lock()
	monitor := watcher.monitor
	watcher.mux.Unlock()

	if monitor != nil {
		monitor.Stop()
	}
}

// Poll reads the connector status and calls the handler when it differs from the
// previous poll. The first successful poll always reports. A change switches the
// monitor back to the short interval to catch connectors that bounce.
func (watcher *Watcher) Poll() {
	connected, ok := watcher.read()
	if !ok {
		return
	}

	watcher.mux.Lock()
	changed := !watcher.known || watcher.connected != connected
	watcher.known = true
	watcher.connected = connected
	watcher.mux.Unlock()

	if changed {
		watcher.handler(connected)
		go watcher.Trigger()
	}
}

func (watcher *Watcher) read() (bool, bool) {
	paths, err := filepath.Glob(watcher.pattern)
	if err != nil {
		log.WithFields(log.Fields{
			"pattern": watcher.pattern,
			"error":   err,
		}).Error("Invalid HDMI connector pattern")
		return false, false
	}

	if len(paths) == 0 {
		log.WithFields(log.Fields{
			"pattern": watcher.pattern,
		}).Trace("No HDMI connectors found")
		return false, false
	}

	read := false
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.WithFields(log.Fields{
				"file":  path,
				"error": err,
			}).Debug("Failed to read HDMI connector status")
			continue
		}

		read = true
		if strings.TrimSpace(string(data)) == "connected" {
			return true, true
		}
	}

	return false, read
}
