package hotplug

import (
	"sync"
	"time"
)

type Starter func()
type Runner func()

// Monitor calls runner every shortInterval for shortDuration after it starts or
// is reset, and every longInterval otherwise.
type Monitor struct {
	reset    chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	longInterval  time.Duration
	shortInterval time.Duration
	shortDuration time.Duration

	starter Starter
	runner  Runner
}

func CreateMonitor(starter Starter, runner Runner, longInterval time.Duration, shortInterval time.Duration, shortDuration time.Duration) *Monitor {
	monitor := &Monitor{
		reset:         make(chan struct{}),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		longInterval:  longInterval,
		shortInterval: shortInterval,
		shortDuration: shortDuration,
		starter:       starter,
		runner:        runner,
	}

	go monitor.run()

	return monitor
}

func (monitor *Monitor) Reset() {
	select {
	case monitor.reset <- struct{}{}:
	case <-monitor.done:
	}
}

func (monitor *Monitor) Stop() {
	monitor.stopOnce.Do(func() {
		close(monitor.stop)
	})
	<-monitor.done
}

func (monitor *Monitor) run() {
	defer close(monitor.done)

	monitor.starter()
	monitor.runner()

	ticker := time.NewTicker(monitor.shortInterval)
	shortTimer := time.NewTimer(monitor.shortDuration)
	defer func() {
		ticker.Stop()
		shortTimer.Stop()
	}()

	for {
		select {
		case <-ticker.C:
			monitor.runner()
		case <-monitor.reset:
			ticker.Stop()
			shortTimer.Stop()

			monitor.starter()
			monitor.runner()

			ticker = time.NewTicker(monitor.shortInterval)
			shortTimer = time.NewTimer(monitor.shortDuration)

		case <-shortTimer.C:
			ticker.Stop()

			ticker = time.NewTicker(monitor.longInterval)
		case <-monitor.stop:
			return
		}
	}
}
