package main

import (
	"github.com/RobertMe/cec-rpc/hdmicec"
	"github.com/RobertMe/cec-rpc/hotplug"
	log "github.com/sirupsen/logrus"
)

func init() {
	RegisterInitializer(60, InitHotplugWatcher)
}

func InitHotplugWatcher(container *Container) {
	config := container.Get("config").(*Config)
	if !config.Hotplug.Enable {
		log.Info("HDMI connector watcher is not enabled, skipping")
		return
	}

	handler := container.Get("service").(hdmicec.EventHandler)
	watcher := hotplug.NewWatcher(config.Hotplug.Pattern, handler.HotPlug)
	watcher.Start(config.Hotplug.LongInterval, config.Hotplug.ShortInterval, config.Hotplug.ShortDuration)

	container.Register("hotplug", watcher)
}
