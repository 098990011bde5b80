package main

import (
	"strconv"
	"strings"

	"github.com/RobertMe/cec-rpc/hdmicec"
	"github.com/RobertMe/cec-rpc/hotplug"
	log "github.com/sirupsen/logrus"
)

func init() {
	RegisterInitializer(50, InitEventBus)
}

const (
	busTopicHotPlug = "hotplug"
	busTopicDaemon  = "daemon"
	busTopicStatus  = "status"
)

// EventBus relays the events the CEC and display daemons publish on MQTT.
type EventBus struct {
	topic   string
	handler hdmicec.EventHandler
	watcher *hotplug.Watcher
}

func InitEventBus(container *Container) {
	config := container.Get("config").(*Config)
	if config.Mqtt.BusTopic == "" {
		log.Info("MQTT event bus is not configured, skipping")
		return
	}

	mqtt, ok := container.Lookup("mqtt")
	if !ok {
		log.Warn("MQTT event bus configured without an MQTT broker, skipping")
		return
	}

	bus := &EventBus{
		topic:   config.Mqtt.BusTopic,
		handler: container.Get("service").(hdmicec.EventHandler),
	}

	if watcher, ok := container.Lookup("hotplug"); ok {
		bus.watcher = watcher.(*hotplug.Watcher)
	}

	topic := bus.topic + "/#"
	if err := mqtt.(*Mqtt).Subscribe(topic, bus.handleMessage); err != nil {
		log.WithFields(log.Fields{
			"topic": topic,
			"error": err,
		}).Error("Failed to subscribe to MQTT event bus")
		return
	}

	log.WithFields(log.Fields{
		"topic": topic,
	}).Info("Listening to MQTT event bus")

	container.Register("event-bus", bus)
}

func (bus *EventBus) handleMessage(topic string, payload string) {
	event := strings.TrimPrefix(topic, bus.topic+"/")

	fields := log.Fields{
		"topic":   topic,
		"payload": payload,
	}

	switch event {
	case busTopicHotPlug:
		connected, err := hotplug.ParseStatus(payload)
		if err != nil {
			fields["error"] = err
			log.WithFields(fields).Warn("Invalid hot plug event")
			return
		}
		bus.handler.HotPlug(connected)
		if bus.watcher != nil {
			go bus.watcher.Trigger()
		}
	case busTopicDaemon:
		if strings.TrimSpace(payload) != "initialized" {
			log.WithFields(fields).Debug("Ignoring daemon event")
			return
		}
		bus.handler.DaemonInitialized()
	case busTopicStatus:
		address, err := strconv.ParseUint(strings.TrimSpace(payload), 10, 8)
		if err != nil || address > 15 {
			fields["error"] = err
			log.WithFields(fields).Warn("Invalid CEC status event")
			return
		}
		bus.handler.StatusUpdated(uint32(address))
	default:
		log.WithFields(fields).Trace("Ignoring event bus message")
	}
}
