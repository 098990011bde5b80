package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/RobertMe/cec-rpc/hdmicec"
	"github.com/RobertMe/cec-rpc/messages"
	log "github.com/sirupsen/logrus"
)

func init() {
	RegisterInitializer(100, InitHomeAssistantBridge)
}

const (
	propertyEnabled = "enabled"
	propertyHotPlug = "hotplug"
)

type HomeAssistantBridge struct {
	discoveryPrefix string
	nodeId          string
	mqtt            *Mqtt
	config          *Config
	service         *hdmicec.Service
}

func InitHomeAssistantBridge(container *Container) {
	config := container.Get("config").(*Config)
	if !config.HomeAssistant.Enable {
		log.Info("Home assistant integration is not enabled, skipping")
		return
	}

	mqtt, ok := container.Lookup("mqtt")
	if !ok {
		log.Warn("Home assistant integration requires MQTT, skipping")
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "stb"
	}

	bridge := &HomeAssistantBridge{
		discoveryPrefix: config.HomeAssistant.DiscoveryPrefix,
		nodeId:          strings.ReplaceAll(hostname, ".", "_"),
		mqtt:            mqtt.(*Mqtt),
		config:          config,
		service:         container.Get("service").(*hdmicec.Service),
	}

	bridge.RegisterSwitch(propertyEnabled)
	bridge.RegisterBinarySensor(propertyHotPlug, (&messages.HotPlug{Connected: true}).Value(), (&messages.HotPlug{}).Value())

	commandTopic := bridge.mqtt.BuildTopic(propertyEnabled + "/set")
	if err := bridge.mqtt.Subscribe(commandTopic, bridge.handleEnabledCommand); err != nil {
		log.WithFields(log.Fields{
			"topic": commandTopic,
			"error": err,
		}).Error("Failed to subscribe to Home Assistant command topic")
	}

	bridge.service.RegisterEnabledHandler(bridge.publishEnabled)
	bridge.publishEnabled(bridge.service.Enabled())

	container.Register("home-assistant", bridge)
}

func (bridge *HomeAssistantBridge) handleEnabledCommand(topic string, payload string) {
	var enabled bool
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		log.WithFields(log.Fields{
			"topic":   topic,
			"payload": payload,
		}).Warn("Unknown Home Assistant command")
		return
	}

	if err := bridge.service.SetEnabled(enabled); err != nil {
		log.WithFields(log.Fields{
			"enabled": enabled,
			"error":   err,
		}).Error("Failed to apply Home Assistant command")
	}
}

func (bridge *HomeAssistantBridge) publishEnabled(enabled bool) {
	value := "off"
	if enabled {
		value = "on"
	}
	bridge.mqtt.Publish(propertyEnabled, 0, true, value)
}

func (bridge *HomeAssistantBridge) RegisterSwitch(property string) {
	topic := strings.Builder{}
	fmt.Fprintf(&topic, "%s/switch/%s/%s/config", bridge.discoveryPrefix, bridge.nodeId, property)

	config := bridge.createConfig(property)
	config["command_topic"] = bridge.mqtt.BuildTopic(property + "/set")
	config["payload_on"] = "on"
	config["payload_off"] = "off"

	bridge.publishConfig(topic.String(), property, config)
}

func (bridge *HomeAssistantBridge) RegisterBinarySensor(property string, payloadOn string, payloadOff string) {
	topic := strings.Builder{}
	fmt.Fprintf(&topic, "%s/binary_sensor/%s/%s/config", bridge.discoveryPrefix, bridge.nodeId, property)

	config := bridge.createConfig(property)
	config["payload_on"] = payloadOn
	config["payload_off"] = payloadOff
	config["device_class"] = "connectivity"

	bridge.publishConfig(topic.String(), property, config)
}

func (bridge *HomeAssistantBridge) publishConfig(topic string, property string, config map[string]interface{}) {
	encoded, err := json.Marshal(config)
	if err != nil {
		log.WithFields(log.Fields{
			"property": property,
			"config":   config,
			"error":    err,
		}).Error("Failed to convert Home Assistant configuration to JSON")

		return
	}

	log.WithFields(log.Fields{
		"property": property,
		"config":   string(encoded),
	}).Info("Registering entity in Home Assistant")

	bridge.mqtt.PublishAbsolute(topic, 0, true, encoded)
}

func (bridge *HomeAssistantBridge) createConfig(property string) map[string]interface{} {
	config := map[string]interface{}{
		"state_topic": bridge.mqtt.BuildTopic(property),
		"name":        "HDMI-CEC " + property,
		"unique_id":   bridge.nodeId + "_hdmicec_" + property,
	}

	if bridge.config.Mqtt.StateTopic != "" {
		config["availability_topic"] = bridge.config.Mqtt.StateTopic
	}

	config["device"] = map[string]interface{}{
		"identifiers": []string{"hdmicec_" + bridge.nodeId},
		"name":        bridge.config.Cec.DeviceName,
		"sw_version":  "cec-rpc " + BuildVersion,
	}

	return config
}
