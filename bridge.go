package main

import (
	"github.com/RobertMe/cec-rpc/hdmicec"
	"github.com/RobertMe/cec-rpc/jsonrpc"
	"github.com/RobertMe/cec-rpc/messages"
	log "github.com/sirupsen/logrus"
)

func init() {
	RegisterInitializer(0, InitBridge)
}

// Bridge forwards the service notifications to the JSON-RPC clients and, when
// configured, mirrors them on MQTT.
type Bridge struct {
	service *hdmicec.Service
	rpc     *jsonrpc.Server
	mqtt    *Mqtt

	done chan struct{}
}

func InitBridge(container *Container) {
	bridge := &Bridge{
		service: container.Get("service").(*hdmicec.Service),
		rpc:     container.Get("rpc").(*jsonrpc.Server),
		done:    make(chan struct{}),
	}

	if mqtt, ok := container.Lookup("mqtt"); ok {
		bridge.mqtt = mqtt.(*Mqtt)
	}

	go bridge.handleMessages()

	container.Register("bridge", bridge)
}

func (bridge *Bridge) Stop() {
	close(bridge.done)
}

func (bridge *Bridge) handleMessages() {
	for {
		select {
		case message := <-bridge.service.Messages:
			bridge.forward(message)
		case <-bridge.done:
			return
		}
	}
}

func (bridge *Bridge) forward(message messages.Notification) {
	log.WithFields(log.Fields{
		"event":  message.Event(),
		"params": message.Value(),
	}).Debug("Sending notification")

	bridge.rpc.Notify(message.Event(), message.Params())

	if bridge.mqtt != nil {
		bridge.mqtt.Publish(message.MqttPath(), 0, false, message.Value())
	}
}
