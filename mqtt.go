package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const mqttTimeout = 10 * time.Second

type MessageHandler func(topic string, payload string)

type mqttClient = mqtt.Client
type mqttMessage = mqtt.Message

type Mqtt struct {
	client mqtt.Client
	config *MqttConfig
}

func ConnectMqtt(config *Config) (*Mqtt, error) {
	mqttConfig := config.Mqtt
	options := mqtt.NewClientOptions()

	options.AddBroker(mqttConfig.Host)
	options.SetAutoReconnect(true)

	if mqttConfig.Username != "" {
		options.SetUsername(mqttConfig.Username)
	}

	if mqttConfig.Password != "" {
		options.SetPassword(mqttConfig.Password)
	}

	if mqttConfig.StateTopic != "" {
		if mqttConfig.WillMessage != "" {
			options.SetWill(mqttConfig.StateTopic, mqttConfig.WillMessage, 0, true)
		}

		if mqttConfig.BirthMessage != "" {
			options.SetOnConnectHandler(func(client mqtt.Client) {
				client.Publish(mqttConfig.StateTopic, 0, true, mqttConfig.BirthMessage)
			})
		}
	}

	client := mqtt.NewClient(options)

	connToken := client.Connect()

	if !connToken.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("timed out connecting to %s", mqttConfig.Host)
	}
	if err := connToken.Error(); err != nil {
		return nil, err
	}

	return &Mqtt{
		client: client,
		config: &mqttConfig,
	}, nil
}

func (mqtt *Mqtt) BuildTopic(relativeTopic string) string {
	if mqtt.config.BaseTopic == "" {
		return relativeTopic
	}

	topic := strings.Builder{}
	fmt.Fprintf(&topic, "%s/%s", mqtt.config.BaseTopic, relativeTopic)
	return topic.String()
}

func (mqtt *Mqtt) Publish(relativeTopic string, qos byte, retained bool, payload interface{}) {
	mqtt.PublishAbsolute(mqtt.BuildTopic(relativeTopic), qos, retained, payload)
}

func (mqtt *Mqtt) PublishAbsolute(topic string, qos byte, retained bool, payload interface{}) {
	token := mqtt.client.Publish(topic, qos, retained, payload)
	go func() {
		if token.WaitTimeout(mqttTimeout) && token.Error() != nil {
			log.WithFields(log.Fields{
				"topic": topic,
				"error": token.Error(),
			}).Warn("Failed to publish MQTT message")
		}
	}()
}

func (mqtt *Mqtt) Subscribe(topic string, handler MessageHandler) error {
	token := mqtt.client.Subscribe(topic, 0, func(client mqttClient, message mqttMessage) {
		handler(message.Topic(), string(message.Payload()))
	})

	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("timed out subscribing to %s", topic)
	}
	return token.Error()
}

func (mqtt *Mqtt) Disconnect() {
	mqtt.client.Disconnect(250)
}
