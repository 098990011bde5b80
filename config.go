package main

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/RobertMe/cec-rpc/hdmicec"
	"github.com/RobertMe/cec-rpc/hotplug"
	"gopkg.in/yaml.v3"
)

type RpcConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

type CecConfig struct {
	Adapter      string `yaml:"adapter"`
	DeviceName   string `yaml:"device_name"`
	SettingsFile string `yaml:"settings_file"`
}

type HotplugConfig struct {
	Enable        bool          `yaml:"enable"`
	Pattern       string        `yaml:"pattern"`
	LongInterval  time.Duration `yaml:"long_interval"`
	ShortInterval time.Duration `yaml:"short_interval"`
	ShortDuration time.Duration `yaml:"short_duration"`
}

type MqttConfig struct {
	Host         string `yaml:"host"`
	Username     string
	Password     string
	StateTopic   string `yaml:"state_topic"`
	BirthMessage string `yaml:"birth_message"`
	WillMessage  string `yaml:"will_message"`
	BaseTopic    string `yaml:"base_topic"`
	BusTopic     string `yaml:"bus_topic"`
}

type HomeAssistantConfig struct {
	Enable          bool   `yaml:"enable"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

type Config struct {
	Rpc           RpcConfig
	Cec           CecConfig
	Hotplug       HotplugConfig
	Mqtt          MqttConfig
	HomeAssistant HomeAssistantConfig `yaml:"home_assistant"`
}

func defaultConfig() Config {
	return Config{
		Rpc: RpcConfig{
			Listen: ":9998",
			Path:   "/jsonrpc",
		},
		Cec: CecConfig{
			DeviceName:   "STB",
			SettingsFile: hdmicec.DefaultSettingsFile,
		},
		Hotplug: HotplugConfig{
			Enable:        true,
			Pattern:       hotplug.DefaultPattern,
			LongInterval:  5 * time.Second,
			ShortInterval: 500 * time.Millisecond,
			ShortDuration: 30 * time.Second,
		},
		Mqtt: MqttConfig{
			BaseTopic: "hdmicec",
		},
	}
}

// ParseConfig reads config.yaml from configPath. A missing file yields the defaults.
func ParseConfig(configPath string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(configPath + "config.yaml")
	if errors.Is(err, fs.ErrNotExist) {
		return &config, nil
	}
	if nil != err {
		return nil, err
	}

	err = yaml.Unmarshal(data, &config)

	if err != nil {
		return nil, err
	}

	if config.HomeAssistant.Enable && config.HomeAssistant.DiscoveryPrefix == "" {
		config.HomeAssistant.DiscoveryPrefix = "homeassistant"
	} else {
		config.HomeAssistant.DiscoveryPrefix = strings.Trim(config.HomeAssistant.DiscoveryPrefix, "/")
	}

	defaults := defaultConfig()
	if config.Hotplug.LongInterval <= 0 {
		config.Hotplug.LongInterval = defaults.Hotplug.LongInterval
	}
	if config.Hotplug.ShortInterval <= 0 {
		config.Hotplug.ShortInterval = defaults.Hotplug.ShortInterval
	}
	if config.Hotplug.ShortDuration <= 0 {
		config.Hotplug.ShortDuration = defaults.Hotplug.ShortDuration
	}

	config.Mqtt.BaseTopic = strings.Trim(config.Mqtt.BaseTopic, "/")
	config.Mqtt.BusTopic = strings.Trim(config.Mqtt.BusTopic, "/")

	return &config, nil
}

func (config *Config) Save(configPath string) error {
	data, err := yaml.Marshal(config)

	if err != nil {
		return err
	}

	if err := os.MkdirAll(configPath, 0755); err != nil {
		return err
	}

	return os.WriteFile(configPath+"config.yaml", data, 0644)
}

// ListenAddress returns the override when set, the configured address otherwise.
// The override is never stored so Save keeps the configured value.
func (config *Config) ListenAddress(override string) string {
	if override != "" {
		return override
	}

	return config.Rpc.Listen
}
