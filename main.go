package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/RobertMe/cec-rpc/hdmicec"
	"github.com/RobertMe/cec-rpc/hotplug"
	"github.com/RobertMe/cec-rpc/jsonrpc"
	"github.com/RobertMe/cec-rpc/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const (
	BuildVersion = "0.0.1"
)

type Initializer func(container *Container)

var initializers = make(map[int][]Initializer, 0)

func RegisterInitializer(priority int, initializer Initializer) {
	initializers[priority] = append(initializers[priority], initializer)
}

func runInitializers(container *Container) {
	priorities := make([]int, 0, len(initializers))
	for priority := range initializers {
		priorities = append(priorities, priority)
	}

	sort.Ints(priorities)
	for i := len(priorities) - 1; i >= 0; i-- {
		for _, initializer := range initializers[priorities[i]] {
			initializer(container)
		}
	}
}

func setLogLevel(logLevel string) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func main() {

	var dataDir string
	flag.StringVar(&dataDir, "data-dir", "/data/cec-rpc/", "Sets the directory where the data, including config, files are stored")

	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Sets the log level. Options are panic, fatal, error, warning, info, debug, trace")

	var logCecMessages bool
	flag.BoolVar(&logCecMessages, "log-cec-messages", false, "Enables logging of the libcec log")

	var listen string
	flag.StringVar(&listen, "listen", "", "Overrides the address the JSON-RPC server listens on")

	flag.Parse()

	setLogLevel(logLevel)

	log.WithField("version", BuildVersion).Info("Starting cec-rpc")

	dataDir = strings.TrimRight(dataDir, "/") + "/"

	container := NewContainer()

	config, err := ParseConfig(dataDir)

	if nil != err {
		log.WithFields(log.Fields{
			"error": err,
		}).Fatal("Error reading configuration")
	}

	listenAddress := config.ListenAddress(listen)

	container.Register("config", config)

	if config.Mqtt.Host != "" {
		mqtt, err := ConnectMqtt(config)

		if nil != err {
			log.WithFields(log.Fields{
				"host":  config.Mqtt.Host,
				"error": err,
			}).Fatal("Failed to connect to MQTT broker")
		}

		container.Register("mqtt", mqtt)
	}

	cec := NewCec(&config.Cec)
	cec.LibCecLoggingEnabled = logCecMessages
	cec.RegisterStatusHandler(func(logicalAddress uint32) {
		if service, ok := container.Lookup("service"); ok {
			service.(*hdmicec.Service).StatusUpdated(logicalAddress)
		}
	})
	container.Register("cec", cec)

	service := hdmicec.NewService(cec, hdmicec.NewSettings(config.Cec.SettingsFile))
	container.Register("service", service)

	rpc := jsonrpc.NewServer(hdmicec.Callsign, hdmicec.Version)
	service.RegisterMethods(rpc)
	container.Register("rpc", rpc)

	runInitializers(container)

	observability.RegisterMetrics()

	mux := http.NewServeMux()
	mux.Handle(config.Rpc.Path, rpc)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    listenAddress,
		Handler: mux,
	}

	go func() {
		log.WithFields(log.Fields{
			"listen": listenAddress,
			"path":   config.Rpc.Path,
		}).Info("JSON-RPC server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithFields(log.Fields{
				"error": err,
			}).Fatal("JSON-RPC server failed")
		}
	}()

	signals := make(chan os.Signal, 1)
	done := make(chan bool, 1)

	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signals
		done <- true
	}()

	log.Info("cec-rpc started")
	<-done
	log.Info("Exiting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rpc.Close()
	if err := server.Shutdown(ctx); err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Warn("Failed to shut down JSON-RPC server")
	}

	if watcher, ok := container.Lookup("hotplug"); ok {
		watcher.(*hotplug.Watcher).Stop()
	}

	service.Shutdown()

	if bridge, ok := container.Lookup("bridge"); ok {
		bridge.(*Bridge).Stop()
	}

	if mqtt, ok := container.Lookup("mqtt"); ok {
		mqtt.(*Mqtt).Disconnect()
	}

	if err := config.Save(dataDir); err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Warn("Failed to save configuration")
	}
}
