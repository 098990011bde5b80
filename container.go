package main

import (
	log "github.com/sirupsen/logrus"
	"sync"
)

type Container struct {
	mux      sync.RWMutex
	services map[string]interface{}
}

func NewContainer() *Container {
	return &Container{
		services: make(map[string]interface{}),
	}
}

func (container *Container) Register(name string, service interface{}) {
	log.WithFields(log.Fields{
		"name": name,
	}).Trace("Registering service")

	container.mux.Lock()
	defer container.mux.Unlock()
	container.services[name] = service
}

// Lookup returns the service and whether it is registered. Optional services,
// such as the MQTT connection, are only registered when configured.
func (container *Container) Lookup(name string) (interface{}, bool) {
	container.mux.RLock()
	defer container.mux.RUnlock()
	service, ok := container.services[name]
	return service, ok
}

func (container *Container) Get(name string) interface{} {
	service, ok := container.Lookup(name)
	if !ok {
		log.WithFields(log.Fields{
			"name": name,
		}).Debug("Service not available in container")

		return nil
	}

	return service
}
