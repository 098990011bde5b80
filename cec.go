package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/RobertMe/cec-rpc/hdmicec"
	"github.com/RobertMe/gocec"
	log "github.com/sirupsen/logrus"
)

const (
	opcodeReportPhysicalAddress gocec.Opcode = 0x84

	cecEventBuffer    = 128
	cecOutgoingBuffer = 32
)

var (
	ErrNoAdapter        = errors.New("no CEC adapter found")
	ErrNotInitialised   = errors.New("CEC library not initialised")
	ErrNotOpened        = errors.New("CEC adapter not opened")
	ErrConnectionClosed = errors.New("CEC connection closed")
	ErrSendQueueFull    = errors.New("CEC send queue full")
)

type StatusHandler func(logicalAddress uint32)

type cecConnection interface {
	FindAdapters() []gocec.Adapter
	Open(adapter gocec.Adapter) error
	GetAdapterAddress() (gocec.LogicalAddress, error)
	GetPhysicalAddress(address gocec.LogicalAddress) gocec.PhysicalAddress
}

// Cec drives libcec. Addresses are queried from the library; the traffic log is
// only used for incoming frames and as a hint that the adapter re-announced itself.
type Cec struct {
	config *CecConfig

	connection cecConnection
	transmit   func(message gocec.Message)
	adapter    gocec.Adapter
	opened     bool

	LibCecLoggingEnabled bool

	mux            sync.Mutex
	listener       hdmicec.FrameListener
	statusHandlers []StatusHandler

	events   chan func()
	outgoing chan gocec.Message
}

func NewCec(config *CecConfig) *Cec {
	cec := &Cec{
		config:   config,
		events:   make(chan func(), cecEventBuffer),
		outgoing: make(chan gocec.Message, cecOutgoingBuffer),
	}

	go cec.dispatch()
	go cec.send()

	return cec
}

func (cec *Cec) RegisterStatusHandler(handler StatusHandler) {
	cec.mux.Lock()
	defer cec.mux.Unlock()
	cec.statusHandlers = append(cec.statusHandlers, handler)
}

// Init creates the libcec connection. libcec stays loaded for the lifetime of
// the process, so a second Init after Term reuses it.
func (cec *Cec) Init() error {
	cec.mux.Lock()
	defer cec.mux.Unlock()

	if cec.connection != nil {
		return nil
	}

	config := gocec.NewConfiguration(cec.config.DeviceName, false)
	config.SetMonitorOnly(false)
	config.SetLogCallback(cec.handleLogMessage)

	connection, err := gocec.NewConnection(config)
	if err != nil {
		return err
	}

	cec.connection = connection
	cec.transmit = func(message gocec.Message) {
		connection.Transmit(message)
	}
	return nil
}

func (cec *Cec) Term() error {
	log.Debug("Keeping libcec loaded after terminate")
	return nil
}

func (cec *Cec) Open(listener hdmicec.FrameListener) error {
	cec.mux.Lock()
	defer cec.mux.Unlock()

	if cec.connection == nil {
		return ErrNotInitialised
	}

	if !cec.opened {
		adapter, err := cec.findAdapter()
		if err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"adapter": adapter.Path,
		}).Info("Opening CEC adapter")

		if err := cec.connection.Open(adapter); err != nil {
			return fmt.Errorf("opening adapter %s: %w", adapter.Path, err)
		}
		cec.adapter = adapter
		cec.opened = true
	}

	cec.listener = listener
	return nil
}

func (cec *Cec) findAdapter() (gocec.Adapter, error) {
	var adapter gocec.Adapter

	adapters := cec.connection.FindAdapters()
	if len(adapters) == 0 {
		return adapter, ErrNoAdapter
	}

	if len(cec.config.Adapter) == 0 {
		return adapters[0], nil
	}

	for _, adapter = range adapters {
		if adapter.Path == cec.config.Adapter {
			return adapter, nil
		}
	}

	return adapter, ErrNoAdapter
}

// Close stops frame delivery and transmission. The adapter itself stays open.
func (cec *Cec) Close() error {
	cec.mux.Lock()
	defer cec.mux.Unlock()

	cec.listener = nil
	return nil
}

func (cec *Cec) adapterAddress() (gocec.LogicalAddress, error) {
	if !cec.opened {
		return 0, ErrNotOpened
	}
	return cec.connection.GetAdapterAddress()
}

// PhysicalAddress returns the address a.b.c.d packed one nibble per byte.
func (cec *Cec) PhysicalAddress() (uint32, error) {
	cec.mux.Lock()
	defer cec.mux.Unlock()

	address, err := cec.adapterAddress()
	if err != nil {
		return 0, err
	}

	return unpackPhysicalAddress(cec.connection.GetPhysicalAddress(address)), nil
}

func (cec *Cec) LogicalAddress(deviceType hdmicec.DeviceType) (uint32, error) {
	cec.mux.Lock()
	defer cec.mux.Unlock()

	address, err := cec.adapterAddress()
	if err != nil {
		return 0, err
	}

	logicalAddress := uint32(address)
	if hdmicec.DeviceTypeOf(logicalAddress) != deviceType {
		log.WithFields(log.Fields{
			"requested": deviceType.String(),
			"allocated": hdmicec.DeviceTypeOf(logicalAddress).String(),
		}).Debug("Adapter allocated a different device type")
	}

	return logicalAddress, nil
}

// SendAsync queues the frame. Frames are transmitted one at a time in the order
// they were queued.
func (cec *Cec) SendAsync(frame []byte) error {
	cec.mux.Lock()
	defer cec.mux.Unlock()

	if cec.listener == nil {
		return ErrConnectionClosed
	}

	message := make(gocec.Message, len(frame))
	copy(message, frame)

	select {
	case cec.outgoing <- message:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (cec *Cec) send() {
	for message := range cec.outgoing {
		cec.mux.Lock()
		transmit := cec.transmit
		cec.mux.Unlock()

		if transmit != nil {
			transmit(message)
		}
	}
}

func (cec *Cec) handleLogMessage(logMessage *gocec.LogMessage) {
	if logMessage.Level != gocec.LogLevelTraffic {
		if cec.LibCecLoggingEnabled {
			log.WithFields(log.Fields{
				"message": logMessage.Message,
			}).Debug("libcec")
		}
		return
	}

	var incoming bool
	switch {
	case strings.HasPrefix(logMessage.Message, ">> "):
		incoming = true
	case strings.HasPrefix(logMessage.Message, "<< "):
		incoming = false
	default:
		return
	}

	message, err := gocec.ParseMessage(logMessage.Message[3:])
	if err != nil || len(message) == 0 {
		log.WithFields(log.Fields{
			"message": logMessage.Message,
			"error":   err,
		}).Trace("Unable to parse CEC traffic")
		return
	}

	if incoming {
		cec.queue(func() {
			cec.deliver(message)
		})
		return
	}

	if len(message) >= 4 && message.Opcode() == opcodeReportPhysicalAddress {
		cec.queue(cec.addressesAnnounced)
	}
}

func (cec *Cec) queue(event func()) {
	select {
	case cec.events <- event:
	default:
		log.Warn("CEC event queue full, dropping event")
	}
}

func (cec *Cec) dispatch() {
	for event := range cec.events {
		event()
	}
}

func (cec *Cec) deliver(message gocec.Message) {
	cec.mux.Lock()
	listener := cec.listener
	cec.mux.Unlock()

	if listener != nil {
		listener([]byte(message))
	}
}

// addressesAnnounced runs after a Report Physical Address went out. The frame
// content is not trusted, the library is asked for the allocated address.
func (cec *Cec) addressesAnnounced() {
	cec.mux.Lock()
	address, err := cec.adapterAddress()
	handlers := make([]StatusHandler, len(cec.statusHandlers))
	copy(handlers, cec.statusHandlers)
	cec.mux.Unlock()

	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Debug("Unable to query adapter address")
		return
	}

	for _, handler := range handlers {
		handler(uint32(address))
	}
}

func unpackPhysicalAddress(address gocec.PhysicalAddress) uint32 {
	return uint32(address[0]>>4)<<24 |
		uint32(address[0]&0x0F)<<16 |
		uint32(address[1]>>4)<<8 |
		uint32(address[1]&0x0F)
}
