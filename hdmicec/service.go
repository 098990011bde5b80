// Package hdmicec exposes the HDMI-CEC capability of the box: it keeps the enabled
// state and the cached CEC addresses, persists the enabled setting and turns frames
// and hardware events into notifications.
package hdmicec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/RobertMe/cec-rpc/messages"
	"github.com/RobertMe/cec-rpc/observability"
	log "github.com/sirupsen/logrus"
)

const (
	maxFrameLength = 16
	messageBuffer  = 64
)

var ErrInvalidFrame = errors.New("invalid CEC frame")

type FrameListener func(frame []byte)

type EnabledHandler func(enabled bool)

// EventHandler receives events from the hardware event bus.
type EventHandler interface {
	DaemonInitialized()
	StatusUpdated(logicalAddress uint32)
	HotPlug(connected bool)
}

// Driver is the CEC library the service calls into. Open must not invoke the
// listener synchronously.
type Driver interface {
	Init() error
	Term() error
	Open(listener FrameListener) error
	Close() error
	PhysicalAddress() (uint32, error)
	LogicalAddress(deviceType DeviceType) (uint32, error)
	SendAsync(frame []byte) error
}

type LogicalAddress struct {
	DeviceType     string `json:"deviceType"`
	LogicalAddress uint32 `json:"logicalAddress"`
}

type Addresses struct {
	PhysicalAddress  []uint32         `json:"physicalAddress"`
	LogicalAddresses []LogicalAddress `json:"logicalAddresses"`
}

type Service struct {
	driver   Driver
	settings *Settings

	Messages chan messages.Notification

	mux               sync.Mutex
	settingEnabled    bool
	enabled           bool
	libInit           int
	physicalAddress   uint32
	logicalAddress    uint32
	logicalDeviceType string
	devices           map[messages.Address]struct{}

	enabledHandlers []EnabledHandler
}

var _ EventHandler = (*Service)(nil)

// NewService restores the persisted setting: CEC is enabled when the setting says
// so, otherwise it is disabled and false is written back.
func NewService(driver Driver, settings *Settings) *Service {
	service := &Service{
		driver:            driver,
		settings:          settings,
		Messages:          make(chan messages.Notification, messageBuffer),
		physicalAddress:   DefaultPhysicalAddress,
		logicalAddress:    DefaultLogicalAddress,
		logicalDeviceType: DeviceTypeNone.String(),
		devices:           make(map[messages.Address]struct{}),
	}

	service.settingEnabled = settings.Load()

	log.WithFields(log.Fields{
		"file":    settings.Path(),
		"enabled": service.settingEnabled,
	}).Info("Loaded CEC settings")

	if service.settingEnabled {
		if err := service.SetEnabled(true); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Failed to enable CEC on startup")
		}
	} else {
		_ = service.SetEnabled(false)
		service.persist(false)
	}

	return service
}

// RegisterEnabledHandler adds a handler called whenever the connection is opened
// or closed. Handlers run with the service locked and must not call back into it.
func (service *Service) RegisterEnabledHandler(handler EnabledHandler) {
	service.mux.Lock()
	defer service.mux.Unlock()

	service.enabledHandlers = append(service.enabledHandlers, handler)
}

func (service *Service) SetEnabled(enabled bool) error {
	service.mux.Lock()
	defer service.mux.Unlock()

	log.WithFields(log.Fields{
		"enabled": enabled,
	}).Info("Setting CEC enabled")

	if service.settingEnabled != enabled {
		service.persist(enabled)
	}

	if enabled {
		return service.enable()
	}

	service.disable()
	return nil
}

func (service *Service) Enabled() bool {
	service.mux.Lock()
	defer service.mux.Unlock()

	return service.enabled
}

func (service *Service) Addresses() Addresses {
	service.mux.Lock()
	defer service.mux.Unlock()

	return Addresses{
		PhysicalAddress: physicalAddressBytes(service.physicalAddress),
		LogicalAddresses: []LogicalAddress{{
			DeviceType:     service.logicalDeviceType,
			LogicalAddress: service.logicalAddress,
		}},
	}
}

// SendMessage decodes a base64 frame and transmits it. While CEC is disabled the
// frame is dropped.
func (service *Service) SendMessage(message string) error {
	frame, err := decodeFrame(message)
	if err != nil {
		return err
	}

	service.mux.Lock()
	defer service.mux.Unlock()

	if !service.enabled {
		log.WithFields(log.Fields{
			"message": message,
		}).Warn("CEC is disabled, dropping frame")
		return nil
	}

	if err := service.driver.SendAsync(frame); err != nil {
		return fmt.Errorf("sending CEC frame: %w", err)
	}

	observability.RecordFrame(observability.DirectionOut)
	return nil
}

// Shutdown closes the CEC connection without touching the persisted setting.
func (service *Service) Shutdown() {
	service.mux.Lock()
	defer service.mux.Unlock()

	if service.enabled {
		service.disable()
	}
}

func (service *Service) DaemonInitialized() {
	service.mux.Lock()
	defer service.mux.Unlock()

	log.Info("CEC daemon initialized")

	if !service.enabled {
		return
	}

	service.disable()
	if err := service.enable(); err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Error("Failed to re-enable CEC after daemon restart")
	}
}

func (service *Service) StatusUpdated(logicalAddress uint32) {
	service.mux.Lock()
	defer service.mux.Unlock()

	log.WithFields(log.Fields{
		"logical_address": logicalAddress,
		"saved":           service.logicalAddress,
	}).Info("CEC status updated")

	service.refreshPhysicalAddress()
	service.updateLogicalAddress(logicalAddress)
}

func (service *Service) HotPlug(connected bool) {
	service.mux.Lock()
	defer service.mux.Unlock()

	log.WithFields(log.Fields{
		"connected": connected,
	}).Info("HDMI hot plug")

	service.emit(&messages.HotPlug{Connected: connected})

	if connected && service.enabled {
		service.refreshPhysicalAddress()
		service.refreshLogicalAddress()
	}
}

func (service *Service) enable() error {
	if service.enabled {
		log.Warn("CEC already enabled")
		return nil
	}

	if service.libInit == 0 {
		if err := service.driver.Init(); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Warn("Failed to initialize CEC library")
		}
	}
	service.libInit++

	if err := service.driver.Open(service.handleFrame); err != nil {
		service.releaseLibrary()
		return fmt.Errorf("opening CEC connection: %w", err)
	}

	service.refreshPhysicalAddress()
	service.refreshLogicalAddress()

	service.enabled = true
	service.enabledChanged()
	return nil
}

func (service *Service) disable() {
	if !service.enabled {
		log.Warn("CEC already disabled")
		return
	}

	if err := service.driver.Close(); err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Warn("Failed to close CEC connection")
	}
	service.enabled = false
	service.devices = make(map[messages.Address]struct{})
	service.enabledChanged()

	service.releaseLibrary()
}

func (service *Service) enabledChanged() {
	for _, handler := range service.enabledHandlers {
		handler(service.enabled)
	}
}

func (service *Service) releaseLibrary() {
	if service.libInit == 1 {
		if err := service.driver.Term(); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Warn("Failed to terminate CEC library")
		}
	}
	if service.libInit > 0 {
		service.libInit--
	}
}

func (service *Service) persist(enabled bool) {
	if err := service.settings.Persist(enabled); err != nil {
		log.WithFields(log.Fields{
			"file":  service.settings.Path(),
			"error": err,
		}).Error("Failed to persist CEC settings")
		return
	}
	service.settingEnabled = enabled
}

func (service *Service) refreshPhysicalAddress() {
	address, err := service.driver.PhysicalAddress()
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Warn("Failed to get physical address")
		return
	}

	log.WithFields(log.Fields{
		"physical_address": fmt.Sprintf("%x %x %x %x", (address>>24)&0xFF, (address>>16)&0xFF, (address>>8)&0xFF, address&0xFF),
	}).Debug("Got physical address")

	if address == service.physicalAddress {
		return
	}

	service.physicalAddress = address
	service.emit(&messages.AddressesChanged{
		Kind:            messages.PhysicalAddressChanged,
		PhysicalAddress: address,
	})
}

func (service *Service) refreshLogicalAddress() {
	address, err := service.driver.LogicalAddress(DeviceTypeTuner)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Warn("Failed to get logical address")
		return
	}

	service.updateLogicalAddress(address)
}

func (service *Service) updateLogicalAddress(address uint32) {
	deviceType := DeviceTypeOf(address).String()
	if address == service.logicalAddress && deviceType == service.logicalDeviceType {
		return
	}

	service.logicalAddress = address
	service.logicalDeviceType = deviceType
	service.emit(&messages.AddressesChanged{
		Kind:           messages.LogicalAddressChanged,
		LogicalAddress: address,
	})
}

func (service *Service) handleFrame(frame []byte) {
	if len(frame) == 0 {
		return
	}

	service.mux.Lock()
	defer service.mux.Unlock()

	if !service.enabled {
		return
	}

	observability.RecordFrame(observability.DirectionIn)

	source := messages.Address(frame[0] >> 4)
	service.emit(&messages.FrameReceived{
		Source:  source,
		Message: base64.StdEncoding.EncodeToString(frame),
	})

	if source == messages.AddressBroadcast {
		return
	}

	if _, ok := service.devices[source]; !ok {
		service.devices[source] = struct{}{}
		service.emit(&messages.DevicesChanged{Added: source})
	}
}

// emit never blocks; a stalled consumer loses notifications instead of holding
// the service lock.
func (service *Service) emit(notification messages.Notification) {
	select {
	case service.Messages <- notification:
		observability.RecordNotification(notification.Event())
	default:
		log.WithFields(log.Fields{
			"event": notification.Event(),
		}).Warn("Notification queue full, dropping notification")
	}
}

func decodeFrame(message string) ([]byte, error) {
	frame, err := base64.StdEncoding.DecodeString(message)
	if err != nil {
		frame, err = base64.RawStdEncoding.DecodeString(message)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
		}
	}

	if len(frame) == 0 || len(frame) > maxFrameLength {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidFrame, len(frame))
	}

	return frame, nil
}
