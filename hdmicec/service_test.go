package hdmicec

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RobertMe/cec-rpc/messages"
)

func drain(service *Service) []messages.Notification {
	var notifications []messages.Notification
	for {
		select {
		case notification := <-service.Messages:
			notifications = append(notifications, notification)
		default:
			return notifications
		}
	}
}

func newService(t *testing.T, enabled *bool) (*Service, *fakeDriver, *Settings) {
	t.Helper()

	settings := NewSettings(filepath.Join(t.TempDir(), "cecData.json"))
	if enabled != nil {
		if err := settings.Persist(*enabled); err != nil {
			t.Fatal(err)
		}
	}

	driver := newFakeDriver()
	return NewService(driver, settings), driver, settings
}

func boolPtr(value bool) *bool {
	return &value
}

func TestNewServiceWithoutSettings(t *testing.T) {
	service, driver, settings := newService(t, nil)

	if service.Enabled() {
		t.Fatal("expected CEC to be disabled")
	}
	if driver.inits != 0 || driver.opens != 0 {
		t.Fatalf("driver should not be touched, inits=%d opens=%d", driver.inits, driver.opens)
	}
	if _, err := os.Stat(settings.Path()); err != nil {
		t.Fatalf("expected settings file to be created: %v", err)
	}
	if settings.Load() {
		t.Fatal("expected persisted false")
	}
	if notifications := drain(service); len(notifications) != 0 {
		t.Fatalf("unexpected notifications %v", notifications)
	}

	addresses := service.Addresses()
	if addresses.PhysicalAddress[0] != 0x0F || addresses.LogicalAddresses[0].LogicalAddress != 0xFF {
		t.Fatalf("unexpected default addresses %+v", addresses)
	}
	if addresses.LogicalAddresses[0].DeviceType != "None" {
		t.Fatalf("unexpected default device type %s", addresses.LogicalAddresses[0].DeviceType)
	}
}

func TestNewServiceRestoresEnabled(t *testing.T) {
	service, driver, _ := newService(t, boolPtr(true))

	if !service.Enabled() {
		t.Fatal("expected CEC to be enabled")
	}
	if driver.inits != 1 || driver.opens != 1 {
		t.Fatalf("expected one init and open, got %d and %d", driver.inits, driver.opens)
	}

	notifications := drain(service)
	if len(notifications) != 2 {
		t.Fatalf("expected two address notifications, got %v", notifications)
	}
	physical := notifications[0].(*messages.AddressesChanged)
	if physical.Kind != messages.PhysicalAddressChanged || physical.PhysicalAddress != 0x01000000 {
		t.Fatalf("unexpected physical notification %+v", physical)
	}
	logical := notifications[1].(*messages.AddressesChanged)
	if logical.Kind != messages.LogicalAddressChanged || logical.LogicalAddress != 3 {
		t.Fatalf("unexpected logical notification %+v", logical)
	}

	addresses := service.Addresses()
	if addresses.PhysicalAddress[0] != 1 || addresses.PhysicalAddress[1] != 0 {
		t.Fatalf("unexpected physical address %v", addresses.PhysicalAddress)
	}
	if addresses.LogicalAddresses[0].DeviceType != "Tuner" || addresses.LogicalAddresses[0].LogicalAddress != 3 {
		t.Fatalf("unexpected logical address %+v", addresses.LogicalAddresses[0])
	}
}

func TestSetEnabledPersistsAndTogglesLibrary(t *testing.T) {
	service, driver, settings := newService(t, nil)

	if err := service.SetEnabled(true); err != nil {
		t.Fatal(err)
	}
	if !settings.Load() {
		t.Fatal("expected persisted true")
	}
	if err := service.SetEnabled(true); err != nil {
		t.Fatal(err)
	}
	if driver.opens != 1 {
		t.Fatalf("second enable must be a no-op, opens=%d", driver.opens)
	}

	if err := service.SetEnabled(false); err != nil {
		t.Fatal(err)
	}
	if settings.Load() {
		t.Fatal("expected persisted false")
	}
	if service.Enabled() || driver.closes != 1 || driver.terms != 1 {
		t.Fatalf("expected closed and terminated, closes=%d terms=%d", driver.closes, driver.terms)
	}

	if err := service.SetEnabled(true); err != nil {
		t.Fatal(err)
	}
	if driver.inits != 2 {
		t.Fatalf("expected library to be initialised again, inits=%d", driver.inits)
	}
}

func TestSetEnabledOpenFailure(t *testing.T) {
	service, driver, _ := newService(t, nil)
	driver.openErr = errors.New("no adapter")

	if err := service.SetEnabled(true); err == nil {
		t.Fatal("expected error")
	}
	if service.Enabled() {
		t.Fatal("expected CEC to stay disabled")
	}
	if driver.terms != 1 {
		t.Fatalf("expected library to be released, terms=%d", driver.terms)
	}
}

func TestSendMessage(t *testing.T) {
	service, driver, _ := newService(t, nil)

	if err := service.SendMessage("QEQ="); err != nil {
		t.Fatalf("disabled send should be dropped silently: %v", err)
	}
	if len(driver.sent) != 0 {
		t.Fatal("frame sent while disabled")
	}

	if err := service.SetEnabled(true); err != nil {
		t.Fatal(err)
	}

	for _, message := range []string{"QEQ=", "QEQ"} {
		if err := service.SendMessage(message); err != nil {
			t.Fatalf("%s: %v", message, err)
		}
	}
	if len(driver.sent) != 2 || driver.sent[0][0] != 0x40 || driver.sent[0][1] != 0x44 {
		t.Fatalf("unexpected frames %v", driver.sent)
	}

	tooLong := base64.StdEncoding.EncodeToString(make([]byte, 17))
	for _, message := range []string{"", "%%%", tooLong} {
		if err := service.SendMessage(message); !errors.Is(err, ErrInvalidFrame) {
			t.Fatalf("%q: expected ErrInvalidFrame, got %v", message, err)
		}
	}
}

func TestFrameNotifications(t *testing.T) {
	service, driver, _ := newService(t, boolPtr(true))
	drain(service)

	frame := []byte{0x4F, 0x82, 0x10, 0x00}
	driver.deliver(frame)
	driver.deliver(frame)
	driver.deliver([]byte{0xF0, 0x36})

	notifications := drain(service)
	if len(notifications) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(notifications))
	}

	received := notifications[0].(*messages.FrameReceived)
	if received.Message != base64.StdEncoding.EncodeToString(frame) || received.Source != 4 {
		t.Fatalf("unexpected frame notification %+v", received)
	}
	if added := notifications[1].(*messages.DevicesChanged); added.Added != 4 {
		t.Fatalf("unexpected device notification %+v", added)
	}
	if _, ok := notifications[2].(*messages.FrameReceived); !ok {
		t.Fatalf("expected second frame, got %T", notifications[2])
	}
	if _, ok := notifications[3].(*messages.FrameReceived); !ok {
		t.Fatalf("broadcast source must not add a device, got %T", notifications[3])
	}
}

func TestStatusUpdated(t *testing.T) {
	service, _, _ := newService(t, boolPtr(true))
	drain(service)

	service.StatusUpdated(3)
	if notifications := drain(service); len(notifications) != 0 {
		t.Fatalf("unchanged address must not notify: %v", notifications)
	}

	service.StatusUpdated(4)
	notifications := drain(service)
	if len(notifications) != 1 {
		t.Fatalf("expected one notification, got %v", notifications)
	}
	if got := notifications[0].Params()["CECAddresses"].(messages.Params)["logicalAddresses"]; got != uint32(4) {
		t.Fatalf("unexpected params %v", notifications[0].Params())
	}
	if service.Addresses().LogicalAddresses[0].DeviceType != "Playback Device" {
		t.Fatalf("unexpected device type %+v", service.Addresses())
	}
}

func TestHotPlug(t *testing.T) {
	service, driver, _ := newService(t, boolPtr(true))
	drain(service)

	driver.physical = 0x02000000
	service.HotPlug(true)

	notifications := drain(service)
	if len(notifications) != 2 {
		t.Fatalf("expected hot plug and address notifications, got %v", notifications)
	}
	if hotPlug := notifications[0].(*messages.HotPlug); !hotPlug.Connected {
		t.Fatal("expected connected")
	}
	if changed := notifications[1].(*messages.AddressesChanged); changed.PhysicalAddress != 0x02000000 {
		t.Fatalf("unexpected address notification %+v", changed)
	}

	service.HotPlug(false)
	if notifications := drain(service); len(notifications) != 1 {
		t.Fatalf("expected only the hot plug notification, got %v", notifications)
	}
}

func TestDaemonInitializedRestartsConnection(t *testing.T) {
	service, driver, settings := newService(t, boolPtr(true))

	service.DaemonInitialized()
	if driver.opens != 2 || driver.closes != 1 {
		t.Fatalf("expected reconnect, opens=%d closes=%d", driver.opens, driver.closes)
	}
	if !service.Enabled() || !settings.Load() {
		t.Fatal("expected CEC to stay enabled")
	}

	disabled, disabledDriver, _ := newService(t, nil)
	disabled.DaemonInitialized()
	if disabledDriver.opens != 0 {
		t.Fatal("daemon init must not enable CEC")
	}
}

func TestShutdownKeepsSetting(t *testing.T) {
	service, driver, settings := newService(t, boolPtr(true))

	service.Shutdown()
	if service.Enabled() || driver.closes != 1 {
		t.Fatal("expected connection to be closed")
	}
	if !settings.Load() {
		t.Fatal("shutdown must not change the persisted setting")
	}
}

func TestEnabledHandlers(t *testing.T) {
	service, _, _ := newService(t, nil)

	var states []bool
	service.RegisterEnabledHandler(func(enabled bool) {
		states = append(states, enabled)
	})

	_ = service.SetEnabled(true)
	_ = service.SetEnabled(true)
	service.DaemonInitialized()
	_ = service.SetEnabled(false)

	expected := []bool{true, false, true, false}
	if len(states) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, states)
	}
	for i := range expected {
		if states[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, states)
		}
	}
}

func TestDevicesForgottenOnDisable(t *testing.T) {
	service, driver, _ := newService(t, boolPtr(true))

	frame := []byte{0x0F, 0x36}
	driver.deliver(frame)
	_ = service.SetEnabled(false)
	_ = service.SetEnabled(true)
	drain(service)

	driver.deliver(frame)
	notifications := drain(service)
	if len(notifications) != 2 {
		t.Fatalf("expected frame and device notifications, got %v", notifications)
	}
	if added := notifications[1].(*messages.DevicesChanged); added.Added != 0 {
		t.Fatalf("unexpected device notification %+v", added)
	}
}

func TestEmitDoesNotBlockWhenQueueIsFull(t *testing.T) {
	service, _, _ := newService(t, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < messageBuffer*2; i++ {
			service.HotPlug(i%2 == 0)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("HotPlug blocked on a full notification queue")
	}

	if len(service.Messages) != messageBuffer {
		t.Fatalf("expected a full queue, got %d", len(service.Messages))
	}
	if service.Enabled() {
		t.Fatal("expected CEC to stay disabled")
	}
}
