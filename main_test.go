package main

import (
	"sync"

	"github.com/RobertMe/cec-rpc/hdmicec"
)

type stubDriver struct {
	mux   sync.Mutex
	opens int
}

func (driver *stubDriver) Init() error  { return nil }
func (driver *stubDriver) Term() error  { return nil }
func (driver *stubDriver) Close() error { return nil }

func (driver *stubDriver) Open(listener hdmicec.FrameListener) error {
	driver.mux.Lock()
	defer driver.mux.Unlock()
	driver.opens++
	return nil
}

func (driver *stubDriver) PhysicalAddress() (uint32, error) {
	return 0x01000000, nil
}

func (driver *stubDriver) LogicalAddress(deviceType hdmicec.DeviceType) (uint32, error) {
	return 3, nil
}

func (driver *stubDriver) SendAsync(frame []byte) error { return nil }

type recordingHandler struct {
	daemonInits int
	statuses    []uint32
	hotPlugs    []bool
}

func (handler *recordingHandler) DaemonInitialized() {
	handler.daemonInits++
}

func (handler *recordingHandler) StatusUpdated(logicalAddress uint32) {
	handler.statuses = append(handler.statuses, logicalAddress)
}

func (handler *recordingHandler) HotPlug(connected bool) {
	handler.hotPlugs = append(handler.hotPlugs, connected)
}
