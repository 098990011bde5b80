package hdmicec

import (
	"errors"
	"sync"
)

type fakeDriver struct {
	mux sync.Mutex

	inits, terms, opens, closes int
	openErr                     error

	physical    uint32
	physicalErr error
	logical     uint32

	listener FrameListener
	sent     [][]byte
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{physical: 0x01000000, logical: 3}
}

func (driver *fakeDriver) Init() error {
	driver.mux.Lock()
	defer driver.mux.Unlock()
	driver.inits++
	return nil
}

func (driver *fakeDriver) Term() error {
	driver.mux.Lock()
	defer driver.mux.Unlock()
	driver.terms++
	return nil
}

func (driver *fakeDriver) Open(listener FrameListener) error {
	driver.mux.Lock()
	defer driver.mux.Unlock()
	if driver.openErr != nil {
		return driver.openErr
	}
	driver.opens++
	driver.listener = listener
	return nil
}

func (driver *fakeDriver) Close() error {
	driver.mux.Lock()
	defer driver.mux.Unlock()
	driver.closes++
	driver.listener = nil
	return nil
}

func (driver *fakeDriver) PhysicalAddress() (uint32, error) {
	driver.mux.Lock()
	defer driver.mux.Unlock()
	return driver.physical, driver.physicalErr
}

func (driver *fakeDriver) LogicalAddress(deviceType DeviceType) (uint32, error) {
	driver.mux.Lock()
	defer driver.mux.Unlock()
	if deviceType != DeviceTypeTuner {
		return 0, errors.New("unexpected device type")
	}
	return driver.logical, nil
}

func (driver *fakeDriver) SendAsync(frame []byte) error {
	driver.mux.Lock()
	defer driver.mux.Unlock()
	driver.sent = append(driver.sent, frame)
	return nil
}

func (driver *fakeDriver) deliver(frame []byte) {
	driver.mux.Lock()
	listener := driver.listener
	driver.mux.Unlock()
	if listener != nil {
		listener(frame)
	}
}
