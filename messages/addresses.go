package messages

const EventAddressesChanged = "cecAddressesChanged"

type AddressKind byte

const (
	PhysicalAddressChanged AddressKind = 1
	LogicalAddressChanged  AddressKind = 2
)

// AddressesChanged carries only the address that changed. The physical address is
// sent as a packed 32 bit value and the logical address as a plain number.
type AddressesChanged struct {
	Kind            AddressKind
	PhysicalAddress uint32
	LogicalAddress  uint32
}

func (message *AddressesChanged) Event() string {
	return EventAddressesChanged
}

func (message *AddressesChanged) Params() Params {
	addresses := Params{}
	switch message.Kind {
	case PhysicalAddressChanged:
		addresses["physicalAddress"] = message.PhysicalAddress
	case LogicalAddressChanged:
		addresses["logicalAddresses"] = message.LogicalAddress
	}

	return Params{"CECAddresses": addresses}
}

func (message *AddressesChanged) MqttPath() string {
	if message.Kind == PhysicalAddressChanged {
		return "addresses/physical"
	}
	return "addresses/logical"
}

func (message *AddressesChanged) Value() string {
	return encodeParams(message)
}
