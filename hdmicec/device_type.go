package hdmicec

type DeviceType int

const (
	DeviceTypeTV DeviceType = iota
	DeviceTypeRecordingDevice
	DeviceTypeReserved
	DeviceTypeTuner
	DeviceTypePlaybackDevice
	DeviceTypeAudioSystem
	DeviceTypeFreeUse
	DeviceTypeUnregistered
	DeviceTypeNone
)

const (
	DefaultPhysicalAddress uint32 = 0x0F0F0F0F
	DefaultLogicalAddress  uint32 = 0xFF
)

var deviceTypeNames = map[DeviceType]string{
	DeviceTypeTV:              "TV",
	DeviceTypeRecordingDevice: "Recording Device",
	DeviceTypeReserved:        "Reserved",
	DeviceTypeTuner:           "Tuner",
	DeviceTypePlaybackDevice:  "Playback Device",
	DeviceTypeAudioSystem:     "Audio System",
	DeviceTypeFreeUse:         "Free Use",
	DeviceTypeUnregistered:    "Unregistered",
	DeviceTypeNone:            "None",
}

func (deviceType DeviceType) String() string {
	if name, ok := deviceTypeNames[deviceType]; ok {
		return name
	}
	return deviceTypeNames[DeviceTypeNone]
}

// DeviceTypeOf returns the device type a logical address is reserved for.
func DeviceTypeOf(logicalAddress uint32) DeviceType {
	switch logicalAddress {
	case 0:
		return DeviceTypeTV
	case 1, 2, 9:
		return DeviceTypeRecordingDevice
	case 3, 6, 7, 10:
		return DeviceTypeTuner
	case 4, 8, 11:
		return DeviceTypePlaybackDevice
	case 5:
		return DeviceTypeAudioSystem
	case 12, 13:
		return DeviceTypeReserved
	case 14:
		return DeviceTypeFreeUse
	case 15:
		return DeviceTypeUnregistered
	default:
		return DeviceTypeNone
	}
}

func physicalAddressBytes(address uint32) []uint32 {
	return []uint32{
		(address >> 24) & 0xFF,
		(address >> 16) & 0xFF,
		(address >> 8) & 0xFF,
		address & 0xFF,
	}
}
