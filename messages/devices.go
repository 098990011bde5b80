package messages

const EventDevicesChanged = "onDevicesChanged"

type DevicesChanged struct {
	Added Address
}

func (message *DevicesChanged) Event() string {
	return EventDevicesChanged
}

func (message *DevicesChanged) Params() Params {
	return Params{}
}

func (message *DevicesChanged) MqttPath() string {
	return message.Added.BuildPath("added")
}

func (message *DevicesChanged) Value() string {
	return "on"
}
