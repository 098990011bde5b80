package messages

const EventHdmiHotPlug = "onHdmiHotPlug"

type HotPlug struct {
	Connected bool
}

func (message *HotPlug) Event() string {
	return EventHdmiHotPlug
}

func (message *HotPlug) Params() Params {
	return Params{"connected": message.Connected}
}

func (message *HotPlug) MqttPath() string {
	return "hotplug"
}

func (message *HotPlug) Value() string {
	if message.Connected {
		return "connected"
	}
	return "disconnected"
}
