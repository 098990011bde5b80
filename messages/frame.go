package messages

const EventMessage = "onMessage"

type FrameReceived struct {
	Source  Address
	Message string
}

func (message *FrameReceived) Event() string {
	return EventMessage
}

func (message *FrameReceived) Params() Params {
	return Params{"message": message.Message}
}

func (message *FrameReceived) MqttPath() string {
	return message.Source.BuildPath("message")
}

func (message *FrameReceived) Value() string {
	return message.Message
}
