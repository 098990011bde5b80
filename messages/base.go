package messages

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Address byte

const AddressBroadcast Address = 0x0F

type Params map[string]interface{}

type Notification interface {
	Event() string
	Params() Params
	MqttPath() string
	Value() string
}

func (address Address) BuildPath(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%s", address, name)
	return b.String()
}

func encodeParams(notification Notification) string {
	encoded, err := json.Marshal(notification.Params())
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
