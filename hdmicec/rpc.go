package hdmicec

import (
	"encoding/json"

	"github.com/RobertMe/cec-rpc/jsonrpc"
	log "github.com/sirupsen/logrus"
)

const (
	Callsign = "org.rdk.HdmiCec"
	Version  = 1

	MethodSetEnabled      = "setEnabled"
	MethodGetEnabled      = "getEnabled"
	MethodGetCECAddresses = "getCECAddresses"
	MethodSendMessage     = "sendMessage"
)

type response map[string]interface{}

func returnResponse(result response, success bool) (interface{}, error) {
	if result == nil {
		result = response{}
	}
	result["success"] = success
	return result, nil
}

// RegisterMethods exposes the service on server. Missing or unusable parameters
// are reported as success false rather than as JSON-RPC errors.
func (service *Service) RegisterMethods(server *jsonrpc.Server) {
	server.Register(MethodSetEnabled, service.setEnabledWrapper)
	server.Register(MethodGetEnabled, service.getEnabledWrapper)
	server.Register(MethodGetCECAddresses, service.getCECAddressesWrapper)
	server.Register(MethodSendMessage, service.sendMessageWrapper)
}

func (service *Service) setEnabledWrapper(params json.RawMessage) (interface{}, error) {
	var parameters struct {
		Enabled *bool `json:"enabled"`
	}
	if err := jsonrpc.DecodeParams(params, &parameters); err != nil {
		return nil, err
	}

	if parameters.Enabled == nil {
		return returnResponse(nil, false)
	}

	if err := service.SetEnabled(*parameters.Enabled); err != nil {
		log.WithFields(log.Fields{
			"enabled": *parameters.Enabled,
			"error":   err,
		}).Error("setEnabled failed")
		return returnResponse(nil, false)
	}

	return returnResponse(nil, true)
}

func (service *Service) getEnabledWrapper(params json.RawMessage) (interface{}, error) {
	return returnResponse(response{"enabled": service.Enabled()}, true)
}

func (service *Service) getCECAddressesWrapper(params json.RawMessage) (interface{}, error) {
	return returnResponse(response{"CECAddresses": service.Addresses()}, true)
}

func (service *Service) sendMessageWrapper(params json.RawMessage) (interface{}, error) {
	var parameters struct {
		Message *string `json:"message"`
	}
	if err := jsonrpc.DecodeParams(params, &parameters); err != nil {
		return nil, err
	}

	if parameters.Message == nil {
		return returnResponse(nil, false)
	}

	if err := service.SendMessage(*parameters.Message); err != nil {
		log.WithFields(log.Fields{
			"message": *parameters.Message,
			"error":   err,
		}).Warn("sendMessage failed")
		return returnResponse(nil, false)
	}

	return returnResponse(nil, true)
}
