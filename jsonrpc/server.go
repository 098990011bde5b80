// Package jsonrpc serves a JSON-RPC 2.0 method table over HTTP and WebSocket
// and delivers event notifications to WebSocket clients that registered for them.
package jsonrpc

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/RobertMe/cec-rpc/observability"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	Version = "2.0"

	methodRegister   = "register"
	methodUnregister = "unregister"

	maxRequestSize = 64 * 1024
)

type Handler func(params json.RawMessage) (interface{}, error)

type Request struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type Notification struct {
	Version string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type Server struct {
	prefix string

	mux         sync.RWMutex
	methods     map[string]Handler
	connections map[*connection]struct{}

	upgrader websocket.Upgrader
}

// NewServer creates a server whose methods are reachable both by their bare name
// and as "<callsign>.<version>.<name>".
func NewServer(callsign string, version int) *Server {
	return &Server{
		prefix:      callsign + "." + strconv.Itoa(version) + ".",
		methods:     make(map[string]Handler),
		connections: make(map[*connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (server *Server) Register(method string, handler Handler) {
	log.WithFields(log.Fields{
		"method": method,
	}).Debug("Registering JSON-RPC method")

	server.mux.Lock()
	defer server.mux.Unlock()
	server.methods[method] = handler
}

func (server *Server) resolve(method string) string {
	return strings.TrimPrefix(method, server.prefix)
}

func (server *Server) call(request *Request) *Response {
	response := &Response{Version: Version, ID: request.ID}

	if request.Version != Version || request.Method == "" {
		response.Error = NewError(CodeInvalidRequest, "invalid request")
		return response
	}

	method := server.resolve(request.Method)

	server.mux.RLock()
	handler, ok := server.methods[method]
	server.mux.RUnlock()

	if !ok {
		observability.RecordRequest("unknown", false)
		response.Error = NewError(CodeMethodNotFound, "method %s not found", request.Method)
		return response
	}

	result, err := handler(request.Params)
	observability.RecordRequest(method, err == nil)
	if err != nil {
		log.WithFields(log.Fields{
			"method": method,
			"error":  err,
		}).Warn("JSON-RPC method failed")

		response.Error = asError(err)
		return response
	}

	response.Result = result
	return response
}

func parseRequest(data []byte) (*Request, *Error) {
	var request Request
	if err := json.Unmarshal(data, &request); err != nil {
		if _, ok := err.(*json.SyntaxError); ok {
			return nil, NewError(CodeParseError, "parse error")
		}
		return nil, NewError(CodeInvalidRequest, "invalid request")
	}

	return &request, nil
}

func (server *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		server.serveWebSocket(w, r)
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
	if err != nil {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	var response *Response
	request, parseErr := parseRequest(data)
	if parseErr != nil {
		response = &Response{Version: Version, Error: parseErr}
	} else {
		switch server.resolve(request.Method) {
		case methodRegister, methodUnregister:
			response = &Response{
				Version: Version,
				ID:      request.ID,
				Error:   NewError(CodeInvalidRequest, "%s requires a websocket connection", request.Method),
			}
		default:
			response = server.call(request)
		}

		if len(request.ID) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Warn("Failed to write JSON-RPC response")
	}
}

// Notify delivers event to every websocket connection that registered for it.
func (server *Server) Notify(event string, params interface{}) {
	server.mux.RLock()
	connections := make([]*connection, 0, len(server.connections))
	for connection := range server.connections {
		connections = append(connections, connection)
	}
	server.mux.RUnlock()

	for _, connection := range connections {
		connection.notify(event, params)
	}
}

// Close disconnects all websocket clients.
func (server *Server) Close() {
	server.mux.RLock()
	connections := make([]*connection, 0, len(server.connections))
	for connection := range server.connections {
		connections = append(connections, connection)
	}
	server.mux.RUnlock()

	for _, connection := range connections {
		connection.close()
	}
}

func (server *Server) addConnection(connection *connection) {
	server.mux.Lock()
	defer server.mux.Unlock()
	server.connections[connection] = struct{}{}
	observability.ConnectionOpened()
}

func (server *Server) removeConnection(connection *connection) {
	server.mux.Lock()
	defer server.mux.Unlock()
	if _, ok := server.connections[connection]; ok {
		delete(server.connections, connection)
		observability.ConnectionClosed()
	}
}
