package jsonrpc

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	sendQueueSize = 64
	writeTimeout  = 5 * time.Second
)

type subscription struct {
	Event string `json:"event"`
	ID    string `json:"id"`
}

type connection struct {
	id     string
	server *Server
	ws     *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mux    sync.Mutex
	events map[string]map[string]struct{}
}

func (server *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := server.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithFields(log.Fields{
			"remote": r.RemoteAddr,
			"error":  err,
		}).Warn("Failed to upgrade JSON-RPC websocket")
		return
	}
	ws.SetReadLimit(maxRequestSize)

	connection := &connection{
		id:     uuid.New().String(),
		server: server,
		ws:     ws,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		events: make(map[string]map[string]struct{}),
	}

	log.WithFields(log.Fields{
		"connection": connection.id,
		"remote":     r.RemoteAddr,
	}).Info("JSON-RPC websocket connected")

	server.addConnection(connection)

	go connection.writeLoop()
	connection.readLoop()
}

func (connection *connection) readLoop() {
	defer connection.close()

	for {
		messageType, data, err := connection.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithFields(log.Fields{
					"connection": connection.id,
					"error":      err,
				}).Warn("JSON-RPC websocket read failed")
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		response := connection.handle(data)
		if response == nil {
			continue
		}

		encoded, err := json.Marshal(response)
		if err != nil {
			log.WithFields(log.Fields{
				"connection": connection.id,
				"error":      err,
			}).Error("Failed to encode JSON-RPC response")
			continue
		}

		select {
		case connection.send <- encoded:
		case <-connection.done:
			return
		}
	}
}

func (connection *connection) handle(data []byte) *Response {
	request, parseErr := parseRequest(data)
	if parseErr != nil {
		return &Response{Version: Version, Error: parseErr}
	}

	var response *Response
	switch connection.server.resolve(request.Method) {
	case methodRegister:
		response = connection.subscribe(request, true)
	case methodUnregister:
		response = connection.subscribe(request, false)
	default:
		response = connection.server.call(request)
	}

	if len(request.ID) == 0 {
		return nil
	}
	return response
}

func (connection *connection) subscribe(request *Request, register bool) *Response {
	response := &Response{Version: Version, ID: request.ID}

	var params subscription
	if err := DecodeParams(request.Params, &params); err != nil {
		response.Error = asError(err)
		return response
	}
	if params.Event == "" {
		response.Error = NewError(CodeInvalidParams, "missing event")
		return response
	}

	connection.mux.Lock()
	ids, ok := connection.events[params.Event]
	if register {
		if !ok {
			ids = make(map[string]struct{})
			connection.events[params.Event] = ids
		}
		ids[params.ID] = struct{}{}
	} else if ok {
		delete(ids, params.ID)
		if len(ids) == 0 {
			delete(connection.events, params.Event)
		}
	}
	connection.mux.Unlock()

	log.WithFields(log.Fields{
		"connection": connection.id,
		"event":      params.Event,
		"id":         params.ID,
		"register":   register,
	}).Debug("Updated JSON-RPC event subscription")

	response.Result = 0
	return response
}

func (connection *connection) notify(event string, params interface{}) {
	connection.mux.Lock()
	ids := make([]string, 0, len(connection.events[event]))
	for id := range connection.events[event] {
		ids = append(ids, id)
	}
	connection.mux.Unlock()

	for _, id := range ids {
		method := event
		if id != "" {
			method = id + "." + event
		}

		encoded, err := json.Marshal(&Notification{Version: Version, Method: method, Params: params})
		if err != nil {
			log.WithFields(log.Fields{
				"event": event,
				"error": err,
			}).Error("Failed to encode JSON-RPC notification")
			return
		}

		select {
		case connection.send <- encoded:
		case <-connection.done:
			return
		default:
			log.WithFields(log.Fields{
				"connection": connection.id,
				"event":      event,
			}).Warn("JSON-RPC send queue full, dropping notification")
		}
	}
}

func (connection *connection) writeLoop() {
	defer connection.close()

	for {
		select {
		case data := <-connection.send:
			_ = connection.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := connection.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.WithFields(log.Fields{
					"connection": connection.id,
					"error":      err,
				}).Warn("JSON-RPC websocket write failed")
				return
			}
		case <-connection.done:
			return
		}
	}
}

func (connection *connection) close() {
	connection.closeOnce.Do(func() {
		close(connection.done)
		connection.server.removeConnection(connection)
		_ = connection.ws.Close()

		log.WithFields(log.Fields{
			"connection": connection.id,
		}).Info("JSON-RPC websocket disconnected")
	})
}
