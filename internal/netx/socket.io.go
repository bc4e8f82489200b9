package netx

import (
	"net/http"

	"github.com/zishang520/socket.io/servers/engine/v3"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
)

// Socket represents a wrapper around the Socket.IO server
type Socket struct {
	sock       *socket.Server
	Namespaces map[string]*Namespace
}

// Initialize configures and creates the Socket.IO server
func (self *Socket) Initialize() {
	opts := socket.DefaultServerOptions()
	opts.SetPath("/socket.io")
	opts.SetTransports(types.NewSet(
		engine.Polling,   // HTTP long-polling transport
		engine.WebSocket, // WebSocket transport for real-time communication
	))
	// Dashboards are served from other origins (and through the tunnel).
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	opts.SetMaxHttpBufferSize(1e7) // 10MB
	self.sock = socket.NewServer(nil, opts)
	self.Namespaces = make(map[string]*Namespace)
}

// AddNamespace creates a new Socket.IO namespace and adds it to the server
func (self *Socket) AddNamespace(name string) *Namespace {
	namespace := &Namespace{namespace: self.sock.Of(name, nil)}
	namespace.Initialize()
	self.Namespaces[name] = namespace
	return namespace
}

// Handler returns an HTTP handler for the Socket.IO server
func (self *Socket) Handler() http.Handler {
	return self.sock.ServeHandler(nil)
}

// Namespace represents a Socket.IO namespace with custom event handling
type Namespace struct {
	namespace socket.Namespace
	events    map[string]func(client *socket.Socket, data ...any)
	connect   []func(client *socket.Socket)
}

// Initialize sets up the namespace with default event handlers
func (self *Namespace) Initialize() {
	self.events = map[string]func(*socket.Socket, ...any){
		"disconnect": func(client *socket.Socket, reason ...any) {},
	}
}

// AddEvent registers a custom event handler for the namespace
func (self *Namespace) AddEvent(event string, f func(*socket.Socket, ...any)) {
	self.events[event] = f
}

// OnConnect registers a hook that runs for every new client before its events are bound
func (self *Namespace) OnConnect(f func(*socket.Socket)) {
	self.connect = append(self.connect, f)
}

// RegisterEvents activates all the event handlers for new client connections
func (self *Namespace) RegisterEvents() {
	self.namespace.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		for _, f := range self.connect {
			f(client)
		}
		for event, f := range self.events {
			client.On(event, func(data ...any) { f(client, data...) })
		}
	})
}

// Client adapts a socket.io connection to the emitter used by the services
type Client struct {
	Socket *socket.Socket
}

// ID returns the socket id
func (c Client) ID() string {
	return string(c.Socket.Id())
}

// Emit sends one event with a single payload
func (c Client) Emit(event string, payload any) {
	if payload == nil {
		c.Socket.Emit(event)
		return
	}
	c.Socket.Emit(event, payload)
}
