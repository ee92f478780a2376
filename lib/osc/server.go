package osc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusNotFound = "not found"

	maxFrame = 1 << 20
)

var ErrBadArgs = errors.New("osc: bad arguments")

// Reply is the JSON payload of a /reply<address> message.
type Reply struct {
	Address string          `json:"address"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// HandlerFunc handles one request. suffix is the part of the address after
// a prefix route, empty for exact routes. The returned data is sent back
// as JSON.
type HandlerFunc func(suffix string, args []any) (any, error)

// Router maps addresses to handlers. Exact routes win over prefix routes;
// among prefixes the longest wins.
type Router struct {
	mu       sync.RWMutex
	exact    map[string]HandlerFunc
	prefixes map[string]HandlerFunc
}

func NewRouter() *Router {
	return &Router{
		exact:    map[string]HandlerFunc{},
		prefixes: map[string]HandlerFunc{},
	}
}

func (r *Router) Handle(addr string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact[addr] = h
}

// HandlePrefix routes every address starting with prefix, which should end
// with a slash.
func (r *Router) HandlePrefix(prefix string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes[prefix] = h
}

func (r *Router) lookup(addr string) (HandlerFunc, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.exact[addr]; ok {
		return h, ""
	}
	var best string
	for p := range r.prefixes {
		if strings.HasPrefix(addr, p) && len(p) > len(best) {
			best = p
		}
	}
	if best == "" {
		return nil, ""
	}
	return r.prefixes[best], strings.TrimPrefix(addr, best)
}

// Server accepts TCP connections and answers every request with a reply.
type Server struct {
	listener net.Listener
	router   *Router

	mu    sync.Mutex
	conns map[net.Conn]*sync.Mutex
}

func Listen(addr string, router *Router) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: ln,
		router:   router,
		conns:    map[net.Conn]*sync.Mutex{},
	}, nil
}

func (s *Server) Addr() net.Addr { return s.listener.Addr() }

func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Serve accepts connections until ctx is done or the server is closed.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.mu.Lock()
		s.conns[conn] = &sync.Mutex{}
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 4096), maxFrame)
	sc.Split(scanFrames)
	for sc.Scan() {
		addr, args, err := Parse(sc.Bytes())
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "handleConn",
				"remote":   conn.RemoteAddr().String(),
			}).WithError(err).Debug("Dropping malformed OSC frame")
			continue
		}
		s.write(conn, "/reply"+addr, s.dispatch(addr, args))
	}
}

func (s *Server) dispatch(addr string, args []any) string {
	reply := Reply{Address: addr, Status: StatusOK}
	h, suffix := s.router.lookup(addr)
	if h == nil {
		reply.Status = StatusNotFound
	} else if data, err := h(suffix, args); err != nil {
		reply.Status = StatusError
		reply.Error = err.Error()
	} else if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			reply.Status = StatusError
			reply.Error = err.Error()
		} else {
			reply.Data = raw
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "dispatch",
		"address":  addr,
		"status":   reply.Status,
	}).Debug("OSC request")

	buf, _ := json.Marshal(reply)
	return string(buf)
}

func (s *Server) write(conn net.Conn, addr string, args ...any) {
	s.mu.Lock()
	wmu := s.conns[conn]
	s.mu.Unlock()
	if wmu == nil {
		return
	}
	wmu.Lock()
	defer wmu.Unlock()
	conn.Write(frame(Build(addr, args...)))
}

// Broadcast sends an unsolicited message to every connected client.
func (s *Server) Broadcast(addr string, args ...any) {
	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()
	for _, conn := range conns {
		s.write(conn, addr, args...)
	}
}
