package osc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// Update is an unsolicited message from the server.
type Update struct {
	Address string
	Args    []any
}

type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	pending map[string]chan *Reply
	updates chan Update
	Timeout time.Duration
}

func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:    conn,
		pending: make(map[string]chan *Reply),
		updates: make(chan Update, 64),
		Timeout: 5 * time.Second,
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Updates delivers /update messages. Updates are dropped when the channel
// is full.
func (c *Client) Updates() <-chan Update {
	return c.updates
}

func (c *Client) readLoop() {
	defer close(c.updates)
	sc := bufio.NewScanner(c.conn)
	sc.Buffer(make([]byte, 0, 4096), maxFrame)
	sc.Split(scanFrames)
	for sc.Scan() {
		addr, args, err := Parse(sc.Bytes())
		if err != nil {
			continue
		}
		c.handle(addr, args)
	}
}

func (c *Client) handle(addr string, args []any) {
	if strings.HasPrefix(addr, "/update/") {
		select {
		case c.updates <- Update{Address: addr, Args: args}:
		default:
		}
		return
	}
	if !strings.HasPrefix(addr, "/reply/") || len(args) == 0 {
		return
	}
	body, ok := args[0].(string)
	if !ok {
		return
	}
	var reply Reply
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return
	}

	replyAddr := strings.TrimPrefix(addr, "/reply")
	c.mu.Lock()
	ch, exists := c.pending[replyAddr]
	if exists {
		delete(c.pending, replyAddr)
	}
	c.mu.Unlock()
	if exists {
		ch <- &reply
	}
}

// Send writes a message without waiting for its reply.
func (c *Client) Send(addr string, args ...any) error {
	encoded := frame(Build(addr, args...))
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.conn.Write(encoded)
	return err
}

// Request sends a message and waits for its reply. A reply with a status
// other than ok is returned along with an error.
func (c *Client) Request(addr string, args ...any) (*Reply, error) {
	ch := make(chan *Reply, 1)
	c.mu.Lock()
	c.pending[addr] = ch
	c.mu.Unlock()

	if err := c.Send(addr, args...); err != nil {
		c.mu.Lock()
		delete(c.pending, addr)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case reply := <-ch:
		if reply.Status != StatusOK {
			if reply.Error != "" {
				return reply, fmt.Errorf("osc: %s: %s: %s", addr, reply.Status, reply.Error)
			}
			return reply, fmt.Errorf("osc: %s: %s", addr, reply.Status)
		}
		return reply, nil
	case <-time.After(c.Timeout):
		c.mu.Lock()
		delete(c.pending, addr)
		c.mu.Unlock()
		return nil, fmt.Errorf("osc: %s: timeout", addr)
	}
}

// RequestJSON is Request followed by decoding the reply data into v.
func (c *Client) RequestJSON(v any, addr string, args ...any) error {
	reply, err := c.Request(addr, args...)
	if err != nil {
		return err
	}
	if v == nil || len(reply.Data) == 0 {
		return nil
	}
	return json.Unmarshal(reply.Data, v)
}
