package netio

import (
	"context"
	"net"
	"time"

	"github.com/watchgrid/watchgrid/internal/monitoring"
	"github.com/watchgrid/watchgrid/internal/packet"
	"github.com/watchgrid/watchgrid/internal/pipeline"
)

// reconnectDelay paces connection attempts; transport failures retry, never
// crash a stage.
const reconnectDelay = 10 * time.Second

// Client streams packets to the next hop through a lossy send queue. Send
// never blocks; the writer goroutine owns the socket and reconnects with
// backoff on any transport error.
type Client struct {
	name       string
	serverAddr string
	sendQueue  *pipeline.Queue[*packet.FramePacket]
	sent       int
}

// NewClient creates a client for serverAddr with a bounded send queue.
func NewClient(name, serverAddr string, queueSize int) *Client {
	return &Client{
		name:       name,
		serverAddr: serverAddr,
		sendQueue:  pipeline.NewQueue[*packet.FramePacket](name+"-send", queueSize),
	}
}

// Send enqueues a packet for upload. Returns false if the queue was full and
// the packet was dropped.
func (c *Client) Send(p *packet.FramePacket) bool {
	ok := c.sendQueue.Write(p)
	c.sent++
	if c.sent%20 == 0 {
		monitoring.Logf("[NetClient-%s] sent %d packets (%d dropped)", c.name, c.sent, c.sendQueue.Drops())
	}
	return ok
}

// Run drains the send queue until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	conn := c.connect(ctx)
	if conn == nil {
		return
	}
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()
	monitoring.Logf("[NetClient-%s] connected to %s", c.name, c.serverAddr)

	for {
		pkt, ok := c.sendQueue.Read()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pipeline.PollInterval):
			}
			continue
		}

		data, err := EncodePacket(pkt)
		if err != nil {
			monitoring.Logf("[NetClient-%s] drop unencodable packet: %v", c.name, err)
			continue
		}

		for {
			if _, err := conn.Write(append(append([]byte{}, Marker...), data...)); err == nil {
				break
			} else {
				monitoring.Logf("[NetClient-%s] write failed: %v, reconnecting", c.name, err)
			}
			conn.Close()
			conn = c.connect(ctx)
			if conn == nil {
				return
			}
		}
	}
}

// connect dials until it succeeds or the context ends.
func (c *Client) connect(ctx context.Context) net.Conn {
	for {
		conn, err := net.Dial("tcp", c.serverAddr)
		if err == nil {
			return conn
		}
		monitoring.Logf("[NetClient-%s] cannot reach %s: %v, retrying", c.name, c.serverAddr, err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}
