package netio

import (
	"context"
	"net"
	"sync"

	"github.com/watchgrid/watchgrid/internal/monitoring"
	"github.com/watchgrid/watchgrid/internal/packet"
	"github.com/watchgrid/watchgrid/internal/pipeline"
)

const recvBufSize = 2048

// Server accepts packet streams from upstream hops. All connections feed one
// bounded queue; a full queue drops packets rather than stalling the reader.
type Server struct {
	name     string
	listener net.Listener
	queue    *pipeline.Queue[*packet.FramePacket]

	wg sync.WaitGroup
}

// NewServer listens on addr. The queue holds at most queueSize packets.
func NewServer(name, addr string, queueSize int) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		name:     name,
		listener: l,
		queue:    pipeline.NewQueue[*packet.FramePacket](name, queueSize),
	}, nil
}

// Queue exposes the receive queue for the consuming worker.
func (s *Server) Queue() *pipeline.Queue[*packet.FramePacket] { return s.queue }

// Addr returns the bound address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Run accepts connections until ctx is cancelled, one goroutine per source.
func (s *Server) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	monitoring.Logf("[NetServer-%s] listening on %s", s.name, s.listener.Addr())
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			break // listener closed on cancel
		}
		monitoring.Logf("[NetServer-%s] connection from %s", s.name, conn.RemoteAddr())
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
	s.wg.Wait()
	monitoring.Logf("[NetServer-%s] stopped", s.name)
}

// serveConn scans one stream for framed packets. Malformed payloads are
// dropped with a log line; the stream keeps going.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var scanner frameScanner
	buf := make([]byte, recvBufSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			monitoring.Logf("[NetServer-%s] connection ended: %v", s.name, err)
			return
		}
		for _, payload := range scanner.push(buf[:n]) {
			pkt, err := DecodePacket(payload)
			if err != nil {
				monitoring.Logf("[NetServer-%s] drop malformed packet: %v", s.name, err)
				continue
			}
			s.queue.Write(pkt)
		}
	}
}
