// Package dnsredirect answers every DNS A query with a single address so
// that clients on the portal's access point land on the configuration page.
package dnsredirect

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/muurk/wifimgr/internal/logging"
)

const (
	// DefaultAddr is the standard DNS port on all interfaces.
	DefaultAddr = ":53"
	// DefaultTTL is the TTL of redirect answers, in seconds.
	DefaultTTL = 60
)

// Server is a redirect-all DNS responder over UDP.
type Server struct {
	// Addr is the UDP listen address; defaults to DefaultAddr.
	Addr string
	TTL  uint32

	mu     sync.Mutex
	target net.IP
	srv    *dns.Server
	conn   net.PacketConn
}

// New returns a server listening on addr once started.
func New(addr string) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{Addr: addr, TTL: DefaultTTL}
}

// Start binds the socket and begins answering with target.
func (s *Server) Start(target net.IP) error {
	v4 := target.To4()
	if v4 == nil {
		return fmt.Errorf("redirect target %v is not an IPv4 address", target)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		s.target = v4
		return nil
	}

	conn, err := net.ListenPacket("udp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr, err)
	}

	started := make(chan struct{})
	failed := make(chan error, 1)
	srv := &dns.Server{
		PacketConn:        conn,
		Handler:           dns.HandlerFunc(s.handle),
		NotifyStartedFunc: func() { close(started) },
	}

	s.target = v4
	go func() {
		if err := srv.ActivateAndServe(); err != nil {
			failed <- err
		}
	}()

	// Shutdown fails on a server that has not started yet.
	select {
	case <-started:
	case err := <-failed:
		_ = conn.Close()
		return fmt.Errorf("failed to serve DNS on %s: %w", s.Addr, err)
	}

	s.conn = conn
	s.srv = srv

	logging.Info("DNS redirect started",
		zap.String("addr", conn.LocalAddr().String()),
		zap.String("target", v4.String()),
	)
	return nil
}

// Stop shuts the responder down. It is safe to call when not started.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.conn = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to stop DNS redirect: %w", err)
	}
	logging.Info("DNS redirect stopped")
	return nil
}

// LocalAddr is the bound address, or nil when stopped.
func (s *Server) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *Server) handle(w dns.ResponseWriter, req *dns.Msg) {
	s.mu.Lock()
	target, ttl := s.target, s.TTL
	s.mu.Unlock()

	if ttl == 0 {
		ttl = DefaultTTL
	}

	resp := Answer(req, target, ttl)
	for _, q := range req.Question {
		answer := "-"
		if q.Qtype == dns.TypeA {
			answer = target.String()
		}
		logging.LogDNSQuery(w.RemoteAddr().String(), q.Name, dns.TypeToString[q.Qtype], answer)
	}

	if err := w.WriteMsg(resp); err != nil {
		logging.Debug("Failed to write DNS response", zap.Error(err))
	}
}

// Answer builds the reply to req: every A question resolves to target and
// everything else gets an empty NOERROR answer.
func Answer(req *dns.Msg, target net.IP, ttl uint32) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Authoritative = true
	resp.RecursionAvailable = true

	for _, q := range req.Question {
		if q.Qtype != dns.TypeA || q.Qclass != dns.ClassINET {
			continue
		}
		resp.Answer = append(resp.Answer, &dns.A{
			Hdr: dns.RR_Header{
				Name:   q.Name,
				Rrtype: dns.TypeA,
				Class:  dns.ClassINET,
				Ttl:    ttl,
			},
			A: target,
		})
	}
	return resp
}
