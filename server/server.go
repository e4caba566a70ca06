package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/joomcode/errorx"
	"golang.org/x/net/netutil"
)

const readHeaderTimeout = 10 * time.Second

// HTTPServer is wrapper over http.Server
type HTTPServer struct {
	server   *http.Server
	addr     string
	secured  bool
	maxConn  int
	listener net.Listener
	mu       sync.Mutex
	log      *log.Entry

	Mux *http.ServeMux
}

// NewServer builds HTTPServer from config params
func NewServer(config *Config) (*HTTPServer, error) {
	mux := http.NewServeMux()
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	secured := config.SSL.Available()

	if secured {
		cer, err := tls.LoadX509KeyPair(config.SSL.CertPath, config.SSL.KeyPath)
		if err != nil {
			return nil, errorx.Decorate(err, "failed to load SSL certificate")
		}

		server.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cer}, MinVersion: tls.VersionTLS12}
	}

	if config.HealthPath != "" {
		mux.HandleFunc(config.HealthPath, HealthHandler)
	}

	return &HTTPServer{
		server:  server,
		addr:    addr,
		secured: secured,
		maxConn: config.MaxConn,
		Mux:     mux,
		log:     log.WithField("context", "http"),
	}, nil
}

// Listen binds the server address
func (s *HTTPServer) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)

	if err != nil {
		return errorx.Decorate(err, "failed to listen on %s", s.addr)
	}

	if s.maxConn > 0 {
		ln = netutil.LimitListener(ln, s.maxConn)
	}

	s.listener = ln

	return nil
}

// Start listens (if not yet) and serves requests until the server is shut down
func (s *HTTPServer) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.log.Infof("Handle HTTP requests at %s", s.Address())

	var err error

	if s.secured {
		err = s.server.ServeTLS(s.listener, "", "")
	} else {
		err = s.server.Serve(s.listener)
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Shutdown gracefully stops the server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Address returns the server URL (with the actual port if the server is listening)
func (s *HTTPServer) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	scheme := "http://"

	if s.secured {
		scheme = "https://"
	}

	addr := s.addr

	if s.listener != nil {
		addr = s.listener.Addr().String()
	}

	return fmt.Sprintf("%s%s", scheme, addr)
}
