package wamp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"

	"github.com/gammazero/nexus/v3/router"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/sirupsen/logrus"
)

// Server runs a WAMP router accepting WebSocket clients.
type Server struct {
	address    string
	router     router.Router
	httpServer *http.Server
	listener   net.Listener
	logger     *logrus.Entry
}

// NewServer instantiates a new Server which can be run at a specified address.
// TLS is enabled when certFile and keyFile are both set.
func NewServer(address string,
	realm string,
	certFile string,
	keyFile string,
	logger *logrus.Entry) (*Server, error) {

	// Create router instance.
	routerConfig := &router.Config{
		RealmConfigs: []*router.RealmConfig{
			{
				URI:           wamp.URI(realm),
				AnonymousAuth: true,
			},
		},
	}

	nxr, err := router.NewRouter(routerConfig, logger)
	if err != nil {
		return nil, err
	}

	wss := router.NewWebsocketServer(nxr)

	httpServer := &http.Server{
		Handler: wss,
		Addr:    address,
	}

	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			nxr.Close()
			return nil, fmt.Errorf("error loading X509 key pair: %s", err)
		}
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
		}
	}

	res := &Server{
		address:    address,
		router:     nxr,
		httpServer: httpServer,
		logger:     logger.WithField("component", "wamp-server"),
	}

	return res, nil
}

// Listen binds the server address. It is called by Run if needed, and lets
// callers learn the actual address when binding to port 0.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.listener = l
	s.address = l.Addr().String()
	return nil
}

// Run starts the WAMP websocket server. It blocks until Shutdown.
func (s *Server) Run() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.logger.WithField("address", s.address).Info("Serving WAMP")

	var err error
	if s.httpServer.TLSConfig != nil {
		// certificates are already loaded in the TLSConfig
		err = s.httpServer.ServeTLS(s.listener, "", "")
	} else {
		err = s.httpServer.Serve(s.listener)
	}
	if err != nil && err != http.ErrServerClosed {
		s.logger.WithError(err).Error("Run")
		return err
	}
	return nil
}

// Shutdown stops the websocket server, and the wamp router
func (s *Server) Shutdown() {
	defer s.router.Close()

	if err := s.httpServer.Shutdown(context.Background()); err != nil {
		s.logger.WithError(err).Error("Shutting down http server")
	}
}

// Router returns the embedded router, for local clients.
func (s *Server) Router() router.Router {
	return s.router
}

// Addr returns the address of the server
func (s *Server) Addr() string {
	return s.address
}
