package cli

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anycable/ocpp-central/config"
	"github.com/anycable/ocpp-central/events"
	"github.com/anycable/ocpp-central/metrics"
	"github.com/anycable/ocpp-central/node"
	"github.com/anycable/ocpp-central/ocpp"
	"github.com/anycable/ocpp-central/server"
	"github.com/anycable/ocpp-central/stations"
	"github.com/anycable/ocpp-central/utils"
	"github.com/anycable/ocpp-central/validator"
	"github.com/anycable/ocpp-central/version"
	"github.com/anycable/ocpp-central/ws"
	"github.com/apex/log"
	"github.com/gorilla/websocket"
	"github.com/joomcode/errorx"
	"golang.org/x/sync/errgroup"
)

type Shutdownable interface {
	Shutdown(ctx context.Context) error
}

type handlersFactory = func(*ocpp.Dispatcher, *config.Config, events.Emitter) error

// Runner wires all the components together and runs the server
type Runner struct {
	name   string
	config *config.Config
	log    *log.Entry

	handlersFactory handlersFactory
	adapters        []events.Adapter
	shutdownables   []Shutdownable

	metrics  *metrics.Metrics
	emitter  *events.Multi
	stations *stations.Store
	node     *node.Node
	server   *server.HTTPServer
	signals  *utils.GracefulSignals
}

// NewRunner returns a new Runner structure
func NewRunner(c *config.Config, opts []Option) (*Runner, error) {
	r := &Runner{
		name:          "OCPP Central",
		config:        c,
		adapters:      []events.Adapter{},
		shutdownables: []Shutdownable{},
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.handlersFactory == nil {
		return nil, errorx.IllegalArgument.New("Handlers must be specified")
	}

	if err := utils.InitLogger(c.LogFormat, c.LogLevel); err != nil {
		return nil, errorx.Decorate(err, "failed to initialize logger")
	}

	r.log = log.WithField("context", "main")

	return r, nil
}

// Run starts the server and blocks until it is stopped
func (r *Runner) Run() error {
	if err := r.Prepare(); err != nil {
		return err
	}

	return r.Serve()
}

// Prepare builds the components, starts the node and binds the server address
func (r *Runner) Prepare() error {
	r.announceDebugMode()

	r.log.Infof("Starting %s %s (pid: %d)", r.name, version.Version(), os.Getpid())

	if err := r.checkRoutes(); err != nil {
		return err
	}

	m, err := metrics.FromConfig(&r.config.Metrics)
	if err != nil {
		return errorx.Decorate(err, "failed to initialize metrics")
	}

	r.metrics = m

	if err := r.buildEmitter(); err != nil {
		return err
	}

	dispatcher, err := r.buildDispatcher()
	if err != nil {
		return err
	}

	if err := r.handlersFactory(dispatcher, r.config, r.emitter); err != nil {
		return errorx.Decorate(err, "failed to register handlers")
	}

	r.node = node.NewNode(
		&r.config.Node,
		dispatcher,
		node.WithEmitter(r.emitter),
		node.WithInstrumenter(r.metrics),
	)

	if err := r.emitter.Start(); err != nil {
		return errorx.Decorate(err, "failed to start events emitter")
	}

	if err := r.node.Start(); err != nil {
		return errorx.Decorate(err, "failed to start node")
	}

	srv, err := server.NewServer(&r.config.Server)
	if err != nil {
		return err
	}

	r.server = srv
	r.mountHandlers(srv.Mux)

	if err := srv.Listen(); err != nil {
		return err
	}

	r.log.Infof("Handle OCPP %s connections at %s%s", ocpp.Subprotocol16, srv.Address(), r.config.WS.Path)

	r.signals = r.setupSignalHandlers()

	return nil
}

// Serve runs the HTTP server and metrics until shutdown.
// A failure of any of them shuts down the rest.
func (r *Runner) Serve() error {
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(r.server.Start)
	g.Go(r.metrics.Run)

	go func() {
		<-ctx.Done()
		r.signals.Shutdown()
	}()

	err := g.Wait()

	<-r.signals.Done()

	return err
}

// Stop triggers graceful shutdown
func (r *Runner) Stop() {
	r.signals.Shutdown()
}

func (r *Runner) buildEmitter() error {
	configured, err := events.FromConfig(&r.config.Events)
	if err != nil {
		return errorx.Decorate(err, "failed to configure events")
	}

	r.log.Debugf("Station events adapters: %s", strings.Join(configured.Adapters(), ", "))

	r.stations = stations.NewStore()

	adapters := append([]events.Adapter{configured, r.stations}, r.adapters...)
	r.emitter = events.NewMulti(adapters...)

	return nil
}

func (r *Runner) buildDispatcher() (*ocpp.Dispatcher, error) {
	opts := []ocpp.DispatcherOption{}

	if r.config.OCPP.ValidatePayloads {
		v, err := validator.NewSchemaValidator()
		if err != nil {
			return nil, errorx.Decorate(err, "failed to load payload schemas")
		}

		r.log.Debugf("Validate payloads for: %s", strings.Join(v.Actions(), ", "))

		opts = append(opts, ocpp.WithValidator(v))
	}

	return ocpp.NewDispatcher(opts...), nil
}

func (r *Runner) mountHandlers(mux *http.ServeMux) {
	wsHandler := ws.WebsocketHandler(&r.config.WS, func(wsc *websocket.Conn, info *ws.RequestInfo, callback func()) error {
		session, err := r.node.HandleConnection(ws.NewConnection(wsc), info)

		if err != nil {
			callback()
			return err
		}

		return session.Serve(callback)
	})

	mux.Handle(mountPattern(r.config.WS.Path), wsHandler)

	if r.config.Metrics.HTTPEnabled() {
		r.log.Infof("Serve metrics at %s", r.config.Metrics.HTTP)
		mux.Handle(r.config.Metrics.HTTP, http.HandlerFunc(r.metrics.PrometheusHandler))
	}

	if r.config.StationsPath != "" {
		r.log.Infof("Serve stations at %s", r.config.StationsPath)
		router := r.stations.Router(r.config.StationsPath)
		mux.Handle(strings.TrimSuffix(r.config.StationsPath, "/"), router)
		mux.Handle(mountPattern(r.config.StationsPath), router)
	}
}

func (r *Runner) setupSignalHandlers() *utils.GracefulSignals {
	s := utils.NewGracefulSignals(time.Duration(r.config.ShutdownTimeout) * time.Second)

	s.HandleForceTerminate(func() {
		r.log.Warn("Immediate termination requested. Stopped")
		os.Exit(0)
	})

	s.Handle(func(ctx context.Context) error {
		r.log.Infof("Shutting down... (hit Ctrl-C to stop immediately or wait for up to %ds for graceful shutdown)", r.config.ShutdownTimeout)
		return nil
	})

	s.Handle(r.node.Shutdown)
	s.Handle(r.server.Shutdown)
	s.Handle(r.emitter.Shutdown)
	s.Handle(r.metrics.Shutdown)

	for _, instance := range r.shutdownables {
		s.Handle(instance.Shutdown)
	}

	s.Listen()

	return s
}

func (r *Runner) announceDebugMode() {
	if r.config.Debug {
		r.log.Debug("Debug mode is on")
	}
}

// checkRoutes verifies that the stations endpoint can be mounted next to the WebSocket handler.
// When the stations endpoint lies within the WebSocket subtree, its first path segment
// can not be used as a backend label.
func (r *Runner) checkRoutes() error {
	if r.config.StationsPath == "" {
		return nil
	}

	stations := mountPattern(r.config.StationsPath)
	wsPath := mountPattern(r.config.WS.Path)

	if stations == "/" {
		return errorx.IllegalArgument.New("stations path must not be the root path")
	}

	if stations == wsPath {
		return errorx.IllegalArgument.New("stations path conflicts with WebSocket path: %s", r.config.WS.Path)
	}

	if strings.HasPrefix(stations, wsPath) {
		r.log.Warnf("Station connections at %s are routed to the stations endpoint", stations)
	}

	return nil
}

// mountPattern makes the WebSocket path a subtree pattern
func mountPattern(path string) string {
	if !strings.HasSuffix(path, "/") {
		return path + "/"
	}

	return path
}
