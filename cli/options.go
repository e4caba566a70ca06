package cli

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/anycable/ocpp-central/config"
	"github.com/anycable/ocpp-central/version"
	"github.com/urfave/cli/v2"
)

type cliOption func(*cli.App) error

type customOptionsFactory = func() ([]cli.Flag, error)

func WithCLIName(name string) cliOption {
	return func(app *cli.App) error {
		app.Name = name
		return nil
	}
}

func WithCLIVersion(str string) cliOption {
	return func(app *cli.App) error {
		app.Version = str
		return nil
	}
}

func WithCLIUsageHeader(desc string) cliOption {
	return func(app *cli.App) error {
		app.Usage = desc
		return nil
	}
}

func WithCLICustomOptions(factory customOptionsFactory) cliOption {
	return func(app *cli.App) error {
		custom, err := factory()
		if err != nil {
			return err
		}

		app.Flags = append(app.Flags, custom...)
		return nil
	}
}

// NewConfigFromCLI reads config from os.Args. It returns config, error (if any) and a bool value
// indicating that the usage message, version or config was shown, no further action required.
//
// The configuration file (if any) is loaded first, so flags and env vars take precedence over it.
func NewConfigFromCLI(args []string, opts ...cliOption) (*config.Config, error, bool) {
	c := config.NewConfig()

	configPath := lookupConfigPath(args)

	if configPath != "" {
		if err := c.LoadFromFile(configPath); err != nil {
			return &config.Config{}, err, false
		}
	}

	var helpOrVersionWereShown = true
	var printConfig bool
	var metricsFilter, mtags string

	// Print raw version without prefix
	cli.VersionPrinter = func(cCtx *cli.Context) {
		_, _ = fmt.Fprintf(cCtx.App.Writer, "%v\n", cCtx.App.Version)
	}

	flags := []cli.Flag{}
	flags = append(flags, serverCLIFlags(&c)...)
	flags = append(flags, sslCLIFlags(&c)...)
	flags = append(flags, wsCLIFlags(&c)...)
	flags = append(flags, ocppCLIFlags(&c)...)
	flags = append(flags, nodeCLIFlags(&c)...)
	flags = append(flags, eventsCLIFlags(&c)...)
	flags = append(flags, natsCLIFlags(&c)...)
	flags = append(flags, redisCLIFlags(&c)...)
	flags = append(flags, logCLIFlags(&c)...)
	flags = append(flags, metricsCLIFlags(&c, &metricsFilter, &mtags)...)
	flags = append(flags, statsdCLIFlags(&c)...)
	flags = append(flags, miscCLIFlags(configPath, &printConfig)...)

	app := &cli.App{
		Name:            "ocpp-central",
		Version:         version.Version(),
		Usage:           "OCPP Central, the OCPP 1.6J central system",
		HideHelpCommand: true,
		Flags:           flags,
		Action: func(nc *cli.Context) error {
			helpOrVersionWereShown = false
			return nil
		},
	}

	for _, o := range opts {
		err := o(app)
		if err != nil {
			return &config.Config{}, err, false
		}
	}

	err := app.Run(args)
	if err != nil {
		return &config.Config{}, err, false
	}

	// helpOrVersionWereShown = false indicates that the default action has been run.
	// true means that help/version message was displayed.
	//
	// Unfortunately, cli module does not support another way of detecting if or which
	// command was run.
	if helpOrVersionWereShown {
		return &config.Config{}, nil, true
	}

	if c.Debug {
		c.LogLevel = "debug"
		c.LogFormat = "text"
	}

	if mtags != "" {
		c.Metrics.Tags = parseTags(mtags)
	}

	if metricsFilter != "" {
		c.Metrics.LogFilter = strings.Split(metricsFilter, ",")
	}

	if printConfig {
		str, err := c.ToToml()
		if err != nil {
			return &config.Config{}, err, false
		}

		_, _ = fmt.Fprint(app.Writer, str)

		return &c, nil, true
	}

	return &c, nil, false
}

// Flags ordering issue: https://github.com/urfave/cli/pull/1430

const (
	serverCategoryDescription  = "OCPP CENTRAL SERVER:"
	sslCategoryDescription     = "SSL:"
	wsCategoryDescription      = "WEBSOCKETS:"
	ocppCategoryDescription    = "OCPP:"
	nodeCategoryDescription    = "SESSIONS:"
	eventsCategoryDescription  = "EVENTS:"
	natsCategoryDescription    = "NATS:"
	redisCategoryDescription   = "REDIS:"
	logCategoryDescription     = "LOG:"
	metricsCategoryDescription = "METRICS:"
	statsdCategoryDescription  = "STATSD:"
	miscCategoryDescription    = "MISC:"

	envPrefix = "OCPP_"
)

var (
	splitFlagName = regexp.MustCompile("[_-]")
)

// serverCLIFlags returns base server flags
func serverCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(serverCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "host",
			Value:       c.Server.Host,
			Usage:       "Server host",
			Destination: &c.Server.Host,
		},

		&cli.IntFlag{
			Name:        "port",
			Value:       c.Server.Port,
			Usage:       "Server port",
			EnvVars:     []string{envPrefix + "PORT", "PORT"},
			Destination: &c.Server.Port,
		},

		&cli.IntFlag{
			Name:        "max-conn",
			Value:       c.Server.MaxConn,
			Usage:       "Limit simultaneous server connections (0 - without limit)",
			Destination: &c.Server.MaxConn,
		},

		&cli.StringFlag{
			Name:        "health-path",
			Value:       c.Server.HealthPath,
			Usage:       "HTTP health endpoint path",
			Destination: &c.Server.HealthPath,
		},

		&cli.StringFlag{
			Name:        "stations_path",
			Value:       c.StationsPath,
			Usage:       "HTTP endpoint path to list known stations (empty to disable)",
			Destination: &c.StationsPath,
		},

		&cli.IntFlag{
			Name:        "shutdown_timeout",
			Usage:       "Graceful shutdown timeout (in seconds)",
			Value:       c.ShutdownTimeout,
			Destination: &c.ShutdownTimeout,
		},
	})
}

// sslCLIFlags returns SSL flags
func sslCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(sslCategoryDescription, []cli.Flag{
		&cli.PathFlag{
			Name:        "ssl_cert",
			Value:       c.Server.SSL.CertPath,
			Usage:       "SSL certificate path",
			Destination: &c.Server.SSL.CertPath,
		},

		&cli.PathFlag{
			Name:        "ssl_key",
			Value:       c.Server.SSL.KeyPath,
			Usage:       "SSL private key path",
			Destination: &c.Server.SSL.KeyPath,
		},
	})
}

// wsCLIFlags returns CLI flags for WebSocket
func wsCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(wsCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "path",
			Value:       c.WS.Path,
			Usage:       "WebSocket endpoint path prefix (stations connect to <path>/<backend>/<station id>)",
			Destination: &c.WS.Path,
		},

		&cli.IntFlag{
			Name:        "read_buffer_size",
			Usage:       "WebSocket connection read buffer size",
			Value:       c.WS.ReadBufferSize,
			Destination: &c.WS.ReadBufferSize,
		},

		&cli.IntFlag{
			Name:        "write_buffer_size",
			Usage:       "WebSocket connection write buffer size",
			Value:       c.WS.WriteBufferSize,
			Destination: &c.WS.WriteBufferSize,
		},

		&cli.Int64Flag{
			Name:        "max_message_size",
			Usage:       "Maximum size of a message in bytes",
			Value:       c.WS.MaxMessageSize,
			Destination: &c.WS.MaxMessageSize,
		},

		&cli.BoolFlag{
			Name:        "enable_ws_compression",
			Usage:       "Enable experimental WebSocket per message compression",
			Value:       c.WS.EnableCompression,
			Destination: &c.WS.EnableCompression,
		},

		&cli.StringFlag{
			Name:        "allowed_origins",
			Usage:       `Accept requests only from specified origins, e.g., "www.example.com,*example.io". No check is performed if empty`,
			Value:       c.WS.AllowedOrigins,
			Destination: &c.WS.AllowedOrigins,
		},

		&cli.BoolFlag{
			Name:        "require_subprotocol",
			Usage:       "Reject connections not offering the ocpp1.6 subprotocol",
			Value:       c.WS.RequireSubprotocol,
			Destination: &c.WS.RequireSubprotocol,
		},
	})
}

// ocppCLIFlags returns CLI flags for OCPP messages handling
func ocppCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(ocppCategoryDescription, []cli.Flag{
		&cli.IntFlag{
			Name:        "heartbeat_interval",
			Usage:       "Heartbeat interval returned to stations on boot (in seconds)",
			Value:       c.OCPP.HeartbeatInterval,
			Destination: &c.OCPP.HeartbeatInterval,
		},

		&cli.BoolFlag{
			Name:        "validate_payloads",
			Usage:       "Validate incoming call payloads against OCPP 1.6 schemas",
			Value:       c.OCPP.ValidatePayloads,
			Destination: &c.OCPP.ValidatePayloads,
		},
	})
}

// nodeCLIFlags returns CLI flags for station sessions
func nodeCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(nodeCategoryDescription, []cli.Flag{
		&cli.IntFlag{
			Name:        "call_timeout",
			Usage:       "Timeout for server-initiated calls (in seconds)",
			Value:       c.Node.CallTimeout,
			Destination: &c.Node.CallTimeout,
		},

		&cli.IntFlag{
			Name:        "write_timeout",
			Usage:       "Timeout for writing a single frame (in seconds)",
			Value:       c.Node.WriteTimeout,
			Destination: &c.Node.WriteTimeout,
		},

		&cli.IntFlag{
			Name:        "max_malformed_frames",
			Usage:       "Close the session after this number of consecutive malformed frames (0 - never)",
			Value:       c.Node.MaxMalformedFrames,
			Destination: &c.Node.MaxMalformedFrames,
		},

		&cli.IntFlag{
			Name:        "stale_timeout",
			Usage:       "Disconnect stations without any activity for the specified period (in seconds, 0 - disabled)",
			Value:       c.Node.StaleTimeout,
			Destination: &c.Node.StaleTimeout,
		},

		&cli.BoolFlag{
			Name:        "allow_anonymous",
			Usage:       "Accept connections without a station identifier (registered as UNKNOWN)",
			Value:       c.Node.AllowAnonymous,
			Destination: &c.Node.AllowAnonymous,
		},

		&cli.IntFlag{
			Name:        "stats_refresh_interval",
			Usage:       "How often to refresh the server stats (in seconds)",
			Value:       c.Node.StatsRefreshInterval,
			Destination: &c.Node.StatsRefreshInterval,
		},
	})
}

// eventsCLIFlags returns CLI flags for station events delivery
func eventsCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(eventsCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "events_adapter",
			Usage:       "Station events adapters, comma-separated (log, nats, redis)",
			Value:       c.Events.Adapter,
			Destination: &c.Events.Adapter,
		},
	})
}

// natsCLIFlags returns CLI flags for NATS events adapter
func natsCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(natsCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "nats_servers",
			Usage:       "Comma separated list of NATS cluster servers",
			Value:       c.Events.NATS.Servers,
			Destination: &c.Events.NATS.Servers,
		},

		&cli.StringFlag{
			Name:        "nats_subject_prefix",
			Usage:       "NATS subject prefix for station events (the event kind is appended)",
			Value:       c.Events.NATS.SubjectPrefix,
			Destination: &c.Events.NATS.SubjectPrefix,
		},

		&cli.BoolFlag{
			Name:        "nats_dont_randomize_servers",
			Usage:       "Pass this option to disable NATS servers randomization during (re-)connect",
			Value:       c.Events.NATS.DontRandomizeServers,
			Destination: &c.Events.NATS.DontRandomizeServers,
		},

		&cli.IntFlag{
			Name:        "nats_max_reconnect_attempts",
			Usage:       "The maximum number of reconnect attempts",
			Value:       c.Events.NATS.MaxReconnectAttempts,
			Destination: &c.Events.NATS.MaxReconnectAttempts,
		},
	})
}

// redisCLIFlags returns CLI flags for Redis events adapter
func redisCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(redisCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "redis_url",
			Usage:       "Redis url",
			Value:       c.Events.Redis.URL,
			EnvVars:     []string{envPrefix + "REDIS_URL", "REDIS_URL"},
			Destination: &c.Events.Redis.URL,
		},

		&cli.StringFlag{
			Name:        "redis_channel",
			Usage:       "Redis channel to publish station events to",
			Value:       c.Events.Redis.Channel,
			Destination: &c.Events.Redis.Channel,
		},

		&cli.IntFlag{
			Name:        "redis_buffer_size",
			Usage:       "The maximum number of station events waiting to be published",
			Value:       c.Events.Redis.BufferSize,
			Destination: &c.Events.Redis.BufferSize,
		},
	})
}

// logCLIFlags returns CLI flags for logging
func logCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(logCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "log_level",
			Usage:       "Set logging level (debug/info/warn/error/fatal)",
			Value:       c.LogLevel,
			Destination: &c.LogLevel,
		},

		&cli.StringFlag{
			Name:        "log_format",
			Usage:       "Set logging format (text/json)",
			Value:       c.LogFormat,
			Destination: &c.LogFormat,
		},

		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "Enable debug mode (more verbose logging)",
			Value:       c.Debug,
			Destination: &c.Debug,
		},
	})
}

// metricsCLIFlags returns CLI flags for metrics
func metricsCLIFlags(c *config.Config, filter *string, mtags *string) []cli.Flag {
	return withDefaults(metricsCategoryDescription, []cli.Flag{
		&cli.BoolFlag{
			Name:        "metrics_log",
			Usage:       "Enable metrics logging (with info level)",
			Value:       c.Metrics.Log,
			Destination: &c.Metrics.Log,
		},

		&cli.IntFlag{
			Name:        "metrics_rotate_interval",
			Usage:       "Specify how often flush metrics to writers (logs, statsd) (in seconds)",
			Value:       c.Metrics.RotateInterval,
			Destination: &c.Metrics.RotateInterval,
		},

		&cli.StringFlag{
			Name:        "metrics_log_filter",
			Usage:       "Specify list of metrics to print to log (to reduce the output)",
			Destination: filter,
		},

		&cli.StringFlag{
			Name:        "metrics_http",
			Usage:       "Enable HTTP metrics endpoint at the specified path",
			Value:       c.Metrics.HTTP,
			Destination: &c.Metrics.HTTP,
		},

		&cli.StringFlag{
			Name:        "metrics_tags",
			Usage:       "Comma-separated list of default (global) tags to add to every metric",
			Destination: mtags,
		},
	})
}

// StatsD related flags
func statsdCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(statsdCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "statsd_host",
			Usage:       "Server host for metrics sent to statsd server in the format <host>:<port>",
			Value:       c.Metrics.Statsd.Host,
			Destination: &c.Metrics.Statsd.Host,
		},
		&cli.StringFlag{
			Name:        "statsd_prefix",
			Usage:       "Statsd metrics prefix",
			Value:       c.Metrics.Statsd.Prefix,
			Destination: &c.Metrics.Statsd.Prefix,
		},
		&cli.IntFlag{
			Name:        "statsd_max_packet_size",
			Usage:       "Statsd client maximum UDP packet size",
			Value:       c.Metrics.Statsd.MaxPacketSize,
			Destination: &c.Metrics.Statsd.MaxPacketSize,
		},
		&cli.StringFlag{
			Name:        "statsd_tags_format",
			Usage:       `One of "datadog", "influxdb", or "graphite"`,
			Value:       c.Metrics.Statsd.TagFormat,
			Destination: &c.Metrics.Statsd.TagFormat,
		},
	})
}

// miscCLIFlags returns uncategorized flags
func miscCLIFlags(configPath string, printConfig *bool) []cli.Flag {
	return withDefaults(miscCategoryDescription, []cli.Flag{
		&cli.PathFlag{
			Name:  "config",
			Usage: "Path to a TOML configuration file (CLI options and env vars take precedence)",
			Value: configPath,
		},

		&cli.BoolFlag{
			Name:        "print_config",
			Usage:       "Print the resulting configuration in TOML format and exit",
			Destination: printConfig,
		},
	})
}

// lookupConfigPath finds the config file path before the flags are parsed,
// since the file provides defaults for them
func lookupConfigPath(args []string) string {
	if len(args) > 1 {
		for i, arg := range args[1:] {
			if arg == "--" {
				break
			}

			name := strings.TrimLeft(arg, "-")

			if name == arg {
				continue
			}

			if name == "config" && i+2 < len(args) {
				return args[i+2]
			}

			if strings.HasPrefix(name, "config=") {
				return strings.TrimPrefix(name, "config=")
			}
		}
	}

	return os.Getenv(nameToEnvVarName("config"))
}

// withDefaults sets category and env var name a flags passed as the arument
func withDefaults(category string, flags []cli.Flag) []cli.Flag {
	for _, f := range flags {
		switch v := f.(type) {
		case *cli.IntFlag:
			v.Category = category
			if len(v.EnvVars) == 0 {
				v.EnvVars = []string{nameToEnvVarName(v.Name)}
			}
		case *cli.Int64Flag:
			v.Category = category
			if len(v.EnvVars) == 0 {
				v.EnvVars = []string{nameToEnvVarName(v.Name)}
			}
		case *cli.BoolFlag:
			v.Category = category
			if len(v.EnvVars) == 0 {
				v.EnvVars = []string{nameToEnvVarName(v.Name)}
			}
		case *cli.StringFlag:
			v.Category = category
			if len(v.EnvVars) == 0 {
				v.EnvVars = []string{nameToEnvVarName(v.Name)}
			}
		case *cli.PathFlag:
			v.Category = category
			if len(v.EnvVars) == 0 {
				v.EnvVars = []string{nameToEnvVarName(v.Name)}
			}
		}
	}
	return flags
}

// nameToEnvVarName converts flag name to env variable
func nameToEnvVarName(name string) string {
	split := splitFlagName.Split(name, -1)
	set := []string{}

	for i := range split {
		set = append(set, strings.ToUpper(split[i]))
	}

	return envPrefix + strings.Join(set, "_")
}

func parseTags(str string) map[string]string {
	tags := strings.Split(str, ",")

	res := make(map[string]string, len(tags))

	for _, v := range tags {
		parts := strings.SplitN(v, ":", 2)

		if len(parts) != 2 {
			continue
		}

		res[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}

	return res
}
