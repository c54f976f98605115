package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/trivia/internal/relay"
)

type Config struct {
	bind          string
	cards         string
	chatLimit     int
	chatWindow    time.Duration
	idleTimeout   time.Duration
	logFormat     string
	logLevel      string
	maxMessage    int
	port          int
	prefix        string
	profile       bool
	public        string
	sweepInterval time.Duration
	tlsCert       string
	tlsKey        string
	turnTimeout   time.Duration
	verbose       bool
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.idleTimeout < 0 {
		return fmt.Errorf("invalid idle timeout (must not be negative): %s", c.idleTimeout)
	}
	if c.idleTimeout > 0 && c.sweepInterval <= 0 {
		return fmt.Errorf("invalid sweep interval (must be positive while idle timeout is set): %s", c.sweepInterval)
	}
	if c.turnTimeout < 0 {
		return fmt.Errorf("invalid turn timeout (must not be negative): %s", c.turnTimeout)
	}
	if c.chatLimit < 0 {
		return fmt.Errorf("invalid chat limit (must not be negative): %d", c.chatLimit)
	}
	if c.chatLimit > 0 && c.chatWindow <= 0 {
		return fmt.Errorf("invalid chat window (must be positive while chat limit is set): %s", c.chatWindow)
	}
	if c.maxMessage < 1 {
		return fmt.Errorf("invalid max message length (must be at least 1): %d", c.maxMessage)
	}
	switch c.logFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format (must be console or json): %q", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level (must be debug, info, warn or error): %q", c.logLevel)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) relayOptions() relay.Options {
	opts := relay.DefaultOptions()
	opts.IdleTimeout = c.idleTimeout
	opts.SweepInterval = c.sweepInterval
	opts.TurnTimeout = c.turnTimeout
	opts.ChatLimit = c.chatLimit
	opts.ChatWindow = c.chatWindow
	opts.MaxMessage = c.maxMessage
	return opts
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TRIVIA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "trivia",
		Short:         "Relay server for a two-team restaurant trivia board game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TRIVIA_BIND)")
	fs.StringVar(&cfg.cards, "cards", "cards.json", "question bank to load and save, json or yaml (env: TRIVIA_CARDS)")
	fs.IntVar(&cfg.chatLimit, "chat-limit", 5, "chat messages allowed per player per window, 0 to disable (env: TRIVIA_CHAT_LIMIT)")
	fs.DurationVar(&cfg.chatWindow, "chat-window", 10*time.Second, "rolling window for the chat limit (env: TRIVIA_CHAT_WINDOW)")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", 30*time.Minute, "time before idle rooms are closed, 0 to disable (env: TRIVIA_IDLE_TIMEOUT)")
	fs.StringVar(&cfg.logFormat, "log-format", "console", "log output format, console or json (env: TRIVIA_LOG_FORMAT)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "minimum log level (env: TRIVIA_LOG_LEVEL)")
	fs.IntVar(&cfg.maxMessage, "max-message", 500, "longest chat message, in characters (env: TRIVIA_MAX_MESSAGE)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TRIVIA_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TRIVIA_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TRIVIA_PROFILE)")
	fs.StringVar(&cfg.public, "public", "public", "directory holding the browser client, empty to disable (env: TRIVIA_PUBLIC)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", 5*time.Minute, "how often to look for idle rooms (env: TRIVIA_SWEEP_INTERVAL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TRIVIA_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TRIVIA_TLS_KEY)")
	fs.DurationVar(&cfg.turnTimeout, "turn-timeout", 0, "time after a roll before the room is told the turn expired, 0 to disable (env: TRIVIA_TURN_TIMEOUT)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log at debug level (env: TRIVIA_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TRIVIA_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("trivia v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
