package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/Seednode/trivia/internal/cards"
	"github.com/Seednode/trivia/internal/observability"
	"github.com/Seednode/trivia/internal/relay"
	"github.com/Seednode/trivia/internal/room"
)

const (
	timeout time.Duration = 10 * time.Second

	// longer than the long-poll wait
	writeTimeout time.Duration = 60 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), magnetometer=(), gyroscope=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self'; img-src 'self' data:")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

// served logs one completed response at debug level.
func served(logger *zap.Logger, what string, r *http.Request, written int64, start time.Time) {
	logger.Debug(observability.Serve.Msg(what),
		zap.String("size", humanReadableSize(written)),
		zap.String("remote", realIP(r)),
		zap.Duration("elapsed", time.Since(start).Round(time.Microsecond)),
	)
}

func serveVersion(cfg *Config, logger *zap.Logger, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("trivia v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}

		served(logger, "version page", r, int64(written), startTime)
	}
}

// serveStatic serves the browser client from dir for every path no route
// claims.
func serveStatic(cfg *Config, dir string) http.Handler {
	files := http.StripPrefix(cfg.prefix, http.FileServer(http.Dir(dir)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		securityHeaders(cfg, w)
		files.ServeHTTP(w, r)
	})
}

// routes builds the full HTTP surface around an already constructed relay.
func routes(cfg *Config, logger *zap.Logger, srv *relay.Server, bank *cards.Bank, started time.Time, errs chan<- error) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		logger.Error(observability.Serve.Msg("handler panicked"), zap.Any("panic", i), zap.String("path", r.URL.Path))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		_, _ = io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	reg := srv.Registry()

	mux.GET(cfg.prefix+"/health", serveHealth(cfg, srv, started, errs))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, logger, errs))

	mux.GET(cfg.prefix+"/stats", serveStats(cfg, logger, reg, started, errs))

	mux.POST(cfg.prefix+"/clear-rooms", clearRooms(cfg, logger, srv, errs))

	mux.GET(cfg.prefix+"/api/cards", serveCards(cfg, logger, bank, errs))

	mux.POST(cfg.prefix+"/api/cards", saveCards(cfg, logger, bank, errs))

	mux.GET(cfg.prefix+"/rooms/:code/qr", serveQR(cfg, logger, reg, errs))

	srv.Register(mux, cfg.prefix, realIP)

	if cfg.profile {
		registerProfileHandlers(cfg, logger, mux)
	}

	if cfg.public != "" {
		mux.NotFound = serveStatic(cfg, cfg.public)
	}

	return mux
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info(observability.Start.Msg("trivia"), zap.String("version", releaseVersion))

	bank, err := cards.Load(cfg.cards)
	if err != nil {
		return fmt.Errorf("loading question bank: %w", err)
	}

	started := time.Now()

	srv := relay.New(room.NewRegistry(), bank, logger.Named("relay"), cfg.relayOptions())

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()

	relayDone := make(chan struct{})
	go func() {
		srv.Run(relayCtx)
		close(relayDone)
	}()

	errs := make(chan error, 64)
	go drainErrors(logger, errs)

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	httpSrv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           routes(cfg, logger, srv, bank, started, errs),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      writeTimeout,
	}

	listenErr := make(chan error, 1)
	go func() {
		logger.Info(observability.Serve.Msg("listening"), zap.String("url", fmt.Sprintf("%s://%s%s/", cfg.scheme(), httpSrv.Addr, cfg.prefix)))
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			listenErr <- httpSrv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			listenErr <- httpSrv.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	logger.Info(observability.Stop.Msg("shutting down"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	stopRelay()
	<-relayDone

	return err
}

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}
