package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-storefront-client/internal/config"
	"github.com/jrsteele09/go-storefront-client/server"
)

const (
	portVar        = "MOCK_PORT"
	secretVar      = "MOCK_SECRET"
	accessTTLVar   = "MOCK_ACCESS_TTL"
	rotateVar      = "MOCK_ROTATE_REFRESH"
	loginStyleVar  = "MOCK_LOGIN_STYLE"
	cartShapeVar   = "MOCK_CART_SHAPE"
	defaultPort    = ":8080"
	defaultTTLText = "15m"
)

func main() {
	c := config.New()
	setupLogger(c.GetLogLevel())

	for {
		if err := run(c); err != nil {
			log.Fatal().Err(err).Msg("Error running mock backend")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Mock backend stopped")
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	options, err := serverOptions(c)
	if err != nil {
		return err
	}
	backend, err := server.New(options...)
	if err != nil {
		return err
	}

	displayAppname(c.GetAppName() + " mock")
	httpServer := &http.Server{
		Addr:              config.GetEnv(portVar, defaultPort),
		Handler:           backend,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(httpServer) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func serverOptions(c config.Config) ([]server.Option, error) {
	ttl, err := time.ParseDuration(config.GetEnv(accessTTLVar, defaultTTLText))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", accessTTLVar, err)
	}
	rotate, err := strconv.ParseBool(config.GetEnv(rotateVar, "false"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rotateVar, err)
	}

	options := []server.Option{
		server.WithEnv(c.GetEnv()),
		server.WithPrefix(c.GetAPIPrefix()),
		server.WithAccessTokenTTL(ttl),
		server.WithRefreshRotation(rotate),
		server.WithLoginStyle(server.LoginStyle(config.GetEnv(loginStyleVar, string(server.LoginObject)))),
		server.WithCartShape(server.CartShape(config.GetEnv(cartShapeVar, string(server.CartItemsKey)))),
		server.WithLogger(log.Logger),
	}
	if secret := os.Getenv(secretVar); secret != "" {
		options = append(options, server.WithSecret(secret))
	}
	return options, nil
}

func listenAndServe(httpServer *http.Server) error {
	log.Info().Str("addr", httpServer.Addr).Msg("Mock backend listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
