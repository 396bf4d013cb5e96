package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	server "quickdraw/server"
	"quickdraw/server/internal/ledger"
	servernet "quickdraw/server/internal/net"
	"quickdraw/server/internal/social"
	"quickdraw/server/logging"
	loggingsinks "quickdraw/server/logging/sinks"
)

const (
	routerCloseTimeout = 5 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// Run wires the process together and serves until the listener fails or ctx
// is cancelled.
func Run(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		loaded, err := LoadConfig(os.Getenv("QUICKDRAW_CONFIG"))
		if err != nil {
			return err
		}
		cfg = loaded
	}

	zapLogger, err := buildZapLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to construct zap logger: %w", err)
	}
	defer zapLogger.Sync()

	stream := loggingsinks.NewStreamSink()
	sinks := []logging.NamedSink{
		{Name: "console", Sink: loggingsinks.NewConsoleSink(os.Stdout, logging.ConsoleConfig{})},
		{Name: "zap", Sink: loggingsinks.NewZapSink(zapLogger)},
		{Name: "stream", Sink: stream},
	}

	logCfg := logging.DefaultConfig()
	logCfg.EnabledSinks = cfg.Logging.Sinks
	enabled := make([]logging.NamedSink, 0, len(sinks))
	for _, named := range sinks {
		if logCfg.HasSink(named.Name) {
			enabled = append(enabled, named)
		}
	}

	router, err := logging.NewRouter(logging.SystemClock{}, logCfg, enabled)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), routerCloseTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			log.Printf("failed to close logging router: %v", cerr)
		}
	}()

	directory := social.NewDirectory()

	var ranks server.RankRecorder = ledger.NewMemory()
	if addr := cfg.Ledger.RedisAddr; addr != "" {
		redisLedger := ledger.NewRedis(addr)
		defer redisLedger.Close()
		ranks = redisLedger
		zapLogger.Info("rank ledger using redis", zap.String("addr", addr))
	}

	hubCfg := server.DefaultHubConfig()
	if cfg.Duel.BestOf > 0 {
		hubCfg.BestOf = cfg.Duel.BestOf
	}
	if cfg.Duel.Grace > 0 {
		hubCfg.GracePeriod = cfg.Duel.Grace
	}
	if cfg.Duel.Countdown > 0 {
		hubCfg.Countdown = cfg.Duel.Countdown
	}
	if cfg.Duel.TracerAge > 0 {
		hubCfg.TracerMaxAge = cfg.Duel.TracerAge
	}
	if cfg.Duel.PresenceTTL > 0 {
		hubCfg.PresenceTTL = cfg.Duel.PresenceTTL
	}
	hubCfg.Ledger = ranks
	hubCfg.Allow = directory

	hub := server.NewHubWithConfig(hubCfg, router)

	handler := servernet.NewHTTPHandler(hub, directory, servernet.HTTPHandlerConfig{
		Logger: log.Default(),
		Stream: stream,
	})

	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: handler}
	zapLogger.Info("server listening", zap.String("addr", srv.Addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			return fmt.Errorf("server shutdown failed: %w", serr)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}

func buildZapLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = zapcore.InfoLevel
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(parsed)
	return zapCfg.Build()
}
