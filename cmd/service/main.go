package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/windybank/windybanknet/internal"
	"github.com/windybank/windybanknet/internal/config"
	"github.com/windybank/windybanknet/internal/logging"
	"github.com/windybank/windybanknet/pkg"

	log "github.com/sirupsen/logrus"
)

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	log.Warnf("---->> running in [%s] environment", *env)

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    false,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        sentryDSN,
		SentryServerName: "main-service",
	})

	log.Debugf("using port: %d", cfg.Port)
	log.Debugf("using server logs path: [%s]", cfg.LogsPath)
	log.Debugf("using content dir: [%s]", cfg.ContentDirPath)

	versionInfo, err := tryGetLastCommitHash()
	if err != nil {
		log.Tracef("failed to get last commit hash / version info: %s", err)
	} else {
		log.Tracef("running version: %s", versionInfo)
	}

	blueskyHandle := os.Getenv("BLUESKY_HANDLE")
	blueskyAppPassword := os.Getenv("BLUESKY_APP_PASSWORD")
	if blueskyHandle == "" || blueskyAppPassword == "" {
		// not fatal: announcements report a config error per attempt
		log.Errorf("bluesky credentials not set. use BLUESKY_HANDLE and BLUESKY_APP_PASSWORD")
	}

	webhookSecret := os.Getenv("BLUESKY_WEBHOOK_SECRET")
	if webhookSecret == "" {
		log.Errorf("bluesky webhook secret not set. use BLUESKY_WEBHOOK_SECRET")
	}

	redisPassword := os.Getenv("WINDYBANK_REDIS_PASS")
	if redisPassword == "" {
		log.Errorf("redis password not set. use WINDYBANK_REDIS_PASS")
	}

	if otelServiceName := os.Getenv("OTEL_SERVICE_NAME"); otelServiceName == "" {
		log.Warnln("OTEL_SERVICE_NAME env var not set")
	}

	honeycombEnabled := os.Getenv("HONEYCOMB_ENABLED") == "true"
	if honeycombEnabled {
		if honeycombApiKey := os.Getenv("HONEYCOMB_API_KEY"); honeycombApiKey == "" {
			log.Warnln("HONEYCOMB_API_KEY env var not set")
		}
	} else {
		log.Debugln("honeycomb tracing disabled")
	}

	contentDirExists, err := pkg.PathExists(cfg.ContentDirPath, true)
	if err != nil {
		log.Fatalf("check content dir: %s", err)
	}
	if !contentDirExists {
		log.Warnf("content dir [%s] does not exist, serving an empty catalog", cfg.ContentDirPath)
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:                  cfg,
			BlueskyHandle:           blueskyHandle,
			BlueskyAppPassword:      blueskyAppPassword,
			WebhookSecret:           webhookSecret,
			RedisPassword:           redisPassword,
			HoneycombTracingEnabled: honeycombEnabled,
		},
	)
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	server.Serve(ctx, cfg.Host, cfg.Port)

	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received ...", receivedSig)
	cancel()

	if err := server.GracefulShutdown(); err != nil {
		log.Errorf("graceful shutdown: %s", err)
	}
}

func tryGetLastCommitHash() (string, error) {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
