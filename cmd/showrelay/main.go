package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freddysundowner/web-app-tokshop-sub002/internal/clients/showapi"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/clock"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/config"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/relay"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/engine"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/socket"
)

// showrelay follows a show room headlessly and republishes every engine
// change event to JetStream for archival and analytics consumers.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: showrelay <room-id>")
		os.Exit(1)
	}
	roomID := os.Args[1]

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relayCfg := relay.DefaultConfig()
	relayCfg.URL = cfg.Relay.NATSURL
	relayCfg.StreamName = cfg.Relay.StreamName
	relayCfg.SubjectPrefix = cfg.Relay.SubjectPrefix
	publisher, err := relay.NewPublisher(relayCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create relay publisher")
	}
	defer publisher.Close()

	api := showapi.NewClient(cfg.API.BaseURL)
	api.SetTimeout(cfg.API.Timeout)

	identity := func() socket.Identity {
		return socket.Identity{
			UserID:   "relay-" + uuid.New().String()[:8],
			UserName: "relay",
		}
	}
	sock := socket.NewClient(socket.DefaultConfig(cfg.Socket.URL), nil, identity)
	sock.Connect(ctx)
	defer sock.Close()

	engCfg := engine.DefaultConfig()
	engCfg.SnapshotInterval = cfg.Engine.SnapshotInterval
	clk := clock.NewSync(clockwork.NewRealClock())
	eng := engine.New(engCfg, clk, nil, sock, api, identity)

	go eng.Run(ctx)
	go publisher.Run(ctx, eng.Events())

	// Keep trying the initial join while the socket dials.
	for {
		if err := eng.JoinShow(ctx, roomID); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}
	}
	log.Info().Str("room_id", roomID).Msg("relaying show events")

	<-ctx.Done()
	_ = eng.LeaveShow()
}
