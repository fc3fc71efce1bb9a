package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
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
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/engine"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/socket"
)

// identityHolder resolves the viewer identity fresh at every emit.
type identityHolder struct {
	mu sync.Mutex
	id socket.Identity
}

func (h *identityHolder) set(id socket.Identity) {
	h.mu.Lock()
	h.id = id
	h.mu.Unlock()
}

func (h *identityHolder) get() socket.Identity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: showviewer <room-id>")
		os.Exit(1)
	}
	roomID := os.Args[1]

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := showapi.NewClient(cfg.API.BaseURL)
	api.SetTimeout(cfg.API.Timeout)

	holder := &identityHolder{}
	profile := resolveIdentity(ctx, api, cfg, holder)

	sockCfg := socket.DefaultConfig(cfg.Socket.URL)
	sockCfg.PingInterval = cfg.Socket.PingInterval
	sockCfg.ReconnectWait = cfg.Socket.ReconnectWait
	sockCfg.RejoinSuppress = cfg.Socket.RejoinSuppress
	sock := socket.NewClient(sockCfg, nil, holder.get)
	sock.Connect(ctx)
	defer sock.Close()

	engCfg := engine.DefaultConfig()
	engCfg.SnapshotInterval = cfg.Engine.SnapshotInterval
	clk := clock.NewSync(clockwork.NewRealClock())
	eng := engine.New(engCfg, clk, nil, sock, api, holder.get)

	go eng.Run(ctx)
	go printChanges(eng.Events())

	if profile != nil {
		eng.SetProfile(profile)
	}

	// The socket may still be dialing; keep trying briefly before giving up
	// on the initial join.
	if err := joinWithRetry(ctx, eng, roomID, 10*time.Second); err != nil {
		log.Fatal().Err(err).Str("room_id", roomID).Msg("could not join show")
	}
	log.Info().Str("room_id", roomID).Msg("joined show")

	readCommands(ctx, eng, stop)
}

// resolveIdentity races the profile lookup against a fixed timeout so a slow
// auth provider can never block room entry; on timeout the viewer proceeds as
// a guest.
func resolveIdentity(ctx context.Context, api *showapi.Client, cfg config.Config, holder *identityHolder) *showapi.UserProfile {
	guest := socket.Identity{
		UserID:   "guest-" + uuid.New().String()[:8],
		UserName: "Guest",
	}
	holder.set(guest)

	if cfg.Viewer.UserID == "" {
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	profile, err := api.GetUserProfile(lookupCtx, cfg.Viewer.UserID)
	if err != nil {
		log.Warn().Err(err).Msg("profile lookup failed or timed out, continuing as guest")
		return nil
	}

	name := cfg.Viewer.UserName
	if name == "" {
		name = profile.UserName
	}
	holder.set(socket.Identity{UserID: profile.ID, UserName: name})
	return profile
}

func joinWithRetry(ctx context.Context, eng *engine.Engine, roomID string, window time.Duration) error {
	deadline := time.Now().Add(window)
	for {
		err := eng.JoinShow(ctx, roomID)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func printChanges(changes <-chan engine.Change) {
	for c := range changes {
		switch c.Event {
		case engine.ChangeCountdown:
			// Once per second; keep the console quiet.
		case engine.ChangeAuctionWinner:
			w := c.Data.(engine.WinnerAnnouncement)
			log.Info().Str("winner", w.Winner).Float64("amount", w.Amount).Msg("auction won")
		case engine.ChangeGiveawayWinner:
			w := c.Data.(engine.WinnerAnnouncement)
			log.Info().Str("winner", w.Winner).Msg("giveaway won")
		default:
			log.Info().Str("change", c.Event).Msg("show updated")
		}
	}
}

func readCommands(ctx context.Context, eng *engine.Engine, stop func()) {
	fmt.Println("commands: bid <amount> | custom <amount> | autobid <ceiling> | prebid <productId> <amount> | join | draw | buy | rally <roomId> | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		var err error
		switch fields[0] {
		case "bid", "custom":
			if len(fields) < 2 {
				err = fmt.Errorf("usage: %s <amount>", fields[0])
				break
			}
			var amount float64
			if amount, err = strconv.ParseFloat(fields[1], 64); err == nil {
				err = eng.PlaceBid(amount, fields[0] == "custom")
			}
		case "autobid":
			if len(fields) < 2 {
				err = fmt.Errorf("usage: autobid <ceiling>")
				break
			}
			var ceiling float64
			if ceiling, err = strconv.ParseFloat(fields[1], 64); err == nil {
				err = eng.EnableAutobid(ceiling)
			}
		case "prebid":
			if len(fields) < 3 {
				err = fmt.Errorf("usage: prebid <productId> <amount>")
				break
			}
			var amount float64
			if amount, err = strconv.ParseFloat(fields[2], 64); err == nil {
				err = eng.PlacePrebid(fields[1], amount)
			}
		case "join":
			err = eng.JoinGiveaway()
		case "draw":
			err = eng.DrawGiveaway()
		case "buy":
			err = eng.BuyFlashSale()
		case "rally":
			if len(fields) < 2 {
				err = fmt.Errorf("usage: rally <roomId>")
				break
			}
			err = eng.SwitchShow(ctx, fields[1])
		case "quit":
			_ = eng.LeaveShow()
			stop()
			return
		default:
			err = fmt.Errorf("unknown command %q", fields[0])
		}
		if err != nil {
			log.Warn().Err(err).Msg("command failed")
		}
	}
}
