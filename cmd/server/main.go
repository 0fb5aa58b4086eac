// Command server is the UFO Arena realtime server entrypoint: it wires
// configuration, logging, the on-chain and storage services, and the
// gateway, then serves the websocket endpoint until an OS signal asks it
// to stop.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"

	"github.com/ufoarena/realtime-server/internal/combat"
	"github.com/ufoarena/realtime-server/internal/config"
	"github.com/ufoarena/realtime-server/internal/conquest"
	"github.com/ufoarena/realtime-server/internal/gateway"
	"github.com/ufoarena/realtime-server/internal/nftbonus"
	"github.com/ufoarena/realtime-server/internal/profile"
	"github.com/ufoarena/realtime-server/internal/registry"
	"github.com/ufoarena/realtime-server/internal/replay"
	"github.com/ufoarena/realtime-server/internal/room"
	"github.com/ufoarena/realtime-server/internal/ticket"
)

const (
	combatTickInterval   = time.Second / 30
	conquestTickInterval = 100 * time.Millisecond // 10Hz, per the galaxy simulation's tick rate
)

type options struct {
	Port       string `short:"p" long:"port" description:"HTTP/websocket listen port (falls back to 8080)"`
	LogLevel   string `short:"l" long:"log-level" description:"zerolog level (debug, info, warn, error; falls back to info)"`
	ConfigPath string `short:"c" long:"config" description:"optional YAML defaults file" default:"config.yaml"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	defaults, err := config.LoadDefaults(opts.ConfigPath)
	if err != nil {
		zerolog.New(os.Stderr).Error().Err(err).Msg("failed to load config defaults")
		os.Exit(1)
	}
	if opts.Port != "" {
		defaults.Port = opts.Port
	}
	if opts.LogLevel != "" {
		defaults.LogLevel = opts.LogLevel
	}
	cfg := config.Load(defaults)

	log := newLogger(cfg.LogLevel)
	log.Info().Str("port", cfg.Port).Msg("starting ufo arena realtime server")

	reg := registry.New()
	replayStore := buildReplayStore(log, cfg)
	ticketSvc := buildTicketService(log, cfg)
	nftSvc := buildNFTBonusService(log, cfg)
	profileSvc := buildProfileService(cfg)

	hub := gateway.NewHub(log)
	reconnects := gateway.NewReconnectRegistry(600 * time.Second)

	director := &roomDirector{
		log: log, hub: hub, reg: reg,
		combatDeps:   combat.Dependencies{Tickets: ticketSvc, NFTBonus: nftSvc, Profiles: profileSvc, Replays: replayStore, Registry: reg, TicketReq: cfg.TicketRequired},
		conquestDeps: conquest.Dependencies{Registry: reg, SaveDir: cfg.GalaxySaveDir, Replays: replayStore},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/combat/", func(w http.ResponseWriter, r *http.Request) {
		roomID, address := resolveJoin(r, reconnects)
		if roomID == "" {
			http.Error(w, "room is required", http.StatusBadRequest)
			return
		}
		director.getOrCreateCombat(roomID)
		gateway.ServeWS(hub, log, w, r, roomID, address, reconnects)
	})
	mux.HandleFunc("/ws/conquest/", func(w http.ResponseWriter, r *http.Request) {
		roomID, address := resolveJoin(r, reconnects)
		if roomID == "" {
			http.Error(w, "room is required", http.StatusBadRequest)
			return
		}
		director.getOrCreateConquest(roomID)
		gateway.ServeWS(hub, log, w, r, roomID, address, reconnects)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := hub.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("room shutdown did not finish cleanly")
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown did not finish cleanly")
	}
	if ticketSvc != nil {
		ticketSvc.Close()
	}
	log.Info().Msg("stopped")
}

// roomDirector lazily constructs and registers rooms the first time a
// client asks to join one. Room *placement* (which galaxy, which combat
// queue a player ends up in) is a matchmaking decision and stays outside
// this package; roomDirector only answers "does roomID exist yet", which
// is a prerequisite for the gateway to have anything to route into.
type roomDirector struct {
	mu  sync.Mutex
	log zerolog.Logger
	hub *gateway.Hub
	reg *registry.Registry

	combatDeps   combat.Dependencies
	conquestDeps conquest.Dependencies
}

func (d *roomDirector) getOrCreateCombat(roomID string) room.Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.hub.Lookup(roomID); ok {
		return r
	}
	r := combat.New(d.log, roomID, roomID, d.combatDeps, time.Now().UnixMilli())
	d.hub.Add(context.Background(), r, combatTickInterval)
	return r
}

func (d *roomDirector) getOrCreateConquest(roomID string) room.Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.hub.Lookup(roomID); ok {
		return r
	}
	r := conquest.New(d.log, roomID, roomID, d.conquestDeps, nil)
	d.hub.Add(context.Background(), r, conquestTickInterval)
	return r
}

// resolveJoin reads the room/address a connecting client wants. A token
// query param takes priority: redeeming it recovers the address (and the
// room it was issued for) a dropped client had before its socket closed,
// without the client needing to remember its own wallet address string
// across reconnects.
func resolveJoin(r *http.Request, reconnects *gateway.ReconnectRegistry) (roomID, address string) {
	if token := r.URL.Query().Get("token"); token != "" {
		if rid, addr, ok := reconnects.Redeem(token); ok {
			return rid, addr
		}
	}
	return r.URL.Query().Get("room"), r.URL.Query().Get("address")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
}

func buildReplayStore(log zerolog.Logger, cfg config.Config) *replay.Store {
	var remote replay.RemoteBackend
	// S3 client construction needs AWS credentials resolution (region,
	// endpoint); left to a real deployment's env/IAM role rather than
	// hardcoded here, so remote stays nil unless explicitly wired.
	return replay.New(log, replay.Mode(cfg.ReplayStoreMode), cfg.ReplayDir, remote)
}

func buildTicketService(log zerolog.Logger, cfg config.Config) *ticket.Service {
	svcCfg := ticket.Config{Required: cfg.TicketRequired}
	if cfg.TicketRPCURL == "" || cfg.TicketContractAddr == "" {
		return ticket.New(log, nil, nil, svcCfg)
	}

	client, err := ethclient.Dial(cfg.TicketRPCURL)
	if err != nil {
		log.Warn().Err(err).Msg("ticket rpc dial failed, running unconfigured")
		return ticket.New(log, nil, nil, svcCfg)
	}

	addr := common.HexToAddress(cfg.TicketContractAddr)
	caller := ticket.NewEthCaller(client, addr)

	var sender ticket.Sender
	if cfg.TicketSignerKey != "" {
		key, err := crypto.HexToECDSA(cfg.TicketSignerKey)
		if err != nil {
			log.Warn().Err(err).Msg("invalid ticket signer key, settlement disabled")
		} else {
			chainID, err := client.ChainID(context.Background())
			if err != nil {
				log.Warn().Err(err).Msg("failed to resolve chain id, settlement disabled")
			} else {
				auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
				if err != nil {
					log.Warn().Err(err).Msg("failed to build transactor, settlement disabled")
				} else {
					sender = ticket.NewEthSender(client, addr, auth)
				}
			}
		}
	}

	return ticket.New(log, caller, sender, svcCfg)
}

func buildNFTBonusService(log zerolog.Logger, cfg config.Config) *nftbonus.Service {
	if !cfg.NFTBonusesOn || cfg.RoninRPCURL == "" || cfg.NFTContractAddr == "" {
		return nftbonus.New(nil, cfg.NFTBonusesTTL)
	}
	client, err := ethclient.Dial(cfg.RoninRPCURL)
	if err != nil {
		log.Warn().Err(err).Msg("nft bonus rpc dial failed, bonuses disabled")
		return nftbonus.New(nil, cfg.NFTBonusesTTL)
	}
	reader, err := nftbonus.NewEthBalanceReader(client, common.HexToAddress(cfg.NFTContractAddr))
	if err != nil {
		log.Warn().Err(err).Msg("nft bonus contract binding failed, bonuses disabled")
		return nftbonus.New(nil, cfg.NFTBonusesTTL)
	}
	return nftbonus.New(reader, cfg.NFTBonusesTTL)
}

func buildProfileService(cfg config.Config) *profile.Service {
	if cfg.SupabaseURL == "" {
		return profile.New(nil, 0)
	}
	pool, err := pgxpool.New(context.Background(), cfg.SupabaseURL)
	if err != nil {
		return profile.New(nil, 0)
	}
	return profile.New(profile.NewPgxStore(pool), 0)
}
