// Package config loads the server's environment-variable surface into a
// typed struct, per the enumerated configuration in spec.md §6. Env vars
// always win over a config.yaml's defaults.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults is the subset of knobs a config.yaml may seed. Everything
// security- or connection-sensitive (RPC URLs, keys, contract addresses)
// is env-var only and never read from the file.
type Defaults struct {
	Port              string        `yaml:"port"`
	LogLevel          string        `yaml:"logLevel"`
	NFTBonusTTL       time.Duration `yaml:"nftBonusTTL"`
	ReplayStoreMode   string        `yaml:"replayStoreMode"`
	ReplayDir         string        `yaml:"replayDir"`
	GalaxySaveDir     string        `yaml:"galaxySaveDir"`
}

// Config is the fully resolved server configuration.
type Config struct {
	Port     string
	LogLevel string

	// Ticket Service
	TicketRPCURL        string
	TicketContractAddr  string
	TicketSignerKey     string
	TicketRequired      bool
	TicketUseChainStats bool

	// NFT Bonus Service
	RoninRPCURL      string
	NFTContractAddr  string
	NFTBonusesOn     bool
	NFTBonusesTTL    time.Duration

	// Replay Store
	ReplayStoreMode string // local | remote | both
	ReplayDir       string
	ReplayBucket    string

	// Profile Service / remote replay backend
	SupabaseURL        string
	SupabaseServiceKey string

	// Conquest persistence
	GalaxySaveDir string
}

const (
	defaultNFTBonusTTL = 60 * time.Second
	minNFTBonusTTL     = 5 * time.Second
	maxNFTBonusTTL     = 10 * time.Minute
)

// LoadDefaults reads a YAML defaults file. A missing file is not an error —
// the zero Defaults simply leaves every field for env vars or hardcoded
// fallbacks to fill in.
func LoadDefaults(path string) (Defaults, error) {
	var d Defaults
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return d, err
	}
	if err := yaml.Unmarshal(b, &d); err != nil {
		return d, err
	}
	return d, nil
}

// Load resolves the full Config from defaults plus environment variables.
func Load(d Defaults) Config {
	c := Config{
		Port:     firstNonEmpty(os.Getenv("PORT"), d.Port, "8080"),
		LogLevel: firstNonEmpty(os.Getenv("LOG_LEVEL"), d.LogLevel, "info"),

		TicketRPCURL:        os.Getenv("UFO_TICKET_RPC_URL"),
		TicketContractAddr:  os.Getenv("UFO_TICKET_CONTRACT_ADDRESS"),
		TicketSignerKey:     os.Getenv("UFO_TICKET_SIGNER_PRIVATE_KEY"),
		TicketRequired:      envBool("UFO_TICKET_REQUIRED", false),
		TicketUseChainStats: envBool("UFO_TICKET_USE_ONCHAIN_STATS", false),

		RoninRPCURL:     os.Getenv("RONIN_RPC_URL"),
		NFTContractAddr: os.Getenv("RONKEVERSE_NFT_CONTRACT_ADDRESS"),
		NFTBonusesOn:    envBool("PVP_NFT_BONUSES_ENABLED", false),
		NFTBonusesTTL:   clampDuration(envDuration("PVP_NFT_BONUSES_TTL_MS", d.NFTBonusTTL, defaultNFTBonusTTL), minNFTBonusTTL, maxNFTBonusTTL),

		ReplayStoreMode: firstNonEmpty(os.Getenv("REPLAY_STORE"), d.ReplayStoreMode, "local"),
		ReplayDir:       firstNonEmpty(os.Getenv("REPLAY_DIR"), d.ReplayDir, "./replays"),
		ReplayBucket:    os.Getenv("REPLAY_SUPABASE_BUCKET"),

		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),

		GalaxySaveDir: firstNonEmpty(os.Getenv("GALAXY_SAVE_DIR"), d.GalaxySaveDir, "./galaxies"),
	}
	return c
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, fileDefault, hardDefault time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		if fileDefault > 0 {
			return fileDefault
		}
		return hardDefault
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return hardDefault
	}
	return time.Duration(ms) * time.Millisecond
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
