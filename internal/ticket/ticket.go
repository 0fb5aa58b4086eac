// Package ticket wraps the on-chain ticket contract: ownership checks,
// stat reads, and match settlement (burn loser, pay winner). A single
// logical signer backs every write, so calls are serialized behind a FIFO
// queue to keep the account's nonce sequence deterministic across
// concurrently-settling rooms.
package ticket

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// Stats is the on-chain stat block for a ticket's token, per spec.md §4.3.
type Stats struct {
	MaxHP       int
	MaxArmor    int
	Dmg         int
	CritChance  float64
	Accuracy    float64
	MaxFuel     int
}

// CheckResult is the outcome of a join-time ownership check.
type CheckResult struct {
	OK      bool
	TokenID uint64
	Reason  string
}

// Caller is the minimal on-chain read surface the Ticket Service needs.
// Implemented by *ethclient.Client plus a bound contract in production;
// tests substitute a fake.
type Caller interface {
	ActiveTokenIDOf(ctx context.Context, owner common.Address) (uint64, error)
	OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error)
	IsDestroyed(ctx context.Context, tokenID uint64) (bool, error)
	StatsOf(ctx context.Context, tokenID uint64) (Stats, error)
}

// Sender is the minimal on-chain write surface: burn the loser's ticket and
// pay out the winner in one call, as the original contract exposes it.
type Sender interface {
	ResolveMatchBurnAndPayout(ctx context.Context, loserTokenID uint64, winner common.Address) (common.Hash, error)
}

// job is one queued settlement call.
type job struct {
	loserTokenID uint64
	winner       common.Address
	result       chan jobResult
}

type jobResult struct {
	hash common.Hash
	err  error
}

// Service is the Ticket Service described in spec.md §4.3. It is safe for
// concurrent use; writes are serialized internally.
type Service struct {
	log      zerolog.Logger
	caller   Caller
	sender   Sender
	required bool
	cache    *gocache.Cache

	jobs   chan job
	once   sync.Once
	closed chan struct{}
}

// Config configures an unconfigured-service fallback: when caller/sender
// are nil, checkJoin always succeeds with tokenID 0 unless Required is set.
type Config struct {
	Required  bool
	CacheTTL  time.Duration
	QueueSize int
}

// New returns a Service bound to the given on-chain caller/sender. Either
// may be nil to represent an unconfigured ticket contract.
func New(log zerolog.Logger, caller Caller, sender Sender, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	s := &Service{
		log:      log.With().Str("component", "ticket_service").Logger(),
		caller:   caller,
		sender:   sender,
		required: cfg.Required,
		cache:    gocache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		jobs:     make(chan job, cfg.QueueSize),
		closed:   make(chan struct{}),
	}
	go s.runQueue()
	return s
}

// Close stops the settlement worker. Queued jobs already accepted are
// drained before the goroutine exits.
func (s *Service) Close() {
	s.once.Do(func() { close(s.jobs) })
	<-s.closed
}

func (s *Service) runQueue() {
	defer close(s.closed)
	for j := range s.jobs {
		hash, err := s.sendSettlement(context.Background(), j.loserTokenID, j.winner)
		j.result <- jobResult{hash: hash, err: err}
	}
}

func (s *Service) sendSettlement(ctx context.Context, loserTokenID uint64, winner common.Address) (common.Hash, error) {
	if s.sender == nil {
		return common.Hash{}, nil
	}
	return s.sender.ResolveMatchBurnAndPayout(ctx, loserTokenID, winner)
}

// CheckJoin validates ownership for a joining address, per spec.md §4.3.
// When the service is unconfigured and not required, it returns ok with
// tokenID 0. RPC failures degrade closed when required, open otherwise.
func (s *Service) CheckJoin(ctx context.Context, addr common.Address, optionalTokenID *uint64) CheckResult {
	if s.caller == nil {
		if s.required {
			return CheckResult{OK: false, Reason: "ticket_service_unconfigured"}
		}
		return CheckResult{OK: true, TokenID: 0}
	}

	tryToken := func(tokenID uint64) (CheckResult, bool) {
		owner, err := s.caller.OwnerOf(ctx, tokenID)
		if err != nil {
			return CheckResult{}, false
		}
		if owner != addr {
			return CheckResult{OK: false, Reason: "not_owner"}, true
		}
		destroyed, err := s.caller.IsDestroyed(ctx, tokenID)
		if err != nil {
			return CheckResult{}, false
		}
		if destroyed {
			return CheckResult{OK: false, Reason: "destroyed"}, true
		}
		return CheckResult{OK: true, TokenID: tokenID}, true
	}

	if optionalTokenID != nil {
		if res, resolved := tryToken(*optionalTokenID); resolved {
			if res.OK || res.Reason != "" {
				return res
			}
		}
	}

	active, err := s.caller.ActiveTokenIDOf(ctx, addr)
	if err != nil {
		s.log.Warn().Err(err).Str("addr", addr.Hex()).Msg("ticket rpc failed on join check")
		if s.required {
			return CheckResult{OK: false, Reason: "rpc_error"}
		}
		return CheckResult{OK: true, TokenID: 0}
	}
	if res, resolved := tryToken(active); resolved {
		return res
	}
	if s.required {
		return CheckResult{OK: false, Reason: "rpc_error"}
	}
	return CheckResult{OK: true, TokenID: 0}
}

// StatsOf fetches and caches a token's on-chain stats.
func (s *Service) StatsOf(ctx context.Context, tokenID uint64) (Stats, error) {
	key := cacheKey("stats", tokenID)
	if v, ok := s.cache.Get(key); ok {
		return v.(Stats), nil
	}
	if s.caller == nil {
		return Stats{}, nil
	}
	stats, err := s.caller.StatsOf(ctx, tokenID)
	if err != nil {
		return Stats{}, err
	}
	s.cache.SetDefault(key, stats)
	return stats, nil
}

// ResolveMatchBurnAndPayout queues a settlement call and blocks until it
// completes, preserving submission order across concurrent rooms. Errors
// are caught and surfaced as a zero hash, never returned to the caller —
// per spec.md §4.3 this call must never panic a room.
func (s *Service) ResolveMatchBurnAndPayout(loserTokenID uint64, winner common.Address) common.Hash {
	j := job{loserTokenID: loserTokenID, winner: winner, result: make(chan jobResult, 1)}
	select {
	case s.jobs <- j:
	case <-s.closed:
		return common.Hash{}
	}
	res := <-j.result
	if res.err != nil {
		s.log.Warn().Err(res.err).
			Uint64("loser_token", loserTokenID).
			Str("winner", winner.Hex()).
			Msg("settlement call failed")
		return common.Hash{}
	}
	return res.hash
}

func cacheKey(prefix string, id uint64) string {
	return prefix + ":" + new(big.Int).SetUint64(id).String()
}

// ticketABIJSON is the minimal call surface the ticket contract exposes.
// The contract's own implementation is out of scope (spec.md §1); this ABI
// only describes the methods the server calls against it.
const ticketABIJSON = `[
  {"name":"activeTokenIdOf","type":"function","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"tokenId","type":"uint256"}]},
  {"name":"ownerOf","type":"function","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[{"name":"owner","type":"address"}]},
  {"name":"isDestroyed","type":"function","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[{"name":"destroyed","type":"bool"}]},
  {"name":"statsOf","type":"function","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[
     {"name":"maxHP","type":"uint256"},
     {"name":"maxArmor","type":"uint256"},
     {"name":"dmg","type":"uint256"},
     {"name":"critChanceBps","type":"uint256"},
     {"name":"accuracyBps","type":"uint256"},
     {"name":"maxFuel","type":"uint256"}]},
  {"name":"resolveMatchBurnAndPayout","type":"function","stateMutability":"nonpayable",
   "inputs":[
     {"name":"loserTokenId","type":"uint256"},
     {"name":"winner","type":"address"}],
   "outputs":[]}
]`

var ticketABI = mustParseABI(ticketABIJSON)

func mustParseABI(js string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(js))
	if err != nil {
		panic("ticket: invalid embedded ABI: " + err.Error())
	}
	return parsed
}

// EthCaller adapts an ethclient.Client and a contract address into the
// Caller interface via bind.BoundContract read calls.
type EthCaller struct {
	contract *bind.BoundContract
}

// NewEthCaller binds client/address against the ticket ABI for read calls.
func NewEthCaller(client *ethclient.Client, address common.Address) *EthCaller {
	return &EthCaller{contract: bind.NewBoundContract(address, ticketABI, client, client, client)}
}

func (c *EthCaller) ActiveTokenIDOf(ctx context.Context, owner common.Address) (uint64, error) {
	out, err := c.callOne(ctx, "activeTokenIdOf", owner)
	if err != nil {
		return 0, err
	}
	return out.(*big.Int).Uint64(), nil
}

func (c *EthCaller) OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error) {
	out, err := c.callOne(ctx, "ownerOf", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return common.Address{}, err
	}
	return out.(common.Address), nil
}

func (c *EthCaller) IsDestroyed(ctx context.Context, tokenID uint64) (bool, error) {
	out, err := c.callOne(ctx, "isDestroyed", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

func (c *EthCaller) StatsOf(ctx context.Context, tokenID uint64) (Stats, error) {
	var results []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(opts, &results, "statsOf", new(big.Int).SetUint64(tokenID)); err != nil {
		return Stats{}, err
	}
	if len(results) != 6 {
		return Stats{}, errors.New("ticket: unexpected statsOf return arity")
	}
	return Stats{
		MaxHP:      int(results[0].(*big.Int).Int64()),
		MaxArmor:   int(results[1].(*big.Int).Int64()),
		Dmg:        int(results[2].(*big.Int).Int64()),
		CritChance: float64(results[3].(*big.Int).Int64()) / 10000,
		Accuracy:   float64(results[4].(*big.Int).Int64()) / 10000,
		MaxFuel:    int(results[5].(*big.Int).Int64()),
	}, nil
}

func (c *EthCaller) callOne(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	var results []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(opts, &results, method, args...); err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, errors.New("ticket: unexpected return arity for " + method)
	}
	return results[0], nil
}

// EthSender adapts a keyed transactor into the Sender interface.
type EthSender struct {
	contract   *bind.BoundContract
	transactor *bind.TransactOpts
}

// NewEthSender binds client/address/transactor against the ticket ABI for
// the settlement write call.
func NewEthSender(client *ethclient.Client, address common.Address, transactor *bind.TransactOpts) *EthSender {
	return &EthSender{
		contract:   bind.NewBoundContract(address, ticketABI, client, client, client),
		transactor: transactor,
	}
}

func (s *EthSender) ResolveMatchBurnAndPayout(ctx context.Context, loserTokenID uint64, winner common.Address) (common.Hash, error) {
	opts := *s.transactor
	opts.Context = ctx
	tx, err := s.contract.Transact(&opts, "resolveMatchBurnAndPayout", new(big.Int).SetUint64(loserTokenID), winner)
	if err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}
