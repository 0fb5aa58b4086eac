// Package nftbonus reads an ERC-721 balance for a wallet and maps the
// holding count to combat stat deltas, per spec.md §4.4. Results are
// cached per-address with a bounded TTL window.
package nftbonus

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gocache "github.com/patrickmn/go-cache"
)

const (
	maxCount = 10000

	minTTL     = 5 * time.Second
	maxTTL     = 10 * time.Minute
	defaultTTL = 60 * time.Second
)

// Bonus is the set of stat deltas a holder's NFT count unlocks.
type Bonus struct {
	Count          int
	ArmorRegenRate int // 1 normally, 2 when count >= 1
	MaxHPDelta     int
	CritDelta      int
	DmgDelta       int
}

// BalanceReader is the on-chain read surface needed: ERC-721 balanceOf.
type BalanceReader interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
}

// Service is the NFT Bonus Service.
type Service struct {
	reader BalanceReader
	cache  *gocache.Cache
	ttl    time.Duration
}

// New returns a Service. ttl is clamped to [5s, 10m] per spec.md §4.4; a
// non-positive value uses the 60s default before clamping.
func New(reader BalanceReader, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if ttl < minTTL {
		ttl = minTTL
	}
	if ttl > maxTTL {
		ttl = maxTTL
	}
	return &Service{
		reader: reader,
		cache:  gocache.New(ttl, ttl*2),
		ttl:    ttl,
	}
}

// BonusFor returns the stat bonus for addr's current NFT holding. A nil
// reader (service unconfigured) always returns the zero bonus.
func (s *Service) BonusFor(ctx context.Context, addr common.Address) (Bonus, error) {
	key := addr.Hex()
	if v, ok := s.cache.Get(key); ok {
		return v.(Bonus), nil
	}
	if s.reader == nil {
		return Bonus{}, nil
	}
	balance, err := s.reader.BalanceOf(ctx, addr)
	if err != nil {
		return Bonus{}, err
	}
	count := clampCount(balance)
	bonus := bonusFromCount(count)
	s.cache.Set(key, bonus, s.ttl)
	return bonus, nil
}

func clampCount(balance *big.Int) int {
	if balance == nil {
		return 0
	}
	if balance.Sign() < 0 {
		return 0
	}
	if balance.Cmp(big.NewInt(maxCount)) > 0 {
		return maxCount
	}
	return int(balance.Int64())
}

// bonusFromCount implements the count->deltas mapping from spec.md §4.4:
// >=1 -> armor regen 2 (else 1); >=2 -> +5 maxHP; >=3 -> +2 crit%;
// >=5 -> +3 dmg.
func bonusFromCount(count int) Bonus {
	b := Bonus{Count: count, ArmorRegenRate: 1}
	if count >= 1 {
		b.ArmorRegenRate = 2
	}
	if count >= 2 {
		b.MaxHPDelta = 5
	}
	if count >= 3 {
		b.CritDelta = 2
	}
	if count >= 5 {
		b.DmgDelta = 3
	}
	return b
}

// erc721ABIJSON declares only the single read method this service needs.
const erc721ABIJSON = `[
  {"name":"balanceOf","type":"function","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"balance","type":"uint256"}]}
]`

// EthBalanceReader adapts an ethclient.Client + contract address into the
// BalanceReader interface.
type EthBalanceReader struct {
	contract *bind.BoundContract
}

// NewEthBalanceReader binds client/address against the ERC-721 balanceOf
// call.
func NewEthBalanceReader(client *ethclient.Client, address common.Address) (*EthBalanceReader, error) {
	parsed, err := abi.JSON(strings.NewReader(erc721ABIJSON))
	if err != nil {
		return nil, err
	}
	return &EthBalanceReader{contract: bind.NewBoundContract(address, parsed, client, client, client)}, nil
}

func (r *EthBalanceReader) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	var results []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := r.contract.Call(opts, &results, "balanceOf", owner); err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return big.NewInt(0), nil
	}
	return results[0].(*big.Int), nil
}
