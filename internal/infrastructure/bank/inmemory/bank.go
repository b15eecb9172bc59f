package inmemorybank

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// ReceiveHook runs every time the account it is attached to is credited.
// A non nil error rejects the incoming transfer, which is then reverted
// together with every transfer the hook made with the given context.
type ReceiveHook func(ctx context.Context, from common.Address, amount *big.Int) error

type journalKey struct{}

type entry struct {
	from, to common.Address
	amount   *big.Int
}

// journal collects the transfers settled while a receive hook runs.
type journal struct {
	entries []entry
}

func (j *journal) record(entries ...entry) {
	if j == nil {
		return
	}
	j.entries = append(j.entries, entries...)
}

type Bank struct {
	lock     *sync.Mutex
	balances map[common.Address]*big.Int

	hooksLock *sync.RWMutex
	hooks     map[common.Address]ReceiveHook
}

func NewBank() *Bank {
	return &Bank{
		lock:      &sync.Mutex{},
		balances:  make(map[common.Address]*big.Int),
		hooksLock: &sync.RWMutex{},
		hooks:     make(map[common.Address]ReceiveHook),
	}
}

func (b *Bank) SetReceiveHook(account common.Address, hook ReceiveHook) {
	b.hooksLock.Lock()
	defer b.hooksLock.Unlock()

	if hook == nil {
		delete(b.hooks, account)
		return
	}
	b.hooks[account] = hook
}

func (b *Bank) Mint(_ context.Context, account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.Errorf("invalid mint amount %v", amount)
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	b.balances[account] = new(big.Int).Add(b.balanceOf(account), amount)
	log.Debugf("bank: minted %s to %s", amount, account.Hex())
	return nil
}

func (b *Bank) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	return new(big.Int).Set(b.balanceOf(account)), nil
}

// Transfer moves amount from one account to another. The receive hook of
// the recipient, if any, runs after the balances are updated and without
// holding the bank lock, so it can issue transfers of its own. When the
// hook fails, those transfers are undone in reverse order before the
// outer one.
func (b *Bank) Transfer(
	ctx context.Context, from, to common.Address, amount *big.Int,
) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.Errorf("invalid transfer amount %v", amount)
	}

	if err := b.move(from, to, amount); err != nil {
		return err
	}

	parent, _ := ctx.Value(journalKey{}).(*journal)
	settled := entry{from, to, new(big.Int).Set(amount)}

	hook := b.hook(to)
	if hook == nil {
		parent.record(settled)
		return nil
	}

	nested := &journal{}
	if err := hook(context.WithValue(ctx, journalKey{}, nested), from, amount); err != nil {
		b.undo(append([]entry{settled}, nested.entries...))
		return errors.Wrapf(err, "transfer rejected by %s", to.Hex())
	}

	parent.record(settled)
	parent.record(nested.entries...)
	return nil
}

// undo reverts the given transfers, last one first.
func (b *Bank) undo(entries []entry) {
	b.lock.Lock()
	defer b.lock.Unlock()

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		b.balances[e.to] = new(big.Int).Sub(b.balanceOf(e.to), e.amount)
		b.balances[e.from] = new(big.Int).Add(b.balanceOf(e.from), e.amount)
	}
	log.Debugf("bank: reverted %d transfers", len(entries))
}

func (b *Bank) move(from, to common.Address, amount *big.Int) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	balance := b.balanceOf(from)
	if balance.Cmp(amount) < 0 {
		return errors.Wrapf(
			ErrInsufficientBalance, "account %s has %s, needs %s",
			from.Hex(), balance, amount,
		)
	}

	b.balances[from] = new(big.Int).Sub(balance, amount)
	b.balances[to] = new(big.Int).Add(b.balanceOf(to), amount)
	return nil
}

func (b *Bank) hook(account common.Address) ReceiveHook {
	b.hooksLock.RLock()
	defer b.hooksLock.RUnlock()

	return b.hooks[account]
}

func (b *Bank) balanceOf(account common.Address) *big.Int {
	if balance, ok := b.balances[account]; ok {
		return balance
	}
	return big.NewInt(0)
}
