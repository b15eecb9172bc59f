// Package seeded implements a commit-reveal randomness provider. The words
// of every request are HMAC-SHA256(seed, requestId || index), and the
// keccak256 hash of the seed is published up front so that anybody can
// check the delivered words once the seed is revealed.
package seeded

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"sync"
	"time"

	"github.com/ark-network/lottery/internal/core/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	seedSize           = 32
	defaultMaxAttempts = 5
)

var (
	ErrNonexistentRequest = errors.New("nonexistent request")
	ErrInvalidConsumer    = errors.New("invalid consumer")
	ErrInvalidSeed        = errors.New("seed does not match commitment")
	ErrInvalidWords       = errors.New("random words do not match seed")
)

type pendingRequest struct {
	consumer common.Address
	numWords uint32
	attempts int
}

type Provider struct {
	address     common.Address
	seed        []byte
	commitment  common.Hash
	scheduler   ports.SchedulerService
	delay       int64
	maxAttempts int

	lock      *sync.Mutex
	nonce     uint64
	consumers map[common.Address]ports.RandomnessConsumer
	requests  map[string]*pendingRequest
}

// NewProvider returns a provider that fulfills every request delay seconds
// after it's made. A random seed is generated if none is given.
func NewProvider(
	address common.Address, seed []byte, scheduler ports.SchedulerService, delay int64,
) (*Provider, error) {
	if scheduler == nil {
		return nil, errors.New("missing scheduler")
	}
	if len(seed) == 0 {
		seed = make([]byte, seedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, errors.Wrap(err, "failed to generate seed")
		}
	}
	if delay < 1 {
		delay = 1
	}

	return &Provider{
		address:     address,
		seed:        append([]byte{}, seed...),
		commitment:  crypto.Keccak256Hash(seed),
		scheduler:   scheduler,
		delay:       delay,
		maxAttempts: defaultMaxAttempts,
		lock:        &sync.Mutex{},
		consumers:   make(map[common.Address]ports.RandomnessConsumer),
		requests:    make(map[string]*pendingRequest),
	}, nil
}

func (p *Provider) Address() common.Address {
	return p.address
}

func (p *Provider) Commitment() common.Hash {
	return p.commitment
}

// Reveal discloses the seed. Every word delivered so far, and from now on,
// becomes publicly verifiable.
func (p *Provider) Reveal() []byte {
	return append([]byte{}, p.seed...)
}

func (p *Provider) RegisterConsumer(
	_ uint64, address common.Address, consumer ports.RandomnessConsumer,
) error {
	if consumer == nil {
		return ErrInvalidConsumer
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	p.consumers[address] = consumer
	return nil
}

func (p *Provider) RequestRandomWords(
	_ context.Context, req ports.RandomWordsRequest,
) (*big.Int, error) {
	if req.NumWords == 0 {
		return nil, errors.New("num words must be at least 1")
	}

	p.lock.Lock()
	if _, ok := p.consumers[req.Consumer]; !ok {
		p.lock.Unlock()
		return nil, errors.Wrapf(ErrInvalidConsumer, "consumer %s", req.Consumer.Hex())
	}
	p.nonce++
	preSeed := common.LeftPadBytes(new(big.Int).SetUint64(p.nonce).Bytes(), 32)
	requestId := new(big.Int).SetBytes(crypto.Keccak256(
		req.KeyHash.Bytes(), req.Consumer.Bytes(), preSeed,
	))
	p.requests[requestId.String()] = &pendingRequest{
		consumer: req.Consumer,
		numWords: req.NumWords,
	}
	p.lock.Unlock()

	if err := p.schedule(requestId); err != nil {
		p.lock.Lock()
		delete(p.requests, requestId.String())
		p.lock.Unlock()
		return nil, errors.Wrap(err, "failed to schedule fulfillment")
	}

	log.WithField("request_id", requestId).Debug("seeded: random words requested")
	return requestId, nil
}

// FulfillRandomWords delivers the words of a pending request right away.
func (p *Provider) FulfillRandomWords(ctx context.Context, requestId *big.Int) error {
	return p.fulfill(ctx, requestId)
}

func (p *Provider) FulfillRandomWordsWithOverride(
	context.Context, *big.Int, []*big.Int,
) error {
	return errors.New("seeded provider does not support overriding random words")
}

func (p *Provider) PendingRequests() int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return len(p.requests)
}

func (p *Provider) schedule(requestId *big.Int) error {
	at := time.Now().Unix() + p.delay
	return p.scheduler.ScheduleTaskOnce(at, func() {
		if err := p.fulfill(context.Background(), requestId); err != nil {
			log.WithError(err).WithField("request_id", requestId).
				Warn("seeded: failed to fulfill random words")
		}
	})
}

func (p *Provider) fulfill(ctx context.Context, requestId *big.Int) error {
	if requestId == nil {
		return ErrNonexistentRequest
	}

	p.lock.Lock()
	req, ok := p.requests[requestId.String()]
	var consumer ports.RandomnessConsumer
	if ok {
		consumer = p.consumers[req.consumer]
	}
	p.lock.Unlock()

	if !ok {
		return ErrNonexistentRequest
	}

	words := DeriveRandomWords(p.seed, requestId, req.numWords)
	err := consumer.FulfillRandomWords(ctx, p.address, requestId, words)

	p.lock.Lock()
	defer p.lock.Unlock()

	if _, ok := p.requests[requestId.String()]; !ok {
		return err
	}
	if err == nil {
		delete(p.requests, requestId.String())
		log.WithField("request_id", requestId).Debug("seeded: random words fulfilled")
		return nil
	}

	req.attempts++
	if req.attempts >= p.maxAttempts {
		delete(p.requests, requestId.String())
		return errors.Wrapf(err, "giving up on request %s after %d attempts", requestId, req.attempts)
	}
	if scheduleErr := p.schedule(requestId); scheduleErr != nil {
		log.WithError(scheduleErr).Warn("seeded: failed to reschedule fulfillment")
	}
	return errors.Wrapf(err, "attempt %d for request %s failed", req.attempts, requestId)
}

func DeriveRandomWords(seed []byte, requestId *big.Int, numWords uint32) []*big.Int {
	words := make([]*big.Int, 0, numWords)
	id := common.LeftPadBytes(requestId.Bytes(), 32)
	for i := uint32(0); i < numWords; i++ {
		mac := hmac.New(sha256.New, seed)
		mac.Write(id)
		mac.Write(common.LeftPadBytes(big.NewInt(int64(i)).Bytes(), 32))
		words = append(words, new(big.Int).SetBytes(mac.Sum(nil)))
	}
	return words
}

// Verify checks that seed matches commitment and that words are the ones
// the seed produces for requestId.
func Verify(commitment common.Hash, seed []byte, requestId *big.Int, words []*big.Int) error {
	if crypto.Keccak256Hash(seed) != commitment {
		return ErrInvalidSeed
	}
	expected := DeriveRandomWords(seed, requestId, uint32(len(words)))
	for i, word := range words {
		if word == nil || word.Cmp(expected[i]) != 0 {
			return errors.Wrapf(ErrInvalidWords, "word %d", i)
		}
	}
	return nil
}
