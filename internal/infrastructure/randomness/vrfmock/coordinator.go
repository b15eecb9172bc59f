// Package vrfmock is a local randomness coordinator for development
// networks. Requests are kept until someone explicitly fulfills them, and
// the delivered words are derived deterministically from the request id.
package vrfmock

import (
	"context"
	"math/big"
	"sync"

	"github.com/ark-network/lottery/internal/core/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	MaxConsumers     = 100
	MaxNumWords      = 500
	MaxCallbackGas   = 2_500_000
	DefaultGasPrice  = 1_000_000_000
	subscriptionBase = 1
)

var (
	ErrInvalidSubscription = errors.New("invalid subscription")
	ErrInvalidConsumer     = errors.New("invalid consumer")
	ErrTooManyConsumers    = errors.New("too many consumers")
	ErrInsufficientBalance = errors.New("insufficient subscription balance")
	ErrNonexistentRequest  = errors.New("nonexistent request")
	ErrInvalidRandomWords  = errors.New("invalid random words")
)

type Subscription struct {
	Id        uint64
	Owner     common.Address
	Balance   *big.Int
	Consumers []common.Address
}

type request struct {
	subscriptionId   uint64
	callbackGasLimit uint32
	numWords         uint32
	consumer         common.Address
}

type Coordinator struct {
	address      common.Address
	baseFee      *big.Int
	gasPriceLink *big.Int

	lock          *sync.Mutex
	nextSubId     uint64
	nextRequestId *big.Int
	subscriptions map[uint64]*Subscription
	consumers     map[uint64]map[common.Address]ports.RandomnessConsumer
	requests      map[string]request
}

func NewCoordinator(address common.Address, baseFee, gasPriceLink *big.Int) *Coordinator {
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}
	if gasPriceLink == nil {
		gasPriceLink = big.NewInt(DefaultGasPrice)
	}
	return &Coordinator{
		address:       address,
		baseFee:       new(big.Int).Set(baseFee),
		gasPriceLink:  new(big.Int).Set(gasPriceLink),
		lock:          &sync.Mutex{},
		nextSubId:     subscriptionBase,
		nextRequestId: big.NewInt(1),
		subscriptions: make(map[uint64]*Subscription),
		consumers:     make(map[uint64]map[common.Address]ports.RandomnessConsumer),
		requests:      make(map[string]request),
	}
}

func (c *Coordinator) Address() common.Address {
	return c.address
}

func (c *Coordinator) CreateSubscription(owner common.Address) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	id := c.nextSubId
	c.nextSubId++
	c.subscriptions[id] = &Subscription{
		Id:        id,
		Owner:     owner,
		Balance:   big.NewInt(0),
		Consumers: make([]common.Address, 0),
	}
	c.consumers[id] = make(map[common.Address]ports.RandomnessConsumer)

	log.Debugf("vrf: created subscription %d for %s", id, owner.Hex())
	return id
}

func (c *Coordinator) FundSubscription(subscriptionId uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.Errorf("invalid fund amount %v", amount)
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	sub, ok := c.subscriptions[subscriptionId]
	if !ok {
		return errors.Wrapf(ErrInvalidSubscription, "subscription %d", subscriptionId)
	}
	oldBalance := sub.Balance
	sub.Balance = new(big.Int).Add(oldBalance, amount)

	log.Debugf(
		"vrf: funded subscription %d, balance %s -> %s",
		subscriptionId, oldBalance, sub.Balance,
	)
	return nil
}

func (c *Coordinator) GetSubscription(subscriptionId uint64) (*Subscription, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	sub, ok := c.subscriptions[subscriptionId]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidSubscription, "subscription %d", subscriptionId)
	}
	return &Subscription{
		Id:        sub.Id,
		Owner:     sub.Owner,
		Balance:   new(big.Int).Set(sub.Balance),
		Consumers: append([]common.Address{}, sub.Consumers...),
	}, nil
}

func (c *Coordinator) RegisterConsumer(
	subscriptionId uint64, address common.Address, consumer ports.RandomnessConsumer,
) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	sub, ok := c.subscriptions[subscriptionId]
	if !ok {
		return errors.Wrapf(ErrInvalidSubscription, "subscription %d", subscriptionId)
	}
	if _, ok := c.consumers[subscriptionId][address]; ok {
		c.consumers[subscriptionId][address] = consumer
		return nil
	}
	if len(sub.Consumers) >= MaxConsumers {
		return ErrTooManyConsumers
	}

	sub.Consumers = append(sub.Consumers, address)
	c.consumers[subscriptionId][address] = consumer

	log.Debugf("vrf: added consumer %s to subscription %d", address.Hex(), subscriptionId)
	return nil
}

func (c *Coordinator) RemoveConsumer(subscriptionId uint64, address common.Address) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	sub, ok := c.subscriptions[subscriptionId]
	if !ok {
		return errors.Wrapf(ErrInvalidSubscription, "subscription %d", subscriptionId)
	}
	if _, ok := c.consumers[subscriptionId][address]; !ok {
		return errors.Wrapf(ErrInvalidConsumer, "consumer %s", address.Hex())
	}

	delete(c.consumers[subscriptionId], address)
	for i, consumer := range sub.Consumers {
		if consumer == address {
			sub.Consumers = append(sub.Consumers[:i], sub.Consumers[i+1:]...)
			break
		}
	}
	return nil
}

func (c *Coordinator) RequestRandomWords(
	_ context.Context, req ports.RandomWordsRequest,
) (*big.Int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if _, ok := c.subscriptions[req.SubscriptionId]; !ok {
		return nil, errors.Wrapf(ErrInvalidSubscription, "subscription %d", req.SubscriptionId)
	}
	if _, ok := c.consumers[req.SubscriptionId][req.Consumer]; !ok {
		return nil, errors.Wrapf(
			ErrInvalidConsumer, "consumer %s for subscription %d",
			req.Consumer.Hex(), req.SubscriptionId,
		)
	}
	if req.CallbackGasLimit > MaxCallbackGas {
		return nil, errors.Errorf(
			"gas limit too big: %d, max %d", req.CallbackGasLimit, MaxCallbackGas,
		)
	}
	if req.NumWords == 0 || req.NumWords > MaxNumWords {
		return nil, errors.Errorf(
			"invalid num words: %d, max %d", req.NumWords, MaxNumWords,
		)
	}

	requestId := new(big.Int).Set(c.nextRequestId)
	c.nextRequestId.Add(c.nextRequestId, big.NewInt(1))
	c.requests[requestId.String()] = request{
		subscriptionId:   req.SubscriptionId,
		callbackGasLimit: req.CallbackGasLimit,
		numWords:         req.NumWords,
		consumer:         req.Consumer,
	}

	log.WithFields(log.Fields{
		"request_id":      requestId,
		"subscription_id": req.SubscriptionId,
		"consumer":        req.Consumer.Hex(),
		"num_words":       req.NumWords,
	}).Debug("vrf: random words requested")

	return requestId, nil
}

// ReserveRequestIds makes sure that new requests get an id above the
// given one. Ids handed out before a restart must never be reused.
func (c *Coordinator) ReserveRequestIds(used *big.Int) {
	if used == nil {
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	c.reserve(used)
}

// ResumeRequest tracks again a request made before a restart, so that it
// can still be fulfilled.
func (c *Coordinator) ResumeRequest(requestId *big.Int, req ports.RandomWordsRequest) error {
	if requestId == nil || requestId.Sign() <= 0 {
		return ErrNonexistentRequest
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if _, ok := c.subscriptions[req.SubscriptionId]; !ok {
		return errors.Wrapf(ErrInvalidSubscription, "subscription %d", req.SubscriptionId)
	}
	c.requests[requestId.String()] = request{
		subscriptionId:   req.SubscriptionId,
		callbackGasLimit: req.CallbackGasLimit,
		numWords:         req.NumWords,
		consumer:         req.Consumer,
	}
	c.reserve(requestId)

	log.Debugf("vrf: resumed request %s", requestId)
	return nil
}

func (c *Coordinator) reserve(used *big.Int) {
	if used.Cmp(c.nextRequestId) >= 0 {
		c.nextRequestId = new(big.Int).Add(used, big.NewInt(1))
	}
}

func (c *Coordinator) FulfillRandomWords(ctx context.Context, requestId *big.Int) error {
	return c.FulfillRandomWordsWithOverride(ctx, requestId, nil)
}

// FulfillRandomWordsWithOverride delivers the given words to the consumer
// of the request, or the derived ones if none are given. The request is
// consumed only when the consumer accepts the words.
func (c *Coordinator) FulfillRandomWordsWithOverride(
	ctx context.Context, requestId *big.Int, randomWords []*big.Int,
) error {
	if requestId == nil {
		return ErrNonexistentRequest
	}

	c.lock.Lock()
	req, ok := c.requests[requestId.String()]
	var consumer ports.RandomnessConsumer
	if ok {
		consumer = c.consumers[req.subscriptionId][req.consumer]
	}
	c.lock.Unlock()

	if !ok {
		return ErrNonexistentRequest
	}
	if consumer == nil {
		return errors.Wrapf(ErrInvalidConsumer, "consumer %s", req.consumer.Hex())
	}

	if len(randomWords) == 0 {
		randomWords = DeriveRandomWords(requestId, req.numWords)
	}
	if len(randomWords) != int(req.numWords) {
		return errors.Wrapf(
			ErrInvalidRandomWords, "expected %d words, got %d",
			req.numWords, len(randomWords),
		)
	}

	payment := c.payment(req.callbackGasLimit)
	if err := c.checkBalance(req.subscriptionId, payment); err != nil {
		return err
	}

	if err := consumer.FulfillRandomWords(ctx, c.address, requestId, randomWords); err != nil {
		log.WithError(err).WithField("request_id", requestId).
			Warn("vrf: consumer rejected random words")
		return errors.Wrapf(err, "failed to fulfill request %s", requestId)
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	delete(c.requests, requestId.String())
	sub := c.subscriptions[req.subscriptionId]
	sub.Balance = new(big.Int).Sub(sub.Balance, payment)

	log.WithFields(log.Fields{
		"request_id": requestId,
		"payment":    payment,
	}).Debug("vrf: random words fulfilled")
	return nil
}

func (c *Coordinator) PendingRequests() []*big.Int {
	c.lock.Lock()
	defer c.lock.Unlock()

	ids := make([]*big.Int, 0, len(c.requests))
	for id := range c.requests {
		n, _ := new(big.Int).SetString(id, 10)
		ids = append(ids, n)
	}
	return ids
}

func (c *Coordinator) payment(callbackGasLimit uint32) *big.Int {
	gas := new(big.Int).Mul(big.NewInt(int64(callbackGasLimit)), c.gasPriceLink)
	return gas.Add(gas, c.baseFee)
}

func (c *Coordinator) checkBalance(subscriptionId uint64, payment *big.Int) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	sub, ok := c.subscriptions[subscriptionId]
	if !ok {
		return errors.Wrapf(ErrInvalidSubscription, "subscription %d", subscriptionId)
	}
	if sub.Balance.Cmp(payment) < 0 {
		return errors.Wrapf(
			ErrInsufficientBalance, "subscription %d has %s, needs %s",
			subscriptionId, sub.Balance, payment,
		)
	}
	return nil
}

// DeriveRandomWords returns keccak256(abi.encode(requestId, i)) for every
// word index.
func DeriveRandomWords(requestId *big.Int, numWords uint32) []*big.Int {
	words := make([]*big.Int, 0, numWords)
	id := common.LeftPadBytes(requestId.Bytes(), 32)
	for i := uint32(0); i < numWords; i++ {
		index := common.LeftPadBytes(big.NewInt(int64(i)).Bytes(), 32)
		words = append(words, new(big.Int).SetBytes(crypto.Keccak256(id, index)))
	}
	return words
}
