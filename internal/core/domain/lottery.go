package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	OpenState LotteryState = iota
	CalculatingState
)

const (
	DefaultRequestConfirmations = 3
	DefaultNumWords             = 1
)

type LotteryState int

func (s LotteryState) String() string {
	switch s {
	case OpenState:
		return "OPEN"
	case CalculatingState:
		return "CALCULATING"
	default:
		return "UNKNOWN"
	}
}

// Config holds the parameters fixed when the lottery is deployed.
type Config struct {
	EntranceFee          *big.Int
	Interval             int64
	Coordinator          common.Address
	KeyHash              common.Hash
	SubscriptionId       uint64
	CallbackGasLimit     uint32
	RequestConfirmations uint16
	NumWords             uint32
}

func (c Config) Validate() error {
	if c.EntranceFee == nil || c.EntranceFee.Sign() < 0 {
		return fmt.Errorf("%w: missing or negative entrance fee", ErrInvalidLotteryConfig)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidLotteryConfig)
	}
	if c.Coordinator == (common.Address{}) {
		return fmt.Errorf("%w: missing coordinator address", ErrInvalidLotteryConfig)
	}
	if c.CallbackGasLimit == 0 {
		return fmt.Errorf("%w: missing callback gas limit", ErrInvalidLotteryConfig)
	}
	if c.NumWords == 0 {
		return fmt.Errorf("%w: num words must be at least 1", ErrInvalidLotteryConfig)
	}
	return nil
}

// RandomnessRequest correlates an outstanding draw with the provider request.
// Players is the entry list captured when the draw was requested.
type RandomnessRequest struct {
	RequestId *big.Int
	IssuedAt  int64
	Players   []common.Address
	Pot       *big.Int
}

type Draw struct {
	LotteryId   string
	RequestId   *big.Int
	Winner      common.Address
	WinnerIndex int
	RandomWord  *big.Int
	Prize       *big.Int
	PlayerCount int
	RequestedAt int64
	CompletedAt int64
}

type UpkeepCheck struct {
	Needed     bool
	IsOpen     bool
	TimePassed bool
	HasPlayers bool
	HasBalance bool
}

type Lottery struct {
	Id                string
	Address           common.Address
	Config            Config
	State             LotteryState
	StartingTimestamp int64
	LastDrawTimestamp int64
	Players           []common.Address
	Pot               *big.Int
	PendingRequest    *RandomnessRequest
	LastWinner        common.Address
	Draws             []Draw
	changes           []Event
}

func NewLottery(id string, address common.Address, config Config) (*Lottery, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.RequestConfirmations == 0 {
		config.RequestConfirmations = DefaultRequestConfirmations
	}
	return &Lottery{
		Id:      id,
		Address: address,
		Config:  config,
		Players: make([]common.Address, 0),
		Pot:     big.NewInt(0),
		changes: make([]Event, 0),
	}, nil
}

func NewLotteryFromEvents(events []Event) *Lottery {
	l := &Lottery{
		Players: make([]common.Address, 0),
		Pot:     big.NewInt(0),
	}

	for _, event := range events {
		l.on(event)
	}

	l.changes = append([]Event{}, events...)

	return l
}

func (l *Lottery) Events() []Event {
	return l.changes
}

// Revert discards every event raised after the first mark ones and
// rebuilds the lottery state from what is left.
func (l *Lottery) Revert(mark int) {
	if mark < 0 || mark >= len(l.changes) {
		return
	}
	reverted := NewLotteryFromEvents(l.changes[:mark])
	if !reverted.IsStarted() {
		reverted.Id = l.Id
		reverted.Address = l.Address
		reverted.Config = l.Config
	}
	*l = *reverted
}

func (l *Lottery) Start(now int64) (Event, error) {
	if l.IsStarted() {
		return nil, fmt.Errorf("lottery already started")
	}

	event := LotteryStarted{
		Id:        l.Id,
		Address:   l.Address,
		Config:    l.Config,
		Timestamp: now,
	}
	l.raise(event)

	return event, nil
}

// Join adds an entry for player. The state is checked before the amount so
// that any attempt to enter while a draw is in flight reports the lottery
// as closed.
func (l *Lottery) Join(player common.Address, amount *big.Int, now int64) (Event, error) {
	if !l.IsStarted() || l.State != OpenState {
		return nil, ErrLotteryNotOpen
	}
	if amount == nil || amount.Cmp(l.Config.EntranceFee) < 0 {
		return nil, ErrInsufficientEntranceFee
	}

	event := PlayerJoined{
		Id:        l.Id,
		Player:    player,
		Amount:    new(big.Int).Set(amount),
		Timestamp: now,
	}
	l.raise(event)

	return event, nil
}

func (l *Lottery) CheckUpkeep(now int64) UpkeepCheck {
	check := UpkeepCheck{
		IsOpen:     l.IsStarted() && l.State == OpenState,
		TimePassed: now-l.LastDrawTimestamp >= l.Config.Interval,
		HasPlayers: len(l.Players) > 0,
		HasBalance: l.Pot != nil && l.Pot.Sign() > 0,
	}
	check.Needed = check.IsOpen && check.TimePassed && check.HasPlayers && check.HasBalance
	return check
}

// RequestDraw closes the lottery to new entries and records the pending
// randomness request along with a copy of the current players.
func (l *Lottery) RequestDraw(requestId *big.Int, now int64) (Event, error) {
	if !l.CheckUpkeep(now).Needed {
		return nil, l.upkeepNotNeeded()
	}
	if requestId == nil || requestId.Sign() <= 0 {
		return nil, fmt.Errorf("invalid request id")
	}
	if l.isConsumed(requestId) {
		return nil, fmt.Errorf("request id %s already used", requestId)
	}

	event := DrawRequested{
		Id:        l.Id,
		RequestId: new(big.Int).Set(requestId),
		Players:   append([]common.Address{}, l.Players...),
		Pot:       new(big.Int).Set(l.Pot),
		Timestamp: now,
	}
	l.raise(event)

	return event, nil
}

// PickWinner resolves the pending draw. All the state resets are applied
// here, before the caller moves any funds.
func (l *Lottery) PickWinner(
	requestId *big.Int, randomWords []*big.Int, now int64,
) (Event, error) {
	if l.State != CalculatingState || l.PendingRequest == nil ||
		requestId == nil || l.PendingRequest.RequestId.Cmp(requestId) != 0 {
		return nil, ErrUnknownRequest
	}
	if len(randomWords) == 0 || randomWords[0] == nil {
		return nil, ErrMissingRandomWords
	}

	pending := l.PendingRequest
	index := winnerIndex(randomWords[0], len(pending.Players))

	event := WinnerPicked{
		Id:          l.Id,
		RequestId:   new(big.Int).Set(requestId),
		Winner:      pending.Players[index],
		WinnerIndex: index,
		RandomWord:  new(big.Int).Set(randomWords[0]),
		Prize:       new(big.Int).Set(l.Pot),
		PlayerCount: len(pending.Players),
		Timestamp:   now,
	}
	l.raise(event)

	return event, nil
}

func (l *Lottery) Player(index int) (common.Address, error) {
	if index < 0 || index >= len(l.Players) {
		return common.Address{}, ErrIndexOutOfRange
	}
	return l.Players[index], nil
}

func (l *Lottery) NumberOfPlayers() int {
	return len(l.Players)
}

func (l *Lottery) PendingRequestId() *big.Int {
	if l.PendingRequest == nil {
		return nil
	}
	return l.PendingRequest.RequestId
}

func (l *Lottery) IsStarted() bool {
	return l.StartingTimestamp > 0
}

func (l *Lottery) on(event Event) {
	switch e := event.(type) {
	case LotteryStarted:
		l.Id = e.Id
		l.Address = e.Address
		l.Config = e.Config
		l.State = OpenState
		l.StartingTimestamp = e.Timestamp
		l.LastDrawTimestamp = e.Timestamp
		l.Pot = big.NewInt(0)
	case PlayerJoined:
		l.Players = append(l.Players, e.Player)
		l.Pot = new(big.Int).Add(l.Pot, e.Amount)
	case DrawRequested:
		l.State = CalculatingState
		l.PendingRequest = &RandomnessRequest{
			RequestId: e.RequestId,
			IssuedAt:  e.Timestamp,
			Players:   append([]common.Address{}, e.Players...),
			Pot:       e.Pot,
		}
	case WinnerPicked:
		var requestedAt int64
		if l.PendingRequest != nil {
			requestedAt = l.PendingRequest.IssuedAt
		}
		l.Draws = append(l.Draws, Draw{
			LotteryId:   l.Id,
			RequestId:   e.RequestId,
			Winner:      e.Winner,
			WinnerIndex: e.WinnerIndex,
			RandomWord:  e.RandomWord,
			Prize:       e.Prize,
			PlayerCount: e.PlayerCount,
			RequestedAt: requestedAt,
			CompletedAt: e.Timestamp,
		})
		l.LastWinner = e.Winner
		l.Players = make([]common.Address, 0)
		l.PendingRequest = nil
		l.LastDrawTimestamp = e.Timestamp
		l.State = OpenState
		l.Pot = big.NewInt(0)
	}
}

func (l *Lottery) raise(event Event) {
	if l.changes == nil {
		l.changes = make([]Event, 0)
	}
	l.changes = append(l.changes, event)
	l.on(event)
}

func (l *Lottery) upkeepNotNeeded() error {
	return UpkeepNotNeededError{
		Pot:     new(big.Int).Set(l.Pot),
		Players: len(l.Players),
		State:   l.State,
	}
}

func (l *Lottery) isConsumed(requestId *big.Int) bool {
	for _, d := range l.Draws {
		if d.RequestId.Cmp(requestId) == 0 {
			return true
		}
	}
	return false
}

func winnerIndex(randomWord *big.Int, count int) int {
	// big.Int.Mod is euclidean, the result is always in [0, count).
	return int(new(big.Int).Mod(randomWord, big.NewInt(int64(count))).Int64())
}
