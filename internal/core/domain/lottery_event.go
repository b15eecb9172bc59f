package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const LotteryTopic = "lottery"

type EventType int

const (
	EventTypeUndefined EventType = iota
	EventTypeLotteryStarted
	EventTypePlayerJoined
	EventTypeDrawRequested
	EventTypeWinnerPicked
)

func (t EventType) String() string {
	switch t {
	case EventTypeLotteryStarted:
		return "LotteryStarted"
	case EventTypePlayerJoined:
		return "PlayerJoined"
	case EventTypeDrawRequested:
		return "DrawRequested"
	case EventTypeWinnerPicked:
		return "WinnerPicked"
	default:
		return "Undefined"
	}
}

type Event interface {
	GetTopic() string
	GetType() EventType
}

func (e LotteryStarted) GetTopic() string { return LotteryTopic }
func (e PlayerJoined) GetTopic() string   { return LotteryTopic }
func (e DrawRequested) GetTopic() string  { return LotteryTopic }
func (e WinnerPicked) GetTopic() string   { return LotteryTopic }

func (e LotteryStarted) GetType() EventType { return EventTypeLotteryStarted }
func (e PlayerJoined) GetType() EventType   { return EventTypePlayerJoined }
func (e DrawRequested) GetType() EventType  { return EventTypeDrawRequested }
func (e WinnerPicked) GetType() EventType   { return EventTypeWinnerPicked }

type LotteryStarted struct {
	Id        string
	Address   common.Address
	Config    Config
	Timestamp int64
}

type PlayerJoined struct {
	Id        string
	Player    common.Address
	Amount    *big.Int
	Timestamp int64
}

type DrawRequested struct {
	Id        string
	RequestId *big.Int
	Players   []common.Address
	Pot       *big.Int
	Timestamp int64
}

type WinnerPicked struct {
	Id          string
	RequestId   *big.Int
	Winner      common.Address
	WinnerIndex int
	RandomWord  *big.Int
	Prize       *big.Int
	PlayerCount int
	Timestamp   int64
}
