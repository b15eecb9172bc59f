package application

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ark-network/lottery/internal/core/domain"
	"github.com/ark-network/lottery/internal/core/ports"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

type ServiceOption func(*service)

// WithClock replaces the source of the unix timestamps used for upkeep
// checks and recorded events.
func WithClock(now func() int64) ServiceOption {
	return func(s *service) {
		s.now = now
	}
}

type service struct {
	lotteryId string
	address   common.Address
	config    domain.Config

	bank        ports.Bank
	provider    ports.RandomnessProvider
	repoManager ports.RepoManager
	notifier    ports.EventNotifier
	now         func() int64

	lock      *sync.Mutex
	frame     atomic.Pointer[frame]
	lottery   *domain.Lottery
	persisted int
	published int
}

func NewService(
	lotteryId string, address common.Address, config domain.Config,
	bank ports.Bank, provider ports.RandomnessProvider,
	repoManager ports.RepoManager, notifier ports.EventNotifier,
	opts ...ServiceOption,
) (Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if bank == nil {
		return nil, fmt.Errorf("missing bank")
	}
	if provider == nil {
		return nil, fmt.Errorf("missing randomness provider")
	}
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if notifier == nil {
		return nil, fmt.Errorf("missing event notifier")
	}
	if provider.Address() != config.Coordinator {
		return nil, fmt.Errorf(
			"randomness provider %s does not match configured coordinator %s",
			provider.Address().Hex(), config.Coordinator.Hex(),
		)
	}

	svc := &service{
		lotteryId:   lotteryId,
		address:     address,
		config:      config,
		bank:        bank,
		provider:    provider,
		repoManager: repoManager,
		notifier:    notifier,
		now:         func() int64 { return time.Now().Unix() },
		lock:        &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Start restores the lottery from its stored events, or deploys a new one,
// and registers it as consumer of the randomness provider.
func (s *service) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.lottery != nil {
		return nil
	}

	ctx := context.Background()
	lottery, err := s.repoManager.Events().Load(ctx, s.lotteryId)
	if err != nil {
		return fmt.Errorf("failed to load lottery %s: %w", s.lotteryId, err)
	}

	if lottery != nil {
		s.lottery = lottery
		s.persisted = len(lottery.Events())
		s.published = s.persisted
		log.Infof(
			"restored lottery %s at %s with %d players",
			lottery.Id, lottery.Address.Hex(), lottery.NumberOfPlayers(),
		)
	} else {
		lottery, err := domain.NewLottery(s.lotteryId, s.address, s.config)
		if err != nil {
			return err
		}
		if _, err := lottery.Start(s.now()); err != nil {
			return err
		}
		s.lottery = lottery
		s.commit(ctx)
		log.Infof("started lottery %s at %s", lottery.Id, lottery.Address.Hex())
	}

	if err := s.provider.RegisterConsumer(
		s.lottery.Config.SubscriptionId, s.lottery.Address, s,
	); err != nil {
		s.lottery = nil
		return fmt.Errorf("failed to register lottery as randomness consumer: %w", err)
	}
	return nil
}

func (s *service) Stop() {
	if err := s.notifier.Close(); err != nil {
		log.WithError(err).Warn("failed to close event notifier")
	}
	s.repoManager.Close()
	log.Debug("closed connection with db")
}

func (s *service) Join(ctx context.Context, player common.Address, amount *big.Int) error {
	return s.atomically(ctx, func(ctx context.Context) error {
		if _, err := s.lottery.Join(player, amount, s.now()); err != nil {
			return err
		}
		if err := s.bank.Transfer(ctx, player, s.lottery.Address, amount); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrPaymentFailed, err)
		}

		log.WithFields(log.Fields{
			"player": player.Hex(),
			"amount": amount,
		}).Debug("player joined lottery")
		return nil
	})
}

func (s *service) CheckUpkeep(ctx context.Context) (*domain.UpkeepCheck, error) {
	var check domain.UpkeepCheck
	if err := s.view(ctx, func(lottery *domain.Lottery) error {
		check = lottery.CheckUpkeep(s.now())
		return nil
	}); err != nil {
		return nil, err
	}
	return &check, nil
}

// PerformUpkeep checks the upkeep conditions again, no matter who's
// calling, and asks the provider for the random words of a new draw.
func (s *service) PerformUpkeep(ctx context.Context) (*big.Int, error) {
	var requestId *big.Int
	if err := s.atomically(ctx, func(ctx context.Context) error {
		now := s.now()
		if !s.lottery.CheckUpkeep(now).Needed {
			return domain.UpkeepNotNeededError{
				Pot:     copyInt(s.lottery.Pot),
				Players: s.lottery.NumberOfPlayers(),
				State:   s.lottery.State,
			}
		}

		id, err := s.provider.RequestRandomWords(ctx, ports.RandomWordsRequest{
			KeyHash:              s.lottery.Config.KeyHash,
			SubscriptionId:       s.lottery.Config.SubscriptionId,
			RequestConfirmations: s.lottery.Config.RequestConfirmations,
			CallbackGasLimit:     s.lottery.Config.CallbackGasLimit,
			NumWords:             s.lottery.Config.NumWords,
			Consumer:             s.lottery.Address,
		})
		if err != nil {
			return fmt.Errorf("failed to request random words: %w", err)
		}

		if _, err := s.lottery.RequestDraw(id, now); err != nil {
			return err
		}
		requestId = id

		log.WithFields(log.Fields{
			"request_id": id,
			"players":    s.lottery.NumberOfPlayers(),
			"pot":        s.lottery.Pot,
		}).Info("requested lottery draw")
		return nil
	}); err != nil {
		return nil, err
	}
	return copyInt(requestId), nil
}

// FulfillRandomWords is the callback of the randomness provider. The round
// is closed before the prize leaves the lottery account, so a winner that
// calls back during the transfer already sees the next round.
func (s *service) FulfillRandomWords(
	ctx context.Context, caller common.Address, requestId *big.Int, randomWords []*big.Int,
) error {
	return s.atomically(ctx, func(ctx context.Context) error {
		if caller != s.provider.Address() {
			return domain.ErrUnauthorizedCaller
		}

		event, err := s.lottery.PickWinner(requestId, randomWords, s.now())
		if err != nil {
			return err
		}
		picked := event.(domain.WinnerPicked)

		if err := s.bank.Transfer(
			ctx, s.lottery.Address, picked.Winner, picked.Prize,
		); err != nil {
			log.WithError(err).WithField("request_id", requestId).
				Warn("failed to pay out lottery prize")
			return fmt.Errorf("%w: %w", domain.ErrPayoutTransferFailed, err)
		}

		log.WithFields(log.Fields{
			"request_id": requestId,
			"winner":     picked.Winner.Hex(),
			"prize":      picked.Prize,
		}).Info("picked lottery winner")
		return nil
	})
}

func (s *service) GetInfo(ctx context.Context) (*LotteryInfo, error) {
	var info *LotteryInfo
	if err := s.view(ctx, func(lottery *domain.Lottery) error {
		balance, err := s.bank.BalanceOf(ctx, lottery.Address)
		if err != nil {
			return fmt.Errorf("failed to get lottery balance: %w", err)
		}
		info = &LotteryInfo{
			Id:                   lottery.Id,
			Address:              lottery.Address,
			State:                lottery.State,
			EntranceFee:          copyInt(lottery.Config.EntranceFee),
			Interval:             lottery.Config.Interval,
			StartingTimestamp:    lottery.StartingTimestamp,
			LastDrawTimestamp:    lottery.LastDrawTimestamp,
			NumberOfPlayers:      lottery.NumberOfPlayers(),
			Pot:                  copyInt(lottery.Pot),
			Balance:              balance,
			PendingRequestId:     copyInt(lottery.PendingRequestId()),
			LastWinner:           lottery.LastWinner,
			Coordinator:          lottery.Config.Coordinator,
			KeyHash:              lottery.Config.KeyHash,
			SubscriptionId:       lottery.Config.SubscriptionId,
			CallbackGasLimit:     lottery.Config.CallbackGasLimit,
			RequestConfirmations: lottery.Config.RequestConfirmations,
			NumWords:             lottery.Config.NumWords,
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return info, nil
}

func (s *service) GetPlayer(ctx context.Context, index int) (common.Address, error) {
	var player common.Address
	err := s.view(ctx, func(lottery *domain.Lottery) error {
		var err error
		player, err = lottery.Player(index)
		return err
	})
	return player, err
}

func (s *service) GetPlayers(ctx context.Context) ([]common.Address, error) {
	var players []common.Address
	if err := s.view(ctx, func(lottery *domain.Lottery) error {
		players = append([]common.Address{}, lottery.Players...)
		return nil
	}); err != nil {
		return nil, err
	}
	return players, nil
}

func (s *service) GetDraws(ctx context.Context) ([]domain.Draw, error) {
	return s.repoManager.Draws().GetDraws(ctx, s.lotteryId)
}

func (s *service) GetEventsChannel(ctx context.Context) (<-chan domain.Event, error) {
	return s.notifier.Subscribe(ctx)
}
