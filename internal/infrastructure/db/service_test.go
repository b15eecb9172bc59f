package db_test

import (
	"context"
	"math/big"
	"os"
	"testing"

	"github.com/ark-network/lottery/internal/core/domain"
	"github.com/ark-network/lottery/internal/infrastructure/db"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const (
	startTime = int64(1_700_000_000)
	lotteryId = "6f1d1c5a-3a2b-5c4d-9e8f-0a1b2c3d4e5f"
)

var (
	lotteryAddr = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	coordinator = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	alice       = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob         = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	entranceFee = big.NewInt(10_000_000_000_000_000)
)

func TestService(t *testing.T) {
	dbDir := t.TempDir()
	tests := []struct {
		name   string
		config db.ServiceConfig
	}{
		{
			name: "repo_manager_with_badger_stores",
			config: db.ServiceConfig{
				EventStoreType:   "badger",
				DataStoreType:    "badger",
				EventStoreConfig: []interface{}{"", nil},
				DataStoreConfig:  []interface{}{"", nil},
			},
		},
		{
			name: "repo_manager_with_sqlite_stores",
			config: db.ServiceConfig{
				EventStoreType:   "sqlite",
				DataStoreType:    "sqlite",
				EventStoreConfig: []interface{}{dbDir},
				DataStoreConfig:  []interface{}{dbDir},
			},
		},
	}
	if redisUrl := os.Getenv("LOTTERY_TEST_REDIS_URL"); redisUrl != "" {
		tests = append(tests, struct {
			name   string
			config db.ServiceConfig
		}{
			name: "repo_manager_with_redis_event_store",
			config: db.ServiceConfig{
				EventStoreType:   "redis",
				DataStoreType:    "badger",
				EventStoreConfig: []interface{}{redisUrl},
				DataStoreConfig:  []interface{}{"", nil},
			},
		})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := db.NewService(tt.config)
			require.NoError(t, err)
			defer svc.Close()

			testEventRepository(t, svc.Events())
			testDrawRepository(t, svc.Draws())
		})
	}

	t.Run("invalid store types", func(t *testing.T) {
		_, err := db.NewService(db.ServiceConfig{
			EventStoreType: "postgres",
			DataStoreType:  "badger",
		})
		require.Error(t, err)

		_, err = db.NewService(db.ServiceConfig{
			EventStoreType: "badger",
			DataStoreType:  "redis",
		})
		require.Error(t, err)
	})
}

func testEventRepository(t *testing.T, repo domain.LotteryEventRepository) {
	t.Run("test_event_repository", func(t *testing.T) {
		ctx := context.Background()
		id := lotteryId + t.Name()

		lottery, err := repo.Load(ctx, id)
		require.NoError(t, err)
		require.Nil(t, lottery)

		require.NoError(t, repo.Save(ctx, id))

		lottery, err = domain.NewLottery(id, lotteryAddr, domain.Config{
			EntranceFee:      entranceFee,
			Interval:         30,
			Coordinator:      coordinator,
			KeyHash:          common.HexToHash("0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c"),
			SubscriptionId:   1,
			CallbackGasLimit: 500_000,
			NumWords:         1,
		})
		require.NoError(t, err)

		_, err = lottery.Start(startTime)
		require.NoError(t, err)
		_, err = lottery.Join(alice, entranceFee, startTime+1)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, id, lottery.Events()...))

		_, err = lottery.Join(bob, entranceFee, startTime+2)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, id, lottery.Events()[2:]...))

		loaded, err := repo.Load(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		require.Equal(t, id, loaded.Id)
		require.Equal(t, lotteryAddr, loaded.Address)
		require.Equal(t, domain.OpenState, loaded.State)
		require.Equal(t, []common.Address{alice, bob}, loaded.Players)
		require.Zero(t, loaded.Pot.Cmp(big.NewInt(20_000_000_000_000_000)))
		require.Zero(t, loaded.Config.EntranceFee.Cmp(entranceFee))
		require.Len(t, loaded.Events(), 3)
	})
}

func testDrawRepository(t *testing.T, repo domain.DrawRepository) {
	t.Run("test_draw_repository", func(t *testing.T) {
		ctx := context.Background()
		id := lotteryId + t.Name()

		draws, err := repo.GetDraws(ctx, id)
		require.NoError(t, err)
		require.Empty(t, draws)

		draw, err := repo.GetDrawWithRequestId(ctx, big.NewInt(1))
		require.Error(t, err)
		require.Nil(t, draw)

		first := domain.Draw{
			LotteryId:   id,
			RequestId:   big.NewInt(1),
			Winner:      alice,
			WinnerIndex: 0,
			RandomWord:  big.NewInt(42),
			Prize:       big.NewInt(20_000_000_000_000_000),
			PlayerCount: 2,
			RequestedAt: startTime + 31,
			CompletedAt: startTime + 32,
		}
		second := domain.Draw{
			LotteryId:   id,
			RequestId:   big.NewInt(2),
			Winner:      bob,
			WinnerIndex: 1,
			RandomWord:  big.NewInt(7),
			Prize:       big.NewInt(30_000_000_000_000_000),
			PlayerCount: 3,
			RequestedAt: startTime + 70,
			CompletedAt: startTime + 71,
		}
		require.NoError(t, repo.AddDraw(ctx, second))
		require.NoError(t, repo.AddDraw(ctx, first))

		draws, err = repo.GetDraws(ctx, id)
		require.NoError(t, err)
		require.Len(t, draws, 2)
		require.Zero(t, draws[0].RequestId.Cmp(first.RequestId))
		require.Zero(t, draws[1].RequestId.Cmp(second.RequestId))

		draw, err = repo.GetDrawWithRequestId(ctx, big.NewInt(2))
		require.NoError(t, err)
		require.NotNil(t, draw)
		require.Equal(t, bob, draw.Winner)
		require.Equal(t, 1, draw.WinnerIndex)
		require.Equal(t, 3, draw.PlayerCount)
		require.Zero(t, draw.Prize.Cmp(second.Prize))
		require.Zero(t, draw.RandomWord.Cmp(second.RandomWord))
		require.Equal(t, second.RequestedAt, draw.RequestedAt)
		require.Equal(t, second.CompletedAt, draw.CompletedAt)

		draws, err = repo.GetDraws(ctx, "another lottery")
		require.NoError(t, err)
		require.Empty(t, draws)
	})
}
