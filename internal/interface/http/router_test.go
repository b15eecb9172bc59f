package httpservice_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ark-network/lottery/internal/core/application"
	"github.com/ark-network/lottery/internal/core/domain"
	inmemorybank "github.com/ark-network/lottery/internal/infrastructure/bank/inmemory"
	"github.com/ark-network/lottery/internal/infrastructure/db"
	"github.com/ark-network/lottery/internal/infrastructure/metrics"
	watermillnotifier "github.com/ark-network/lottery/internal/infrastructure/notifier/watermill"
	"github.com/ark-network/lottery/internal/infrastructure/randomness/vrfmock"
	httpservice "github.com/ark-network/lottery/internal/interface/http"
	"github.com/ark-network/lottery/internal/interface/http/handlers"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	startTime = int64(1_700_000_000)
	interval  = int64(30)
)

var (
	lotteryAddr = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	coordinator = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	deployer    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	players     = []common.Address{
		common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"),
		common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906"),
		common.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65"),
	}

	entranceFee = big.NewInt(10_000_000_000_000_000)
	oneEther    = big.NewInt(1_000_000_000_000_000_000)
)

type testServer struct {
	router *gin.Engine
	svc    application.Service
	now    *int64
}

func newTestServer(t *testing.T) *testServer {
	ctx := context.Background()

	bank := inmemorybank.NewBank()
	for _, p := range players {
		require.NoError(t, bank.Mint(ctx, p, oneEther))
	}

	vrf := vrfmock.NewCoordinator(coordinator, big.NewInt(0), nil)
	subId := vrf.CreateSubscription(deployer)
	require.NoError(t, vrf.FundSubscription(subId, oneEther))

	repoManager, err := db.NewService(db.ServiceConfig{
		EventStoreType:   "badger",
		DataStoreType:    "badger",
		EventStoreConfig: []interface{}{"", nil},
		DataStoreConfig:  []interface{}{"", nil},
	})
	require.NoError(t, err)

	now := startTime
	svc, err := application.NewService(
		"lottery", lotteryAddr, domain.Config{
			EntranceFee:      entranceFee,
			Interval:         interval,
			Coordinator:      coordinator,
			SubscriptionId:   subId,
			CallbackGasLimit: 500_000,
			NumWords:         1,
		},
		bank, vrf, repoManager, watermillnotifier.NewNotifier(),
		application.WithClock(func() int64 { return now }),
	)
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	t.Cleanup(svc.Stop)

	adminSvc := application.NewAdminService(svc, bank, vrf)
	router := httpservice.NewRouter(svc, adminSvc, metrics.NewMetrics())
	return &testServer{router, svc, &now}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var resp T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRouter(t *testing.T) {
	s := newTestServer(t)

	t.Run("info", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/info", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		info := decode[handlers.InfoResponse](t, rec)
		require.Equal(t, "OPEN", info.State)
		require.Equal(t, entranceFee.String(), info.EntranceFee)
		require.Equal(t, interval, info.Interval)
		require.Equal(t, lotteryAddr.Hex(), info.Address)
		require.Equal(t, coordinator.Hex(), info.Coordinator)
		require.Zero(t, info.NumberOfPlayers)
		require.Equal(t, "0", info.Pot)
	})

	t.Run("join", func(t *testing.T) {
		fixtures := []struct {
			name   string
			req    handlers.JoinRequest
			status int
		}{
			{"invalid player", handlers.JoinRequest{Player: "alice", Value: "0.01"}, http.StatusBadRequest},
			{"invalid value", handlers.JoinRequest{Player: players[0].Hex(), Value: "ten"}, http.StatusBadRequest},
			{"insufficient fee", handlers.JoinRequest{Player: players[0].Hex(), Value: "0.001"}, http.StatusBadRequest},
			{"not enough funds", handlers.JoinRequest{Player: deployer.Hex(), Value: "0.01"}, http.StatusBadRequest},
		}
		for _, f := range fixtures {
			t.Run(f.name, func(t *testing.T) {
				rec := s.do(t, http.MethodPost, "/v1/join", f.req)
				require.Equal(t, f.status, rec.Code, rec.Body.String())
				require.NotEmpty(t, decode[handlers.ErrorResponse](t, rec).Error)
			})
		}

		for _, p := range players {
			rec := s.do(t, http.MethodPost, "/v1/join", handlers.JoinRequest{
				Player: p.Hex(), Value: "0.01",
			})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			resp := decode[handlers.JoinResponse](t, rec)
			require.Equal(t, p.Hex(), resp.Player)
			require.Equal(t, entranceFee.String(), resp.Value)
		}
	})

	t.Run("players", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/players", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, decode[handlers.PlayersResponse](t, rec).Players, len(players))

		rec = s.do(t, http.MethodGet, "/v1/players/1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		player := decode[handlers.PlayerResponse](t, rec)
		require.Equal(t, 1, player.Index)
		require.Equal(t, players[1].Hex(), player.Player)

		rec = s.do(t, http.MethodGet, "/v1/players/9", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)

		rec = s.do(t, http.MethodGet, "/v1/players/first", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("upkeep not needed", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/upkeep", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		check := decode[handlers.UpkeepResponse](t, rec)
		require.False(t, check.UpkeepNeeded)
		require.False(t, check.TimePassed)
		require.True(t, check.IsOpen)
		require.True(t, check.HasPlayers)
		require.True(t, check.HasBalance)

		rec = s.do(t, http.MethodPost, "/v1/upkeep", nil)
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("perform upkeep", func(t *testing.T) {
		*s.now += interval + 1

		rec := s.do(t, http.MethodGet, "/v1/upkeep", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, decode[handlers.UpkeepResponse](t, rec).UpkeepNeeded)

		rec = s.do(t, http.MethodPost, "/v1/upkeep", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Equal(t, "1", decode[handlers.RequestIdResponse](t, rec).RequestId)

		rec = s.do(t, http.MethodGet, "/v1/info", nil)
		info := decode[handlers.InfoResponse](t, rec)
		require.Equal(t, "CALCULATING", info.State)
		require.Equal(t, "1", info.PendingRequestId)

		rec = s.do(t, http.MethodPost, "/v1/join", handlers.JoinRequest{
			Player: players[0].Hex(), Value: "0.01",
		})
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("fulfill", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/admin/fulfill", handlers.FulfillRequest{
			RandomWords: []string{"not a number"},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		// 6 mod 4 picks the third player.
		rec = s.do(t, http.MethodPost, "/v1/admin/fulfill", handlers.FulfillRequest{
			RandomWords: []string{"6"},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Equal(t, "1", decode[handlers.RequestIdResponse](t, rec).RequestId)

		rec = s.do(t, http.MethodPost, "/v1/admin/fulfill", nil)
		require.Equal(t, http.StatusConflict, rec.Code)

		rec = s.do(t, http.MethodGet, "/v1/info", nil)
		info := decode[handlers.InfoResponse](t, rec)
		require.Equal(t, "OPEN", info.State)
		require.Equal(t, players[2].Hex(), info.LastWinner)
		require.Zero(t, info.NumberOfPlayers)
		require.Equal(t, "0", info.Balance)

		rec = s.do(t, http.MethodGet, "/v1/draws", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		draws := decode[handlers.DrawsResponse](t, rec).Draws
		require.Len(t, draws, 1)
		require.Equal(t, players[2].Hex(), draws[0].Winner)
		require.Equal(t, 2, draws[0].WinnerIndex)
		require.Equal(t, "40000000000000000", draws[0].Prize)
		require.Equal(t, len(players), draws[0].PlayerCount)
	})

	t.Run("balance", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/admin/balance/"+players[2].Hex(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		balance := decode[handlers.BalanceResponse](t, rec)
		require.Equal(t, "1030000000000000000", balance.Balance)
		require.Equal(t, "1.03", balance.Ether)

		rec = s.do(t, http.MethodGet, "/v1/admin/balance/bob", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("mint", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/admin/mint", handlers.MintRequest{
			Address: deployer.Hex(), Amount: "-1",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		rec = s.do(t, http.MethodPost, "/v1/admin/mint", handlers.MintRequest{
			Address: deployer.Hex(), Amount: "2.5",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		balance := decode[handlers.BalanceResponse](t, rec)
		require.Equal(t, deployer.Hex(), balance.Address)
		require.Equal(t, "2.5", balance.Ether)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		require.Contains(t, body, "http_requests_total")
		require.Contains(t, body, `path="/v1/join"`)
		require.Contains(t, body, "lottery_draws_total")
	})
}

func TestEventsStream(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.router)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/v1/events", nil)
	require.NoError(t, err)

	responses := make(chan *http.Response, 1)
	go func() {
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return
		}
		responses <- resp
	}()

	// Headers are flushed along with the first event, keep joining until the
	// stream is subscribed.
	var resp *http.Response
	for _, p := range players {
		require.NoError(t, s.svc.Join(context.Background(), p, entranceFee))
		select {
		case resp = <-responses:
		case <-time.After(200 * time.Millisecond):
			continue
		}
		break
	}
	require.NotNil(t, resp)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "event:"+domain.EventTypePlayerJoined.String(), strings.TrimSpace(line))

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data:"))

	var event handlers.EventResponse
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data:")), &event))
	require.Equal(t, "PlayerJoined", event.Type)
	require.Equal(t, entranceFee.String(), event.Amount)
	require.Equal(t, startTime, event.Timestamp)
}
