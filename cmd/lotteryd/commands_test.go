package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ark-network/lottery/internal/interface/http/handlers"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const player = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

type daemon struct {
	*httptest.Server

	lock  sync.Mutex
	joins []handlers.JoinRequest
}

func (d *daemon) joined() []handlers.JoinRequest {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]handlers.JoinRequest{}, d.joins...)
}

func newDaemon(t *testing.T) *daemon {
	d := &daemon{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/info", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, handlers.InfoResponse{
			Id:          "lottery",
			State:       "OPEN",
			EntranceFee: "10000000000000000",
			Interval:    30,
		})
	})
	mux.HandleFunc("POST /v1/join", func(w http.ResponseWriter, r *http.Request) {
		var req handlers.JoinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			reply(w, http.StatusBadRequest, handlers.ErrorResponse{Error: err.Error()})
			return
		}
		if req.Value != "0.01" {
			reply(w, http.StatusBadRequest, handlers.ErrorResponse{Error: "not enough eth entered"})
			return
		}
		d.lock.Lock()
		d.joins = append(d.joins, req)
		d.lock.Unlock()
		reply(w, http.StatusOK, handlers.JoinResponse{Player: req.Player, Value: req.Value})
	})
	mux.HandleFunc("GET /v1/draws", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	})

	d.Server = httptest.NewServer(mux)
	t.Cleanup(d.Close)
	return d
}

func reply(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient(t *testing.T) {
	d := newDaemon(t)

	t.Run("info", func(t *testing.T) {
		info, err := get[handlers.InfoResponse](d.URL + "/v1/info")
		require.NoError(t, err)
		require.Equal(t, "lottery", info.Id)
		require.Equal(t, "OPEN", info.State)
		require.Equal(t, "10000000000000000", info.EntranceFee)
		require.Equal(t, int64(30), info.Interval)
	})

	t.Run("join", func(t *testing.T) {
		resp, err := post[handlers.JoinResponse](d.URL+"/v1/join", handlers.JoinRequest{
			Player: player,
			Value:  "0.01",
		})
		require.NoError(t, err)
		require.Equal(t, player, resp.Player)
		require.Equal(t, "0.01", resp.Value)
	})

	t.Run("error response", func(t *testing.T) {
		_, err := post[handlers.JoinResponse](d.URL+"/v1/join", handlers.JoinRequest{
			Player: player,
			Value:  "0.001",
		})
		require.EqualError(t, err, "not enough eth entered")
	})

	t.Run("plain error", func(t *testing.T) {
		_, err := get[handlers.DrawsResponse](d.URL + "/v1/draws")
		require.EqualError(t, err, "failed to get "+d.URL+"/v1/draws: internal error")
	})

	t.Run("unknown route", func(t *testing.T) {
		_, err := get[handlers.InfoResponse](d.URL + "/v1/missing")
		require.Error(t, err)
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := get[handlers.InfoResponse]("http://127.0.0.1:0/v1/info")
		require.Error(t, err)
	})
}

func TestCommands(t *testing.T) {
	d := newDaemon(t)

	app := cli.NewApp()
	app.Flags = []cli.Flag{urlFlag}
	app.Commands = []*cli.Command{infoCmd, joinCmd, drawsCmd}

	require.NoError(t, app.Run([]string{"lotteryd", "--url", d.URL, "info"}))

	require.NoError(t, app.Run([]string{"lotteryd", "--url", d.URL, "join", "--player", player}))
	joins := d.joined()
	require.Len(t, joins, 1)
	require.Equal(t, handlers.JoinRequest{Player: player, Value: "0.01"}, joins[0])

	err := app.Run([]string{"lotteryd", "--url", d.URL, "join", "--player", player, "--value", "1"})
	require.EqualError(t, err, "not enough eth entered")
	require.Len(t, d.joined(), 1)

	require.Error(t, app.Run([]string{"lotteryd", "--url", d.URL, "draws"}))
}
