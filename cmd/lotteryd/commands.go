package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ark-network/lottery/internal/interface/http/handlers"
	"github.com/urfave/cli/v2"
)

// flags
var (
	playerFlag = &cli.StringFlag{
		Name:     "player",
		Usage:    "address of the player joining the lottery",
		Required: true,
	}
	valueFlag = &cli.StringFlag{
		Name:  "value",
		Usage: "amount in ether paid to join the lottery",
		Value: "0.01",
	}
	indexFlag = &cli.IntFlag{
		Name:  "index",
		Usage: "index of the player to get",
	}
	addressFlag = &cli.StringFlag{
		Name:     "address",
		Usage:    "address of the account",
		Required: true,
	}
	amountFlag = &cli.StringFlag{
		Name:     "amount",
		Usage:    "amount in ether to mint",
		Required: true,
	}
	wordFlag = &cli.StringSliceFlag{
		Name:  "word",
		Usage: "random word to deliver instead of the derived ones, can be repeated",
	}
)

// commands
var (
	infoCmd = &cli.Command{
		Name:   "info",
		Usage:  "Get info about the state of the lottery",
		Action: infoAction,
	}
	playersCmd = &cli.Command{
		Name:   "players",
		Usage:  "List the players of the current round, or get one by index",
		Action: playersAction,
		Flags:  []cli.Flag{indexFlag},
	}
	joinCmd = &cli.Command{
		Name:   "join",
		Usage:  "Join the current round by paying the entrance fee",
		Action: joinAction,
		Flags:  []cli.Flag{playerFlag, valueFlag},
	}
	upkeepCmd = &cli.Command{
		Name:  "upkeep",
		Usage: "Check or perform the lottery upkeep",
		Subcommands: append(
			cli.Commands{},
			upkeepCheckCmd,
			upkeepPerformCmd,
		),
	}
	upkeepCheckCmd = &cli.Command{
		Name:   "check",
		Usage:  "Check whether a draw is due",
		Action: upkeepCheckAction,
	}
	upkeepPerformCmd = &cli.Command{
		Name:   "perform",
		Usage:  "Close the round and request the randomness for the draw",
		Action: upkeepPerformAction,
	}
	drawsCmd = &cli.Command{
		Name:   "draws",
		Usage:  "List the completed draws",
		Action: drawsAction,
	}
	eventsCmd = &cli.Command{
		Name:   "events",
		Usage:  "Stream the lottery events",
		Action: eventsAction,
	}
	adminCmd = &cli.Command{
		Name:  "admin",
		Usage: "Manage the local bank and randomness provider",
		Subcommands: append(
			cli.Commands{},
			adminMintCmd,
			adminBalanceCmd,
			adminFulfillCmd,
		),
	}
	adminMintCmd = &cli.Command{
		Name:   "mint",
		Usage:  "Credit an account with the given amount",
		Action: adminMintAction,
		Flags:  []cli.Flag{addressFlag, amountFlag},
	}
	adminBalanceCmd = &cli.Command{
		Name:   "balance",
		Usage:  "Get the balance of an account",
		Action: adminBalanceAction,
		Flags:  []cli.Flag{addressFlag},
	}
	adminFulfillCmd = &cli.Command{
		Name:   "fulfill",
		Usage:  "Deliver the random words of the pending draw",
		Action: adminFulfillAction,
		Flags:  []cli.Flag{wordFlag},
	}
)

func infoAction(ctx *cli.Context) error {
	url := fmt.Sprintf("%s/v1/info", ctx.String("url"))
	info, err := get[handlers.InfoResponse](url)
	if err != nil {
		return err
	}
	return printJSON(info)
}

func playersAction(ctx *cli.Context) error {
	baseURL := ctx.String("url")
	if ctx.IsSet("index") {
		url := fmt.Sprintf("%s/v1/players/%d", baseURL, ctx.Int("index"))
		player, err := get[handlers.PlayerResponse](url)
		if err != nil {
			return err
		}
		fmt.Println(player.Player)
		return nil
	}

	url := fmt.Sprintf("%s/v1/players", baseURL)
	players, err := get[handlers.PlayersResponse](url)
	if err != nil {
		return err
	}
	return printJSON(players)
}

func joinAction(ctx *cli.Context) error {
	url := fmt.Sprintf("%s/v1/join", ctx.String("url"))
	resp, err := post[handlers.JoinResponse](url, handlers.JoinRequest{
		Player: ctx.String("player"),
		Value:  ctx.String("value"),
	})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func upkeepCheckAction(ctx *cli.Context) error {
	url := fmt.Sprintf("%s/v1/upkeep", ctx.String("url"))
	check, err := get[handlers.UpkeepResponse](url)
	if err != nil {
		return err
	}
	return printJSON(check)
}

func upkeepPerformAction(ctx *cli.Context) error {
	url := fmt.Sprintf("%s/v1/upkeep", ctx.String("url"))
	resp, err := post[handlers.RequestIdResponse](url, nil)
	if err != nil {
		return err
	}
	fmt.Println(resp.RequestId)
	return nil
}

func drawsAction(ctx *cli.Context) error {
	url := fmt.Sprintf("%s/v1/draws", ctx.String("url"))
	draws, err := get[handlers.DrawsResponse](url)
	if err != nil {
		return err
	}
	return printJSON(draws)
}

func eventsAction(ctx *cli.Context) error {
	url := fmt.Sprintf("%s/v1/events", ctx.String("url"))
	req, err := http.NewRequestWithContext(ctx.Context, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		buf, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to stream events: %s", string(buf))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if data, ok := strings.CutPrefix(scanner.Text(), "data:"); ok {
			fmt.Println(data)
		}
	}
	return scanner.Err()
}

func adminMintAction(ctx *cli.Context) error {
	url := fmt.Sprintf("%s/v1/admin/mint", ctx.String("url"))
	balance, err := post[handlers.BalanceResponse](url, handlers.MintRequest{
		Address: ctx.String("address"),
		Amount:  ctx.String("amount"),
	})
	if err != nil {
		return err
	}
	return printJSON(balance)
}

func adminBalanceAction(ctx *cli.Context) error {
	url := fmt.Sprintf("%s/v1/admin/balance/%s", ctx.String("url"), ctx.String("address"))
	balance, err := get[handlers.BalanceResponse](url)
	if err != nil {
		return err
	}
	return printJSON(balance)
}

func adminFulfillAction(ctx *cli.Context) error {
	url := fmt.Sprintf("%s/v1/admin/fulfill", ctx.String("url"))
	resp, err := post[handlers.RequestIdResponse](url, handlers.FulfillRequest{
		RandomWords: ctx.StringSlice("word"),
	})
	if err != nil {
		return err
	}
	fmt.Println(resp.RequestId)
	return nil
}

func post[T any](url string, body interface{}) (result T, err error) {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return result, err
		}
		payload = bytes.NewReader(buf)
	}
	return do[T](http.MethodPost, url, payload)
}

func get[T any](url string) (result T, err error) {
	return do[T](http.MethodGet, url, nil)
}

func do[T any](method, url string, body io.Reader) (result T, err error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return
	}
	req.Header.Add("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 30 * time.Second,
	}
	resp, err := client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}
	if resp.StatusCode != http.StatusOK {
		errResp := handlers.ErrorResponse{}
		if jsonErr := json.Unmarshal(buf, &errResp); jsonErr == nil && len(errResp.Error) > 0 {
			err = fmt.Errorf("%s", errResp.Error)
			return
		}
		err = fmt.Errorf("failed to %s %s: %s", strings.ToLower(method), url, string(buf))
		return
	}

	err = json.Unmarshal(buf, &result)
	return
}

func printJSON(resp interface{}) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return err
	}
	fmt.Println(string(jsonBytes))
	return nil
}
