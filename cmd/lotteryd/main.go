package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ark-network/lottery/internal/config"
	httpservice "github.com/ark-network/lottery/internal/interface/http"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

//nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var urlFlag = &cli.StringFlag{
	Name:    "url",
	Usage:   "the url of the lottery daemon to connect to",
	Value:   fmt.Sprintf("http://localhost:%d", config.DefaultPort),
	EnvVars: []string{"LOTTERY_URL"},
}

func mainAction(_ *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	cfg.SetupLogger()
	log.Debugf("loaded config: %s", cfg)

	svcConfig := httpservice.Config{
		Port: cfg.Port,
	}

	svc, err := httpservice.NewService(svcConfig, cfg)
	if err != nil {
		return err
	}

	log.RegisterExitHandler(svc.Stop)

	log.Infof("starting lottery on %s network...", cfg.Network)
	if err := svc.Start(); err != nil {
		return err
	}
	log.Infof("lottery deployed at %s", cfg.LotteryAddress().Hex())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, os.Interrupt)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)

	return nil
}

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s (%s) %s", version, commit, date)
	app.Name = "lotteryd"
	app.Usage = "run or manage a provably fair lottery"
	app.UsageText = "Run the lottery daemon with no subcommand, or use the subcommands to talk to a running one"
	app.Commands = append(
		app.Commands,
		infoCmd,
		playersCmd,
		joinCmd,
		upkeepCmd,
		drawsCmd,
		eventsCmd,
		adminCmd,
	)
	app.Action = mainAction
	app.Flags = append(app.Flags, urlFlag)

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
