package httpservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ark-network/lottery/internal/config"
	interfaces "github.com/ark-network/lottery/internal/interface"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

type service struct {
	config        Config
	appConfig     *config.Config
	server        *http.Server
	stopListening context.CancelFunc
}

func NewService(
	svcConfig Config, appConfig *config.Config,
) (interfaces.Service, error) {
	if err := svcConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid app config: %s", err)
	}

	return &service{config: svcConfig, appConfig: appConfig}, nil
}

func (s *service) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopListening = cancel

	// Must subscribe before the app service starts to catch the opening
	// event of a brand new lottery.
	if err := s.appConfig.Metrics().Listen(ctx, s.appConfig.Notifier()); err != nil {
		return fmt.Errorf("failed to listen for lottery events: %s", err)
	}

	appSvc := s.appConfig.AppService()
	if err := appSvc.Start(); err != nil {
		return fmt.Errorf("failed to start app service: %s", err)
	}
	log.Info("started app service")

	if err := s.appConfig.RestoreBalance(ctx); err != nil {
		return fmt.Errorf("failed to restore lottery balance: %s", err)
	}

	info, err := appSvc.GetInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to get lottery info: %s", err)
	}
	s.appConfig.Metrics().Seed(info.NumberOfPlayers, info.Pot, info.State)

	s.appConfig.SchedulerService().Start()
	if !s.appConfig.NoKeeper {
		if err := s.appConfig.Keeper().Start(); err != nil {
			return fmt.Errorf("failed to start keeper: %s", err)
		}
		log.Infof("started keeper, checking upkeep every %ds", s.appConfig.KeeperInterval)
	}

	s.server = &http.Server{
		Addr: s.config.address(),
		Handler: NewRouter(
			appSvc, s.appConfig.AdminService(), s.appConfig.Metrics(),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()
	log.Infof("started listening at %s", s.config.address())

	return nil
}

func (s *service) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("failed to gracefully stop http server")
		}
		log.Info("stopped http server")
	}

	s.appConfig.SchedulerService().Stop()
	if s.stopListening != nil {
		s.stopListening()
	}

	if appSvc := s.appConfig.AppService(); appSvc != nil {
		appSvc.Stop()
		log.Info("stopped app service")
	}
}
