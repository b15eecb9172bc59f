package application

import (
	"context"
	"errors"
	"math/big"

	"github.com/ark-network/lottery/internal/core/domain"
	"github.com/ark-network/lottery/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// Keeper polls the lottery for upkeep and triggers a draw whenever one is
// due.
type Keeper struct {
	svc       Service
	scheduler ports.SchedulerService
	interval  int64
}

func NewKeeper(svc Service, scheduler ports.SchedulerService, interval int64) *Keeper {
	if interval <= 0 {
		interval = 1
	}
	return &Keeper{svc, scheduler, interval}
}

func (k *Keeper) Start() error {
	startImmediately := true
	return k.scheduler.ScheduleTask(k.interval, !startImmediately, func() {
		//nolint:errcheck
		k.Upkeep(context.Background())
	})
}

// Upkeep performs the upkeep if needed and returns the id of the requested
// random words, nil if there was nothing to do.
func (k *Keeper) Upkeep(ctx context.Context) (*big.Int, error) {
	check, err := k.svc.CheckUpkeep(ctx)
	if err != nil {
		log.WithError(err).Warn("keeper: failed to check upkeep")
		return nil, err
	}
	if !check.Needed {
		return nil, nil
	}

	requestId, err := k.svc.PerformUpkeep(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrUpkeepNotNeeded) {
			log.WithError(err).Debug("keeper: upkeep no longer needed")
			return nil, nil
		}
		log.WithError(err).Warn("keeper: failed to perform upkeep")
		return nil, err
	}

	log.Debugf("keeper: performed upkeep, request id %s", requestId)
	return requestId, nil
}
