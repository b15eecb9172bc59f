package application

import (
	"context"
	"math/big"

	"github.com/ark-network/lottery/internal/core/domain"
	log "github.com/sirupsen/logrus"
)

type frameKey struct{}

// frame marks one running step. Its identity is what a step context
// carries, the service only honours it while the step is still running.
// It must not be zero-sized, so that every step gets a distinct pointer.
type frame struct {
	_ byte
}

// atomically runs fn as a single step against the lottery. Calls made with
// a context handed out by a running step, like the ones coming back from a
// bank receiver during a transfer, join that step instead of waiting for
// the lock. Once the step returns its context is plain again. Any error
// rolls the lottery back to where fn started, events are stored and
// published only once the outermost step returns.
func (s *service) atomically(
	ctx context.Context, fn func(ctx context.Context) error,
) error {
	if s.inFrame(ctx) {
		return s.run(ctx, fn)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.lottery == nil {
		return ErrServiceNotStarted
	}

	f := &frame{}
	s.frame.Store(f)
	defer s.frame.Store(nil)

	frameCtx := context.WithValue(ctx, frameKey{}, f)
	if err := s.run(frameCtx, fn); err != nil {
		return err
	}

	s.commit(ctx)
	return nil
}

func (s *service) run(ctx context.Context, fn func(ctx context.Context) error) error {
	mark := len(s.lottery.Events())
	if err := fn(ctx); err != nil {
		s.lottery.Revert(mark)
		return err
	}
	return nil
}

// view gives fn read access to the lottery, joining the running step if
// there's one.
func (s *service) view(ctx context.Context, fn func(lottery *domain.Lottery) error) error {
	if !s.inFrame(ctx) {
		s.lock.Lock()
		defer s.lock.Unlock()
	}

	if s.lottery == nil {
		return ErrServiceNotStarted
	}
	return fn(s.lottery)
}

func (s *service) inFrame(ctx context.Context) bool {
	f, ok := ctx.Value(frameKey{}).(*frame)
	return ok && f != nil && s.frame.Load() == f
}

// commit stores the events raised since the last successful save, then
// publishes the new ones and updates the draw history. A failed save is
// retried with the next commit.
func (s *service) commit(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	events := s.lottery.Events()

	if s.persisted < len(events) {
		if err := s.repoManager.Events().Save(
			ctx, s.lottery.Id, events[s.persisted:]...,
		); err != nil {
			log.WithError(err).Warn("failed to store lottery events")
		} else {
			s.persisted = len(events)
		}
	}

	if s.published >= len(events) {
		return
	}
	newEvents := events[s.published:]
	s.published = len(events)

	for _, event := range newEvents {
		picked, ok := event.(domain.WinnerPicked)
		if !ok {
			continue
		}
		draw := s.findDraw(picked.RequestId)
		if draw == nil {
			continue
		}
		if err := s.repoManager.Draws().AddDraw(ctx, *draw); err != nil {
			log.WithError(err).Warnf("failed to store draw %s", picked.RequestId)
		}
	}

	if err := s.notifier.Publish(ctx, newEvents...); err != nil {
		log.WithError(err).Warn("failed to publish lottery events")
	}
}

func (s *service) findDraw(requestId *big.Int) *domain.Draw {
	for i := len(s.lottery.Draws) - 1; i >= 0; i-- {
		if s.lottery.Draws[i].RequestId.Cmp(requestId) == 0 {
			draw := s.lottery.Draws[i]
			return &draw
		}
	}
	return nil
}

func copyInt(n *big.Int) *big.Int {
	if n == nil {
		return nil
	}
	return new(big.Int).Set(n)
}
