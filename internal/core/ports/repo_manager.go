package ports

import "github.com/ark-network/lottery/internal/core/domain"

type RepoManager interface {
	Events() domain.LotteryEventRepository
	Draws() domain.DrawRepository
	Close()
}
