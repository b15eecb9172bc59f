package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/ark-network/lottery/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
)

const (
	upsertDrawQuery = `
INSERT INTO draw (
    request_id, lottery_id, winner, winner_index, random_word, prize,
    player_count, requested_at, completed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(request_id) DO UPDATE SET
    lottery_id = EXCLUDED.lottery_id,
    winner = EXCLUDED.winner,
    winner_index = EXCLUDED.winner_index,
    random_word = EXCLUDED.random_word,
    prize = EXCLUDED.prize,
    player_count = EXCLUDED.player_count,
    requested_at = EXCLUDED.requested_at,
    completed_at = EXCLUDED.completed_at`
	selectDrawColumns = `
SELECT request_id, lottery_id, winner, winner_index, random_word, prize,
    player_count, requested_at, completed_at
FROM draw`
	selectDrawsQuery      = selectDrawColumns + ` WHERE lottery_id = ? ORDER BY completed_at ASC, request_id ASC`
	selectDrawWithIdQuery = selectDrawColumns + ` WHERE request_id = ?`
)

type drawRepository struct {
	db *sql.DB
}

func NewDrawRepository(config ...interface{}) (domain.DrawRepository, error) {
	db, err := dbFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("cannot open draw repository: %w", err)
	}
	return &drawRepository{db}, nil
}

func (r *drawRepository) AddDraw(ctx context.Context, draw domain.Draw) error {
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx, upsertDrawQuery,
			draw.RequestId.String(), draw.LotteryId, draw.Winner.Hex(), draw.WinnerIndex,
			draw.RandomWord.String(), draw.Prize.String(), draw.PlayerCount,
			draw.RequestedAt, draw.CompletedAt,
		)
		return err
	})
}

func (r *drawRepository) GetDraws(
	ctx context.Context, lotteryId string,
) ([]domain.Draw, error) {
	rows, err := r.db.QueryContext(ctx, selectDrawsQuery, lotteryId)
	if err != nil {
		return nil, fmt.Errorf("failed to get draws: %w", err)
	}
	defer rows.Close()

	draws := make([]domain.Draw, 0)
	for rows.Next() {
		draw, err := scanDraw(rows)
		if err != nil {
			return nil, err
		}
		draws = append(draws, *draw)
	}
	return draws, rows.Err()
}

func (r *drawRepository) GetDrawWithRequestId(
	ctx context.Context, requestId *big.Int,
) (*domain.Draw, error) {
	if requestId == nil {
		return nil, fmt.Errorf("missing request id")
	}

	row := r.db.QueryRowContext(ctx, selectDrawWithIdQuery, requestId.String())
	draw, err := scanDraw(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("draw with request id %s not found", requestId)
		}
		return nil, err
	}
	return draw, nil
}

func (r *drawRepository) Close() {
	_ = r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDraw(row scanner) (*domain.Draw, error) {
	var (
		requestId, lotteryId, winner, randomWord, prize string
		winnerIndex, playerCount                        int
		requestedAt, completedAt                        int64
	)
	if err := row.Scan(
		&requestId, &lotteryId, &winner, &winnerIndex, &randomWord, &prize,
		&playerCount, &requestedAt, &completedAt,
	); err != nil {
		return nil, err
	}

	id, _ := new(big.Int).SetString(requestId, 10)
	word, _ := new(big.Int).SetString(randomWord, 10)
	amount, _ := new(big.Int).SetString(prize, 10)
	return &domain.Draw{
		LotteryId:   lotteryId,
		RequestId:   id,
		Winner:      common.HexToAddress(winner),
		WinnerIndex: winnerIndex,
		RandomWord:  word,
		Prize:       amount,
		PlayerCount: playerCount,
		RequestedAt: requestedAt,
		CompletedAt: completedAt,
	}, nil
}
