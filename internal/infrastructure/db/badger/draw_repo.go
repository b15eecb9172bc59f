package badgerdb

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"

	"github.com/ark-network/lottery/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/timshannon/badgerhold/v4"
)

const drawStoreDir = "draws"

type drawDTO struct {
	RequestId   string
	LotteryId   string `badgerhold:"index"`
	Winner      string
	WinnerIndex int
	RandomWord  string
	Prize       string
	PlayerCount int
	RequestedAt int64
	CompletedAt int64
}

type drawRepository struct {
	store *badgerhold.Store
}

func NewDrawRepository(config ...interface{}) (domain.DrawRepository, error) {
	baseDir, logger, err := parseConfig(config)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, drawStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open draw store: %s", err)
	}
	return &drawRepository{store}, nil
}

func (r *drawRepository) AddDraw(ctx context.Context, draw domain.Draw) error {
	dto := toDrawDTO(draw)
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxUpsert(tx, dto.RequestId, dto)
	} else {
		err = r.store.Upsert(dto.RequestId, dto)
	}
	if err != nil {
		return fmt.Errorf("failed to add draw %s: %s", dto.RequestId, err)
	}
	return nil
}

func (r *drawRepository) GetDraws(
	ctx context.Context, lotteryId string,
) ([]domain.Draw, error) {
	query := badgerhold.Where("LotteryId").Eq(lotteryId).SortBy("CompletedAt", "RequestId")
	dtos, err := r.findDraws(ctx, query)
	if err != nil {
		return nil, err
	}

	draws := make([]domain.Draw, 0, len(dtos))
	for _, dto := range dtos {
		draws = append(draws, dto.toDraw())
	}
	return draws, nil
}

func (r *drawRepository) GetDrawWithRequestId(
	ctx context.Context, requestId *big.Int,
) (*domain.Draw, error) {
	if requestId == nil {
		return nil, fmt.Errorf("missing request id")
	}

	dto := drawDTO{}
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxGet(tx, requestId.String(), &dto)
	} else {
		err = r.store.Get(requestId.String(), &dto)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("draw with request id %s not found", requestId)
		}
		return nil, err
	}

	draw := dto.toDraw()
	return &draw, nil
}

func (r *drawRepository) Close() {
	r.store.Close()
}

func (r *drawRepository) findDraws(
	ctx context.Context, query *badgerhold.Query,
) ([]drawDTO, error) {
	var dtos []drawDTO
	var err error

	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxFind(tx, &dtos, query)
	} else {
		err = r.store.Find(&dtos, query)
	}

	return dtos, err
}

func toDrawDTO(draw domain.Draw) drawDTO {
	return drawDTO{
		RequestId:   draw.RequestId.String(),
		LotteryId:   draw.LotteryId,
		Winner:      draw.Winner.Hex(),
		WinnerIndex: draw.WinnerIndex,
		RandomWord:  draw.RandomWord.String(),
		Prize:       draw.Prize.String(),
		PlayerCount: draw.PlayerCount,
		RequestedAt: draw.RequestedAt,
		CompletedAt: draw.CompletedAt,
	}
}

func (d drawDTO) toDraw() domain.Draw {
	requestId, _ := new(big.Int).SetString(d.RequestId, 10)
	randomWord, _ := new(big.Int).SetString(d.RandomWord, 10)
	prize, _ := new(big.Int).SetString(d.Prize, 10)
	return domain.Draw{
		LotteryId:   d.LotteryId,
		RequestId:   requestId,
		Winner:      common.HexToAddress(d.Winner),
		WinnerIndex: d.WinnerIndex,
		RandomWord:  randomWord,
		Prize:       prize,
		PlayerCount: d.PlayerCount,
		RequestedAt: d.RequestedAt,
		CompletedAt: d.CompletedAt,
	}
}
