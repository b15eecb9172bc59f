package application_test

import (
	"context"
	"math/big"

	"github.com/ark-network/lottery/internal/core/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

type mockedProvider struct {
	mock.Mock
}

func (m *mockedProvider) Address() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

func (m *mockedProvider) RegisterConsumer(
	subscriptionId uint64, address common.Address, consumer ports.RandomnessConsumer,
) error {
	args := m.Called(subscriptionId, address, consumer)
	return args.Error(0)
}

func (m *mockedProvider) RequestRandomWords(
	ctx context.Context, req ports.RandomWordsRequest,
) (*big.Int, error) {
	args := m.Called(ctx, req)

	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
}

type mockedBank struct {
	mock.Mock
}

func (m *mockedBank) Transfer(
	ctx context.Context, from, to common.Address, amount *big.Int,
) error {
	args := m.Called(ctx, from, to, amount)
	return args.Error(0)
}

func (m *mockedBank) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	args := m.Called(ctx, account)

	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
}

func (m *mockedBank) Mint(ctx context.Context, account common.Address, amount *big.Int) error {
	args := m.Called(ctx, account, amount)
	return args.Error(0)
}

type mockedScheduler struct {
	mock.Mock
}

func (m *mockedScheduler) Start() {
	m.Called()
}

func (m *mockedScheduler) Stop() {
	m.Called()
}

func (m *mockedScheduler) ScheduleTask(interval int64, immediate bool, task func()) error {
	args := m.Called(interval, immediate, task)
	return args.Error(0)
}

func (m *mockedScheduler) ScheduleTaskOnce(at int64, task func()) error {
	args := m.Called(at, task)
	return args.Error(0)
}
