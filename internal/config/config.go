package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ark-network/lottery/internal/core/application"
	"github.com/ark-network/lottery/internal/core/domain"
	"github.com/ark-network/lottery/internal/core/ports"
	inmemorybank "github.com/ark-network/lottery/internal/infrastructure/bank/inmemory"
	"github.com/ark-network/lottery/internal/infrastructure/db"
	"github.com/ark-network/lottery/internal/infrastructure/metrics"
	watermillnotifier "github.com/ark-network/lottery/internal/infrastructure/notifier/watermill"
	"github.com/ark-network/lottery/internal/infrastructure/randomness/seeded"
	"github.com/ark-network/lottery/internal/infrastructure/randomness/vrfmock"
	timescheduler "github.com/ark-network/lottery/internal/infrastructure/scheduler/gocron"
	"github.com/ark-network/lottery/pkg/units"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	supportedEventDbs = supportedType{
		"badger": {},
		"sqlite": {},
		"redis":  {},
	}
	supportedDbs = supportedType{
		"badger": {},
		"sqlite": {},
	}
	supportedSchedulers = supportedType{
		"gocron": {},
	}
	supportedRandomnessProviders = supportedType{
		"vrfmock": {},
		"seeded":  {},
	}
)

type Config struct {
	Datadir      string
	Port         uint32
	LogLevel     int
	LogFile      string
	Network      string
	NetworksFile string

	EventDbType        string
	DbType             string
	DbDir              string
	EventDbDir         string
	RedisUrl           string
	SchedulerType      string
	KeeperInterval     int64
	NoKeeper           bool
	RandomnessProvider string
	SeededDelay        int64

	Deployer         string
	DeployNonce      uint64
	EntranceFee      string
	Interval         int64
	KeyHash          string
	SubscriptionId   uint64
	CallbackGasLimit uint32
	VrfBaseFee       string
	VrfGasPriceLink  string
	VrfFundAmount    string
	FaucetAmount     string

	network   *Network
	lottery   common.Address
	lotteryId string
	repo      ports.RepoManager
	scheduler ports.SchedulerService
	bank      *inmemorybank.Bank
	notifier  ports.EventNotifier
	provider  ports.RandomnessProvider
	metrics   *metrics.Metrics
	svc       application.Service
	adminSvc  application.AdminService
	keeper    *application.Keeper
}

func (c *Config) String() string {
	json, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	Datadir            = "DATADIR"
	Port               = "PORT"
	LogLevel           = "LOG_LEVEL"
	LogFile            = "LOG_FILE"
	NetworkName        = "NETWORK"
	NetworksFile       = "NETWORKS_FILE"
	EventDbType        = "EVENT_DB_TYPE"
	DbType             = "DB_TYPE"
	RedisUrl           = "REDIS_URL"
	SchedulerType      = "SCHEDULER_TYPE"
	KeeperInterval     = "KEEPER_INTERVAL"
	NoKeeper           = "NO_KEEPER"
	RandomnessProvider = "RANDOMNESS_PROVIDER"
	SeededDelay        = "SEEDED_DELAY"
	Deployer           = "DEPLOYER"
	DeployNonce        = "DEPLOY_NONCE"
	EntranceFee        = "ENTRANCE_FEE"
	Interval           = "INTERVAL"
	KeyHash            = "KEY_HASH"
	SubscriptionId     = "SUBSCRIPTION_ID"
	CallbackGasLimit   = "CALLBACK_GAS_LIMIT"
	VrfBaseFee         = "VRF_BASE_FEE"
	VrfGasPriceLink    = "VRF_GAS_PRICE_LINK"
	VrfFundAmount      = "VRF_FUND_AMOUNT"
	FaucetAmount       = "FAUCET_AMOUNT"

	defaultDatadir            = btcutil.AppDataDir("lotteryd", false)
	DefaultPort               = 7070
	defaultLogLevel           = 4
	defaultNetwork            = "hardhat"
	defaultEventDbType        = "badger"
	defaultDbType             = "badger"
	defaultSchedulerType      = "gocron"
	defaultKeeperInterval     = 5
	defaultRandomnessProvider = "vrfmock"
	defaultSeededDelay        = 3
	// First account of the hardhat development node.
	defaultDeployer         = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	defaultDeployNonce      = 1
	defaultEntranceFee      = "0.01"
	defaultInterval         = 30
	defaultKeyHash          = "0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c"
	defaultCallbackGasLimit = 500000
	defaultVrfBaseFee       = "24"
	defaultVrfGasPriceLink  = "1"
	defaultVrfFundAmount    = "10000"
	defaultFaucetAmount     = "100"
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("LOTTERY")
	viper.AutomaticEnv()

	viper.SetDefault(Datadir, defaultDatadir)
	viper.SetDefault(Port, DefaultPort)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(NetworkName, defaultNetwork)
	viper.SetDefault(EventDbType, defaultEventDbType)
	viper.SetDefault(DbType, defaultDbType)
	viper.SetDefault(SchedulerType, defaultSchedulerType)
	viper.SetDefault(KeeperInterval, defaultKeeperInterval)
	viper.SetDefault(RandomnessProvider, defaultRandomnessProvider)
	viper.SetDefault(SeededDelay, defaultSeededDelay)
	viper.SetDefault(Deployer, defaultDeployer)
	viper.SetDefault(DeployNonce, defaultDeployNonce)
	viper.SetDefault(EntranceFee, defaultEntranceFee)
	viper.SetDefault(Interval, defaultInterval)
	viper.SetDefault(CallbackGasLimit, defaultCallbackGasLimit)
	viper.SetDefault(VrfBaseFee, defaultVrfBaseFee)
	viper.SetDefault(VrfGasPriceLink, defaultVrfGasPriceLink)
	viper.SetDefault(VrfFundAmount, defaultVrfFundAmount)
	viper.SetDefault(FaucetAmount, defaultFaucetAmount)

	if err := initDatadir(); err != nil {
		return nil, fmt.Errorf("error while creating datadir: %s", err)
	}

	dbPath := filepath.Join(viper.GetString(Datadir), "db")

	var redisUrl string
	if viper.GetString(EventDbType) == "redis" {
		redisUrl = viper.GetString(RedisUrl)
		if redisUrl == "" {
			return nil, fmt.Errorf("REDIS_URL not provided")
		}
	}

	return &Config{
		Datadir:            viper.GetString(Datadir),
		Port:               viper.GetUint32(Port),
		LogLevel:           viper.GetInt(LogLevel),
		LogFile:            viper.GetString(LogFile),
		Network:            viper.GetString(NetworkName),
		NetworksFile:       viper.GetString(NetworksFile),
		EventDbType:        viper.GetString(EventDbType),
		DbType:             viper.GetString(DbType),
		DbDir:              dbPath,
		EventDbDir:         dbPath,
		RedisUrl:           redisUrl,
		SchedulerType:      viper.GetString(SchedulerType),
		KeeperInterval:     viper.GetInt64(KeeperInterval),
		NoKeeper:           viper.GetBool(NoKeeper),
		RandomnessProvider: viper.GetString(RandomnessProvider),
		SeededDelay:        viper.GetInt64(SeededDelay),
		Deployer:           viper.GetString(Deployer),
		DeployNonce:        viper.GetUint64(DeployNonce),
		EntranceFee:        viper.GetString(EntranceFee),
		Interval:           viper.GetInt64(Interval),
		KeyHash:            viper.GetString(KeyHash),
		SubscriptionId:     viper.GetUint64(SubscriptionId),
		CallbackGasLimit:   viper.GetUint32(CallbackGasLimit),
		VrfBaseFee:         viper.GetString(VrfBaseFee),
		VrfGasPriceLink:    viper.GetString(VrfGasPriceLink),
		VrfFundAmount:      viper.GetString(VrfFundAmount),
		FaucetAmount:       viper.GetString(FaucetAmount),
	}, nil
}

// SetupLogger applies the configured log level and, if a log file is set,
// tees the output into a rotated file.
func (c *Config) SetupLogger() {
	log.SetLevel(log.Level(c.LogLevel))
	if len(c.LogFile) <= 0 {
		return
	}
	log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     14,
		Compress:   true,
	}))
}

func initDatadir() error {
	datadir := viper.GetString(Datadir)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

func (c *Config) Validate() error {
	if !supportedEventDbs.supports(c.EventDbType) {
		return fmt.Errorf("event db type not supported, please select one of: %s", supportedEventDbs)
	}
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedSchedulers.supports(c.SchedulerType) {
		return fmt.Errorf("scheduler type not supported, please select one of: %s", supportedSchedulers)
	}
	if !supportedRandomnessProviders.supports(c.RandomnessProvider) {
		return fmt.Errorf(
			"randomness provider not supported, please select one of: %s",
			supportedRandomnessProviders,
		)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("invalid interval, must be at least 1 second")
	}
	if c.KeeperInterval <= 0 {
		return fmt.Errorf("invalid keeper interval, must be at least 1 second")
	}
	if !common.IsHexAddress(c.Deployer) {
		return fmt.Errorf("invalid deployer address %s", c.Deployer)
	}
	if len(c.KeyHash) > 0 && len(strings.TrimPrefix(c.KeyHash, "0x")) != 2*common.HashLength {
		return fmt.Errorf("invalid key hash %s", c.KeyHash)
	}

	if err := c.networkProfile(); err != nil {
		return err
	}
	if c.RandomnessProvider == "vrfmock" && !c.network.Development {
		return fmt.Errorf(
			"vrf mock is only available on development networks, %s is not", c.network.Name,
		)
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	if err := c.bankService(); err != nil {
		return err
	}
	if err := c.randomnessProvider(); err != nil {
		return err
	}
	c.notifier = watermillnotifier.NewNotifier()
	c.metrics = metrics.NewMetrics()
	if err := c.appService(); err != nil {
		return err
	}
	if err := c.resumeRandomnessRequests(); err != nil {
		return err
	}
	c.adminSvc = application.NewAdminService(c.svc, c.bank, c.provider)
	c.keeper = application.NewKeeper(c.svc, c.scheduler, c.KeeperInterval)
	return nil
}

func (c *Config) AppService() application.Service {
	return c.svc
}

func (c *Config) AdminService() application.AdminService {
	return c.adminSvc
}

func (c *Config) Keeper() *application.Keeper {
	return c.keeper
}

func (c *Config) Metrics() *metrics.Metrics {
	return c.metrics
}

func (c *Config) SchedulerService() ports.SchedulerService {
	return c.scheduler
}

func (c *Config) Notifier() ports.EventNotifier {
	return c.notifier
}

func (c *Config) NetworkProfile() Network {
	if c.network == nil {
		return Network{}
	}
	return *c.network
}

func (c *Config) LotteryAddress() common.Address {
	return c.lottery
}

// RestoreBalance credits the lottery account with the pot it holds, since
// the in-memory bank starts empty while the lottery state is restored from
// the event store.
func (c *Config) RestoreBalance(ctx context.Context) error {
	info, err := c.svc.GetInfo(ctx)
	if err != nil {
		return err
	}
	missing := new(big.Int).Sub(info.Pot, info.Balance)
	if missing.Sign() <= 0 {
		return nil
	}
	if err := c.bank.Mint(ctx, c.lottery, missing); err != nil {
		return err
	}
	log.Infof("restored lottery balance to %s ether", units.FormatEther(info.Pot))
	return nil
}

func (c *Config) networkProfile() error {
	networks, err := LoadNetworks(c.NetworksFile)
	if err != nil {
		return err
	}
	network, ok := networks[c.Network]
	if !ok {
		names := make([]string, 0, len(networks))
		for name := range networks {
			names = append(names, name)
		}
		return fmt.Errorf(
			"unknown network %s, please select one of: %s", c.Network, strings.Join(names, " | "),
		)
	}
	c.network = &network
	return nil
}

func (c *Config) repoManager() error {
	var svc ports.RepoManager
	var err error
	var eventStoreConfig []interface{}
	var dataStoreConfig []interface{}
	logger := log.New()

	switch c.EventDbType {
	case "badger":
		eventStoreConfig = []interface{}{c.EventDbDir, logger}
	case "sqlite":
		eventStoreConfig = []interface{}{c.EventDbDir}
	case "redis":
		eventStoreConfig = []interface{}{c.RedisUrl}
	default:
		return fmt.Errorf("unknown event db type")
	}

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "sqlite":
		dataStoreConfig = []interface{}{c.DbDir}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err = db.NewService(db.ServiceConfig{
		EventStoreType:   c.EventDbType,
		DataStoreType:    c.DbType,
		EventStoreConfig: eventStoreConfig,
		DataStoreConfig:  dataStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) schedulerService() error {
	var svc ports.SchedulerService
	var err error
	switch c.SchedulerType {
	case "gocron":
		svc = timescheduler.NewScheduler()
	default:
		err = fmt.Errorf("unknown scheduler type")
	}
	if err != nil {
		return err
	}

	c.scheduler = svc
	return nil
}

func (c *Config) bankService() error {
	c.bank = inmemorybank.NewBank()

	if !c.network.Development {
		return nil
	}
	amount, err := units.ParseEther(c.FaucetAmount)
	if err != nil {
		return fmt.Errorf("invalid faucet amount: %s", err)
	}
	if amount.Sign() <= 0 {
		return nil
	}
	deployer := common.HexToAddress(c.Deployer)
	if err := c.bank.Mint(context.Background(), deployer, amount); err != nil {
		return err
	}
	log.Debugf("funded deployer %s with %s ether", deployer.Hex(), c.FaucetAmount)
	return nil
}

func (c *Config) randomnessProvider() error {
	deployer := common.HexToAddress(c.Deployer)
	address, ok := c.network.Coordinator()
	if !ok {
		// The coordinator is the first contract the deployer creates.
		address = crypto.CreateAddress(deployer, 0)
	}

	switch c.RandomnessProvider {
	case "vrfmock":
		baseFee, err := units.ParseEther(c.VrfBaseFee)
		if err != nil {
			return fmt.Errorf("invalid vrf base fee: %s", err)
		}
		gasPriceLink, err := units.ParseGwei(c.VrfGasPriceLink)
		if err != nil {
			return fmt.Errorf("invalid vrf gas price: %s", err)
		}
		fundAmount, err := units.ParseEther(c.VrfFundAmount)
		if err != nil {
			return fmt.Errorf("invalid vrf fund amount: %s", err)
		}

		coordinator := vrfmock.NewCoordinator(address, baseFee, gasPriceLink)
		subId := coordinator.CreateSubscription(deployer)
		if err := coordinator.FundSubscription(subId, fundAmount); err != nil {
			return err
		}
		if c.SubscriptionId != 0 && c.SubscriptionId != subId {
			log.Warnf(
				"subscription %d not found on vrf mock, using %d instead",
				c.SubscriptionId, subId,
			)
		}
		c.SubscriptionId = subId
		c.provider = coordinator
	case "seeded":
		provider, err := seeded.NewProvider(address, nil, c.scheduler, c.SeededDelay)
		if err != nil {
			return err
		}
		log.Infof("seeded randomness commitment: %s", provider.Commitment().Hex())
		c.provider = provider
	default:
		return fmt.Errorf("unknown randomness provider")
	}
	return nil
}

func (c *Config) appService() error {
	entranceFee, err := units.ParseEther(c.EntranceFee)
	if err != nil {
		return fmt.Errorf("invalid entrance fee: %s", err)
	}

	keyHash := c.KeyHash
	if len(keyHash) <= 0 {
		keyHash = c.network.KeyHash
	}
	if len(keyHash) <= 0 {
		keyHash = defaultKeyHash
	}

	c.lottery = crypto.CreateAddress(common.HexToAddress(c.Deployer), c.DeployNonce)
	c.lotteryId = uuid.NewSHA1(uuid.NameSpaceOID, c.lottery.Bytes()).String()

	svc, err := application.NewService(
		c.lotteryId, c.lottery, domain.Config{
			EntranceFee:          entranceFee,
			Interval:             c.Interval,
			Coordinator:          c.provider.Address(),
			KeyHash:              common.HexToHash(keyHash),
			SubscriptionId:       c.SubscriptionId,
			CallbackGasLimit:     c.CallbackGasLimit,
			RequestConfirmations: domain.DefaultRequestConfirmations,
			NumWords:             domain.DefaultNumWords,
		},
		c.bank, c.provider, c.repo, c.notifier,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

// resumeRandomnessRequests keeps the vrf mock from handing out again the
// request ids already used by the stored lottery, and tracks again the
// draw left pending by the last run.
func (c *Config) resumeRandomnessRequests() error {
	coordinator, ok := c.provider.(*vrfmock.Coordinator)
	if !ok {
		return nil
	}

	lottery, err := c.repo.Events().Load(context.Background(), c.lotteryId)
	if err != nil {
		return fmt.Errorf("failed to load lottery %s: %s", c.lotteryId, err)
	}
	if lottery == nil {
		return nil
	}

	for _, draw := range lottery.Draws {
		coordinator.ReserveRequestIds(draw.RequestId)
	}

	requestId := lottery.PendingRequestId()
	if requestId == nil {
		return nil
	}
	if err := coordinator.ResumeRequest(requestId, ports.RandomWordsRequest{
		KeyHash:              lottery.Config.KeyHash,
		SubscriptionId:       c.SubscriptionId,
		RequestConfirmations: lottery.Config.RequestConfirmations,
		CallbackGasLimit:     lottery.Config.CallbackGasLimit,
		NumWords:             lottery.Config.NumWords,
		Consumer:             lottery.Address,
	}); err != nil {
		return err
	}
	log.Infof("resumed pending randomness request %s", requestId)
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
