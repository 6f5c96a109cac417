package app

import (
	"context"
	"fmt"
	"strings"

	"mxbridge/internal/appservice"
	"mxbridge/internal/client"
	"mxbridge/internal/config"
	"mxbridge/internal/domain"
	"mxbridge/internal/log"
	"mxbridge/internal/olm"
	"mxbridge/internal/services/devices"
	"mxbridge/internal/services/encryption"
	"mxbridge/internal/store"
)

// DeviceID is the device identity the bridge publishes its keys under.
const DeviceID = domain.DeviceID("MXBRIDGE")

// oneTimeKeyBatch is how many one-time keys a replenishment publishes.
const oneTimeKeyBatch = 50

// Wire bundles the stores, services and clients the commands use.
type Wire struct {
	Config  *config.Config
	Log     *log.Backend
	Store   *store.BoltStore
	Client  *client.Client
	Account *olm.Account

	UserID    domain.UserID
	Machine   *encryption.Machine
	Directory *devices.Directory
	AS        *appservice.Server
}

// NewWire constructs the dependency graph from cfg. The account is
// loaded from the store or, on first run, created, persisted and
// published to the homeserver.
func NewWire(ctx context.Context, cfg *config.Config) (*Wire, error) {
	if !cfg.TokensGenerated() {
		return nil, fmt.Errorf("app: registration tokens missing, run generate-registration first")
	}

	level := strings.ToUpper(cfg.Logging.Level)
	if level == "" {
		level = "INFO"
	}
	logBackend, err := log.New(cfg.Logging.File, level, false)
	if err != nil {
		return nil, err
	}
	logger := logBackend.GetLogger("app")

	boltStore, err := store.NewBolt(cfg.Database.Path, cfg.Database.PickleKey)
	if err != nil {
		return nil, err
	}

	hsClient := client.New(cfg.Homeserver.Address, cfg.Appservice.ASToken)
	userID := domain.UserID(fmt.Sprintf("@%s:%s", cfg.Appservice.BotUsername, cfg.Homeserver.Domain))

	account, fresh, err := loadOrCreateAccount(boltStore)
	if err != nil {
		_ = boltStore.Close()
		return nil, err
	}
	if fresh {
		logger.Noticef("Created new account, identity key %s", account.IdentityKey())
		if err := publishKeys(ctx, hsClient, account, userID, true); err != nil {
			_ = boltStore.Close()
			return nil, fmt.Errorf("app: publishing keys for new account: %w", err)
		}
		if err := boltStore.PutAccount(account); err != nil {
			_ = boltStore.Close()
			return nil, err
		}
	}

	w := &Wire{
		Config:    cfg,
		Log:       logBackend,
		Store:     boltStore,
		Client:    hsClient,
		Account:   account,
		UserID:    userID,
		Machine:   encryption.New(account, userID, DeviceID, hsClient, boltStore, logBackend),
		Directory: devices.New(hsClient, boltStore, logBackend),
		AS:        appservice.New(cfg.Appservice.HSToken, boltStore, logBackend),
	}
	return w, nil
}

// Close releases everything the wire owns.
func (w *Wire) Close() error { return w.Store.Close() }

func loadOrCreateAccount(s domain.CryptoStore) (*olm.Account, bool, error) {
	account, ok, err := s.GetAccount()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return account, false, nil
	}
	account, err = olm.NewAccount()
	if err != nil {
		return nil, false, err
	}
	if err := account.GenerateOneTimeKeys(oneTimeKeyBatch); err != nil {
		return nil, false, err
	}
	return account, true, nil
}

// publishKeys uploads the signed device key object and, optionally, the
// account's current one-time key batch.
func publishKeys(
	ctx context.Context,
	hsClient *client.Client,
	account *olm.Account,
	userID domain.UserID,
	withOneTimeKeys bool,
) error {
	deviceKeys := domain.DeviceKeys{
		UserID:     userID,
		DeviceID:   DeviceID,
		Algorithms: []domain.KeyAlgorithm{domain.AlgorithmOlmV1},
		Keys: map[domain.KeyID]string{
			domain.NewKeyID(domain.AlgorithmCurve25519, string(DeviceID)): string(account.IdentityKey()),
			domain.NewKeyID(domain.AlgorithmEd25519, string(DeviceID)):    string(account.SigningKey()),
		},
	}
	sig, err := account.SignJSON(deviceKeys)
	if err != nil {
		return err
	}
	deviceKeys.Signatures = domain.Signatures{
		userID: {domain.NewKeyID(domain.AlgorithmEd25519, string(DeviceID)): sig},
	}

	request := domain.KeysUploadRequest{DeviceKeys: &deviceKeys}
	if withOneTimeKeys {
		request.OneTimeKeys, err = account.SignedOneTimeKeys(userID, DeviceID)
		if err != nil {
			return err
		}
	}
	_, err = hsClient.UploadKeys(ctx, request)
	return err
}
