// Package deploy publishes approved markets to the ApeChain prediction
// market contract.
package deploy

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/apemarkets/curator/internal/domain"
)

// createMarketABI covers the single factory method the curator calls.
const createMarketABI = `[{
	"name": "createMarket",
	"type": "function",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "question", "type": "string"},
		{"name": "options", "type": "string[]"},
		{"name": "expiry", "type": "uint256"}
	],
	"outputs": []
}]`

// defaultGasLimit caps createMarket calls when the node's estimate is not
// used.
const defaultGasLimit uint64 = 500_000

// Config holds chain connection and signing parameters.
type Config struct {
	RPCURL          string
	ChainID         int64
	ContractAddress string
	GasLimit        uint64
	Key             KeyConfig
}

// ApeChainTarget deploys markets by sending signed createMarket transactions
// to the factory contract.
type ApeChainTarget struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	from       common.Address
	contract   common.Address
	chainID    *big.Int
	factoryABI abi.ABI
	gasLimit   uint64
	logger     *slog.Logger
}

// New connects to the RPC endpoint, resolves the deployer key, and parses
// the factory ABI.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*ApeChainTarget, error) {
	if cfg.ContractAddress == "" {
		return nil, fmt.Errorf("deploy: contract address is required")
	}

	keyHex, err := loadKey(cfg.Key)
	if err != nil {
		return nil, err
	}
	privateKey, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("deploy: parse private key: %w", err)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("deploy: dial %s: %w", cfg.RPCURL, err)
	}

	factoryABI, err := abi.JSON(strings.NewReader(createMarketABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("deploy: parse factory abi: %w", err)
	}

	gasLimit := cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}

	return &ApeChainTarget{
		client:     client,
		privateKey: privateKey,
		from:       ethcrypto.PubkeyToAddress(privateKey.PublicKey),
		contract:   common.HexToAddress(cfg.ContractAddress),
		chainID:    big.NewInt(cfg.ChainID),
		factoryABI: factoryABI,
		gasLimit:   gasLimit,
		logger:     logger.With(slog.String("component", "deploy")),
	}, nil
}

// Close releases the RPC connection.
func (t *ApeChainTarget) Close() {
	t.client.Close()
}

// expiryArg converts an optional expiry into the contract's uint256 argument.
// Markets without an expiry deploy with zero, which the contract reads as
// open-ended.
func expiryArg(expiry *time.Time) *big.Int {
	if expiry == nil {
		return big.NewInt(0)
	}
	return big.NewInt(expiry.UTC().Unix())
}

// Deploy sends a signed createMarket transaction for the market and returns
// the transaction hash as the external identifier. A binary market deploys
// with Yes/No options; an event market deploys with its option names.
func (t *ApeChainTarget) Deploy(ctx context.Context, m domain.Market) (string, error) {
	options := make([]string, 0, len(m.Options))
	for _, opt := range m.Options {
		options = append(options, opt.DisplayName)
	}
	if len(options) == 0 {
		options = []string{"Yes", "No"}
	}

	calldata, err := t.factoryABI.Pack("createMarket", m.Question, options, expiryArg(m.Expiry))
	if err != nil {
		return "", fmt.Errorf("deploy: pack createMarket for %s: %w", m.ID, err)
	}

	nonce, err := t.client.PendingNonceAt(ctx, t.from)
	if err != nil {
		return "", fmt.Errorf("deploy: pending nonce: %w", domainTransient(err))
	}
	gasPrice, err := t.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("deploy: suggest gas price: %w", domainTransient(err))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &t.contract,
		Gas:      t.gasLimit,
		GasPrice: gasPrice,
		Data:     calldata,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(t.chainID), t.privateKey)
	if err != nil {
		return "", fmt.Errorf("deploy: sign transaction for %s: %w", m.ID, err)
	}

	if err := t.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("deploy: send transaction for %s: %w", m.ID, domainTransient(err))
	}

	txHash := signed.Hash().Hex()
	t.logger.Info("deployed market",
		slog.String("market_id", m.ID),
		slog.String("tx_hash", txHash),
		slog.Uint64("nonce", nonce))

	if err := t.waitMined(ctx, signed); err != nil {
		return txHash, err
	}
	return txHash, nil
}

// waitMined polls for the transaction receipt until the context expires. A
// reverted transaction is a hard failure; a missing receipt keeps polling.
func (t *ApeChainTarget) waitMined(ctx context.Context, tx *types.Transaction) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := t.client.TransactionReceipt(ctx, tx.Hash())
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("deploy: transaction %s reverted", tx.Hash().Hex())
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("deploy: wait for %s: %w", tx.Hash().Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func domainTransient(err error) error {
	return fmt.Errorf("%v: %w", err, domain.ErrTransient)
}
