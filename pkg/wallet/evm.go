package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"tokenflight/config"
	"tokenflight/pkg/swaperr"
	"tokenflight/pkg/types"
)

// EVMBackend is the subset of ethclient.Client the EVM wallet uses
type EVMBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	Close()
}

// EVMDialer opens a backend for an RPC URL
type EVMDialer func(ctx context.Context, rpcURL string) (EVMBackend, error)

func dialEthClient(ctx context.Context, rpcURL string) (EVMBackend, error) {
	return ethclient.DialContext(ctx, rpcURL)
}

// EVMWallet executes EIP-1193 wallet actions with a local private key
// against an RPC node.
type EVMWallet struct {
	Emitter

	cfg     config.EVMConfig
	key     *ecdsa.PrivateKey
	address common.Address
	dial    EVMDialer
	logger  *slog.Logger

	mu      sync.Mutex
	backend EVMBackend
	chainID *big.Int
}

// EVMOption configures an EVMWallet
type EVMOption func(*EVMWallet)

// WithEVMDialer replaces how the wallet connects to its node
func WithEVMDialer(dial EVMDialer) EVMOption {
	return func(w *EVMWallet) { w.dial = dial }
}

// WithEVMLogger sets the logger
func WithEVMLogger(logger *slog.Logger) EVMOption {
	return func(w *EVMWallet) { w.logger = logger }
}

// NewEVMWallet creates an EVM wallet from configuration. It does not
// connect; call Connect first.
func NewEVMWallet(cfg config.EVMConfig, opts ...EVMOption) (*EVMWallet, error) {
	if cfg.RPCURL == "" {
		return nil, swaperr.New(swaperr.InvalidConfig, "evm.rpc_url is not configured")
	}
	if cfg.PrivateKey == "" {
		return nil, swaperr.New(swaperr.InvalidConfig, "evm.private_key is not configured")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, swaperr.Wrap(swaperr.InvalidConfig, err, "invalid evm private key")
	}

	w := &EVMWallet{
		cfg:     cfg,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		dial:    dialEthClient,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Connect dials the node and checks it serves the configured chain
func (w *EVMWallet) Connect(ctx context.Context) error {
	w.mu.Lock()
	if w.backend != nil {
		w.mu.Unlock()
		return nil
	}

	backend, err := w.dial(ctx, w.cfg.RPCURL)
	if err != nil {
		w.mu.Unlock()
		return swaperr.Wrap(swaperr.WalletConnectionFailed, err, "failed to connect to RPC endpoint")
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		backend.Close()
		w.mu.Unlock()
		return swaperr.Wrap(swaperr.WalletConnectionFailed, err, "failed to get chain id")
	}
	if w.cfg.ChainID != 0 && chainID.Int64() != w.cfg.ChainID {
		backend.Close()
		w.mu.Unlock()
		return swaperr.Newf(swaperr.WalletConnectionFailed, "RPC serves chain %s, configured chain is %d", chainID, w.cfg.ChainID)
	}
	w.backend = backend
	w.chainID = chainID
	w.mu.Unlock()

	w.logger.Info("evm wallet connected", "address", w.address.Hex(), "chain_id", chainID.Int64())
	w.Emit(Event{Type: EventConnect, Address: w.address.Hex(), ChainID: chainID.Int64()})
	return nil
}

// Disconnect closes the node connection
func (w *EVMWallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	if w.backend == nil {
		w.mu.Unlock()
		return nil
	}
	w.backend.Close()
	w.backend = nil
	w.mu.Unlock()

	w.Emit(Event{Type: EventDisconnect, Address: w.address.Hex()})
	return nil
}

func (w *EVMWallet) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.backend != nil
}

// Address returns the checksummed account address
func (w *EVMWallet) Address() string {
	return w.address.Hex()
}

func (w *EVMWallet) session() (EVMBackend, *big.Int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.backend, w.chainID, w.backend != nil
}

// ExecuteWalletAction runs an EIP-1193 request
func (w *EVMWallet) ExecuteWalletAction(ctx context.Context, action types.WalletAction) (*types.WalletActionResult, error) {
	if action.Type != types.ActionEIP1193Request {
		return nil, swaperr.Newf(swaperr.UnsupportedActionType, "evm wallet cannot execute %s", action.Type)
	}
	backend, chainID, ok := w.session()
	if !ok {
		return nil, swaperr.New(swaperr.WalletNotConnected, "evm wallet is not connected")
	}
	if action.ChainID != 0 && action.ChainID != chainID.Int64() {
		return nil, swaperr.Newf(swaperr.WalletActionFailed, "action targets chain %d, wallet is on chain %s", action.ChainID, chainID)
	}

	switch action.Method {
	case "eth_sendTransaction":
		hash, err := w.sendTransaction(ctx, backend, chainID, action.Params)
		if err != nil {
			return nil, err
		}
		return &types.WalletActionResult{Success: true, TxHash: hash}, nil

	case "wallet_switchEthereumChain":
		var params []struct {
			ChainID *hexutil.Big `json:"chainId"`
		}
		if err := json.Unmarshal(action.Params, &params); err != nil || len(params) == 0 || params[0].ChainID == nil {
			return nil, swaperr.New(swaperr.WalletActionFailed, "invalid wallet_switchEthereumChain params")
		}
		if params[0].ChainID.ToInt().Cmp(chainID) != 0 {
			return nil, swaperr.Newf(swaperr.WalletActionFailed, "cannot switch to chain %s, wallet RPC serves chain %s", params[0].ChainID.ToInt(), chainID)
		}
		return &types.WalletActionResult{Success: true}, nil

	case "personal_sign":
		var params []string
		if err := json.Unmarshal(action.Params, &params); err != nil || len(params) == 0 {
			return nil, swaperr.New(swaperr.WalletActionFailed, "invalid personal_sign params")
		}
		message, err := hexutil.Decode(params[0])
		if err != nil {
			message = []byte(params[0])
		}
		sig, err := w.SignMessage(ctx, message)
		if err != nil {
			return nil, err
		}
		return &types.WalletActionResult{Success: true, Data: sig}, nil

	default:
		return nil, swaperr.Newf(swaperr.UnsupportedActionType, "unsupported EIP-1193 method %q", action.Method)
	}
}

// txParams is the single argument of eth_sendTransaction
type txParams struct {
	From     string          `json:"from"`
	To       string          `json:"to"`
	Data     hexutil.Bytes   `json:"data"`
	Input    hexutil.Bytes   `json:"input"`
	Value    *hexutil.Big    `json:"value"`
	Gas      *hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
}

func decodeTxParams(raw json.RawMessage) (*txParams, error) {
	var params []txParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, swaperr.Wrap(swaperr.WalletActionFailed, err, "invalid eth_sendTransaction params")
	}
	if len(params) == 0 {
		return nil, swaperr.New(swaperr.WalletActionFailed, "eth_sendTransaction without a transaction")
	}
	p := &params[0]
	if !common.IsHexAddress(p.To) {
		return nil, swaperr.Newf(swaperr.WalletActionFailed, "invalid recipient address: %q", p.To)
	}
	if len(p.Data) == 0 {
		p.Data = p.Input
	}
	return p, nil
}

func (w *EVMWallet) sendTransaction(ctx context.Context, backend EVMBackend, chainID *big.Int, raw json.RawMessage) (string, error) {
	p, err := decodeTxParams(raw)
	if err != nil {
		return "", err
	}
	if p.From != "" && !strings.EqualFold(p.From, w.address.Hex()) {
		return "", swaperr.Newf(swaperr.WalletActionFailed, "transaction is from %s, wallet is %s", p.From, w.address.Hex())
	}

	to := common.HexToAddress(p.To)
	value := big.NewInt(0)
	if p.Value != nil {
		value = p.Value.ToInt()
	}

	nonce, err := backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return "", swaperr.Wrap(swaperr.WalletActionFailed, err, "failed to get nonce")
	}

	gasPrice, err := w.gasPrice(ctx, backend, p)
	if err != nil {
		return "", err
	}
	gasLimit, err := w.gasLimit(ctx, backend, p, to, value)
	if err != nil {
		return "", err
	}

	balance, err := backend.BalanceAt(ctx, w.address, nil)
	if err != nil {
		return "", swaperr.Wrap(swaperr.WalletActionFailed, err, "failed to get balance")
	}
	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))
	cost.Add(cost, value)
	if balance.Cmp(cost) < 0 {
		return "", swaperr.Newf(swaperr.InsufficientBalance, "insufficient balance: have %s wei, need %s wei", balance, cost).
			WithDetail("balance", balance.String()).
			WithDetail("required", cost.String())
	}

	tx := gethtypes.NewTransaction(nonce, to, value, gasLimit, gasPrice, p.Data)
	signed, err := gethtypes.SignTx(tx, gethtypes.NewEIP155Signer(chainID), w.key)
	if err != nil {
		return "", swaperr.Wrap(swaperr.WalletActionFailed, err, "failed to sign transaction")
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return "", swaperr.Wrap(swaperr.TransactionFailed, err, "failed to send transaction")
	}

	w.logger.Info("evm transaction sent", "hash", signed.Hash().Hex(), "to", to.Hex(), "nonce", nonce)
	return signed.Hash().Hex(), nil
}

// gasPrice prefers the request, then configuration, then the node
func (w *EVMWallet) gasPrice(ctx context.Context, backend EVMBackend, p *txParams) (*big.Int, error) {
	if p.GasPrice != nil {
		return p.GasPrice.ToInt(), nil
	}
	if w.cfg.GasPrice != nil {
		return big.NewInt(*w.cfg.GasPrice), nil
	}
	price, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, swaperr.Wrap(swaperr.WalletActionFailed, err, "failed to get gas price")
	}
	return price, nil
}

// gasLimit prefers the request, then configuration, then an estimate with
// a 20% buffer
func (w *EVMWallet) gasLimit(ctx context.Context, backend EVMBackend, p *txParams, to common.Address, value *big.Int) (uint64, error) {
	if p.Gas != nil {
		return uint64(*p.Gas), nil
	}
	if w.cfg.GasLimit != nil {
		return *w.cfg.GasLimit, nil
	}
	estimated, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.address,
		To:    &to,
		Value: value,
		Data:  p.Data,
	})
	if err != nil {
		return 0, swaperr.Wrap(swaperr.WalletActionFailed, err, "failed to estimate gas")
	}
	return estimated * 120 / 100, nil
}

// SignMessage signs message with the EIP-191 personal message prefix and
// returns the 65-byte signature as hex
func (w *EVMWallet) SignMessage(ctx context.Context, message []byte) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), w.key)
	if err != nil {
		return "", swaperr.Wrap(swaperr.WalletActionFailed, err, "failed to sign message")
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

func (w *EVMWallet) String() string {
	return fmt.Sprintf("evm:%s", w.address.Hex())
}
