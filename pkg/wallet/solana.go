package wallet

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"tokenflight/config"
	"tokenflight/pkg/swaperr"
	"tokenflight/pkg/token"
	"tokenflight/pkg/types"
)

// SolanaSender broadcasts signed transactions. *rpc.Client implements it.
type SolanaSender interface {
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

// SolanaWallet signs backend-built Solana transactions with a local key
type SolanaWallet struct {
	Emitter

	cfg    config.SolanaConfig
	key    solana.PrivateKey
	pub    solana.PublicKey
	logger *slog.Logger

	mu        sync.Mutex
	sender    SolanaSender
	newSender func(rpcURL string) SolanaSender
}

// SolanaOption configures a SolanaWallet
type SolanaOption func(*SolanaWallet)

// WithSolanaSender replaces the RPC client used to broadcast
func WithSolanaSender(sender SolanaSender) SolanaOption {
	return func(w *SolanaWallet) {
		w.newSender = func(string) SolanaSender { return sender }
	}
}

// WithSolanaLogger sets the logger
func WithSolanaLogger(logger *slog.Logger) SolanaOption {
	return func(w *SolanaWallet) { w.logger = logger }
}

// NewSolanaWallet creates a Solana wallet from configuration
func NewSolanaWallet(cfg config.SolanaConfig, opts ...SolanaOption) (*SolanaWallet, error) {
	if cfg.RPCURL == "" {
		return nil, swaperr.New(swaperr.InvalidConfig, "solana.rpc_url is not configured")
	}
	if cfg.PrivateKey == "" {
		return nil, swaperr.New(swaperr.InvalidConfig, "solana.private_key is not configured")
	}

	key, err := solana.PrivateKeyFromBase58(cfg.PrivateKey)
	if err != nil {
		return nil, swaperr.Wrap(swaperr.InvalidConfig, err, "invalid solana private key")
	}

	w := &SolanaWallet{
		cfg:    cfg,
		key:    key,
		pub:    key.PublicKey(),
		logger: slog.Default(),
		newSender: func(rpcURL string) SolanaSender {
			return rpc.New(rpcURL)
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Connect creates the RPC client. The Solana RPC client is stateless so no
// request is made here.
func (w *SolanaWallet) Connect(ctx context.Context) error {
	w.mu.Lock()
	if w.sender != nil {
		w.mu.Unlock()
		return nil
	}
	w.sender = w.newSender(w.cfg.RPCURL)
	w.mu.Unlock()

	w.Emit(Event{Type: EventConnect, Address: w.Address(), ChainID: token.SolanaChainID})
	return nil
}

func (w *SolanaWallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	if w.sender == nil {
		w.mu.Unlock()
		return nil
	}
	w.sender = nil
	w.mu.Unlock()

	w.Emit(Event{Type: EventDisconnect, Address: w.Address()})
	return nil
}

func (w *SolanaWallet) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sender != nil
}

// Address returns the base58 public key
func (w *SolanaWallet) Address() string {
	return w.pub.String()
}

// ExecuteWalletAction signs the action's transaction. Sign-and-send actions
// are broadcast and report the signature as TxHash; sign-only actions return
// the signed transaction, base64 encoded, in Data.
func (w *SolanaWallet) ExecuteWalletAction(ctx context.Context, action types.WalletAction) (*types.WalletActionResult, error) {
	if action.Type != types.ActionSolanaSignAndSend && action.Type != types.ActionSolanaSign {
		return nil, swaperr.Newf(swaperr.UnsupportedActionType, "solana wallet cannot execute %s", action.Type)
	}
	w.mu.Lock()
	sender := w.sender
	w.mu.Unlock()
	if sender == nil {
		return nil, swaperr.New(swaperr.WalletNotConnected, "solana wallet is not connected")
	}

	tx, err := decodeTransaction(action.Transaction)
	if err != nil {
		return nil, err
	}
	if err := w.sign(tx); err != nil {
		return nil, err
	}

	if action.Type == types.ActionSolanaSign {
		encoded, err := encodeTransaction(tx)
		if err != nil {
			return nil, err
		}
		return &types.WalletActionResult{Success: true, Data: encoded}, nil
	}

	sig, err := sender.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       w.cfg.SkipPreflight,
		PreflightCommitment: commitment(w.cfg.Commitment),
	})
	if err != nil {
		return nil, swaperr.Wrap(swaperr.TransactionFailed, err, "failed to send transaction")
	}

	w.logger.Info("solana transaction sent", "signature", sig.String())
	return &types.WalletActionResult{Success: true, TxHash: sig.String()}, nil
}

// sign fills this wallet's signature slot. Backend-built transactions arrive
// with zeroed placeholder signatures and may already carry co-signatures.
func (w *SolanaWallet) sign(tx *solana.Transaction) error {
	content, err := tx.Message.MarshalBinary()
	if err != nil {
		return swaperr.Wrap(swaperr.WalletActionFailed, err, "failed to encode transaction message")
	}

	signers := int(tx.Message.Header.NumRequiredSignatures)
	slot := -1
	for i := 0; i < signers && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(w.pub) {
			slot = i
			break
		}
	}
	if slot < 0 {
		return swaperr.Newf(swaperr.WalletActionFailed, "%s is not a signer of the transaction", w.pub)
	}

	sig, err := w.key.Sign(content)
	if err != nil {
		return swaperr.Wrap(swaperr.WalletActionFailed, err, "failed to sign transaction")
	}
	if len(tx.Signatures) != signers {
		padded := make([]solana.Signature, signers)
		copy(padded, tx.Signatures)
		tx.Signatures = padded
	}
	tx.Signatures[slot] = sig
	return nil
}

// SignMessage signs raw bytes and returns the base58 signature
func (w *SolanaWallet) SignMessage(ctx context.Context, message []byte) (string, error) {
	sig, err := w.key.Sign(message)
	if err != nil {
		return "", swaperr.Wrap(swaperr.WalletActionFailed, err, "failed to sign message")
	}
	return sig.String(), nil
}

func decodeTransaction(encoded string) (*solana.Transaction, error) {
	if encoded == "" {
		return nil, swaperr.New(swaperr.WalletActionFailed, "action has no transaction")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, swaperr.Wrap(swaperr.WalletActionFailed, err, "transaction is not valid base64")
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, swaperr.Wrap(swaperr.WalletActionFailed, err, "failed to decode transaction")
	}
	return tx, nil
}

func encodeTransaction(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", swaperr.Wrap(swaperr.WalletActionFailed, err, "failed to encode transaction")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// commitment returns the configured commitment level
func commitment(level string) rpc.CommitmentType {
	switch strings.ToLower(level) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}
