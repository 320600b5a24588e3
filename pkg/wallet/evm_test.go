package wallet

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"tokenflight/config"
	"tokenflight/pkg/swaperr"
	"tokenflight/pkg/types"
)

type fakeEVMBackend struct {
	chainID  *big.Int
	nonce    uint64
	gasPrice *big.Int
	estimate uint64
	balance  *big.Int
	sent     []*gethtypes.Transaction
	closed   bool
}

func (f *fakeEVMBackend) ChainID(ctx context.Context) (*big.Int, error) { return f.chainID, nil }
func (f *fakeEVMBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}
func (f *fakeEVMBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) { return f.gasPrice, nil }
func (f *fakeEVMBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return f.estimate, nil
}
func (f *fakeEVMBackend) BalanceAt(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error) {
	return f.balance, nil
}
func (f *fakeEVMBackend) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}
func (f *fakeEVMBackend) Close() { f.closed = true }

func newTestEVMWallet(t *testing.T, backend *fakeEVMBackend) *EVMWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	w, err := NewEVMWallet(config.EVMConfig{
		RPCURL:     "http://localhost:8545",
		PrivateKey: hexutil.Encode(crypto.FromECDSA(key)),
		ChainID:    backend.chainID.Int64(),
	}, WithEVMDialer(func(ctx context.Context, rpcURL string) (EVMBackend, error) {
		return backend, nil
	}))
	require.NoError(t, err)
	return w
}

func sendAction(t *testing.T, tx map[string]string) types.WalletAction {
	t.Helper()
	params, err := json.Marshal([]map[string]string{tx})
	require.NoError(t, err)
	return types.WalletAction{
		Type:    types.ActionEIP1193Request,
		ChainID: 1,
		Method:  "eth_sendTransaction",
		Params:  params,
	}
}

func TestNewEVMWalletValidatesConfig(t *testing.T) {
	_, err := NewEVMWallet(config.EVMConfig{PrivateKey: "0x01"})
	require.True(t, swaperr.HasCode(err, swaperr.InvalidConfig))

	_, err = NewEVMWallet(config.EVMConfig{RPCURL: "http://localhost:8545", PrivateKey: "zz"})
	require.True(t, swaperr.HasCode(err, swaperr.InvalidConfig))
}

func TestEVMConnectEmitsAndChecksChain(t *testing.T) {
	backend := &fakeEVMBackend{chainID: big.NewInt(1)}
	w := newTestEVMWallet(t, backend)

	var events []Event
	unsubscribe := w.On(EventConnect, func(e Event) { events = append(events, e) })
	defer unsubscribe()

	require.False(t, w.IsConnected())
	require.NoError(t, w.Connect(context.Background()))
	require.True(t, w.IsConnected())
	require.Len(t, events, 1)
	require.Equal(t, w.Address(), events[0].Address)
	require.Equal(t, int64(1), events[0].ChainID)

	require.NoError(t, w.Disconnect(context.Background()))
	require.True(t, backend.closed)
	require.False(t, w.IsConnected())

	w.cfg.ChainID = 10
	err := w.Connect(context.Background())
	require.True(t, swaperr.HasCode(err, swaperr.WalletConnectionFailed))
}

func TestEVMSendTransaction(t *testing.T) {
	backend := &fakeEVMBackend{
		chainID:  big.NewInt(1),
		nonce:    7,
		gasPrice: big.NewInt(2_000_000_000),
		estimate: 50_000,
		balance:  big.NewInt(1e18),
	}
	w := newTestEVMWallet(t, backend)
	require.NoError(t, w.Connect(context.Background()))

	to := "0x000000000000000000000000000000000000dEaD"
	res, err := w.ExecuteWalletAction(context.Background(), sendAction(t, map[string]string{
		"from":  w.Address(),
		"to":    to,
		"value": "0x2386f26fc10000",
		"data":  "0xabcdef",
	}))
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	require.Equal(t, tx.Hash().Hex(), res.TxHash)
	require.Equal(t, uint64(7), tx.Nonce())
	require.Equal(t, uint64(60_000), tx.Gas())
	require.Equal(t, common.HexToAddress(to), *tx.To())
	require.Equal(t, big.NewInt(10_000_000_000_000_000), tx.Value())
	require.Equal(t, []byte{0xab, 0xcd, 0xef}, tx.Data())

	sender, err := gethtypes.Sender(gethtypes.NewEIP155Signer(big.NewInt(1)), tx)
	require.NoError(t, err)
	require.Equal(t, w.Address(), sender.Hex())
}

func TestEVMSendTransactionInsufficientBalance(t *testing.T) {
	backend := &fakeEVMBackend{
		chainID:  big.NewInt(1),
		gasPrice: big.NewInt(1),
		estimate: 21_000,
		balance:  big.NewInt(100),
	}
	w := newTestEVMWallet(t, backend)
	require.NoError(t, w.Connect(context.Background()))

	_, err := w.ExecuteWalletAction(context.Background(), sendAction(t, map[string]string{
		"to":    "0x000000000000000000000000000000000000dEaD",
		"value": "0x3e8",
	}))
	require.True(t, swaperr.HasCode(err, swaperr.InsufficientBalance), "%v", err)
	require.Empty(t, backend.sent)
}

func TestEVMRejectsForeignActions(t *testing.T) {
	backend := &fakeEVMBackend{chainID: big.NewInt(1)}
	w := newTestEVMWallet(t, backend)

	_, err := w.ExecuteWalletAction(context.Background(), types.WalletAction{Type: types.ActionEIP1193Request, Method: "eth_sendTransaction"})
	require.True(t, swaperr.HasCode(err, swaperr.WalletNotConnected))

	require.NoError(t, w.Connect(context.Background()))

	_, err = w.ExecuteWalletAction(context.Background(), types.WalletAction{Type: types.ActionSolanaSignAndSend})
	require.True(t, swaperr.HasCode(err, swaperr.UnsupportedActionType))

	_, err = w.ExecuteWalletAction(context.Background(), types.WalletAction{Type: types.ActionEIP1193Request, Method: "eth_signTypedData_v4"})
	require.True(t, swaperr.HasCode(err, swaperr.UnsupportedActionType))

	_, err = w.ExecuteWalletAction(context.Background(), types.WalletAction{Type: types.ActionEIP1193Request, ChainID: 137, Method: "eth_sendTransaction"})
	require.True(t, swaperr.HasCode(err, swaperr.WalletActionFailed))

	res, err := w.ExecuteWalletAction(context.Background(), types.WalletAction{
		Type:   types.ActionEIP1193Request,
		Method: "wallet_switchEthereumChain",
		Params: json.RawMessage(`[{"chainId":"0x1"}]`),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestEVMSignMessageRecoversToAddress(t *testing.T) {
	w := newTestEVMWallet(t, &fakeEVMBackend{chainID: big.NewInt(1)})
	message := []byte("tokenflight login")

	sigHex, err := w.SignMessage(context.Background(), message)
	require.NoError(t, err)

	sig, err := hexutil.Decode(sigHex)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	sig[crypto.RecoveryIDOffset] -= 27

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	require.NoError(t, err)
	require.Equal(t, w.Address(), crypto.PubkeyToAddress(*pub).Hex())
}
