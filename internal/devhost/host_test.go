package devhost_test

import (
	"context"
	"encoding/json"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/wallet-provider/internal/devhost"
	"github/chapool/wallet-provider/internal/devhost/keys"
	"github/chapool/wallet-provider/internal/provider/bridge"
	"github/chapool/wallet-provider/internal/test"
)

const firstAccount = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

type hostReply struct {
	ID      json.RawMessage  `json:"id"`
	JSONRPC string           `json:"jsonrpc"`
	Result  json.RawMessage  `json:"result"`
	Error   *bridge.RPCError `json:"error"`
}

func call(t *testing.T, h *devhost.Host, method string, params any) hostReply {
	t.Helper()

	payload, err := json.Marshal(map[string]any{"id": 42, "method": method, "params": params})
	require.NoError(t, err)

	var reply hostReply
	require.NoError(t, json.Unmarshal(h.Handle(t.Context(), payload), &reply))
	assert.JSONEq(t, `42`, string(reply.ID))
	assert.Equal(t, "2.0", reply.JSONRPC)

	return reply
}

type pushed struct {
	event string
	data  any
}

func collectPushes(h *devhost.Host) *[]pushed {
	var got []pushed
	h.OnPush(func(event string, data any) {
		got = append(got, pushed{event: event, data: data})
	})
	return &got
}

func TestChainQueries(t *testing.T) {
	test.WithTestDevHost(t, func(h *devhost.Host) {
		assert.JSONEq(t, `"0x1"`, string(call(t, h, "eth_chainId", nil).Result))
		assert.JSONEq(t, `"1"`, string(call(t, h, "net_version", nil).Result))
	})
}

func TestAccountsRequireApproval(t *testing.T) {
	test.WithTestDevHost(t, func(h *devhost.Host) {
		pushes := collectPushes(h)

		assert.JSONEq(t, `[]`, string(call(t, h, "eth_accounts", nil).Result))

		reply := call(t, h, "eth_requestAccounts", nil)
		require.Nil(t, reply.Error)
		var accounts []string
		require.NoError(t, json.Unmarshal(reply.Result, &accounts))
		require.Len(t, accounts, 2)
		assert.Equal(t, firstAccount, accounts[0])

		assert.JSONEq(t, string(reply.Result), string(call(t, h, "eth_accounts", nil).Result))

		require.Len(t, *pushes, 1)
		assert.Equal(t, "accountsChanged", (*pushes)[0].event)
		assert.Equal(t, accounts, (*pushes)[0].data)

		call(t, h, "eth_requestAccounts", nil)
		assert.Len(t, *pushes, 1)
	})
}

func TestRequestAccountsRejectedWithoutAutoApprove(t *testing.T) {
	cfg := test.DefaultHostConfig()
	cfg.AutoApprove = false
	h := test.NewTestDevHost(t, cfg)

	reply := call(t, h, "eth_requestAccounts", nil)
	require.NotNil(t, reply.Error)
	assert.Equal(t, bridge.CodeUserRejected, reply.Error.Code)
	assert.Empty(t, reply.Result)
}

func TestSelectAccountAndRevoke(t *testing.T) {
	test.WithTestDevHost(t, func(h *devhost.Host) {
		pushes := collectPushes(h)

		require.NoError(t, h.SelectAccount(1))
		assert.Empty(t, *pushes)

		call(t, h, "eth_requestAccounts", nil)
		second := h.Accounts()[1].Address.Hex()
		assert.Equal(t, []string{second, firstAccount}, (*pushes)[0].data)

		require.NoError(t, h.SelectAccount(0))
		assert.Equal(t, []string{firstAccount, second}, (*pushes)[1].data)
		require.Error(t, h.SelectAccount(5))

		call(t, h, "wallet_revokePermissions", []any{map[string]any{"eth_accounts": map[string]any{}}})
		assert.Equal(t, []string{}, (*pushes)[2].data)
		assert.JSONEq(t, `[]`, string(call(t, h, "eth_accounts", nil).Result))
	})
}

func TestSwitchChain(t *testing.T) {
	test.WithTestDevHost(t, func(h *devhost.Host) {
		pushes := collectPushes(h)

		reply := call(t, h, "wallet_switchEthereumChain", []any{map[string]string{"chainId": "0x89"}})
		require.Nil(t, reply.Error)
		assert.JSONEq(t, `null`, string(reply.Result))
		assert.Equal(t, "0x89", h.ChainID())
		assert.Equal(t, []pushed{{event: "chainChanged", data: "0x89"}}, *pushes)

		call(t, h, "wallet_switchEthereumChain", []any{map[string]string{"chainId": "0x89"}})
		assert.Len(t, *pushes, 1)

		reply = call(t, h, "wallet_switchEthereumChain", []any{map[string]string{"chainId": "polygon"}})
		require.NotNil(t, reply.Error)
		assert.Equal(t, bridge.CodeInvalidParams, reply.Error.Code)

		reply = call(t, h, "wallet_switchEthereumChain", nil)
		require.NotNil(t, reply.Error)
		assert.Equal(t, bridge.CodeInvalidParams, reply.Error.Code)
	})
}

func TestPersonalSign(t *testing.T) {
	test.WithTestDevHost(t, func(h *devhost.Host) {
		message := "0x" + common.Bytes2Hex([]byte("sign in"))

		reply := call(t, h, "personal_sign", []string{message, firstAccount})
		require.NotNil(t, reply.Error)
		assert.Equal(t, bridge.CodeUnauthorized, reply.Error.Code)

		call(t, h, "eth_requestAccounts", nil)

		for _, reply := range []hostReply{
			call(t, h, "personal_sign", []string{message, firstAccount}),
			call(t, h, "eth_sign", []string{firstAccount, "sign in"}),
		} {
			require.Nil(t, reply.Error)

			var sig hexutil.Bytes
			require.NoError(t, json.Unmarshal(reply.Result, &sig))

			signer, err := keys.RecoverText([]byte("sign in"), sig)
			require.NoError(t, err)
			assert.Equal(t, firstAccount, signer.Hex())
		}

		reply = call(t, h, "personal_sign", []string{message})
		require.NotNil(t, reply.Error)
		assert.Equal(t, bridge.CodeInvalidParams, reply.Error.Code)
	})
}

func TestSignTransactionUsesActiveChain(t *testing.T) {
	test.WithTestDevHost(t, func(h *devhost.Host) {
		call(t, h, "eth_requestAccounts", nil)
		require.NoError(t, h.SwitchChain("0xa"))

		reply := call(t, h, "eth_signTransaction", []any{map[string]any{
			"from":                 firstAccount,
			"to":                   "0x000000000000000000000000000000000000dEaD",
			"value":                "0x1",
			"gas":                  "0x5208",
			"maxFeePerGas":         "0x3b9aca00",
			"maxPriorityFeePerGas": "0x1",
			"nonce":                "0x0",
		}})
		require.Nil(t, reply.Error)

		var raw hexutil.Bytes
		require.NoError(t, json.Unmarshal(reply.Result, &raw))

		var tx types.Transaction
		require.NoError(t, tx.UnmarshalBinary(raw))
		assert.Equal(t, int64(10), tx.ChainId().Int64())

		sender, err := types.Sender(types.NewLondonSigner(big.NewInt(10)), &tx)
		require.NoError(t, err)
		assert.Equal(t, firstAccount, sender.Hex())

		reply = call(t, h, "eth_signTransaction", []any{map[string]any{
			"from":                 firstAccount,
			"chainId":              "0x1",
			"maxFeePerGas":         "0x1",
			"maxPriorityFeePerGas": "0x1",
		}})
		require.NotNil(t, reply.Error)
		assert.Equal(t, bridge.CodeInvalidParams, reply.Error.Code)
	})
}

func TestFixturesAnswerFirst(t *testing.T) {
	fixtures, err := devhost.ParseFixtures(`
[methods.eth_blockNumber]
result = "0x10"

[methods.eth_chainId]
result = "0x5"

[methods.eth_estimateGas.error]
code = -32000
message = "insufficient funds"
`)
	require.NoError(t, err)

	h := test.NewTestDevHost(t, test.DefaultHostConfig(), devhost.WithFixtures(fixtures))

	assert.JSONEq(t, `"0x10"`, string(call(t, h, "eth_blockNumber", nil).Result))
	assert.JSONEq(t, `"0x5"`, string(call(t, h, "eth_chainId", nil).Result))

	reply := call(t, h, "eth_estimateGas", nil)
	require.NotNil(t, reply.Error)
	assert.Equal(t, -32000, reply.Error.Code)
	assert.Equal(t, "insufficient funds", reply.Error.Message)
}

type fakeForwarder struct {
	method string
	params json.RawMessage
	result json.RawMessage
	err    error
}

func (f *fakeForwarder) Call(_ context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	f.method = method
	f.params = params
	return f.result, f.err
}

func TestUnknownMethodsAreForwarded(t *testing.T) {
	forwarder := &fakeForwarder{result: json.RawMessage(`"0xde0b6b3a7640000"`)}
	h := test.NewTestDevHost(t, test.DefaultHostConfig(), devhost.WithForwarder(forwarder))

	reply := call(t, h, "eth_getBalance", []string{firstAccount, "latest"})
	require.Nil(t, reply.Error)
	assert.JSONEq(t, `"0xde0b6b3a7640000"`, string(reply.Result))
	assert.Equal(t, "eth_getBalance", forwarder.method)
	assert.JSONEq(t, `["`+firstAccount+`","latest"]`, string(forwarder.params))

	forwarder.err = bridge.NewRPCError(-32000, "header not found", nil)
	reply = call(t, h, "eth_getBalance", []string{firstAccount, "0xffffff"})
	require.NotNil(t, reply.Error)
	assert.Equal(t, -32000, reply.Error.Code)
}

func TestUnknownMethodWithoutUpstream(t *testing.T) {
	test.WithTestDevHost(t, func(h *devhost.Host) {
		reply := call(t, h, "eth_getBalance", nil)
		require.NotNil(t, reply.Error)
		assert.Equal(t, bridge.CodeUnsupportedMethod, reply.Error.Code)
	})
}

func TestInvalidRequest(t *testing.T) {
	test.WithTestDevHost(t, func(h *devhost.Host) {
		var reply hostReply
		require.NoError(t, json.Unmarshal(h.Handle(t.Context(), []byte(`not json`)), &reply))
		assert.JSONEq(t, `null`, string(reply.ID))
		require.NotNil(t, reply.Error)
		assert.Equal(t, bridge.CodeInvalidRequest, reply.Error.Code)
	})
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := test.DefaultHostConfig()
	cfg.ChainID = "mainnet"
	_, err := devhost.New(t.Context(), cfg)
	require.Error(t, err)

	cfg = test.DefaultHostConfig()
	cfg.Mnemonic = ""
	_, err = devhost.New(t.Context(), cfg)
	require.Error(t, err)
}

func TestNewFromKeystore(t *testing.T) {
	cfg := test.DefaultHostConfig()
	cfg.KeystorePath = filepath.Join(t.TempDir(), "host.json")
	cfg.KeystorePassword = "correct horse"

	_, err := keys.WriteKeystore(cfg.KeystorePath, cfg.Mnemonic, cfg.KeystorePassword, keys.LightScryptParams())
	require.NoError(t, err)
	cfg.Mnemonic = ""

	h, err := devhost.New(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	assert.Equal(t, common.HexToAddress(firstAccount), h.Accounts()[0].Address)

	cfg.KeystorePassword = "wrong"
	_, err = devhost.New(t.Context(), cfg)
	require.ErrorIs(t, err, keys.ErrKeystorePassword)
}
