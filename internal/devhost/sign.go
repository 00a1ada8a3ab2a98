package devhost

import (
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github/chapool/wallet-provider/internal/devhost/keys"
	"github/chapool/wallet-provider/internal/provider/bridge"
)

// personalSign handles personal_sign: [message, address].
func (h *Host) personalSign(params json.RawMessage) (any, error) {
	args, err := stringParams(params, 2)
	if err != nil {
		return nil, err
	}
	return h.signText(args[1], args[0])
}

// ethSign handles eth_sign: [address, message].
func (h *Host) ethSign(params json.RawMessage) (any, error) {
	args, err := stringParams(params, 2)
	if err != nil {
		return nil, err
	}
	return h.signText(args[0], args[1])
}

func (h *Host) signText(address string, message string) (hexutil.Bytes, error) {
	account, err := h.authorizedAccount(address)
	if err != nil {
		return nil, err
	}
	return h.keyring.SignText(account, messageBytes(message))
}

// signTransaction handles eth_signTransaction: [txArgs]. The transaction is signed
// for the active chain.
func (h *Host) signTransaction(params json.RawMessage) (any, error) {
	var args []keys.TxArgs
	if err := json.Unmarshal(params, &args); err != nil || len(args) != 1 {
		return nil, invalidParams("expected [transaction]")
	}

	if _, err := h.authorizedAccount(args[0].From.Hex()); err != nil {
		return nil, err
	}

	h.mu.RLock()
	chainID := h.chainID
	h.mu.RUnlock()

	return h.keyring.SignTransaction(args[0], chainID)
}

// authorizedAccount resolves address to one of the host's accounts that the page
// has been given access to.
func (h *Host) authorizedAccount(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, invalidParams("invalid address %q", address)
	}
	account := common.HexToAddress(address)

	h.mu.RLock()
	approved := h.approved
	h.mu.RUnlock()

	if !approved || !h.keyring.Contains(account) {
		return common.Address{}, bridge.NewRPCError(bridge.CodeUnauthorized, "The requested account has not been authorized by the user.", nil)
	}

	return account, nil
}

// messageBytes accepts hex-encoded data or plain text.
func messageBytes(message string) []byte {
	if strings.HasPrefix(message, "0x") {
		if data, err := hexutil.Decode(message); err == nil {
			return data
		}
	}
	return []byte(message)
}

func stringParams(params json.RawMessage, n int) ([]string, error) {
	var args []string
	if err := json.Unmarshal(params, &args); err != nil || len(args) < n {
		return nil, invalidParams("expected %d string params", n)
	}
	return args, nil
}
