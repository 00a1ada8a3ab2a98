package keys

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const defaultGasLimit = 21000

// ErrChainMismatch is returned when a transaction names a chain other than the
// one the host is on.
var ErrChainMismatch = errors.New("transaction chain id does not match the active chain")

// TxArgs are the eth_signTransaction arguments the host understands. Only
// EIP-1559 transactions are signed.
type TxArgs struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to"`
	Value                *hexutil.Big    `json:"value"`
	Gas                  *hexutil.Uint64 `json:"gas"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Nonce                *hexutil.Uint64 `json:"nonce"`
	Data                 hexutil.Bytes   `json:"data"`
	Input                hexutil.Bytes   `json:"input"`
	ChainID              *hexutil.Big    `json:"chainId"`
}

// SignTransaction builds and signs a dynamic fee transaction for the active chain
// and returns its RLP encoding.
func (k *Keyring) SignTransaction(args TxArgs, chainID *big.Int) (hexutil.Bytes, error) {
	key, ok := k.keys[args.From]
	if !ok {
		return nil, errors.Wrap(ErrUnknownAccount, args.From.Hex())
	}
	if args.ChainID != nil && args.ChainID.ToInt().Cmp(chainID) != 0 {
		return nil, errors.Wrapf(ErrChainMismatch, "got %s, active %s", args.ChainID.String(), hexutil.EncodeBig(chainID))
	}
	if args.MaxFeePerGas == nil || args.MaxPriorityFeePerGas == nil {
		return nil, errors.New("maxFeePerGas and maxPriorityFeePerGas are required")
	}

	value := new(big.Int)
	if args.Value != nil {
		value = args.Value.ToInt()
	}

	gas := uint64(defaultGasLimit)
	if args.Gas != nil {
		gas = uint64(*args.Gas)
	}

	var nonce uint64
	if args.Nonce != nil {
		nonce = uint64(*args.Nonce)
	}

	data := args.Input
	if len(data) == 0 {
		data = args.Data
	}

	//nolint:varnamelen // tx is a common abbreviation for transaction
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: args.MaxPriorityFeePerGas.ToInt(),
		GasFeeCap: args.MaxFeePerGas.ToInt(),
		Gas:       gas,
		To:        args.To,
		Value:     value,
		Data:      data,
	})

	signedTx, err := types.SignTx(tx, types.NewLondonSigner(chainID), key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal transaction")
	}

	return raw, nil
}

// RecoverText returns the address that produced a SignText signature.
func RecoverText(data []byte, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}

	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(data), normalized)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to recover public key")
	}

	return crypto.PubkeyToAddress(*pub), nil
}
