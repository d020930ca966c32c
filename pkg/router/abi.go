package router

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

const wordSize = 32

// THORChain router, ERC-20 and WETH methods the preparer encodes
const contractABI = `[
	{"name":"depositWithExpiry","type":"function","stateMutability":"payable","inputs":[
		{"name":"vault","type":"address"},
		{"name":"asset","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"memo","type":"string"},
		{"name":"expiration","type":"uint256"}],"outputs":[]},
	{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"to","type":"address"},
		{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"spender","type":"address"},
		{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[
		{"name":"owner","type":"address"},
		{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"deposit","type":"function","stateMutability":"payable","inputs":[],"outputs":[]},
	{"name":"withdraw","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"wad","type":"uint256"}],"outputs":[]}
]`

var (
	parsedContractABI = mustParseABI(contractABI)

	addressType = mustNewType("address")
	uint256Type = mustNewType("uint256")
	stringType  = mustNewType("string")
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI: %v", err))
	}
	return parsed
}

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("invalid ABI type %s: %v", t, err))
	}
	return typ
}

// Selector returns the 4-byte function selector of a canonical signature
func Selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

func parseAddress(addr string) (common.Address, error) {
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("invalid address %q", addr)
	}
	return common.HexToAddress(addr), nil
}

func checkUint256(v *big.Int) (*big.Int, error) {
	if v == nil {
		return new(big.Int), nil
	}
	if v.Sign() < 0 || v.BitLen() > 256 {
		return nil, fmt.Errorf("value %s out of uint256 range", v)
	}
	return v, nil
}

// EncodeAddress left-pads a 20-byte hex address into a 32-byte word
func EncodeAddress(addr string) ([]byte, error) {
	a, err := parseAddress(addr)
	if err != nil {
		return nil, err
	}
	return common.LeftPadBytes(a.Bytes(), wordSize), nil
}

// DecodeAddress reverses EncodeAddress and returns a lower-case 0x address
func DecodeAddress(word []byte) (string, error) {
	if len(word) != wordSize {
		return "", fmt.Errorf("invalid word length %d", len(word))
	}
	if common.BytesToHash(word).Big().BitLen() > common.AddressLength*8 {
		return "", fmt.Errorf("address word has non-zero padding")
	}
	return hexutil.Encode(word[wordSize-common.AddressLength:]), nil
}

// EncodeUint256 writes v as a 32-byte big-endian word
func EncodeUint256(v *big.Int) ([]byte, error) {
	v, err := checkUint256(v)
	if err != nil {
		return nil, err
	}
	return math.U256Bytes(new(big.Int).Set(v)), nil
}

// DecodeUint256 reads a 32-byte big-endian word
func DecodeUint256(word []byte) (*big.Int, error) {
	if len(word) != wordSize {
		return nil, fmt.Errorf("invalid word length %d", len(word))
	}
	return common.BytesToHash(word).Big(), nil
}

// EncodeString encodes a dynamic string as length word, raw bytes, zero padding
func EncodeString(s string) []byte {
	packed, err := abi.Arguments{{Type: stringType}}.Pack(s)
	if err != nil {
		return nil
	}
	// drop the head offset, keep the tail
	return packed[wordSize:]
}

// Param is one typed argument of an ABI call
type Param struct {
	typ   abi.Type
	value interface{}
}

func AddressParam(addr common.Address) Param {
	return Param{typ: addressType, value: addr}
}

func Uint256Param(v *big.Int) Param {
	return Param{typ: uint256Type, value: v}
}

func StringParam(s string) Param {
	return Param{typ: stringType, value: s}
}

// EncodeCall lays out selector, heads, then the tails of dynamic params with
// offsets measured from the start of the argument block.
func EncodeCall(selector []byte, params ...Param) ([]byte, error) {
	args := make(abi.Arguments, len(params))
	values := make([]interface{}, len(params))
	for i, p := range params {
		args[i] = abi.Argument{Type: p.typ}
		values[i] = p.value
	}
	packed, err := args.Pack(values...)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, selector...), packed...), nil
}

func packDepositWithExpiry(vault, asset string, amount *big.Int, memo string, expiry *big.Int) ([]byte, error) {
	vaultAddr, err := parseAddress(vault)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	assetAddr, err := parseAddress(asset)
	if err != nil {
		return nil, fmt.Errorf("asset: %w", err)
	}
	if amount, err = checkUint256(amount); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if expiry, err = checkUint256(expiry); err != nil {
		return nil, fmt.Errorf("expiry: %w", err)
	}
	return parsedContractABI.Pack("depositWithExpiry", vaultAddr, assetAddr, amount, memo, expiry)
}

// packAddressUint encodes the ERC-20 (address, uint256) methods, transfer and approve
func packAddressUint(method, addr string, v *big.Int) ([]byte, error) {
	a, err := parseAddress(addr)
	if err != nil {
		return nil, err
	}
	if v, err = checkUint256(v); err != nil {
		return nil, err
	}
	return parsedContractABI.Pack(method, a, v)
}

func packAllowance(owner, spender string) ([]byte, error) {
	ownerAddr, err := parseAddress(owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	spenderAddr, err := parseAddress(spender)
	if err != nil {
		return nil, fmt.Errorf("spender: %w", err)
	}
	return parsedContractABI.Pack("allowance", ownerAddr, spenderAddr)
}

func unpackAllowance(data []byte) (*big.Int, error) {
	out, err := parsedContractABI.Unpack("allowance", data)
	if err != nil {
		return nil, err
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance type %T", out[0])
	}
	return allowance, nil
}

func packDeposit() ([]byte, error) {
	return parsedContractABI.Pack("deposit")
}

func packWithdraw(amount *big.Int) ([]byte, error) {
	amount, err := checkUint256(amount)
	if err != nil {
		return nil, err
	}
	return parsedContractABI.Pack("withdraw", amount)
}
