/*
Package scripts builds and parses standard verification scripts of signature
and multisignature accounts.
*/
package scripts

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/nspcc-dev/neoexec/interop/interopnames"
)

const (
	// PublicKeyLen is the length of the compressed public key.
	PublicKeyLen = 33
	// MaxMultisigKeys is the maximum number of keys in multisig account.
	MaxMultisigKeys = 1024
)

var (
	checkSigID      = interopnames.ToID([]byte(interopnames.SystemCryptoCheckSig))
	checkMultisigID = interopnames.ToID([]byte(interopnames.SystemCryptoCheckMultisig))
)

// Errors returned on script creation and parsing.
var (
	ErrInvalidThreshold = errors.New("invalid threshold")
	ErrInvalidAddress   = errors.New("invalid address")
)

// SignatureRedeemScript returns verification script of the standard
// signature account.
func SignatureRedeemScript(pub []byte) []byte {
	b := make([]byte, 0, 40)
	b = append(b, byte(opcode.PUSHDATA1), byte(len(pub)))
	b = append(b, pub...)
	b = append(b, byte(opcode.SYSCALL))
	return binary.LittleEndian.AppendUint32(b, checkSigID)
}

// SignatureScriptHash returns hash of the signature account.
func SignatureScriptHash(pub []byte) util.Uint160 {
	return hash.Hash160(SignatureRedeemScript(pub))
}

// MultisigRedeemScript returns verification script of m-out-of-len(pubs)
// multisig account. Keys are sorted.
func MultisigRedeemScript(m int, pubs keys.PublicKeys) ([]byte, error) {
	n := len(pubs)
	if m < 1 || m > n || n > MaxMultisigKeys {
		return nil, fmt.Errorf("%w: %d out of %d", ErrInvalidThreshold, m, n)
	}

	sorted := slices.Clone(pubs)
	slices.SortFunc(sorted, func(a, b *keys.PublicKey) int { return a.Cmp(b) })

	var b bytes.Buffer
	pushInt(&b, m)
	for _, pub := range sorted {
		raw := pub.Bytes()
		b.WriteByte(byte(opcode.PUSHDATA1))
		b.WriteByte(byte(len(raw)))
		b.Write(raw)
	}
	pushInt(&b, n)
	b.WriteByte(byte(opcode.SYSCALL))
	b.Write(binary.LittleEndian.AppendUint32(nil, checkMultisigID))
	return b.Bytes(), nil
}

func pushInt(b *bytes.Buffer, n int) {
	switch {
	case n <= 16:
		b.WriteByte(byte(opcode.PUSH0) + byte(n))
	case n <= 0x7f:
		b.WriteByte(byte(opcode.PUSHINT8))
		b.WriteByte(byte(n))
	default:
		b.WriteByte(byte(opcode.PUSHINT16))
		b.Write(binary.LittleEndian.AppendUint16(nil, uint16(n)))
	}
}

// ParseSignatureContract returns public key of the standard signature
// script.
func ParseSignatureContract(script []byte) ([]byte, bool) {
	if len(script) != 40 || script[0] != byte(opcode.PUSHDATA1) || script[1] != PublicKeyLen ||
		script[35] != byte(opcode.SYSCALL) || binary.LittleEndian.Uint32(script[36:]) != checkSigID {
		return nil, false
	}
	return script[2:35], true
}

// IsSignatureContract checks whether script is a standard signature script.
func IsSignatureContract(script []byte) bool {
	_, ok := ParseSignatureContract(script)
	return ok
}

func parseInt(script []byte, i int) (int, int, bool) {
	if i >= len(script) {
		return 0, 0, false
	}
	switch op := opcode.Opcode(script[i]); {
	case op >= opcode.PUSH1 && op <= opcode.PUSH16:
		return int(op - opcode.PUSH0), i + 1, true
	case op == opcode.PUSHINT8 && i+1 < len(script):
		return int(script[i+1]), i + 2, true
	case op == opcode.PUSHINT16 && i+2 < len(script):
		return int(binary.LittleEndian.Uint16(script[i+1:])), i + 3, true
	default:
		return 0, 0, false
	}
}

// ParseMultisigContract returns threshold and public keys in the declared order
// of the standard multisig script.
func ParseMultisigContract(script []byte) (int, [][]byte, bool) {
	m, i, ok := parseInt(script, 0)
	if !ok || m < 1 || m > MaxMultisigKeys {
		return 0, nil, false
	}

	var pubs [][]byte
	for i+2+PublicKeyLen <= len(script) && script[i] == byte(opcode.PUSHDATA1) && script[i+1] == PublicKeyLen {
		pubs = append(pubs, script[i+2:i+2+PublicKeyLen])
		i += 2 + PublicKeyLen
	}

	n, i, ok := parseInt(script, i)
	if !ok || n != len(pubs) || n < m {
		return 0, nil, false
	}
	if len(script) != i+5 || script[i] != byte(opcode.SYSCALL) ||
		binary.LittleEndian.Uint32(script[i+1:]) != checkMultisigID {
		return 0, nil, false
	}
	return m, pubs, true
}

// IsMultisigContract checks whether script is a standard multisig script.
func IsMultisigContract(script []byte) bool {
	_, _, ok := ParseMultisigContract(script)
	return ok
}

// VerifyOrdered checks that sigs are valid signatures of distinct keys from
// pubs listed in the same relative order. The walk is linear: every key is
// tried at most once, and it stops as soon as the remaining keys can't cover
// the remaining signatures.
func VerifyOrdered(pubs [][]byte, sigs [][]byte, verify func(pub, sig []byte) bool) bool {
	m, n := len(sigs), len(pubs)
	if m == 0 || m > n {
		return false
	}
	for i, j := 0, 0; i < m && j < n; j++ {
		if verify(pubs[j], sigs[i]) {
			i++
			if i == m {
				return true
			}
		}
		if m-i > n-j-1 {
			return false
		}
	}
	return false
}

// AddressFromHash returns Base58Check address of the script hash.
func AddressFromHash(version byte, h util.Uint160) string {
	b := append([]byte{version}, h.BytesBE()...)
	return base58.Encode(append(b, hash.Checksum(b)...))
}

// HashFromAddress decodes script hash from the Base58Check address.
func HashFromAddress(version byte, addr string) (util.Uint160, error) {
	b, err := base58.Decode(addr)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(b) != 1+util.Uint160Size+4 || b[0] != version {
		return util.Uint160{}, ErrInvalidAddress
	}
	if !bytes.Equal(hash.Checksum(b[:len(b)-4]), b[len(b)-4:]) {
		return util.Uint160{}, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}
	return util.Uint160DecodeBytesBE(b[1 : 1+util.Uint160Size])
}
