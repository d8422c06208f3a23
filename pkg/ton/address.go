// Package ton holds the TON specific helpers: user-friendly addresses,
// nano-unit amounts, mnemonic key derivation and the wallet service client.
package ton

import (
	"encoding/base64"
	"encoding/binary"
	"strings"

	"github.com/raykavin/tonpairs/pkg/core"
)

// AddressLength is the length of a user-friendly address
const AddressLength = 48

const (
	tagBounceable    = 0x11
	tagNonBounceable = 0x51
	tagTestOnly      = 0x80

	workchainBasic  = 0x00
	workchainMaster = 0xff
)

var urlSafe = strings.NewReplacer("+", "-", "/", "_")

// ValidateAddress checks that addr is a 48 character user-friendly address
// in either base64 alphabet, with a known tag and workchain and a matching
// checksum
func ValidateAddress(addr string) error {
	if len(addr) != AddressLength {
		return core.NewValidationError("address", "%q must have %d characters", addr, AddressLength)
	}

	raw, err := base64.RawURLEncoding.DecodeString(urlSafe.Replace(addr))
	if err != nil || len(raw) != 36 {
		return core.NewValidationError("address", "%q is not a base64 address", addr)
	}

	if tag := raw[0] &^ tagTestOnly; tag != tagBounceable && tag != tagNonBounceable {
		return core.NewValidationError("address", "%q has an unknown tag", addr)
	}
	if raw[1] != workchainBasic && raw[1] != workchainMaster {
		return core.NewValidationError("address", "%q has an unknown workchain", addr)
	}
	if binary.BigEndian.Uint16(raw[34:]) != crc16(raw[:34]) {
		return core.NewValidationError("address", "%q has a bad checksum", addr)
	}

	return nil
}

// ValidatePairAddress additionally requires the bounceable "EQ" prefix,
// compared case-insensitively
func ValidatePairAddress(addr string) error {
	if len(addr) < 2 || !strings.EqualFold(addr[:2], "EQ") {
		return core.NewValidationError("contract address", "%q must start with EQ", addr)
	}
	return ValidateAddress(addr)
}

// EncodeAddress renders a workchain/account hash pair as a user-friendly
// base64url address
func EncodeAddress(workchain int8, hash [32]byte, bounceable bool) string {
	tag := byte(tagNonBounceable)
	if bounceable {
		tag = tagBounceable
	}
	return encodeAddress(tag, workchain, hash)
}

func encodeAddress(tag byte, workchain int8, hash [32]byte) string {
	raw := make([]byte, 0, 36)
	raw = append(raw, tag, byte(workchain))
	raw = append(raw, hash[:]...)
	raw = binary.BigEndian.AppendUint16(raw, crc16(raw))

	return base64.RawURLEncoding.EncodeToString(raw)
}

// crc16 is CRC-16/XMODEM as used by user-friendly addresses
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
