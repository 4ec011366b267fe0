package ledger

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ZeroAddress is never a valid payee.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

var (
	ErrAddressFormat   = errors.New("address must be 0x followed by 40 hex characters")
	ErrAddressZero     = errors.New("zero address is not payable")
	ErrAddressChecksum = errors.New("address checksum mismatch")
)

// ValidateAddress accepts all-lowercase or all-uppercase hex addresses and
// mixed-case addresses whose casing matches the EIP-55 checksum.
func ValidateAddress(address string) error {
	addr := strings.TrimSpace(address)
	if len(addr) != 42 || !(strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X")) {
		return ErrAddressFormat
	}
	body := addr[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return ErrAddressFormat
	}
	if strings.EqualFold(addr, ZeroAddress) {
		return ErrAddressZero
	}
	lower, upper := strings.ToLower(body), strings.ToUpper(body)
	if body == lower || body == upper {
		return nil
	}
	if ChecksumAddress(addr) != "0x"+body {
		return ErrAddressChecksum
	}
	return nil
}

// IsPayableAddress reports whether address can receive a transfer.
func IsPayableAddress(address string) bool {
	return ValidateAddress(address) == nil
}

// ChecksumAddress returns the EIP-55 mixed-case form of a 20-byte hex address.
func ChecksumAddress(address string) string {
	body := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(address), "0x"), "0X"))
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(body))
	digest := hex.EncodeToString(hasher.Sum(nil))

	out := make([]byte, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}
