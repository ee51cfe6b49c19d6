// internal/stellar/strkey.go
package stellar

import (
	"crypto/ed25519"
	"encoding/base32"
	"fmt"
)

// Strkey account ids are base32("G" version byte + 32-byte ed25519 public
// key + CRC16-XMODEM checksum), always 56 characters starting with G.
const accountIDVersionByte = 6 << 3 // 0x30, yields leading 'G'

var strkeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// EncodeAccountID renders an ed25519 public key as a strkey account id.
func EncodeAccountID(pub ed25519.PublicKey) string {
	payload := make([]byte, 0, 35)
	payload = append(payload, accountIDVersionByte)
	payload = append(payload, pub...)
	checksum := crc16(payload)
	payload = append(payload, byte(checksum&0xFF), byte(checksum>>8))
	return strkeyEncoding.EncodeToString(payload)
}

// DecodeAccountID extracts the ed25519 public key from a strkey account id,
// verifying the version byte and checksum.
func DecodeAccountID(address string) (ed25519.PublicKey, error) {
	if len(address) != 56 {
		return nil, fmt.Errorf("account id must be 56 characters, got %d", len(address))
	}
	raw, err := strkeyEncoding.DecodeString(address)
	if err != nil {
		return nil, fmt.Errorf("account id is not valid base32: %w", err)
	}
	if len(raw) != 35 {
		return nil, fmt.Errorf("account id payload has unexpected length %d", len(raw))
	}
	if raw[0] != accountIDVersionByte {
		return nil, fmt.Errorf("account id has wrong version byte 0x%02x", raw[0])
	}
	payload, checksum := raw[:33], uint16(raw[33])|uint16(raw[34])<<8
	if crc16(payload) != checksum {
		return nil, fmt.Errorf("account id checksum mismatch")
	}
	return ed25519.PublicKey(raw[1:33]), nil
}

// IsValidAccountID reports whether address is a well-formed strkey account id.
func IsValidAccountID(address string) bool {
	_, err := DecodeAccountID(address)
	return err == nil
}

// crc16 implements CRC16-XMODEM (poly 0x1021, initial 0x0000).
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
