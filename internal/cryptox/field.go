package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// NonceSize is the length of the random IV generated for every encryption.
const NonceSize = aes.BlockSize

const envelopeSeparator = ":"

var (
	// ErrMalformedEnvelope means the stored value is not "hex(iv):hex(ciphertext)"
	// with a full-block ciphertext.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrBadPaddingOrKey means decryption ran but the result was not a valid
	// padded UTF-8 string, which is what a wrong key or corrupted data produce.
	ErrBadPaddingOrKey = errors.New("bad padding or key")

	ErrInvalidKeySize = fmt.Errorf("key must be %d bytes", KeySize)
)

// randReader is the nonce source. Tests may swap it; production code must
// only ever use crypto/rand.
var randReader io.Reader = rand.Reader

// EncryptField encrypts plaintext with AES-256-CBC and PKCS#7 padding under a
// fresh random IV and returns the envelope "hex(iv):hex(ciphertext)".
func EncryptField(plaintext string, key []byte) (string, error) {
	if len(key) != KeySize {
		return "", ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}

	iv := make([]byte, NonceSize)
	if _, err := io.ReadFull(randReader, iv); err != nil {
		return "", fmt.Errorf("rand iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + envelopeSeparator + hex.EncodeToString(ciphertext), nil
}

// DecryptField reverses EncryptField. It returns ErrMalformedEnvelope for
// values that cannot be parsed and ErrBadPaddingOrKey when the decrypted bytes
// fail padding or UTF-8 validation.
//
// CBC carries no MAC: a modified IV or ciphertext can still decrypt to a
// valid but different string. Only padding and encoding damage is detected.
func DecryptField(envelope string, key []byte) (string, error) {
	if len(key) != KeySize {
		return "", ErrInvalidKeySize
	}

	iv, ciphertext, err := ParseEnvelope(envelope)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plaintext) {
		return "", ErrBadPaddingOrKey
	}

	return string(plaintext), nil
}

// ParseEnvelope splits and hex-decodes an envelope, checking the IV length
// and that the ciphertext is a non-empty whole number of blocks.
func ParseEnvelope(envelope string) (iv, ciphertext []byte, err error) {
	parts := strings.Split(envelope, envelopeSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, nil, ErrMalformedEnvelope
	}

	iv, err = hex.DecodeString(parts[0])
	if err != nil || len(iv) != NonceSize {
		return nil, nil, ErrMalformedEnvelope
	}

	ciphertext, err = hex.DecodeString(parts[1])
	if err != nil || len(ciphertext)%aes.BlockSize != 0 {
		return nil, nil, ErrMalformedEnvelope
	}

	return iv, ciphertext, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrBadPaddingOrKey
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, ErrBadPaddingOrKey
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrBadPaddingOrKey
		}
	}
	return data[:len(data)-n], nil
}
