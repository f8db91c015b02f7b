// Package cryptox implements the field-level encryption used for vault
// secrets at rest: a fixed-size key taken from the configured secret and an
// AES-256-CBC cipher whose output is a printable "hex(iv):hex(ciphertext)"
// envelope.
package cryptox

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// DeriveKey turns the configured secret into a KeySize-byte key by taking its
// UTF-8 bytes and right-padding them with zeros, or truncating them to the
// first KeySize bytes.
//
// This is not a KDF. It exists so keys match envelopes already stored by
// earlier deployments; an empty secret yields an all-zero key.
func DeriveKey(secret string) []byte {
	key := make([]byte, KeySize)
	copy(key, secret)
	return key
}
