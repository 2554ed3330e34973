package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

// magic prefixes every encrypted snapshot so foreign files are rejected early.
var magic = []byte("SHOPLIST1")

var (
	ErrNotBackup       = errors.New("not a shoplist backup")
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted backup")
)

// GenerateSalt returns 16 cryptographically random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a 32-byte AES-256 key from a passphrase and salt using Argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext under a key derived from passphrase with a fresh salt.
// Layout: [magic][16-byte salt][12-byte nonce][AES-256-GCM ciphertext]
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	header := make([]byte, 0, len(magic)+saltSize+nonceSize)
	header = append(header, magic...)
	header = append(header, salt...)
	header = append(header, nonce...)

	// The header is authenticated along with the payload.
	out := make([]byte, len(header), len(header)+len(plaintext)+gcm.Overhead())
	copy(out, header)
	return gcm.Seal(out, nonce, plaintext, header), nil
}

// Decrypt reverses Encrypt.
func Decrypt(data []byte, passphrase string) ([]byte, error) {
	header := len(magic) + saltSize + nonceSize
	if len(data) < header || string(data[:len(magic)]) != string(magic) {
		return nil, ErrNotBackup
	}

	salt := data[len(magic) : len(magic)+saltSize]
	nonce := data[len(magic)+saltSize : header]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, data[header:], data[:header])
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}
