package crypto

import "errors"

var (
	ErrUnknownCipher    = errors.New("unknown cipher")
	ErrInvalidFormat    = errors.New("invalid ciphertext format")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrEmptyPassphrase  = errors.New("empty passphrase")
)
