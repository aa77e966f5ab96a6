package crypto

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_EncryptDecrypt(t *testing.T) {
	tests := []struct {
		name      string
		cipher    string
		plaintext string
	}{
		{name: "cbc ascii", cipher: AES256CBCName, plaintext: "Jan de Vries"},
		{name: "cbc empty", cipher: AES256CBCName, plaintext: ""},
		{name: "cbc block sized", cipher: AES256CBCName, plaintext: "0123456789abcdef"},
		{name: "cbc unicode", cipher: AES256CBCName, plaintext: "Zoë Müller-Ødegård"},
		{name: "gcm ascii", cipher: AES256GCMName, plaintext: "jan@example.org"},
		{name: "gcm long", cipher: AES256GCMName, plaintext: strings.Repeat("x", 5000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRegistry()
			require.NoError(t, r.Use(tt.cipher))

			encrypted, err := r.Encrypt(tt.plaintext, "secret")
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(encrypted, tt.cipher+Separator))
			assert.True(t, r.IsEncrypted(encrypted))

			decrypted, ok, err := r.Decrypt(encrypted, "secret")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, tt.plaintext, decrypted)
		})
	}
}

func TestRegistry_EncryptIsRandomized(t *testing.T) {
	r := DefaultRegistry()

	first, err := r.Encrypt("same value", "secret")
	require.NoError(t, err)
	second, err := r.Encrypt("same value", "secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestRegistry_DecryptWithOtherRegistryDefault(t *testing.T) {
	gcm := NewRegistry(NewAES256GCM(nil), NewAES256CBC(nil))
	encrypted, err := DefaultRegistry().Encrypt("legacy", "secret")
	require.NoError(t, err)

	decrypted, _, err := gcm.Decrypt(encrypted, "secret")
	require.NoError(t, err)
	assert.Equal(t, "legacy", decrypted)
}

func TestRegistry_DecryptNullMarker(t *testing.T) {
	r := DefaultRegistry()
	encrypted, err := r.Encrypt(NullValue, "secret")
	require.NoError(t, err)

	decrypted, ok, err := r.Decrypt(encrypted, "secret")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, decrypted)
}

func TestRegistry_DecryptErrors(t *testing.T) {
	r := DefaultRegistry()
	cbc, err := r.Encrypt("value", "secret")
	require.NoError(t, err)
	require.NoError(t, r.Use(AES256GCMName))
	gcm, err := r.Encrypt("value", "secret")
	require.NoError(t, err)

	tests := []struct {
		name       string
		value      string
		passphrase string
		wantErr    error
	}{
		{name: "no separator", value: "plain text", passphrase: "secret", wantErr: ErrInvalidFormat},
		{name: "unknown cipher", value: "ROT13$abc", passphrase: "secret", wantErr: ErrUnknownCipher},
		{name: "bad base64", value: AES256CBCName + "$***", passphrase: "secret", wantErr: ErrInvalidFormat},
		{name: "short payload", value: AES256CBCName + "$AAAA", passphrase: "secret", wantErr: ErrInvalidFormat},
		{name: "gcm wrong key", value: gcm, passphrase: "other", wantErr: ErrDecryptionFailed},
		{name: "empty passphrase", value: cbc, passphrase: "", wantErr: ErrEmptyPassphrase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := r.Decrypt(tt.value, tt.passphrase)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegistry_IsEncrypted(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{name: "cbc prefix", value: "AES256CBC$abcd", want: true},
		{name: "gcm prefix", value: "AES256GCM$abcd", want: true},
		{name: "plain", value: "jan@example.org", want: false},
		{name: "unknown prefix", value: "SHA256$abcd", want: false},
		{name: "prefix without separator", value: "AES256CBC", want: false},
		{name: "empty", value: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.IsEncrypted(tt.value))
		})
	}
}

func TestRegistry_Use(t *testing.T) {
	r := DefaultRegistry()
	err := r.Use("ROT13")
	assert.ErrorIs(t, err, ErrUnknownCipher)
	assert.Equal(t, AES256CBCName, r.Default().Name())
}

func TestUnpad(t *testing.T) {
	_, err := unpad([]byte{1, 2, 3, 0}, 16)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = unpad([]byte{1, 2, 3, 2}, 16)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	out, err := unpad([]byte{'a', 'b', 2, 2}, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), out)
}

func TestMaxLength(t *testing.T) {
	tests := []struct {
		cipher string
		n      int
		want   int
	}{
		{cipher: AES256CBCName, n: 0, want: 64},
		{cipher: AES256CBCName, n: 30, want: 128},
		{cipher: AES256CBCName, n: 128, want: 256},
		{cipher: AES256CBCName, n: 254, want: 512},
		{cipher: AES256CBCName, n: 256, want: 512},
		{cipher: AES256GCMName, n: 0, want: 64},
		{cipher: AES256GCMName, n: 15, want: 128},
		{cipher: AES256GCMName, n: 31, want: 128},
		{cipher: AES256GCMName, n: 100, want: 256},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.cipher, tt.n), func(t *testing.T) {
			r := DefaultRegistry()
			require.NoError(t, r.Use(tt.cipher))

			got := r.MaxLength(tt.n)
			assert.Equal(t, tt.want, got)

			encrypted, err := r.Encrypt(strings.Repeat("1", tt.n), "password")
			require.NoError(t, err)
			assert.Len(t, encrypted, len(tt.cipher)+len(Separator)+r.Default().EncodedLen(tt.n))
			assert.LessOrEqual(t, len(encrypted), got)
		})
	}

	assert.Equal(t, DefaultRegistry().MaxLength(100), MaxLength(100))
}

func TestStream_RoundTrip(t *testing.T) {
	r := DefaultRegistry()

	sizes := []int{0, 1, streamChunkSize - 1, streamChunkSize, 3*streamChunkSize + 17}
	for _, size := range sizes {
		data := make([]byte, size)
		_, err := rand.Read(data)
		require.NoError(t, err)

		var encrypted bytes.Buffer
		require.NoError(t, r.EncryptStream(bytes.NewReader(data), &encrypted, "attachment-key"))

		var decrypted bytes.Buffer
		require.NoError(t, r.DecryptStream(&encrypted, &decrypted, "attachment-key"))
		assert.Equal(t, data, decrypted.Bytes(), "size=%d", size)
	}
}

func TestStream_Corrupt(t *testing.T) {
	r := DefaultRegistry()

	var encrypted bytes.Buffer
	require.NoError(t, r.EncryptStream(strings.NewReader("scan of a referral letter"), &encrypted, "k"))

	truncated := encrypted.Bytes()[:encrypted.Len()-3]
	err := r.DecryptStream(bytes.NewReader(truncated), &bytes.Buffer{}, "k")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	err = r.DecryptStream(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff}), &bytes.Buffer{}, "k")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	err = r.DecryptStream(bytes.NewReader(encrypted.Bytes()), &bytes.Buffer{}, "wrong")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}
