package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	streamChunkSize = 64 * 1024
	// maxChunkSize bounds the length header so a corrupt stream cannot force
	// a huge allocation.
	maxChunkSize = 10 * 1024 * 1024
)

// encryptStream writes each chunk as a 4-byte big-endian length followed by
// the GCM-sealed chunk.
func encryptStream(src io.Reader, dst io.Writer, key [32]byte) error {
	buf := make([]byte, streamChunkSize)
	header := make([]byte, 4)
	for {
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			sealed, serr := sealGCM(rand.Reader, buf[:n], key)
			if serr != nil {
				return fmt.Errorf("failed to encrypt chunk: %w", serr)
			}
			binary.BigEndian.PutUint32(header, uint32(len(sealed)))
			if _, werr := dst.Write(header); werr != nil {
				return fmt.Errorf("failed to write chunk length: %w", werr)
			}
			if _, werr := dst.Write(sealed); werr != nil {
				return fmt.Errorf("failed to write chunk: %w", werr)
			}
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("failed to read from input stream: %w", err)
		}
	}
}

func decryptStream(src io.Reader, dst io.Writer, key [32]byte) error {
	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(src, header); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: truncated chunk length: %w", ErrInvalidFormat, err)
		}
		length := binary.BigEndian.Uint32(header)
		if length == 0 || length > maxChunkSize {
			return fmt.Errorf("%w: chunk size %d", ErrInvalidFormat, length)
		}
		sealed := make([]byte, length)
		if _, err := io.ReadFull(src, sealed); err != nil {
			return fmt.Errorf("%w: truncated chunk: %w", ErrInvalidFormat, err)
		}
		plaintext, err := openGCM(sealed, key)
		if err != nil {
			return fmt.Errorf("failed to decrypt chunk: %w", err)
		}
		if _, err := dst.Write(plaintext); err != nil {
			return fmt.Errorf("failed to write to output stream: %w", err)
		}
	}
}
