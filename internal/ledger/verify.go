package ledger

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"shellpipe/internal/security"
)

// VerifyChain recomputes every hash, link and index, and checks that every
// block was signed by trusted. A block carrying any other public key fails
// even when its signature is valid for that key.
func (l *Ledger) VerifyChain(trusted ed25519.PublicKey) error {
	if len(trusted) != ed25519.PublicKeySize {
		return errors.New("trusted public key is missing or has the wrong size")
	}
	trustedHex := hex.EncodeToString(trusted)

	l.mu.Lock()
	defer l.mu.Unlock()

	for i, b := range l.blocks {
		if b.Index != i {
			return fmt.Errorf("index mismatch: expected %d, got %d", i, b.Index)
		}

		h, err := b.ComputeHash()
		if err != nil {
			return fmt.Errorf("compute hash for index %d: %w", i, err)
		}
		if h != b.Hash {
			return fmt.Errorf("hash mismatch at index %d", i)
		}

		if i > 0 && b.PrevHash != l.blocks[i-1].Hash {
			return fmt.Errorf("prev hash mismatch at index %d", i)
		}

		if b.PubKey != trustedHex {
			return fmt.Errorf("untrusted signer at index %d", i)
		}
		ok, err := security.VerifySignature(trusted, []byte(b.Hash), b.Signature)
		if err != nil {
			return fmt.Errorf("signature at index %d: %w", i, err)
		}
		if !ok {
			return fmt.Errorf("bad signature at index %d", i)
		}
	}
	return nil
}
