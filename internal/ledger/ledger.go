package ledger

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"shellpipe/internal/security"
)

// Ledger is an append-only chain of run blocks persisted as JSON lines.
type Ledger struct {
	mu     sync.Mutex
	blocks []*Block
	path   string
}

// OpenLedger loads an existing ledger file or creates an empty one.
func OpenLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		return l, f.Close()
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var blk Block
		if err := dec.Decode(&blk); err != nil {
			return nil, fmt.Errorf("decode ledger entry %d: %w", len(l.blocks), err)
		}
		l.blocks = append(l.blocks, &blk)
	}
	return l, nil
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

// Append creates the next block for rec, signs it and persists it.
func (l *Ledger) Append(rec Record, agentID string, priv ed25519.PrivateKey, pub ed25519.PublicKey) (*Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	blk, err := NewBlock(len(l.blocks), rec, l.lastHash(), agentID)
	if err != nil {
		return nil, err
	}
	if err := l.appendLocked(blk, priv, pub); err != nil {
		return nil, err
	}
	return blk, nil
}

func (l *Ledger) appendLocked(b *Block, priv ed25519.PrivateKey, pub ed25519.PublicKey) error {
	if len(priv) == 0 {
		return errors.New("private key is empty, cannot sign block")
	}

	h, err := b.ComputeHash()
	if err != nil {
		return fmt.Errorf("recompute block hash: %w", err)
	}
	b.Hash = h

	if last := l.lastHash(); b.PrevHash != last {
		return fmt.Errorf("prevHash mismatch: expected %q, got %q", last, b.PrevHash)
	}

	b.Signature = security.SignData(priv, []byte(b.Hash))
	b.PubKey = hex.EncodeToString(pub)

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(b); err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}

	l.blocks = append(l.blocks, b)
	return nil
}

// Blocks returns the blocks in order. The pointers are shared with the ledger.
func (l *Ledger) Blocks() []*Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Block(nil), l.blocks...)
}

// NextIndex returns the index the next block will get.
func (l *Ledger) NextIndex() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.blocks)
}

// LastHash returns the last block hash, or "" for an empty ledger.
func (l *Ledger) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastHash()
}

func (l *Ledger) lastHash() string {
	if len(l.blocks) == 0 {
		return ""
	}
	return l.blocks[len(l.blocks)-1].Hash
}
