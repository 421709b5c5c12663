package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Record is what the ledger remembers about one pipeline run.
type Record struct {
	RunID      string `json:"runId"`
	Pipeline   string `json:"pipeline"`
	Command    string `json:"command"`
	ExitCode   int    `json:"exitCode"`
	StdoutHash string `json:"stdoutHash"`
	StderrHash string `json:"stderrHash"`
	LogPath    string `json:"logPath,omitempty"`
	LogHash    string `json:"logHash,omitempty"`
}

// Block is a tamper-evident, signed ledger entry for one run.
type Block struct {
	Index     int    `json:"index"`
	Timestamp string `json:"timestamp"`
	Record
	AgentID   string `json:"agentId"`
	PrevHash  string `json:"prevHash"`
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
	PubKey    string `json:"pubKey"`
}

// canonicalData returns the bytes the block hash is computed over.
// Hash, Signature and PubKey are excluded.
func (b *Block) canonicalData() ([]byte, error) {
	view := struct {
		Index     int    `json:"index"`
		Timestamp string `json:"timestamp"`
		Record
		AgentID  string `json:"agentId"`
		PrevHash string `json:"prevHash"`
	}{
		Index:     b.Index,
		Timestamp: b.Timestamp,
		Record:    b.Record,
		AgentID:   b.AgentID,
		PrevHash:  b.PrevHash,
	}
	return json.Marshal(view)
}

// ComputeHash calculates sha256 over the canonical data.
func (b *Block) ComputeHash() (string, error) {
	data, err := b.canonicalData()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// NewBlock constructs a block and computes its hash. It is not signed yet.
func NewBlock(index int, rec Record, prevHash, agentID string) (*Block, error) {
	blk := &Block{
		Index:     index,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Record:    rec,
		AgentID:   agentID,
		PrevHash:  prevHash,
	}

	h, err := blk.ComputeHash()
	if err != nil {
		return nil, fmt.Errorf("compute block hash: %w", err)
	}
	blk.Hash = h
	return blk, nil
}
