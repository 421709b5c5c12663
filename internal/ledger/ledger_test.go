package ledger

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shellpipe/internal/security"
	"shellpipe/pkg/utils"
)

func newKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := security.GenerateKeyPair()
	require.NoError(t, err)
	return pub, priv
}

func record(cmd, stdout string) Record {
	return Record{
		RunID:      "run-" + cmd,
		Pipeline:   "test",
		Command:    cmd,
		StdoutHash: utils.HashBytes([]byte(stdout)),
		StderrHash: utils.HashBytes(nil),
	}
}

func TestNewBlockAndHash(t *testing.T) {
	blk, err := NewBlock(0, record("echo hi", "hi\n"), "", "test-agent")
	require.NoError(t, err)

	h, err := blk.ComputeHash()
	require.NoError(t, err)
	assert.Equal(t, blk.Hash, h)
}

func TestAppendAndVerify(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.jsonl"))
	require.NoError(t, err)
	pub, priv := newKeys(t)

	b1, err := l.Append(record("ls", "a\nb\n"), "agent1", priv, pub)
	require.NoError(t, err)
	b2, err := l.Append(record("ls | grep a", "a\n"), "agent1", priv, pub)
	require.NoError(t, err)

	assert.Equal(t, 0, b1.Index)
	assert.Equal(t, 1, b2.Index)
	assert.Equal(t, b1.Hash, b2.PrevHash)
	assert.Equal(t, 2, l.NextIndex())
	assert.Equal(t, b2.Hash, l.LastHash())
	assert.NoError(t, l.VerifyChain(pub))
}

func TestAppendRejectsBrokenLink(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.jsonl"))
	require.NoError(t, err)
	pub, priv := newKeys(t)

	_, err = l.Append(record("true", ""), "agent1", priv, pub)
	require.NoError(t, err)

	orphan, err := NewBlock(1, record("false", ""), "not-the-last-hash", "agent1")
	require.NoError(t, err)
	assert.Error(t, l.appendLocked(orphan, priv, pub))
	assert.Equal(t, 1, l.NextIndex())
}

func TestAppendRequiresKey(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.jsonl"))
	require.NoError(t, err)

	_, err = l.Append(record("true", ""), "agent1", nil, nil)
	assert.Error(t, err)
	assert.Equal(t, 0, l.NextIndex())
}

func TestTamperingDetection(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.jsonl"))
	require.NoError(t, err)
	pub, priv := newKeys(t)

	_, err = l.Append(record("echo deploy", "deploy\n"), "agentX", priv, pub)
	require.NoError(t, err)
	require.NoError(t, l.VerifyChain(pub))

	l.Blocks()[0].StdoutHash = "fakehash"
	assert.Error(t, l.VerifyChain(pub))
}

func TestForgedSignatureDetected(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.jsonl"))
	require.NoError(t, err)
	pub, priv := newKeys(t)
	otherPub, _ := newKeys(t)

	_, err = l.Append(record("id", "uid=0\n"), "agentX", priv, pub)
	require.NoError(t, err)

	// Re-point the block at a different key; the signature no longer matches.
	l.Blocks()[0].PubKey = hex.EncodeToString(otherPub)
	assert.Error(t, l.VerifyChain(pub))
}

func TestResignedRecordWithForeignKeyRejected(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.jsonl"))
	require.NoError(t, err)
	pub, priv := newKeys(t)
	forgerPub, forgerPriv := newKeys(t)

	rec := record("make test", "FAIL\n")
	rec.ExitCode = 1
	_, err = l.Append(rec, "agentX", priv, pub)
	require.NoError(t, err)
	require.NoError(t, l.VerifyChain(pub))

	// Rewrite the outcome and make the block internally consistent again
	// under a key the forger controls.
	blk := l.Blocks()[0]
	blk.ExitCode = 0
	blk.Hash, err = blk.ComputeHash()
	require.NoError(t, err)
	blk.Signature = security.SignData(forgerPriv, []byte(blk.Hash))
	blk.PubKey = hex.EncodeToString(forgerPub)

	assert.NoError(t, l.VerifyChain(forgerPub), "the forged block is self-consistent")
	err = l.VerifyChain(pub)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "untrusted signer")
}

func TestVerifyChainRequiresTrustedKey(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.jsonl"))
	require.NoError(t, err)

	assert.Error(t, l.VerifyChain(nil))
	assert.Error(t, l.VerifyChain(ed25519.PublicKey("short")))
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, err := OpenLedger(path)
	require.NoError(t, err)
	pub, priv := newKeys(t)

	_, err = l.Append(record("go build", ""), "agentY", priv, pub)
	require.NoError(t, err)

	reopened, err := OpenLedger(path)
	require.NoError(t, err)
	require.Len(t, reopened.Blocks(), 1)
	assert.Equal(t, "go build", reopened.Blocks()[0].Command)
	assert.NoError(t, reopened.VerifyChain(pub))
}

func TestOpenLedgerRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := OpenLedger(path)
	assert.Error(t, err)
}
