package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/harvest-keeper/internal/apperror"
)

var (
	stratA = common.HexToAddress("0xC59601F0CC49baa266891b7fc63d2D5FE097A79D")
	stratB = common.HexToAddress("0x2EE856843bB65c244F527ad302d6d2853921727e")
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keeper.toml")

	s, err := Open(path)
	require.NoError(t, err)

	ts, err := s.LastHarvest(context.Background(), stratA)
	require.NoError(t, err)
	assert.Zero(t, ts)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "open must not create the file")
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keeper.toml")
	s, err := Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.RecordHarvest(ctx, stratA, 1_700_000_000))

	reopened, err := Open(path)
	require.NoError(t, err)
	ts, err := reopened.LastHarvest(ctx, stratA)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000), ts)
}

func TestFileStore_KeepsUnrelatedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keeper.toml")
	other := "'" + stratB.Hex() + "' = 1600000000\n"
	require.NoError(t, os.WriteFile(path, []byte(other), 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordHarvest(context.Background(), stratA, 1_700_000_000))

	entries, err := s.Entries()
	require.NoError(t, err)
	assert.Equal(t, map[common.Address]int64{
		stratA: 1_700_000_000,
		stratB: 1_600_000_000,
	}, entries)
}

func TestFileStore_LowercaseKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keeper.toml")
	lower := "'" + "0xc59601f0cc49baa266891b7fc63d2d5fe097a79d" + "' = 1650000000\n"
	require.NoError(t, os.WriteFile(path, []byte(lower), 0o600))

	s, err := Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	ts, err := s.LastHarvest(ctx, stratA)
	require.NoError(t, err)
	assert.Equal(t, int64(1_650_000_000), ts)

	require.NoError(t, s.RecordHarvest(ctx, stratA, 1_700_000_000))
	entries, err := s.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, int64(1_700_000_000), entries[stratA])
}

func TestFileStore_NeverMovesBackwards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keeper.toml")
	s, err := Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.RecordHarvest(ctx, stratA, 2000))
	require.NoError(t, s.RecordHarvest(ctx, stratA, 1000))

	ts, err := s.LastHarvest(ctx, stratA)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), ts)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keeper.toml")
	require.NoError(t, os.WriteFile(path, []byte("this is = = not toml"), 0o600))

	_, err := Open(path)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeStateCorrupt))
}

func TestFileStore_CorruptAfterOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keeper.toml")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("[[[broken"), 0o600))

	ctx := context.Background()
	_, err = s.LastHarvest(ctx, stratA)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDataUnavailable))

	err = s.RecordHarvest(ctx, stratA, 1)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeStateWriteFailed))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[[[broken", string(raw), "a failed write leaves the file untouched")
}

func TestFileStore_WriteFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	s := &FileStore{path: filepath.Join(dir, "keeper.toml")}

	err := s.RecordHarvest(context.Background(), stratA, 1)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeStateWriteFailed))
}
