package snapshot

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"

	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// Encode serializes a state as an LZ4 frame and returns it with the hex
// BLAKE3-256 checksum of the compressed bytes.
func Encode(s *State) ([]byte, string, error) {
	s.Version = CurrentVersion
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, "", fmt.Errorf("marshal snapshot: %w", err)
	}
	blob, err := compress(raw)
	if err != nil {
		return nil, "", err
	}
	return blob, Checksum(blob), nil
}

// Decode verifies the checksum, decompresses, and parses a blob.
func Decode(blob []byte, checksum, homeID string) (*State, error) {
	if got := Checksum(blob); got != checksum {
		return nil, domain.NewEngineError(domain.ErrSnapshotCorrupt.Code,
			fmt.Sprintf("%s: have %s, want %s", domain.ErrSnapshotCorrupt.Message, got, checksum))
	}
	raw, err := decompress(blob)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrSnapshotCorrupt.Code, "decompress snapshot", err)
	}
	return Parse(raw, homeID)
}

// Checksum is the hex BLAKE3-256 digest of data.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, fmt.Errorf("lz4 write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zr := lz4.NewReader(bytes.NewReader(src))
	if _, err := io.Copy(&buf, zr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
