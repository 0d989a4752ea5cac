package execution

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/ggonzalez94/swapx/internal/errors"
)

// AppendSignature splices a permit signature onto swap calldata the way the
// settlement contract expects: original calldata, then the signature's byte
// length as a 32-byte big-endian word, then the signature bytes.
func AppendSignature(callData, sig []byte) ([]byte, error) {
	if len(sig) == 0 {
		return nil, clierr.New(clierr.CodeAssembly, "cannot assemble transaction: missing permit signature")
	}
	if len(callData) == 0 {
		return nil, clierr.New(clierr.CodeAssembly, "cannot assemble transaction: missing transaction call data")
	}
	length := common.LeftPadBytes(big.NewInt(int64(len(sig))).Bytes(), 32)
	out := make([]byte, 0, len(callData)+32+len(sig))
	out = append(out, callData...)
	out = append(out, length...)
	out = append(out, sig...)
	return out, nil
}

// DecodeHex parses 0x-prefixed or bare hex into bytes. An empty input
// decodes to an empty slice.
func DecodeHex(v string) ([]byte, error) {
	clean := strings.TrimSpace(v)
	clean = strings.TrimPrefix(clean, "0x")
	if clean == "" {
		return []byte{}, nil
	}
	if len(clean)%2 != 0 {
		clean = "0" + clean
	}
	buf, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return buf, nil
}
