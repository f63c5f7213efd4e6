package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"

	"github.com/glowlens/glowlens-reliability/internal/models"
)

// hashKey produces a stable hex digest over the given chunks so that
// logically identical inputs always map to the same cache key.
func hashKey(chunks ...[]byte) string {
	h := sha256.New()
	for _, chunk := range chunks {
		h.Write(chunk)
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func profileFingerprint(p models.DemographicProfile) []byte {
	return []byte(strings.ToLower(p.Ethnicity) + "|" + strings.ToLower(p.SkinType) + "|" + strings.ToLower(p.AgeGroup))
}

func vectorBytes(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
