package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefix for plan digests. The version suffix leaves room for
// algorithm migration without colliding with old digests.
const digestDomain = "docsmith/plan/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data). The null separator
// keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content-addressed digest of a plan. The digest
// field itself is excluded; everything else, including the project root,
// participates, so the digest is stable per checkout and per configuration.
func Fingerprint(p *Plan) (string, error) {
	shadow := *p
	shadow.Digest = ""
	canonical, err := MarshalCanonical(&shadow)
	if err != nil {
		return "", fmt.Errorf("plan fingerprint: %w", err)
	}
	return hashWithDomain(digestDomain, canonical), nil
}
