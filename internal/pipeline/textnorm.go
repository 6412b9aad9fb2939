package pipeline

import (
	"crypto/sha1"
	"encoding/hex"
	"hash/fnv"
	"math/bits"
	"regexp"
	"strings"
	"unicode/utf8"
)

const simhashBits = 64

var (
	htmlTagRegex      = regexp.MustCompile(`<[^>]+>`)
	nonWordSpaceRegex = regexp.MustCompile(`[^\w\s]`)
	whitespaceRegex   = regexp.MustCompile(`\s+`)
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "can": {}, "this": {},
	"that": {}, "these": {}, "those": {},
}

// NormalizeText lower-cases, strips HTML tags and punctuation,
// collapses whitespace, and drops stop words and tokens of length <= 2.
// Idempotent: NormalizeText(NormalizeText(t)) == NormalizeText(t).
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}

	normalized := strings.ToLower(text)
	normalized = htmlTagRegex.ReplaceAllString(normalized, " ")
	normalized = nonWordSpaceRegex.ReplaceAllString(normalized, " ")
	normalized = whitespaceRegex.ReplaceAllString(normalized, " ")

	fields := strings.Fields(normalized)
	kept := make([]string, 0, len(fields))
	for _, word := range fields {
		if _, stop := stopWords[word]; stop {
			continue
		}
		if utf8.RuneCountInString(word) <= 2 {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

// PrepareContent joins the normalized headline and body with a "|||"
// separator so headline tokens cannot bleed into body tokens and
// produce a false equality.
func PrepareContent(headline, text string) string {
	return NormalizeText(headline) + "|||" + NormalizeText(text)
}

// ContentDigest returns the SHA-1 hex digest of normalized content.
// Empty input maps to the empty digest; callers must special-case
// empty/empty instead of relying on digest equality.
func ContentDigest(normalized string) string {
	if normalized == "" {
		return ""
	}
	sum := sha1.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Simhash computes a 64-bit SimHash over whitespace tokens of already
// normalized content. Empty content hashes to 0.
func Simhash(normalized string) uint64 {
	words := strings.Fields(normalized)
	if len(words) == 0 {
		return 0
	}

	var votes [simhashBits]int
	for _, word := range words {
		h := hashToken64(word)
		for bit := 0; bit < simhashBits; bit++ {
			if h&(uint64(1)<<bit) != 0 {
				votes[bit]++
			} else {
				votes[bit]--
			}
		}
	}

	var result uint64
	for bit := 0; bit < simhashBits; bit++ {
		if votes[bit] > 0 {
			result |= uint64(1) << bit
		}
	}
	return result
}

func hashToken64(token string) uint64 {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(token))
	return hasher.Sum64()
}

// HammingDistance counts differing bits between two hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// SimilarityFromHamming maps a Hamming distance over 64-bit hashes to
// a [0,1] similarity score.
func SimilarityFromHamming(distance int) float64 {
	return 1.0 - float64(distance)/float64(simhashBits)
}
