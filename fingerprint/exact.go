// Package fingerprint hashes extracted records so content-identical widgets
// found in different navigation states collapse into one.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Separators keep ("ab","c") and ("a","bc") apart.
const (
	fieldSep = "\x1f"
	groupSep = "\x1e"
)

var folder = cases.Fold()

// Normalize applies NFKC, Unicode case folding and whitespace collapsing.
// Two strings a reader would call the same label or value normalize equal.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Of returns a stable hex fingerprint of a record kind and its defining
// fields. Fields are normalized before hashing.
func Of(kind string, fields ...string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	for _, f := range fields {
		h.Write([]byte(fieldSep))
		h.Write([]byte(Normalize(f)))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Grid flattens a header row plus body rows into hashable fields while
// preserving row boundaries.
func Grid(headers []string, rows [][]string) []string {
	out := make([]string, 0, len(rows)+1)
	out = append(out, strings.Join(normalizeAll(headers), fieldSep))
	for _, r := range rows {
		out = append(out, groupSep+strings.Join(normalizeAll(r), fieldSep))
	}
	return out
}

// Content hashes a raw document without normalization. It identifies
// byte-identical page states.
func Content(doc string) string {
	sum := sha256.Sum256([]byte(doc))
	return hex.EncodeToString(sum[:16])
}

func normalizeAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Normalize(s)
	}
	return out
}
