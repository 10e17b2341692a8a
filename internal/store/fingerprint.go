package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"

	"github.com/goalsarm/goalsfit/internal/prior"
)

// DomainCatalog prefixes catalog fingerprints. The version suffix allows
// the encoding to change without colliding with old fingerprints.
const DomainCatalog = "goalsfit/catalog/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data), hex encoded.
// The NUL separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint identifies a catalog by its keys (in order), prior families,
// shape constants and initial values. Fitted values are excluded.
func Fingerprint(params *prior.Set) (string, error) {
	data, err := canonicalCatalog(params)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainCatalog, data), nil
}

// canonicalCatalog encodes the catalog as a JSON array of objects with
// sorted keys, NFC-normalized strings, no HTML escaping and shortest
// round-trip float formatting.
func canonicalCatalog(params *prior.Set) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		if i > 0 {
			buf.WriteByte(',')
		}
		fields := map[string]any{
			"family":  string(p.Family),
			"initial": p.Initial,
			"name":    p.Name,
			"shape1":  p.Shape1,
			"shape2":  p.Shape2,
		}
		if err := writeCanonicalObject(&buf, fields); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func writeCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		switch v := obj[k].(type) {
		case string:
			if err := writeCanonicalString(buf, v); err != nil {
				return err
			}
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%s: non-finite value %v", k, v)
			}
			buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		default:
			return fmt.Errorf("%s: unsupported type %T", k, v)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
