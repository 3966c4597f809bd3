// Package signature canonicalizes payment parameters and signs them with
// HMAC-SHA256 over a shared secret.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/sdms/payment-gateway/internal/models"
)

var (
	ErrEmptySecret  = errors.New("signature: empty secret")
	ErrMissingField = errors.New("signature: missing signed field")
)

// requiredFields must be present in every signed bag.
var requiredFields = []string{
	models.FieldOrderID,
	models.FieldAmount,
	models.FieldOrderDesc,
	models.FieldCreateDate,
	models.FieldIPAddr,
	models.FieldBillingName,
}

// optionalFields are signed only when non-empty.
var optionalFields = []string{
	models.FieldStudentInfo,
}

type Codec struct {
	secret []byte
}

func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Canonicalize selects the signable fields, sorts them by key and joins raw
// values as key=value pairs separated by '&'. Keys outside the signable set
// are ignored.
func Canonicalize(params map[string]string) (string, error) {
	keys := make([]string, 0, len(requiredFields)+len(optionalFields))
	for _, k := range requiredFields {
		if _, ok := params[k]; !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingField, k)
		}
		keys = append(keys, k)
	}
	for _, k := range optionalFields {
		if params[k] != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String(), nil
}

func (c *Codec) Sign(params map[string]string) (string, error) {
	canonical, err := Canonicalize(params)
	if err != nil {
		return "", err
	}
	return c.mac(canonical), nil
}

// Verify recomputes the signature over params and compares it with the
// received one in constant time. Every failure is reported as
// models.ErrInvalidSignature without saying which field was wrong.
func (c *Codec) Verify(params map[string]string, received string) error {
	if received == "" {
		return models.ErrInvalidSignature
	}
	canonical, err := Canonicalize(params)
	if err != nil {
		return models.ErrInvalidSignature
	}
	got, err := hex.DecodeString(received)
	if err != nil {
		return models.ErrInvalidSignature
	}
	want, _ := hex.DecodeString(c.mac(canonical))
	if !hmac.Equal(got, want) {
		return models.ErrInvalidSignature
	}
	return nil
}

func (c *Codec) mac(canonical string) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

// ParamsFromValues flattens a decoded query string. Only the first value of a
// repeated key is kept.
func ParamsFromValues(v url.Values) map[string]string {
	p := make(map[string]string, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			p[k] = vals[0]
		}
	}
	return p
}

// Values renders a parameter bag as url.Values, dropping empty entries.
func Values(params map[string]string) url.Values {
	v := url.Values{}
	for k, val := range params {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}
