package formauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	fieldToken  = "token"
	headerToken = "X-Form-Token"
)

var (
	ErrMissingToken     = errors.New("missing form token")
	ErrMalformedToken   = errors.New("malformed form token")
	ErrStaleToken       = errors.New("stale form token")
	ErrInvalidSignature = errors.New("invalid form token signature")
)

// Issuer hands out signed, timestamped tokens for the page's forms and rejects
// state changing requests that do not echo a valid one. An empty Secret disables
// verification.
type Issuer struct {
	Secret string
	MaxAge time.Duration
	Now    func() time.Time
}

func (v *Issuer) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Issue returns a token of the form <unix>.<nonce>.<signature>.
func (v *Issuer) Issue() string {
	ts := strconv.FormatInt(v.now().Unix(), 10)
	nonce := uuid.NewString()
	return ts + "." + nonce + "." + computeSignature(v.Secret, ts, nonce)
}

func (v *Issuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := v.verify(r); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (v *Issuer) verify(r *http.Request) error {
	if v.Secret == "" {
		return nil
	}

	token := r.Header.Get(headerToken)
	if token == "" {
		token = r.FormValue(fieldToken)
	}
	if token == "" {
		return ErrMissingToken
	}
	return v.Verify(token)
}

// Verify checks a token's signature and age.
func (v *Issuer) Verify(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrMalformedToken
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrMalformedToken
	}

	expected := computeSignature(v.Secret, parts[0], parts[1])
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return ErrInvalidSignature
	}

	now := v.now()
	issued := time.Unix(ts, 0)
	if (v.MaxAge > 0 && now.Sub(issued) > v.MaxAge) || issued.Sub(now) > time.Minute {
		return ErrStaleToken
	}
	return nil
}

func computeSignature(secret, timestamp, nonce string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write([]byte(nonce))
	return strings.ToLower(hex.EncodeToString(mac.Sum(nil)))
}
