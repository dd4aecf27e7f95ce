package storage

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"path"
	"strings"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandomString returns n characters drawn uniformly from [A-Za-z0-9].
func RandomString(n int) (string, error) {
	limit := big.NewInt(int64(len(alphanumeric)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate random string: %w", err)
		}
		b.WriteByte(alphanumeric[idx.Int64()])
	}
	return b.String(), nil
}

func TempKey(folder string) (string, error) {
	name, err := RandomString(64)
	if err != nil {
		return "", err
	}
	return TempPrefix + strings.Trim(folder, "/") + "/" + name, nil
}

func IsTempKey(key string) bool {
	return strings.HasPrefix(key, TempPrefix)
}

// CleanUserKey turns a user-supplied URL or key into an object key: the path
// with any leading /<publicBucket> removed. Empty results are rejected.
func CleanUserKey(raw, publicBucket string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	p, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		return "", false
	}
	p = strings.TrimPrefix(p, "/")
	if publicBucket != "" {
		if p == publicBucket {
			return "", false
		}
		p = strings.TrimPrefix(p, publicBucket+"/")
	}
	p = strings.TrimPrefix(path.Clean("/"+p), "/")

	if p == "" || strings.HasSuffix(p, "/") {
		return "", false
	}
	return p, true
}

// ContentDisposition is inline for media browsers can show and attachment otherwise.
func ContentDisposition(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"),
		strings.HasPrefix(mime, "video/"),
		strings.HasPrefix(mime, "audio/"):
		return "inline"
	default:
		return "attachment"
	}
}

// BaseName is the last path element of key without its extension.
func BaseName(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}
