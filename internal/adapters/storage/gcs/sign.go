package gcs

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	signingAlgorithm = "GOOG4-RSA-SHA256"
	signedURLHost    = "storage.googleapis.com"
)

// urlSigner produces V4 query-signed GET URLs with a service account key.
type urlSigner struct {
	email string
	key   *rsa.PrivateKey
}

func newURLSigner(email string, pemKey []byte) (*urlSigner, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, fmt.Errorf("service account key is not PEM encoded")
	}
	var key *rsa.PrivateKey
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("service account key is not RSA")
		}
		key = rsaKey
	} else if parsed, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		key = parsed
	} else {
		return nil, fmt.Errorf("failed to parse service account private key")
	}
	return &urlSigner{email: email, key: key}, nil
}

func (s *urlSigner) Sign(bucket, objectKey string, now time.Time, expiresIn time.Duration) (string, error) {
	stamp := now.Format("20060102T150405Z")
	scope := now.Format("20060102") + "/auto/storage/goog4_request"
	path := "/" + bucket + "/" + escapeObjectPath(objectKey)

	q := url.Values{}
	q.Set("X-Goog-Algorithm", signingAlgorithm)
	q.Set("X-Goog-Credential", s.email+"/"+scope)
	q.Set("X-Goog-Date", stamp)
	q.Set("X-Goog-Expires", strconv.Itoa(int(expiresIn.Seconds())))
	q.Set("X-Goog-SignedHeaders", "host")
	// V4 canonicalization requires %20, not +, for spaces.
	canonicalQuery := strings.ReplaceAll(q.Encode(), "+", "%20")

	canonicalRequest := strings.Join([]string{
		"GET",
		path,
		canonicalQuery,
		"host:" + signedURLHost + "\n",
		"host",
		"UNSIGNED-PAYLOAD",
	}, "\n")

	reqSum := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		stamp,
		scope,
		hex.EncodeToString(reqSum[:]),
	}, "\n")

	digest := sha256.Sum256([]byte(stringToSign))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}

	return "https://" + signedURLHost + path + "?" + canonicalQuery +
		"&X-Goog-Signature=" + hex.EncodeToString(sig), nil
}
