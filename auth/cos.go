package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// COSCredentials are the short-lived keys a provider issues for one
// object upload to Tencent Cloud Object Storage.
type COSCredentials struct {
	SecretID    string
	SecretKey   string
	Token       string
	StartTime   int64
	ExpiredTime int64
}

// COSSigner signs PUT requests with the COS temporary-key scheme. The
// signature covers method, object key and the {host, content-type}
// header set; the body is deliberately not covered.
type COSSigner struct {
	Creds COSCredentials
}

func (s *COSSigner) Name() string { return "cos_presign" }

// Apply signs the request as an object PUT. The request URL's path is
// the object key, the Host and Content-Type headers must be final.
func (s *COSSigner) Apply(req *http.Request) error {
	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	contentType := req.Header.Get("Content-Type")
	objectKey := strings.TrimPrefix(req.URL.Path, "/")

	req.Header.Set("Host", host)
	req.Header.Set("Authorization", s.SignPut(host, objectKey, contentType))
	if s.Creds.Token != "" {
		req.Header.Set("x-cos-security-token", s.Creds.Token)
	}
	return nil
}

// SignPut computes the q-sign authorization value for a PUT of the
// given object. Scheme per the Tencent COS temporary-key signature:
//
//	key_time      = "start;expire"
//	sign_key      = HMAC-SHA1(secret_key, key_time)
//	http_string   = "put\n/<key>\n\n<canonical_headers>\n"
//	string_to_sign = "sha1\n<key_time>\n<SHA1(http_string)>\n"
//	signature     = HMAC-SHA1(sign_key, string_to_sign)
func (s *COSSigner) SignPut(host, objectKey, contentType string) string {
	keyTime := fmt.Sprintf("%d;%d", s.Creds.StartTime, s.Creds.ExpiredTime)
	signKey := hmacSHA1Hex([]byte(s.Creds.SecretKey), keyTime)

	headers := map[string]string{
		"host":         host,
		"content-type": url.QueryEscape(contentType),
	}
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+headers[name])
	}
	canonicalHeaders := strings.Join(parts, "&")

	httpString := fmt.Sprintf("put\n/%s\n\n%s\n", objectKey, canonicalHeaders)
	sha1HTTP := sha1Hex(httpString)
	stringToSign := fmt.Sprintf("sha1\n%s\n%s\n", keyTime, sha1HTTP)
	signature := hmacSHA1Hex([]byte(signKey), stringToSign)

	return strings.Join([]string{
		"q-sign-algorithm=sha1",
		"q-ak=" + s.Creds.SecretID,
		"q-sign-time=" + keyTime,
		"q-key-time=" + keyTime,
		"q-header-list=" + strings.Join(names, ";"),
		"q-url-param-list=",
		"q-signature=" + signature,
	}, "&")
}

func hmacSHA1Hex(key []byte, message string) string {
	mac := hmac.New(sha1.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func sha1Hex(message string) string {
	sum := sha1.Sum([]byte(message))
	return hex.EncodeToString(sum[:])
}
