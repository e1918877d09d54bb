package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// GenerateRandomString 生成 URL 安全的随机字符串 (用于 verifier 和 state)
// n 为随机字节数，输出长度为 ceil(n*4/3)，字符集为 RFC 7636 unreserved 子集 [A-Za-z0-9-_]
func GenerateRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateCodeVerifier 生成 PKCE code_verifier (32 字节 → 43 字符，满足 43-128 的长度要求)
func GenerateCodeVerifier() (string, error) {
	return GenerateRandomString(32)
}

// GenerateState 生成防 CSRF 的 state，与 verifier 相互独立
func GenerateState() (string, error) {
	return GenerateRandomString(16)
}

// GenerateCodeChallenge 基于 verifier 生成 S256 Challenge 字符串
// 算法：Base64UrlEncode(SHA256(ASCII(verifier)))
func GenerateCodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	// Etsy 要求使用 RawURLEncoding (不带填充符=)
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// SecureCompare 常量时间比较，空串视为不相等
func SecureCompare(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
