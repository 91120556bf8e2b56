package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SessionCodec はセッションCookieの値をHMAC-SHA256で署名・検証する。
// Cookie値は「<セッションID>.<署名>」形式で、署名が一致しない値は
// DBを参照する前に拒否できる。秘密鍵はSESSION_SECRETから供給される。
type SessionCodec struct {
	secret []byte
}

// NewSessionCodec はSessionCodecを生成する。
func NewSessionCodec(secret string) *SessionCodec {
	return &SessionCodec{secret: []byte(secret)}
}

// Encode はセッションIDに署名を付加したCookie値を返す。
func (c *SessionCodec) Encode(sessionID string) string {
	return sessionID + "." + c.sign(sessionID)
}

// Decode はCookie値の署名を検証し、セッションIDを取り出す。
// 形式不正または署名不一致の場合はエラーを返す。
func (c *SessionCodec) Decode(value string) (string, error) {
	i := strings.LastIndex(value, ".")
	if i < 0 {
		return "", fmt.Errorf("malformed session cookie")
	}

	sessionID, signature := value[:i], value[i+1:]
	if !hmac.Equal([]byte(signature), []byte(c.sign(sessionID))) {
		return "", fmt.Errorf("session cookie signature mismatch")
	}

	return sessionID, nil
}

func (c *SessionCodec) sign(sessionID string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}
