package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Canonical 待签名原文，五段以换行连接：
// METHOD、path、unix 秒、nonce、body 的 sha256 hex
func Canonical(method, path string, ts int64, nonce string, body []byte) string {
	sum := sha256.Sum256(body)
	return strings.Join([]string{
		strings.ToUpper(method),
		path,
		strconv.FormatInt(ts, 10),
		nonce,
		hex.EncodeToString(sum[:]),
	}, "\n")
}

func mac(secret, canonical string) []byte {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(canonical))
	return m.Sum(nil)
}

// SignHMAC 小写 hex 的 HMAC-SHA256
func SignHMAC(secret, canonical string) string {
	return hex.EncodeToString(mac(secret, canonical))
}

// VerifyHMAC 签名大小写不敏感，非法 hex 视为不匹配
func VerifyHMAC(secret, canonical, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(mac(secret, canonical), got)
}
