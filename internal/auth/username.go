package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

const usernameBaseLength = 8

// GenerateUsername 根据姓名生成用户名：取小写字母数字的前 8 位，冲突时追加数字后缀。
// 姓名中没有可用字符时使用 user + 8 位随机十六进制。
func GenerateUsername(fullname string, taken func(candidate string) (bool, error)) (string, error) {
	base := usernameBase(fullname)
	if base == "" {
		var b [4]byte
		if _, err := rand.Read(b[:]); err != nil {
			return "", fmt.Errorf("generate username: %w", err)
		}
		base = "user" + hex.EncodeToString(b[:])
	}

	candidate := base
	for i := 1; ; i++ {
		exists, err := taken(candidate)
		if err != nil {
			return "", fmt.Errorf("check username %q: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}

func usernameBase(fullname string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(fullname) {
		if r > unicode.MaxASCII {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			if b.Len() == usernameBaseLength {
				break
			}
		}
	}
	return b.String()
}
