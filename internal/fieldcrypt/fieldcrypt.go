// Package fieldcrypt 实现字段级加密编解码。
// file: internal/fieldcrypt/fieldcrypt.go
//
// 只处理表中标记了 encrypted 的 Text / JSON 顶层字段。密文是
// hex(iv):hex(authTag):hex(ciphertext) 形式的复合字符串，算法为
// AES-256-GCM，密钥取配置字符串的 SHA-256。未配置密钥时编解码都是恒等变换。
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
)

const gcmTagSize = 16

// Codec 持有派生后的对称密钥。零值等价于未启用加密。
type Codec struct {
	key []byte
}

// New 从配置的密钥字符串构造编解码器，空字符串表示不启用加密。
func New(keyString string) *Codec {
	if keyString == "" {
		return &Codec{}
	}
	sum := sha256.Sum256([]byte(keyString))
	return &Codec{key: sum[:]}
}

// Enabled 报告是否配置了密钥。
func (c *Codec) Enabled() bool { return len(c.key) > 0 }

// Encode 返回加密后的行副本。字段值存在且非 nil 才会加密，
// falsy 值（false、0、空串）同样会被加密，与"字段缺失"严格区分。
func (c *Codec) Encode(row domain.Row, table *domain.Table) (domain.Row, error) {
	if !c.Enabled() || row == nil {
		return row, nil
	}
	out := cloneRow(row)
	for i := range table.Fields {
		f := &table.Fields[i]
		if !encryptable(f) {
			continue
		}
		value, present := row[f.ID]
		if !present || value == nil {
			continue
		}
		plaintext, err := toPlaintext(f, value)
		if err != nil {
			return nil, fmt.Errorf("字段 %q 序列化失败: %w", f.ID, err)
		}
		sealed, err := c.seal(plaintext)
		if err != nil {
			return nil, fmt.Errorf("字段 %q 加密失败: %w", f.ID, err)
		}
		out[f.ID] = sealed
	}
	return out, nil
}

// Decode 返回解密后的行副本。任何一个字段解密失败都会使整行失败，
// 绝不返回部分解密的数据。
func (c *Codec) Decode(row domain.Row, table *domain.Table) (domain.Row, error) {
	if !c.Enabled() || row == nil {
		return row, nil
	}
	out := cloneRow(row)
	for i := range table.Fields {
		f := &table.Fields[i]
		if !encryptable(f) {
			continue
		}
		value, present := row[f.ID]
		if !present || value == nil {
			continue
		}
		composite, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: 字段 %q 的密文不是字符串", port.ErrDecryptFailed, f.ID)
		}
		plaintext, err := c.open(composite)
		if err != nil {
			return nil, fmt.Errorf("%w: 字段 %q", port.ErrDecryptFailed, f.ID)
		}
		out[f.ID] = fromPlaintext(f, plaintext)
	}
	return out, nil
}

func encryptable(f *domain.Field) bool {
	return f.Encrypted && (f.Kind == domain.FieldText || f.Kind == domain.FieldJSON)
}

func toPlaintext(f *domain.Field, value any) (string, error) {
	if f.Kind == domain.FieldText {
		if s, ok := value.(string); ok {
			return s, nil
		}
	}
	b, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fromPlaintext(f *domain.Field, plaintext string) any {
	if f.Kind == domain.FieldText {
		return plaintext
	}
	var parsed any
	if err := json.Unmarshal([]byte(plaintext), &parsed); err != nil {
		// 解析不了就原样返回字符串
		return plaintext
	}
	return parsed
}

func (c *Codec) seal(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	ct := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

func (c *Codec) open(composite string) (string, error) {
	parts := strings.Split(composite, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("复合密文格式错误，期望 iv:authTag:ciphertext")
	}
	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("iv 解码失败: %w", err)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("authTag 解码失败: %w", err)
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("密文解码失败: %w", err)
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() || len(tag) != gcmTagSize {
		return "", fmt.Errorf("iv 或 authTag 长度不合法")
	}
	plaintext, err := gcm.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func cloneRow(row domain.Row) domain.Row {
	out := make(domain.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
