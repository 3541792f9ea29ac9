// file: internal/queryengine/decode_test.go
package queryengine

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schemafx/schemafx/internal/core/domain"
)

func TestDecodeNumber_SafeIntegerBoundary(t *testing.T) {
	t.Run("small int64 becomes float64", func(t *testing.T) {
		assert.Equal(t, float64(42), decodeNumber(int64(42)))
	})

	t.Run("boundary value stays numeric", func(t *testing.T) {
		assert.Equal(t, float64(maxSafeInteger), decodeNumber(int64(maxSafeInteger)))
	})

	t.Run("beyond boundary becomes string", func(t *testing.T) {
		assert.Equal(t, "9007199254740992", decodeNumber(int64(maxSafeInteger+1)))
	})

	t.Run("negative beyond boundary becomes string", func(t *testing.T) {
		assert.Equal(t, "-9007199254740992", decodeNumber(int64(-maxSafeInteger-1)))
	})

	t.Run("big int within range", func(t *testing.T) {
		assert.Equal(t, float64(1000), decodeNumber(big.NewInt(1000)))
	})

	t.Run("big int outside int64 becomes string", func(t *testing.T) {
		huge, ok := new(big.Int).SetString("170141183460469231731687303715884105727", 10)
		assert.True(t, ok)
		assert.Equal(t, "170141183460469231731687303715884105727", decodeNumber(huge))
	})
}

func TestDecodeTimestamp(t *testing.T) {
	t.Run("time passes through in UTC", func(t *testing.T) {
		loc := time.FixedZone("CST", 8*3600)
		in := time.Date(2024, 5, 1, 16, 0, 0, 0, loc)
		assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), decodeTimestamp(in))
	})

	t.Run("int64 interpreted as epoch micros", func(t *testing.T) {
		want := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
		assert.Equal(t, want, decodeTimestamp(want.UnixMicro()))
	})

	t.Run("rfc3339 string parsed", func(t *testing.T) {
		assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), decodeTimestamp("2024-05-01T08:00:00Z"))
	})

	t.Run("garbage string returned as is", func(t *testing.T) {
		assert.Equal(t, "not a time", decodeTimestamp("not a time"))
	})
}

func TestDecodeJSONText(t *testing.T) {
	t.Run("object text parsed to map", func(t *testing.T) {
		assert.Equal(t, map[string]any{"a": float64(1)}, decodeJSONText(`{"a":1}`))
	})

	t.Run("array text parsed to slice", func(t *testing.T) {
		assert.Equal(t, []any{float64(1), "b"}, decodeJSONText(`[1,"b"]`))
	})

	t.Run("malformed text returned verbatim", func(t *testing.T) {
		assert.Equal(t, "{broken", decodeJSONText("{broken"))
	})

	t.Run("bytes treated as text", func(t *testing.T) {
		assert.Equal(t, map[string]any{"x": true}, decodeJSONText([]byte(`{"x":true}`)))
	})
}

func TestDecodeValue_EncryptedStaysOpaque(t *testing.T) {
	f := &domain.Field{ID: "secret", Kind: domain.FieldJSON, Encrypted: true}
	composite := "aa:bb:cc"
	assert.Equal(t, composite, decodeValue(f, composite))
	assert.Equal(t, composite, decodeValue(f, []byte(composite)))
}

func TestConvertForColumn(t *testing.T) {
	t.Run("number from string", func(t *testing.T) {
		f := &domain.Field{ID: "n", Kind: domain.FieldNumber}
		assert.Equal(t, 3.5, convertForColumn(f, "3.5"))
	})

	t.Run("unparseable number dropped to null", func(t *testing.T) {
		f := &domain.Field{ID: "n", Kind: domain.FieldNumber}
		assert.Nil(t, convertForColumn(f, "三"))
	})

	t.Run("json value serialized", func(t *testing.T) {
		f := &domain.Field{ID: "j", Kind: domain.FieldJSON}
		assert.Equal(t, `{"a":1}`, convertForColumn(f, map[string]any{"a": 1}))
	})

	t.Run("json string kept verbatim", func(t *testing.T) {
		f := &domain.Field{ID: "j", Kind: domain.FieldJSON}
		assert.Equal(t, "{broken", convertForColumn(f, "{broken"))
	})

	t.Run("date from epoch millis", func(t *testing.T) {
		f := &domain.Field{ID: "d", Kind: domain.FieldDate}
		want := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
		assert.Equal(t, want, convertForColumn(f, float64(want.UnixMilli())))
	})

	t.Run("encrypted composite kept as text", func(t *testing.T) {
		f := &domain.Field{ID: "s", Kind: domain.FieldJSON, Encrypted: true}
		assert.Equal(t, "aa:bb:cc", convertForColumn(f, "aa:bb:cc"))
	})
}
