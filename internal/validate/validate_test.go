// file: internal/validate/validate_test.go
package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemafx/schemafx/internal/core/domain"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func violationCodes(t *testing.T, err error) map[string]string {
	t.Helper()
	vs, ok := err.(Violations)
	require.True(t, ok, "错误类型应为 Violations, 实际为 %T", err)
	codes := make(map[string]string, len(vs))
	for _, v := range vs {
		codes[v.Field] = v.Code
	}
	return codes
}

func TestValidate_RoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := Compile([]domain.Field{
		{ID: "id", Kind: domain.FieldNumber, Key: true, Required: true},
		{ID: "name", Kind: domain.FieldText, Required: true},
		{ID: "email", Kind: domain.FieldEmail},
		{ID: "active", Kind: domain.FieldBoolean},
		{ID: "joined", Kind: domain.FieldDate},
		{ID: "role", Kind: domain.FieldDropdown, Constraints: &domain.FieldConstraints{Options: []string{"admin", "viewer"}}},
	})

	in := domain.Row{
		"id":     float64(7),
		"name":   "张三",
		"email":  "zhang@example.com",
		"active": true,
		"joined": now,
		"role":   "viewer",
	}
	out, err := v.Validate(in)
	require.NoError(t, err)
	assert.Equal(t, in, out, "合法行应原样通过")
}

func TestValidate_UnknownFieldRejected(t *testing.T) {
	v := Compile([]domain.Field{{ID: "name", Kind: domain.FieldText}})

	_, err := v.Validate(domain.Row{"name": "a", "ghost": 1})
	require.Error(t, err)
	codes := violationCodes(t, err)
	assert.Equal(t, CodeUnknownField, codes["ghost"])
}

func TestValidate_RequiredAndNull(t *testing.T) {
	v := Compile([]domain.Field{
		{ID: "name", Kind: domain.FieldText, Required: true},
		{ID: "note", Kind: domain.FieldText},
	})

	t.Run("required missing", func(t *testing.T) {
		_, err := v.Validate(domain.Row{})
		require.Error(t, err)
		assert.Equal(t, CodeRequired, violationCodes(t, err)["name"])
	})

	t.Run("required nil", func(t *testing.T) {
		_, err := v.Validate(domain.Row{"name": nil})
		require.Error(t, err)
		assert.Equal(t, CodeRequired, violationCodes(t, err)["name"])
	})

	t.Run("optional absent stays absent", func(t *testing.T) {
		out, err := v.Validate(domain.Row{"name": "a"})
		require.NoError(t, err)
		_, present := out["note"]
		assert.False(t, present)
	})

	t.Run("optional explicit nil preserved", func(t *testing.T) {
		out, err := v.Validate(domain.Row{"name": "a", "note": nil})
		require.NoError(t, err)
		val, present := out["note"]
		assert.True(t, present)
		assert.Nil(t, val)
	})
}

func TestValidate_TextConstraints(t *testing.T) {
	v := Compile([]domain.Field{
		{ID: "code", Kind: domain.FieldText, Constraints: &domain.FieldConstraints{MinLength: intPtr(2), MaxLength: intPtr(4)}},
	})

	cases := []struct {
		name  string
		value any
		code  string
	}{
		{"too short", "a", CodeMinLength},
		{"too long", "abcde", CodeMaxLength},
		{"not a string", 42, CodeType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(domain.Row{"code": tc.value})
			require.Error(t, err)
			assert.Equal(t, tc.code, violationCodes(t, err)["code"])
		})
	}

	t.Run("rune length not byte length", func(t *testing.T) {
		out, err := v.Validate(domain.Row{"code": "中文字"})
		require.NoError(t, err)
		assert.Equal(t, "中文字", out["code"])
	})
}

func TestValidate_NumberCoercion(t *testing.T) {
	v := Compile([]domain.Field{
		{ID: "n", Kind: domain.FieldNumber, Constraints: &domain.FieldConstraints{Min: floatPtr(0), Max: floatPtr(100)}},
	})

	t.Run("int normalized to float64", func(t *testing.T) {
		out, err := v.Validate(domain.Row{"n": 42})
		require.NoError(t, err)
		assert.Equal(t, float64(42), out["n"])
	})

	t.Run("below min", func(t *testing.T) {
		_, err := v.Validate(domain.Row{"n": -1})
		require.Error(t, err)
		assert.Equal(t, CodeMin, violationCodes(t, err)["n"])
	})

	t.Run("string rejected", func(t *testing.T) {
		_, err := v.Validate(domain.Row{"n": "42"})
		require.Error(t, err)
		assert.Equal(t, CodeType, violationCodes(t, err)["n"])
	})
}

func TestValidate_DateForms(t *testing.T) {
	lower := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	v := Compile([]domain.Field{
		{ID: "d", Kind: domain.FieldDate, Constraints: &domain.FieldConstraints{After: timePtr(lower)}},
	})

	t.Run("rfc3339 string normalized", func(t *testing.T) {
		out, err := v.Validate(domain.Row{"d": "2024-05-01T08:00:00Z"})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), out["d"])
	})

	t.Run("epoch millis normalized", func(t *testing.T) {
		ms := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC).UnixMilli()
		out, err := v.Validate(domain.Row{"d": float64(ms)})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), out["d"])
	})

	t.Run("out of bound", func(t *testing.T) {
		_, err := v.Validate(domain.Row{"d": "2019-01-01T00:00:00Z"})
		require.Error(t, err)
		assert.Equal(t, CodeDateBound, violationCodes(t, err)["d"])
	})

	t.Run("garbage string rejected", func(t *testing.T) {
		_, err := v.Validate(domain.Row{"d": "昨天"})
		require.Error(t, err)
		assert.Equal(t, CodeType, violationCodes(t, err)["d"])
	})
}

func TestValidate_EmailAndDropdown(t *testing.T) {
	v := Compile([]domain.Field{
		{ID: "mail", Kind: domain.FieldEmail},
		{ID: "level", Kind: domain.FieldDropdown, Constraints: &domain.FieldConstraints{Options: []string{"low", "high"}}},
	})

	t.Run("bad email format", func(t *testing.T) {
		_, err := v.Validate(domain.Row{"mail": "not-an-email"})
		require.Error(t, err)
		assert.Equal(t, CodeFormat, violationCodes(t, err)["mail"])
	})

	t.Run("option outside enum", func(t *testing.T) {
		_, err := v.Validate(domain.Row{"level": "medium"})
		require.Error(t, err)
		assert.Equal(t, CodeOption, violationCodes(t, err)["level"])
	})
}

func TestValidate_NestedJSON(t *testing.T) {
	v := Compile([]domain.Field{
		{ID: "profile", Kind: domain.FieldJSON, Children: []domain.Field{
			{ID: "age", Kind: domain.FieldNumber, Required: true},
			{ID: "city", Kind: domain.FieldText},
		}},
		{ID: "extra", Kind: domain.FieldJSON},
	})

	t.Run("structured object validated", func(t *testing.T) {
		out, err := v.Validate(domain.Row{"profile": map[string]any{"age": 30, "city": "北京"}})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"age": float64(30), "city": "北京"}, out["profile"])
	})

	t.Run("nested violation carries path", func(t *testing.T) {
		_, err := v.Validate(domain.Row{"profile": map[string]any{"age": "三十"}})
		require.Error(t, err)
		assert.Equal(t, CodeType, violationCodes(t, err)["profile.age"])
	})

	t.Run("nested unknown field rejected", func(t *testing.T) {
		_, err := v.Validate(domain.Row{"profile": map[string]any{"age": 1, "ghost": true}})
		require.Error(t, err)
		assert.Equal(t, CodeUnknownField, violationCodes(t, err)["profile.ghost"])
	})

	t.Run("schemaless json passes anything", func(t *testing.T) {
		out, err := v.Validate(domain.Row{"extra": map[string]any{"whatever": []any{1, 2}}})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"whatever": []any{1, 2}}, out["extra"])
	})
}

func TestValidate_List(t *testing.T) {
	v := Compile([]domain.Field{
		{ID: "scores", Kind: domain.FieldList, Element: &domain.Field{ID: "score", Kind: domain.FieldNumber}},
		{ID: "tags", Kind: domain.FieldList},
	})

	t.Run("elements validated and normalized", func(t *testing.T) {
		out, err := v.Validate(domain.Row{"scores": []any{1, 2.5}})
		require.NoError(t, err)
		assert.Equal(t, []any{float64(1), 2.5}, out["scores"])
	})

	t.Run("element violation carries index", func(t *testing.T) {
		_, err := v.Validate(domain.Row{"scores": []any{1, "x"}})
		require.Error(t, err)
		assert.Equal(t, CodeType, violationCodes(t, err)["scores[1]"])
	})

	t.Run("elementless list accepts mixed slices", func(t *testing.T) {
		out, err := v.Validate(domain.Row{"tags": []any{"a", 1, true}})
		require.NoError(t, err)
		assert.Equal(t, []any{"a", 1, true}, out["tags"])
	})

	t.Run("non slice rejected", func(t *testing.T) {
		_, err := v.Validate(domain.Row{"tags": "a,b"})
		require.Error(t, err)
		assert.Equal(t, CodeType, violationCodes(t, err)["tags"])
	})
}

func TestValidate_AggregatesViolations(t *testing.T) {
	v := Compile([]domain.Field{
		{ID: "a", Kind: domain.FieldNumber, Required: true},
		{ID: "b", Kind: domain.FieldBoolean},
	})

	_, err := v.Validate(domain.Row{"b": "yes", "c": 1})
	require.Error(t, err)
	codes := violationCodes(t, err)
	assert.Len(t, codes, 3)
	assert.Equal(t, CodeRequired, codes["a"])
	assert.Equal(t, CodeType, codes["b"])
	assert.Equal(t, CodeUnknownField, codes["c"])
}
