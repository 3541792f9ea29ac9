// file: internal/queryengine/engine_test.go
package queryengine

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
	"github.com/schemafx/schemafx/internal/downloader"
	"github.com/schemafx/schemafx/internal/fieldcrypt"
)

// ===============================
// 测试用连接器
// ===============================

type baseConnector struct{ id string }

func (c *baseConnector) ID() string   { return c.id }
func (c *baseConnector) Name() string { return c.id }

func (c *baseConnector) ListTables(_ context.Context, _ string) ([]port.TableDescriptor, error) {
	return nil, nil
}

func (c *baseConnector) GetTable(_ context.Context, _ string) (*domain.Table, error) {
	return nil, nil
}

func (c *baseConnector) GetCapabilities(_ context.Context, _ *domain.Table) (port.Capabilities, error) {
	return port.Capabilities{}, nil
}

type providerConnector struct {
	baseConnector
	def *domain.DataSourceDefinition
}

func (c *providerConnector) GetData(_ context.Context, _ *domain.Table) (*domain.DataSourceDefinition, error) {
	return c.def, nil
}

type streamerConnector struct {
	baseConnector
	rows []domain.Row
}

func (c *streamerConnector) GetDataStream(_ context.Context, _ *domain.Table) (<-chan domain.Row, error) {
	ch := make(chan domain.Row)
	go func() {
		defer close(ch)
		for _, row := range c.rows {
			ch <- row
		}
	}()
	return ch, nil
}

type staticConnections map[string]*domain.Connection

func (m staticConnections) GetConnection(_ context.Context, id string) (*domain.Connection, error) {
	c, ok := m[id]
	if !ok {
		return nil, port.ErrConnectionNotFound
	}
	return c, nil
}

func inlineConnector(id string, rows []domain.Row) *providerConnector {
	return &providerConnector{
		baseConnector: baseConnector{id: id},
		def:           &domain.DataSourceDefinition{Kind: domain.SourceInline, Rows: rows},
	}
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

var simpleTable = &domain.Table{
	ID:          "users",
	ConnectorID: "mem",
	Fields: []domain.Field{
		{ID: "id", Kind: domain.FieldNumber, Key: true},
		{ID: "name", Kind: domain.FieldText},
		{ID: "active", Kind: domain.FieldBoolean},
	},
}

// ===============================
// 基本行为
// ===============================

func TestEngine_InlineRoundTrip(t *testing.T) {
	e := newTestEngine(t, Options{})
	conn := inlineConnector("mem", []domain.Row{
		{"id": 1, "name": "A", "active": true},
		{"id": 2, "name": "B", "active": false},
	})

	got, err := e.Query(context.Background(), simpleTable, conn, nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.Row{
		{"id": float64(1), "name": "A", "active": true},
		{"id": float64(2), "name": "B", "active": false},
	}, got)
}

func TestEngine_EmptySourceShortCircuits(t *testing.T) {
	e := newTestEngine(t, Options{})
	conn := inlineConnector("mem", nil)

	got, err := e.Query(context.Background(), simpleTable, conn, &domain.QuerySpec{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_NoCapabilityConnectorReturnsEmpty(t *testing.T) {
	e := newTestEngine(t, Options{})
	conn := &baseConnector{id: "bare"}

	got, err := e.Query(context.Background(), simpleTable, conn, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// 规格场景：10 万行合成数据上 id gt 50000 AND active eq true，limit 5，按 id 升序。
func TestEngine_FilterScenarioLargeDataset(t *testing.T) {
	if testing.Short() {
		t.Skip("短模式下跳过大数据集场景")
	}
	e := newTestEngine(t, Options{})

	rows := make([]domain.Row, 0, 100000)
	for i := 1; i <= 100000; i++ {
		rows = append(rows, domain.Row{"id": i, "name": fmt.Sprintf("user-%d", i), "active": i%2 == 0})
	}
	conn := inlineConnector("mem", rows)

	spec := &domain.QuerySpec{
		Filters: []domain.Filter{
			{Field: "id", Operator: domain.OpGt, Value: 50000},
			{Field: "active", Operator: domain.OpEq, Value: true},
		},
		OrderBy: &domain.OrderBy{Column: "id", Direction: "asc"},
		Limit:   5,
	}
	got, err := e.Query(context.Background(), simpleTable, conn, spec)
	require.NoError(t, err)

	require.Len(t, got, 5)
	wantIDs := []float64{50002, 50004, 50006, 50008, 50010}
	for i, row := range got {
		assert.Equal(t, wantIDs[i], row["id"])
		assert.Equal(t, true, row["active"])
	}
}

func TestEngine_OrderLimitOffset(t *testing.T) {
	e := newTestEngine(t, Options{})
	conn := inlineConnector("mem", []domain.Row{
		{"id": 3, "name": "C"},
		{"id": 1, "name": "A"},
		{"id": 2, "name": "B"},
	})

	spec := &domain.QuerySpec{
		OrderBy: &domain.OrderBy{Column: "id", Direction: "desc"},
		Limit:   1,
		Offset:  1,
	}
	got, err := e.Query(context.Background(), simpleTable, conn, spec)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, float64(2), got[0]["id"])
}

func TestEngine_ContainsFilter(t *testing.T) {
	e := newTestEngine(t, Options{})
	conn := inlineConnector("mem", []domain.Row{
		{"id": 1, "name": "档案系统"},
		{"id": 2, "name": "查询网关"},
	})

	spec := &domain.QuerySpec{Filters: []domain.Filter{{Field: "name", Operator: domain.OpContains, Value: "网关"}}}
	got, err := e.Query(context.Background(), simpleTable, conn, spec)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "查询网关", got[0]["name"])
}

// ===============================
// 类型往返
// ===============================

func TestEngine_DateColumnRoundTrip(t *testing.T) {
	table := &domain.Table{
		ID: "events",
		Fields: []domain.Field{
			{ID: "id", Kind: domain.FieldNumber, Key: true},
			{ID: "at", Kind: domain.FieldDate},
		},
	}
	at := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	e := newTestEngine(t, Options{})
	conn := inlineConnector("mem", []domain.Row{{"id": 1, "at": at}})

	got, err := e.Query(context.Background(), table, conn, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, at, got[0]["at"])
}

func TestEngine_JSONRoundTrip(t *testing.T) {
	table := &domain.Table{
		ID: "docs",
		Fields: []domain.Field{
			{ID: "id", Kind: domain.FieldNumber, Key: true},
			{ID: "meta", Kind: domain.FieldJSON, Children: []domain.Field{{ID: "a", Kind: domain.FieldNumber}}},
			{ID: "blob", Kind: domain.FieldJSON},
			{ID: "tags", Kind: domain.FieldList, Element: &domain.Field{ID: "tag", Kind: domain.FieldText}},
		},
	}
	e := newTestEngine(t, Options{})
	conn := inlineConnector("mem", []domain.Row{
		{"id": 1, "meta": map[string]any{"a": float64(7)}, "blob": map[string]any{"k": "v"}, "tags": []any{"x", "y"}},
		{"id": 2, "blob": "{oops"},
	})

	got, err := e.Query(context.Background(), table, conn, &domain.QuerySpec{
		OrderBy: &domain.OrderBy{Column: "id"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, map[string]any{"a": float64(7)}, got[0]["meta"], "有子字段的 JSON 应还原为对象")
	assert.Equal(t, map[string]any{"k": "v"}, got[0]["blob"])
	assert.Equal(t, []any{"x", "y"}, got[0]["tags"])
	assert.Equal(t, "{oops", got[1]["blob"], "解析失败的存量字符串应原样返回")
}

func TestEngine_EncryptedFieldRoundTrip(t *testing.T) {
	table := &domain.Table{
		ID: "vault",
		Fields: []domain.Field{
			{ID: "id", Kind: domain.FieldNumber, Key: true},
			{ID: "secret", Kind: domain.FieldText, Encrypted: true},
		},
	}
	codec := fieldcrypt.New("engine-test-key")
	original := domain.Row{"id": 1, "secret": "绝密"}
	stored, err := codec.Encode(original, table)
	require.NoError(t, err)

	e := newTestEngine(t, Options{Codec: codec})
	conn := inlineConnector("mem", []domain.Row{stored})

	got, err := e.Query(context.Background(), table, conn, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, float64(1), got[0]["id"])
	assert.Equal(t, "绝密", got[0]["secret"], "引擎出口应自动解密")
}

// ===============================
// 数据源形态
// ===============================

func TestEngine_StreamSource(t *testing.T) {
	e := newTestEngine(t, Options{})
	conn := &streamerConnector{
		baseConnector: baseConnector{id: "stream"},
		rows: []domain.Row{
			{"id": 1, "name": "A"},
			{"id": 2, "name": "B"},
		},
	}

	got, err := e.Query(context.Background(), simpleTable, conn, &domain.QuerySpec{
		OrderBy: &domain.OrderBy{Column: "id"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0]["name"])
}

func TestEngine_FileSources(t *testing.T) {
	dir := t.TempDir()
	arrayPath := filepath.Join(dir, "a.json")
	ndjsonPath := filepath.Join(dir, "b.ndjson")
	require.NoError(t, os.WriteFile(arrayPath, []byte(`[{"id":1,"name":"A"}]`), 0o644))
	require.NoError(t, os.WriteFile(ndjsonPath, []byte("{\"id\":2,\"name\":\"B\"}\n{\"id\":3,\"name\":\"C\"}\n"), 0o644))

	e := newTestEngine(t, Options{})
	conn := &providerConnector{
		baseConnector: baseConnector{id: "files"},
		def: &domain.DataSourceDefinition{
			Kind:      domain.SourceFile,
			FilePaths: []string{arrayPath, ndjsonPath},
		},
	}

	got, err := e.Query(context.Background(), simpleTable, conn, &domain.QuerySpec{
		OrderBy: &domain.OrderBy{Column: "id"},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "C", got[2]["name"])
}

func TestEngine_URLSourceViaFileScheme(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":9,"name":"remote"}]`), 0o644))

	e := newTestEngine(t, Options{
		Downloaders: []downloader.Downloader{
			&downloader.HTTPDownloader{Client: http.DefaultClient},
			&downloader.FileDownloader{},
		},
	})
	conn := &providerConnector{
		baseConnector: baseConnector{id: "remote"},
		def:           &domain.DataSourceDefinition{Kind: domain.SourceURL, URL: "file://" + path},
	}

	got, err := e.Query(context.Background(), simpleTable, conn, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "remote", got[0]["name"])
}

func TestEngine_ConnectionSource(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "external.db")
	ext, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer ext.Close()
	_, err = ext.Exec(`CREATE TABLE items (id INTEGER, label TEXT)`)
	require.NoError(t, err)
	_, err = ext.Exec(`INSERT INTO items (id, label) VALUES (1, 'alpha'), (2, 'beta')`)
	require.NoError(t, err)

	table := &domain.Table{
		ID: "items",
		Fields: []domain.Field{
			{ID: "id", Kind: domain.FieldNumber, Key: true},
			{ID: "label", Kind: domain.FieldText},
		},
	}
	e := newTestEngine(t, Options{
		Connections: staticConnections{
			"ext": {ID: "ext", Driver: "sqlite", DSN: dbPath},
		},
	})
	conn := &providerConnector{
		baseConnector: baseConnector{id: "bridge"},
		def: &domain.DataSourceDefinition{
			Kind:         domain.SourceConnection,
			ConnectionID: "ext",
			Query:        "SELECT id, label FROM items",
		},
	}

	got, err := e.Query(context.Background(), table, conn, &domain.QuerySpec{
		Filters: []domain.Filter{{Field: "label", Operator: domain.OpEq, Value: "beta"}},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, float64(2), got[0]["id"])
}

func TestEngine_UnknownConnectionFails(t *testing.T) {
	e := newTestEngine(t, Options{Connections: staticConnections{}})
	conn := &providerConnector{
		baseConnector: baseConnector{id: "bridge"},
		def: &domain.DataSourceDefinition{
			Kind:         domain.SourceConnection,
			ConnectionID: "ghost",
			Query:        "SELECT 1",
		},
	}

	_, err := e.Query(context.Background(), simpleTable, conn, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrConnectionNotFound)
}

// ===============================
// 资源回收
// ===============================

func TestEngine_TempRelationsDropped(t *testing.T) {
	e := newTestEngine(t, Options{})
	conn := inlineConnector("mem", []domain.Row{{"id": 1, "name": "A"}})

	for i := 0; i < 3; i++ {
		_, err := e.Query(context.Background(), simpleTable, conn, nil)
		require.NoError(t, err)
	}

	var leftover int
	err := e.db.QueryRow(`SELECT count(*) FROM information_schema.tables WHERE table_name LIKE 'src_%'`).Scan(&leftover)
	require.NoError(t, err)
	assert.Zero(t, leftover, "查询结束后不应残留临时关系")
}
