// Package data file: internal/service/data/action_test.go
package data

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
	"github.com/schemafx/schemafx/internal/store"
)

// opsRecorder 记录动作引擎触发的连接器操作顺序。
type opsRecorder struct {
	id  string
	ops []string
}

var (
	_ port.Connector  = (*opsRecorder)(nil)
	_ port.RowWriter  = (*opsRecorder)(nil)
	_ port.RowUpdater = (*opsRecorder)(nil)
	_ port.RowDeleter = (*opsRecorder)(nil)
)

func (r *opsRecorder) ID() string   { return r.id }
func (r *opsRecorder) Name() string { return "操作记录器" }

func (r *opsRecorder) ListTables(_ context.Context, _ string) ([]port.TableDescriptor, error) {
	return nil, nil
}

func (r *opsRecorder) GetTable(_ context.Context, _ string) (*domain.Table, error) {
	return nil, nil
}

func (r *opsRecorder) GetCapabilities(_ context.Context, _ *domain.Table) (port.Capabilities, error) {
	return port.Capabilities{}, nil
}

func (r *opsRecorder) AddRow(_ context.Context, _ *domain.Table, _ domain.Row) error {
	r.ops = append(r.ops, "add")
	return nil
}

func (r *opsRecorder) UpdateRow(_ context.Context, _ *domain.Table, _ domain.Row, _ domain.Row) error {
	r.ops = append(r.ops, "update")
	return nil
}

func (r *opsRecorder) DeleteRow(_ context.Context, _ *domain.Table, _ domain.Row) error {
	r.ops = append(r.ops, "delete")
	return nil
}

// readonlyConnector 只实现基础契约，没有任何行级操作。
type readonlyConnector struct{ id string }

var _ port.Connector = (*readonlyConnector)(nil)

func (r *readonlyConnector) ID() string   { return r.id }
func (r *readonlyConnector) Name() string { return "只读连接器" }

func (r *readonlyConnector) ListTables(_ context.Context, _ string) ([]port.TableDescriptor, error) {
	return nil, nil
}

func (r *readonlyConnector) GetTable(_ context.Context, _ string) (*domain.Table, error) {
	return nil, nil
}

func (r *readonlyConnector) GetCapabilities(_ context.Context, _ *domain.Table) (port.Capabilities, error) {
	return port.Capabilities{}, nil
}

func TestProcessRunsSubActionsInDeclaredOrder(t *testing.T) {
	rec := &opsRecorder{id: "conn-mem"}
	svc, _ := newTestService(t, nil, []port.Connector{rec}, Options{})

	// act-reset 声明为 [删除, 新增]
	err := svc.ExecuteAction(context.Background(), "crm", "contacts", "act-reset",
		[]domain.Row{{"id": 1, "name": "A"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"delete", "add"}, rec.ops)
}

func TestSelfReferencingProcessHitsDepthLimit(t *testing.T) {
	rec := &opsRecorder{id: "conn-mem"}
	svc, _ := newTestService(t, nil, []port.Connector{rec}, Options{MaxActionDepth: 4})

	err := svc.ExecuteAction(context.Background(), "crm", "contacts", "act-loop", nil)
	require.ErrorIs(t, err, port.ErrRecursionLimit)
	assert.Empty(t, rec.ops, "越限前不应触发任何连接器操作")
}

func TestActionsFailOnMissingRowInterfaces(t *testing.T) {
	ro := &readonlyConnector{id: "conn-mem"}
	svc, _ := newTestService(t, nil, []port.Connector{ro}, Options{})
	ctx := context.Background()

	// 连接器缺少对应的可选接口时动作在首次调用就报契约错误
	err := svc.ExecuteAction(ctx, "crm", "contacts", "act-add", []domain.Row{{"id": 1, "name": "A"}})
	require.ErrorIs(t, err, port.ErrConnectorContract)
	err = svc.ExecuteAction(ctx, "crm", "contacts", "act-update", []domain.Row{{"id": 1, "name": "B"}})
	require.ErrorIs(t, err, port.ErrConnectorContract)
	err = svc.ExecuteAction(ctx, "crm", "contacts", "act-delete", []domain.Row{{"id": 1}})
	require.ErrorIs(t, err, port.ErrConnectorContract)
}

func TestActionAuditLog(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "system.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.EnsureTables(db))

	rec := &opsRecorder{id: "conn-mem"}
	svc, _ := newTestService(t, nil, []port.Connector{rec}, Options{AuditDB: db})
	ctx := context.Background()

	require.NoError(t, svc.ExecuteAction(ctx, "crm", "contacts", "act-add", []domain.Row{{"id": 1, "name": "A"}}))
	require.Error(t, svc.ExecuteAction(ctx, "crm", "contacts", "act-ghost", nil))

	rows, err := db.Query(`SELECT action_id, status FROM action_log ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	type entry struct{ action, status string }
	var entries []entry
	for rows.Next() {
		var e entry
		require.NoError(t, rows.Scan(&e.action, &e.status))
		entries = append(entries, e)
	}
	require.NoError(t, rows.Err())

	require.Len(t, entries, 2)
	assert.Equal(t, entry{"act-add", "COMPLETED"}, entries[0])
	assert.Equal(t, entry{"act-ghost", "FAILED"}, entries[1])
}
