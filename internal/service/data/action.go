// Package data file: internal/service/data/action.go
package data

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
	"github.com/schemafx/schemafx/internal/service"
)

// frame 是动作展开栈上的一帧。深度随帧传递，
// 因此上限判定只依赖配置值，和宿主调用栈无关。
type frame struct {
	actionID string
	depth    int
}

// ExecuteAction 按 ID 执行表上声明的动作，并把结果写入审计日志。
func (s *Service) ExecuteAction(ctx context.Context, appID, tableID, actionID string, rows []domain.Row) error {
	_, table, conn, err := s.resolveTable(ctx, appID, tableID)
	if err != nil {
		return err
	}

	err = s.runAction(ctx, appID, table, conn, actionID, rows)
	s.recordAction(ctx, appID, tableID, actionID, err)
	return err
}

// runAction 用显式栈展开动作调用。Process 的子动作逆序压栈，
// 弹出顺序即声明顺序；自引用的 Process 在深度越限时报错而不是挂起。
func (s *Service) runAction(ctx context.Context, appID string, table *domain.Table, conn port.Connector, actionID string, rows []domain.Row) error {
	stack := []frame{{actionID: actionID}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.depth > s.maxDepth {
			return fmt.Errorf("动作 %q 在深度 %d 处越限: %w", f.actionID, f.depth, port.ErrRecursionLimit)
		}

		action := table.ActionByID(f.actionID)
		if action == nil {
			return fmt.Errorf("动作 %q: %w", f.actionID, port.ErrActionNotFound)
		}

		switch action.Kind {
		case domain.ActionAdd:
			if err := s.addRows(ctx, appID, table, conn, rows); err != nil {
				return err
			}
		case domain.ActionUpdate:
			if err := s.updateRows(ctx, appID, table, conn, rows); err != nil {
				return err
			}
		case domain.ActionDelete:
			if err := s.deleteRows(ctx, table, conn, rows); err != nil {
				return err
			}
		case domain.ActionProcess:
			for i := len(action.SubActions) - 1; i >= 0; i-- {
				stack = append(stack, frame{actionID: action.SubActions[i], depth: f.depth + 1})
			}
		default:
			return fmt.Errorf("动作 %q 的类型 %q 未知", action.ID, action.Kind)
		}
	}
	return nil
}

// addRows 逐行校验、加密并写入。
func (s *Service) addRows(ctx context.Context, appID string, table *domain.Table, conn port.Connector, rows []domain.Row) error {
	writer, ok := conn.(port.RowWriter)
	if !ok {
		return fmt.Errorf("连接器 %q 不支持新增行: %w", conn.ID(), port.ErrConnectorContract)
	}

	validator, err := s.schemas.Validator(ctx, appID, table.ID)
	if err != nil {
		return err
	}

	for _, row := range rows {
		clean, err := validator.Validate(row)
		if err != nil {
			return err
		}
		encoded, err := s.codec.Encode(clean, table)
		if err != nil {
			return err
		}
		if err := writer.AddRow(ctx, table, encoded); err != nil {
			return fmt.Errorf("向表 %q 新增行失败: %w", table.ID, err)
		}
	}
	return nil
}

// updateRows 按 key 字段值更新。缺少 key 的行跳过而不是整批失败。
func (s *Service) updateRows(ctx context.Context, appID string, table *domain.Table, conn port.Connector, rows []domain.Row) error {
	updater, ok := conn.(port.RowUpdater)
	if !ok {
		return fmt.Errorf("连接器 %q 不支持更新行: %w", conn.ID(), port.ErrConnectorContract)
	}

	validator, err := s.schemas.Validator(ctx, appID, table.ID)
	if err != nil {
		return err
	}

	for _, row := range rows {
		key := extractKey(table, row)
		if len(key) == 0 {
			slog.Debug("行缺少 key 字段值，跳过更新", "table", table.ID)
			continue
		}
		clean, err := validator.Validate(row)
		if err != nil {
			return err
		}
		encoded, err := s.codec.Encode(clean, table)
		if err != nil {
			return err
		}
		if err := updater.UpdateRow(ctx, table, key, encoded); err != nil {
			return fmt.Errorf("更新表 %q 的行失败: %w", table.ID, err)
		}
	}
	return nil
}

// deleteRows 按 key 字段值删除。删除不做校验也不做加密。
func (s *Service) deleteRows(ctx context.Context, table *domain.Table, conn port.Connector, rows []domain.Row) error {
	deleter, ok := conn.(port.RowDeleter)
	if !ok {
		return fmt.Errorf("连接器 %q 不支持删除行: %w", conn.ID(), port.ErrConnectorContract)
	}

	for _, row := range rows {
		key := extractKey(table, row)
		if len(key) == 0 {
			slog.Debug("行缺少 key 字段值，跳过删除", "table", table.ID)
			continue
		}
		if err := deleter.DeleteRow(ctx, table, key); err != nil {
			return fmt.Errorf("删除表 %q 的行失败: %w", table.ID, err)
		}
	}
	return nil
}

// extractKey 取出行里出现的 key 字段值。显式的 null 也算出现。
func extractKey(table *domain.Table, row domain.Row) domain.Row {
	key := domain.Row{}
	for _, f := range table.KeyFields() {
		if v, ok := row[f.ID]; ok {
			key[f.ID] = v
		}
	}
	return key
}

// recordAction 往系统库追加一条动作执行记录。
// 审计写入失败只记日志，不改变动作本身的结果。
func (s *Service) recordAction(ctx context.Context, appID, tableID, actionID string, execErr error) {
	if s.audit == nil {
		return
	}

	status := "COMPLETED"
	var errText any
	if execErr != nil {
		status = "FAILED"
		errText = execErr.Error()
	}

	email := ""
	if claim := service.ClaimFromContext(ctx); claim != nil {
		email = claim.Email
	}

	_, err := s.audit.ExecContext(ctx,
		`INSERT INTO action_log (action_id, app_id, table_id, user_email, status, error) VALUES (?, ?, ?, ?, ?, ?)`,
		actionID, appID, tableID, email, status, errText)
	if err != nil {
		slog.Warn("写入动作审计日志失败", "action", actionID, "table", tableID, "error", err)
	}
}
