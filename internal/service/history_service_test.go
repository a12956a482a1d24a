package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ordernext/internal/constants"
	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newHistoryTestEnv(t *testing.T) (*HistoryService, *models.Order, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:history_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := models.MigrateAll(db); err != nil {
		t.Fatalf("迁移测试数据库失败: %v", err)
	}
	orderRepo := repository.NewOrderRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	order := &models.Order{
		State:    constants.OrderStateAddingItems,
		Active:   true,
		Currency: "USD",
	}
	if err := orderRepo.Create(order); err != nil {
		t.Fatalf("创建订单失败: %v", err)
	}
	return NewHistoryService(orderRepo, historyRepo), order, db
}

func TestNoteLifecycle(t *testing.T) {
	svc, order, _ := newHistoryTestEnv(t)

	entry, err := svc.AddNote(order.ID, "  内部备注  ", false, 1)
	if err != nil {
		t.Fatalf("添加备注失败: %v", err)
	}
	if entry.Type != constants.HistoryTypeNote {
		t.Fatalf("unexpected entry type: %s", entry.Type)
	}
	if entry.Data["note"] != "内部备注" {
		t.Fatalf("note must be trimmed, got %q", entry.Data["note"])
	}

	updated, err := svc.UpdateNote(entry.ID, "公开备注", true)
	if err != nil {
		t.Fatalf("更新备注失败: %v", err)
	}
	if updated.Data["note"] != "公开备注" || !updated.IsPublic {
		t.Fatalf("unexpected updated note: %+v", updated)
	}

	if err := svc.DeleteNote(entry.ID); err != nil {
		t.Fatalf("删除备注失败: %v", err)
	}
	if err := svc.DeleteNote(entry.ID); !errors.Is(err, ErrHistoryEntryNotFound) {
		t.Fatalf("double delete must fail, got %v", err)
	}
}

func TestAddNoteRequiresOrder(t *testing.T) {
	svc, _, _ := newHistoryTestEnv(t)
	if _, err := svc.AddNote(9999, "备注", false, 1); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}
}

func TestNoteOperationsRejectOtherTypes(t *testing.T) {
	svc, order, db := newHistoryTestEnv(t)
	entry := models.HistoryEntry{
		OrderID:  order.ID,
		Type:     constants.HistoryTypeStateTransition,
		Data:     models.JSON{"from": "adding_items", "to": "cancelled"},
		IsPublic: true,
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("创建历史失败: %v", err)
	}
	if _, err := svc.UpdateNote(entry.ID, "改写", false); !errors.Is(err, ErrHistoryEntryNotFound) {
		t.Fatalf("state transition must not be editable, got %v", err)
	}
	if err := svc.DeleteNote(entry.ID); !errors.Is(err, ErrHistoryEntryNotFound) {
		t.Fatalf("state transition must not be deletable, got %v", err)
	}
}

func TestHistoryListFilters(t *testing.T) {
	svc, order, _ := newHistoryTestEnv(t)
	if _, err := svc.AddNote(order.ID, "公开", true, 1); err != nil {
		t.Fatalf("添加备注失败: %v", err)
	}
	if _, err := svc.AddNote(order.ID, "内部", false, 1); err != nil {
		t.Fatalf("添加备注失败: %v", err)
	}

	all, total, err := svc.List(repository.HistoryListFilter{OrderID: order.ID})
	if err != nil {
		t.Fatalf("查询历史失败: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Fatalf("expected 2 entries, got total=%d len=%d", total, len(all))
	}

	public, total, err := svc.List(repository.HistoryListFilter{OrderID: order.ID, PublicOnly: true})
	if err != nil {
		t.Fatalf("查询历史失败: %v", err)
	}
	if total != 1 || len(public) != 1 {
		t.Fatalf("expected 1 public entry, got total=%d len=%d", total, len(public))
	}
	if public[0].Data["note"] != "公开" {
		t.Fatalf("unexpected public note: %q", public[0].Data["note"])
	}
}
