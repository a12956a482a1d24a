package service

import (
	"strings"

	"github.com/ordernext/internal/constants"
	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/repository"
)

// HistoryService 订单历史服务；只有备注可编辑和删除
type HistoryService struct {
	orderRepo   repository.OrderRepository
	historyRepo repository.HistoryRepository
}

// NewHistoryService 创建订单历史服务
func NewHistoryService(orderRepo repository.OrderRepository, historyRepo repository.HistoryRepository) *HistoryService {
	return &HistoryService{
		orderRepo:   orderRepo,
		historyRepo: historyRepo,
	}
}

// List 分页查询订单历史
func (s *HistoryService) List(filter repository.HistoryListFilter) ([]models.HistoryEntry, int64, error) {
	filter.Page, filter.PageSize = repository.NormalizePagination(filter.Page, filter.PageSize)
	return s.historyRepo.List(filter)
}

// AddNote 添加订单备注
func (s *HistoryService) AddNote(orderID uint, note string, isPublic bool, adminID uint) (*models.HistoryEntry, error) {
	note = strings.TrimSpace(note)
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	entry := &models.HistoryEntry{
		OrderID:         order.ID,
		Type:            constants.HistoryTypeNote,
		Data:            models.JSON{"note": note},
		AdministratorID: adminID,
		IsPublic:        isPublic,
	}
	if err := s.historyRepo.Append(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdateNote 更新订单备注
func (s *HistoryService) UpdateNote(entryID uint, note string, isPublic bool) (*models.HistoryEntry, error) {
	entry, err := s.historyRepo.GetByID(entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.Type != constants.HistoryTypeNote {
		return nil, ErrHistoryEntryNotFound
	}
	data := models.JSON{"note": strings.TrimSpace(note)}
	if err := s.historyRepo.UpdateNote(entryID, data, isPublic); err != nil {
		return nil, err
	}
	entry.Data = data
	entry.IsPublic = isPublic
	return entry, nil
}

// DeleteNote 删除订单备注
func (s *HistoryService) DeleteNote(entryID uint) error {
	entry, err := s.historyRepo.GetByID(entryID)
	if err != nil {
		return err
	}
	if entry == nil || entry.Type != constants.HistoryTypeNote {
		return ErrHistoryEntryNotFound
	}
	return s.historyRepo.DeleteNote(entryID)
}
