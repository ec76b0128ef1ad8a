// Package cart реализует операции над корзиной покупателя.
package cart

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Service описывает операции корзины.
type Service interface {
	// AddItem добавляет товар в корзину. Если товар уже есть, количество
	// суммируется, а цена перештамповывается из каталога.
	AddItem(userID, productID string, qty int32) (domain.CartItem, error)
	// UpdateItem выставляет новое количество позиции. Цена не меняется.
	UpdateItem(userID, productID string, qty int32) (domain.CartItem, error)
	// RemoveItem удаляет позицию корзины.
	RemoveItem(userID, productID string) error
	// Clear удаляет все позиции корзины пользователя.
	Clear(userID string) error
	// List возвращает позиции корзины пользователя.
	List(userID string) ([]domain.CartItem, error)
	// Snapshot строит неизменяемый снимок корзины для checkout.
	// Пустая корзина — ошибка ErrCartEmpty.
	Snapshot(userID string) (domain.CartSnapshot, error)
}

type service struct {
	repo    domain.CartRepository
	catalog domain.Catalog
	logger  *log.Entry
}

// NewService создаёт сервис корзины.
func NewService(repo domain.CartRepository, catalog domain.Catalog, logger *log.Entry) Service {
	if logger == nil {
		logger = log.New().WithField("component", "cart")
	}
	return &service{repo: repo, catalog: catalog, logger: logger}
}

func (s *service) AddItem(userID, productID string, qty int32) (domain.CartItem, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.CartItem{}, domain.ErrUserRequired
	}
	if strings.TrimSpace(productID) == "" {
		return domain.CartItem{}, domain.ErrProductRequired
	}
	if !domain.ValidCartQty(qty) {
		return domain.CartItem{}, domain.ErrInvalidQuantity
	}
	if !s.catalog.IsAvailable(productID) {
		return domain.CartItem{}, domain.ErrProductUnavailable
	}

	price, err := s.catalog.PriceOf(productID)
	if err != nil {
		return domain.CartItem{}, err
	}
	if price <= 0 {
		return domain.CartItem{}, domain.ErrInvalidPrice
	}

	now := time.Now().UTC()

	existing, err := s.repo.GetByUserAndProduct(userID, productID)
	switch {
	case err == nil:
		newQty := existing.Qty + qty
		if !domain.ValidCartQty(newQty) {
			return domain.CartItem{}, domain.ErrInvalidQuantity
		}
		existing.Qty = newQty
		existing.PriceMinor = price
		existing.UpdatedAt = now
		if err := s.repo.Upsert(existing); err != nil {
			return domain.CartItem{}, err
		}
		return existing, nil
	case errors.Is(err, domain.ErrCartItemNotFound):
		item := domain.CartItem{
			ID:         uuid.NewString(),
			UserID:     userID,
			ProductID:  productID,
			Qty:        qty,
			PriceMinor: price,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repo.Upsert(item); err != nil {
			return domain.CartItem{}, err
		}
		return item, nil
	default:
		return domain.CartItem{}, err
	}
}

func (s *service) UpdateItem(userID, productID string, qty int32) (domain.CartItem, error) {
	if !domain.ValidCartQty(qty) {
		return domain.CartItem{}, domain.ErrInvalidQuantity
	}

	item, err := s.repo.GetByUserAndProduct(userID, productID)
	if err != nil {
		return domain.CartItem{}, err
	}

	item.Qty = qty
	item.UpdatedAt = time.Now().UTC()
	if err := s.repo.Upsert(item); err != nil {
		return domain.CartItem{}, err
	}

	return item, nil
}

func (s *service) RemoveItem(userID, productID string) error {
	item, err := s.repo.GetByUserAndProduct(userID, productID)
	if err != nil {
		return err
	}
	return s.repo.Remove(item.ID)
}

func (s *service) Clear(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.ErrUserRequired
	}
	return s.repo.Clear(userID)
}

func (s *service) List(userID string) ([]domain.CartItem, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUserRequired
	}
	return s.repo.ListByUser(userID)
}

// Snapshot фиксирует строки корзины с ценами на момент снимка.
// Итог заказа потом считается из этих строк, каталог больше не участвует.
func (s *service) Snapshot(userID string) (domain.CartSnapshot, error) {
	items, err := s.List(userID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if len(items) == 0 {
		return domain.CartSnapshot{}, domain.ErrCartEmpty
	}

	snapshot := domain.CartSnapshot{
		UserID:  userID,
		Lines:   make([]domain.CartLine, 0, len(items)),
		TakenAt: time.Now().UTC(),
	}
	for _, item := range items {
		line := domain.CartLine{
			ProductID:     item.ProductID,
			Qty:           item.Qty,
			PriceMinor:    item.PriceMinor,
			SubtotalMinor: int64(item.Qty) * item.PriceMinor,
		}
		snapshot.Lines = append(snapshot.Lines, line)
		snapshot.TotalMinor += line.SubtotalMinor
	}

	return snapshot, nil
}

var _ Service = (*service)(nil)
