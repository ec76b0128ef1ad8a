// Package stock реализует операции над остатками товаров.
package stock

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Service описывает операции склада.
type Service interface {
	// Create заводит строку остатка для товара.
	Create(productID string, available, lowStockThreshold int32) (domain.Stock, error)
	// Get возвращает остаток товара.
	Get(productID string) (domain.Stock, error)
	// List возвращает остатки для админского листинга.
	List(limit int) ([]domain.Stock, error)
	// Reduce — авторитетное списание. Отклоняет (не урезает) при нехватке.
	Reduce(productID string, qty int32, reason, refID string) (domain.Stock, error)
	// Add увеличивает остаток (приёмка).
	Add(productID string, qty int32, reason string) (domain.Stock, error)
	// Set выставляет абсолютное значение остатка (инвентаризация).
	Set(productID string, qty int32, reason string) (domain.Stock, error)
	// HasStock — рекомендательная проверка наличия. Не блокирует и не резервирует.
	HasStock(productID string, qty int32) (bool, error)
	// Available возвращает текущий остаток товара.
	Available(productID string) (int32, error)
	// IsLowStock сообщает, опустился ли остаток до порога.
	IsLowStock(productID string) (bool, error)
	// History возвращает строки аудита по товару.
	History(productID string) ([]domain.StockHistory, error)
}

type service struct {
	repo   domain.StockRepository
	logger *log.Entry
}

// NewService создаёт сервис склада.
func NewService(repo domain.StockRepository, logger *log.Entry) Service {
	if logger == nil {
		logger = log.New().WithField("component", "stock")
	}
	return &service{repo: repo, logger: logger}
}

func (s *service) Create(productID string, available, lowStockThreshold int32) (domain.Stock, error) {
	if strings.TrimSpace(productID) == "" {
		return domain.Stock{}, domain.ErrProductRequired
	}
	if available < 0 || lowStockThreshold < 0 {
		return domain.Stock{}, domain.ErrInvalidQuantity
	}

	now := time.Now().UTC()
	stock := domain.Stock{
		ID:                uuid.NewString(),
		ProductID:         productID,
		Available:         available,
		LowStockThreshold: lowStockThreshold,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(stock); err != nil {
		return domain.Stock{}, err
	}

	return stock, nil
}

func (s *service) Get(productID string) (domain.Stock, error) {
	return s.repo.Get(productID)
}

func (s *service) List(limit int) ([]domain.Stock, error) {
	return s.repo.ListAll(limit)
}

func (s *service) Reduce(productID string, qty int32, reason, refID string) (domain.Stock, error) {
	stock, err := s.repo.Reduce(productID, qty, reason, refID)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			s.logger.WithFields(log.Fields{
				"product_id": productID,
				"qty":        qty,
				"ref_id":     refID,
			}).Warn("stock reduction rejected")
		}
		return domain.Stock{}, err
	}

	if stock.IsLowStock() {
		s.logger.WithFields(log.Fields{
			"product_id": stock.ProductID,
			"available":  stock.Available,
			"threshold":  stock.LowStockThreshold,
		}).Warn("stock below threshold")
	}

	return stock, nil
}

func (s *service) Add(productID string, qty int32, reason string) (domain.Stock, error) {
	return s.repo.Add(productID, qty, reason)
}

func (s *service) Set(productID string, qty int32, reason string) (domain.Stock, error) {
	return s.repo.Set(productID, qty, reason)
}

// HasStock — рекомендательное чтение: к моменту авторитетного списания
// остаток мог измениться.
func (s *service) HasStock(productID string, qty int32) (bool, error) {
	if qty <= 0 {
		return false, domain.ErrInvalidQuantity
	}
	stock, err := s.repo.Get(productID)
	if err != nil {
		return false, err
	}
	return stock.Available >= qty, nil
}

func (s *service) Available(productID string) (int32, error) {
	stock, err := s.repo.Get(productID)
	if err != nil {
		return 0, err
	}
	return stock.Available, nil
}

func (s *service) IsLowStock(productID string) (bool, error) {
	stock, err := s.repo.Get(productID)
	if err != nil {
		return false, err
	}
	return stock.IsLowStock(), nil
}

func (s *service) History(productID string) ([]domain.StockHistory, error) {
	return s.repo.History(productID)
}

var _ Service = (*service)(nil)
