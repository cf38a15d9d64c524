package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/farellandr/hadir/internal/helpers"
	"github.com/farellandr/hadir/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const PaymentMethodMidtrans = "midtrans"

// GatewayOrder is what the payment gateway needs to open a checkout.
type GatewayOrder struct {
	OrderID       string
	Amount        int64
	ItemID        string
	ItemName      string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
}

type GatewayTransaction struct {
	Token       string
	RedirectURL string
}

type Gateway interface {
	CreateTransaction(ctx context.Context, order GatewayOrder) (*GatewayTransaction, error)
	ClientKey() string
}

type Checkout struct {
	OrderID    uuid.UUID `json:"order_id"`
	SnapToken  string    `json:"snap_token"`
	PaymentURL string    `json:"payment_url"`
	ClientKey  string    `json:"client_key"`
	Amount     int64     `json:"amount"`
}

// Notification carries the fields of a gateway callback that matter here.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	PaymentType       string `json:"payment_type"`
}

type NotificationOutcome string

const (
	OutcomePaid             NotificationOutcome = "paid"
	OutcomeFailed           NotificationOutcome = "failed"
	OutcomeIgnored          NotificationOutcome = "ignored"
	OutcomeAlreadyProcessed NotificationOutcome = "already_processed"
)

type NotificationResult struct {
	OrderID uuid.UUID           `json:"order_id"`
	Outcome NotificationOutcome `json:"outcome"`
}

type PaymentService struct {
	db        *gorm.DB
	gateway   Gateway
	serverKey string
	logger    *slog.Logger
}

func NewPaymentService(db *gorm.DB, gateway Gateway, serverKey string, logger *slog.Logger) *PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentService{db: db, gateway: gateway, serverKey: serverKey, logger: logger}
}

// CreatePayment opens a checkout for a paid event. The payment and a
// pending registration are stored before the gateway is called.
func (s *PaymentService) CreatePayment(ctx context.Context, eventID, userID uuid.UUID) (*Checkout, error) {
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: no gateway configured", ErrGateway)
	}

	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, persistence(err)
	}
	if !event.IsPaid || event.Price <= 0 {
		return nil, ErrEventIsFree
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, persistence(err)
	}

	payment := models.Payment{
		EventID: eventID,
		UserID:  userID,
		Amount:  event.Price,
		Method:  PaymentMethodMidtrans,
		Status:  models.PaymentStatusPending,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var registration models.Registration
		err := tx.Where("event_id = ? AND user_id = ?", eventID, userID).First(&registration).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			registration = models.Registration{
				EventID:       eventID,
				UserID:        userID,
				PaymentStatus: models.PaymentStatusPending,
			}
			if err := tx.Create(&registration).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		case registration.PaymentStatus == models.PaymentStatusPaid:
			return ErrAlreadyRegistered
		case registration.PaymentStatus == models.PaymentStatusFailed:
			if err := tx.Model(&registration).Update("payment_status", models.PaymentStatusPending).Error; err != nil {
				return err
			}
		}
		return tx.Create(&payment).Error
	})
	if errors.Is(err, ErrAlreadyRegistered) {
		return nil, err
	}
	if err != nil {
		return nil, persistence(err)
	}

	transaction, err := s.gateway.CreateTransaction(ctx, GatewayOrder{
		OrderID:       payment.ID.String(),
		Amount:        payment.Amount,
		ItemID:        event.ID.String(),
		ItemName:      event.Name,
		CustomerID:    user.ID.String(),
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
	})
	if err != nil {
		if _, markErr := s.markFailed(ctx, &payment, ""); markErr != nil {
			s.logger.Warn("could not mark payment failed after gateway error",
				"order_id", payment.ID,
				"error", markErr,
			)
		}
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	if err := s.db.WithContext(ctx).Model(&payment).Update("snap_token", transaction.Token).Error; err != nil {
		return nil, persistence(err)
	}

	return &Checkout{
		OrderID:    payment.ID,
		SnapToken:  transaction.Token,
		PaymentURL: transaction.RedirectURL,
		ClientKey:  s.gateway.ClientKey(),
		Amount:     payment.Amount,
	}, nil
}

// Get returns a payment owned by userID.
func (s *PaymentService) Get(ctx context.Context, paymentID, userID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Preload("Event").
		Where("id = ? AND user_id = ?", paymentID, userID).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, persistence(err)
	}
	return &payment, nil
}

// HandleNotification reconciles a gateway callback. Replays of a callback
// that already marked the payment paid change nothing.
func (s *PaymentService) HandleNotification(ctx context.Context, n Notification) (*NotificationResult, error) {
	if !helpers.VerifyMidtransSignature(n.OrderID, n.StatusCode, n.GrossAmount, s.serverKey, n.SignatureKey) {
		s.logger.Warn("rejected payment notification with bad signature", "order_id", n.OrderID)
		return nil, ErrInvalidSignature
	}

	orderID, err := uuid.Parse(n.OrderID)
	if err != nil {
		return nil, ErrPaymentNotFound
	}

	var payment models.Payment
	if err := s.db.WithContext(ctx).First(&payment, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, persistence(err)
	}

	result := &NotificationResult{OrderID: orderID}
	if payment.Status == models.PaymentStatusPaid {
		result.Outcome = OutcomeAlreadyProcessed
		return result, nil
	}

	switch n.TransactionStatus {
	case "settlement", "capture":
		result.Outcome, err = s.markPaid(ctx, &payment, n.TransactionStatus)
	case "cancel", "expire", "deny", "failure":
		result.Outcome, err = s.markFailed(ctx, &payment, n.TransactionStatus)
	default:
		result.Outcome = OutcomeIgnored
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment notification processed",
		"order_id", orderID,
		"transaction_status", n.TransactionStatus,
		"outcome", result.Outcome,
	)
	return result, nil
}

func (s *PaymentService) markPaid(ctx context.Context, payment *models.Payment, gatewayStatus string) (NotificationOutcome, error) {
	outcome := OutcomePaid
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		update := tx.Model(&models.Payment{}).
			Where("id = ? AND status <> ?", payment.ID, models.PaymentStatusPaid).
			Updates(map[string]interface{}{
				"status":         models.PaymentStatusPaid,
				"gateway_status": gatewayStatus,
			})
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			outcome = OutcomeAlreadyProcessed
			return nil
		}

		registration := models.Registration{
			EventID:       payment.EventID,
			UserID:        payment.UserID,
			PaymentStatus: models.PaymentStatusPaid,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payment_status", "updated_at"}),
		}).Create(&registration).Error
	})
	if err != nil {
		return "", persistence(err)
	}
	return outcome, nil
}

// markFailed fails a payment that is not yet paid and moves a pending
// registration to failed. A payment that was settled concurrently is left
// alone and reported as already processed.
func (s *PaymentService) markFailed(ctx context.Context, payment *models.Payment, gatewayStatus string) (NotificationOutcome, error) {
	outcome := OutcomeFailed
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		update := tx.Model(&models.Payment{}).
			Where("id = ? AND status <> ?", payment.ID, models.PaymentStatusPaid).
			Updates(map[string]interface{}{
				"status":         models.PaymentStatusFailed,
				"gateway_status": gatewayStatus,
			})
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			outcome = OutcomeAlreadyProcessed
			return nil
		}
		return tx.Model(&models.Registration{}).
			Where("event_id = ? AND user_id = ? AND payment_status = ?", payment.EventID, payment.UserID, models.PaymentStatusPending).
			Update("payment_status", models.PaymentStatusFailed).Error
	})
	if err != nil {
		return "", persistence(err)
	}
	return outcome, nil
}
