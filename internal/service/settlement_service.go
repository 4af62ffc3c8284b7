package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/staffops/staffing-api/internal/models"
	"github.com/staffops/staffing-api/internal/repository"
	appErrors "github.com/staffops/staffing-api/pkg/errors"
	"github.com/staffops/staffing-api/pkg/export"
)

type paymentRepository interface {
	Generate(ctx context.Context, userID string, periodStart, periodEnd time.Time, build repository.BuildFunc) (*models.Payment, error)
	FindByID(ctx context.Context, id string) (*models.PaymentWithDetails, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	UpdateStatus(ctx context.Context, id string, target models.PaymentStatus, paidAt *time.Time, now time.Time) (*models.Payment, error)
}

type settlementMetrics interface {
	IncSettlementRun(result string)
	IncPaymentCompleted()
}

// GeneratePaymentRequest describes one settlement run.
type GeneratePaymentRequest struct {
	UserID               string    `json:"user_id" validate:"required"`
	PeriodStart          time.Time `json:"period_start" validate:"required"`
	PeriodEnd            time.Time `json:"period_end" validate:"required"`
	HourlyWage           int       `json:"hourly_wage" validate:"required,gt=0"`
	TransportationAmount int       `json:"transportation_amount" validate:"gte=0"`
	DeductionAmount      int       `json:"deduction_amount" validate:"gte=0"`
	// AcknowledgeNegativeTotal permits clamping a negative total to zero.
	// Without it a negative total aborts as an integrity violation so the
	// deduction can be reconciled by an operator.
	AcknowledgeNegativeTotal bool `json:"acknowledge_negative_total"`
}

// StatementFormat selects the export encoding for payment statements.
type StatementFormat string

const (
	StatementCSV StatementFormat = "csv"
	StatementPDF StatementFormat = "pdf"
)

// SettlementService aggregates approved attendance into payment ledger
// entries. The eligibility query and the detail inserts share one
// transaction in the repository; this layer computes the amounts and retries
// on concurrency conflicts, which is safe because the attendance claim is
// idempotent.
type SettlementService struct {
	repo       paymentRepository
	notify     notifier
	metrics    settlementMetrics
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	validator  *validator.Validate
	logger     *zap.Logger
	clock      Clock
	maxRetries int
	retryDelay time.Duration
}

// NewSettlementService constructs SettlementService.
func NewSettlementService(repo paymentRepository, notify notifier, metrics settlementMetrics, validate *validator.Validate, logger *zap.Logger, clock Clock, maxRetries int, retryDelay time.Duration) *SettlementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = defaultClock
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = 100 * time.Millisecond
	}
	return &SettlementService{
		repo:       repo,
		notify:     notify,
		metrics:    metrics,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		validator:  validate,
		logger:     logger,
		clock:      clock,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Generate runs one settlement for a staff member and period.
func (s *SettlementService) Generate(ctx context.Context, req GeneratePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settlement payload")
	}
	if req.PeriodEnd.Before(req.PeriodStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period end before period start")
	}

	var payment *models.Payment
	var err error
	for attempt := 0; ; attempt++ {
		payment, err = s.repo.Generate(ctx, req.UserID, req.PeriodStart, req.PeriodEnd, s.buildFunc(req))
		if err == nil {
			break
		}
		if !repository.IsRetryable(err) || attempt >= s.maxRetries {
			if s.metrics != nil {
				s.metrics.IncSettlementRun("error")
			}
			return nil, err
		}
		s.logger.Warn("settlement conflicted, retrying",
			zap.String("user_id", req.UserID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "settlement cancelled")
		case <-time.After(s.retryDelay * time.Duration(attempt+1)):
		}
	}

	if s.metrics != nil {
		s.metrics.IncSettlementRun("ok")
	}
	return payment, nil
}

// buildFunc turns the locked eligible attendance set into the ledger entry.
func (s *SettlementService) buildFunc(req GeneratePaymentRequest) repository.BuildFunc {
	return func(eligible []models.SettleableAttendance) (*models.Payment, []models.PaymentDetail, error) {
		if len(eligible) == 0 {
			return nil, nil, appErrors.ErrNoEligibleAttendance
		}

		now := s.clock()
		paymentID := uuid.NewString()
		details := make([]models.PaymentDetail, 0, len(eligible))
		base := 0
		for _, att := range eligible {
			hours, _ := models.ComputeWorkHours(att.ClockIn, att.ClockOut, att.BreakMinutes)
			if hours == nil {
				// Approved attendance always carries both clock events;
				// anything else slipped past the approval guard.
				return nil, nil, appErrors.Clone(appErrors.ErrIntegrityViolation, fmt.Sprintf("approved attendance %s is missing clock events", att.ID))
			}
			amount := roundHalfUp(*hours * float64(req.HourlyWage))
			details = append(details, models.PaymentDetail{
				ID:           uuid.NewString(),
				PaymentID:    paymentID,
				AttendanceID: att.ID,
				WorkHours:    *hours,
				HourlyWage:   req.HourlyWage,
				Amount:       amount,
				CreatedAt:    now,
			})
			base += amount
		}

		total := base + req.TransportationAmount - req.DeductionAmount
		if total < 0 {
			if !req.AcknowledgeNegativeTotal {
				return nil, nil, appErrors.Clone(appErrors.ErrIntegrityViolation, fmt.Sprintf("total would be %d after deductions, acknowledgement required", total))
			}
			s.logger.Warn("negative settlement total clamped to zero",
				zap.String("user_id", req.UserID),
				zap.Int("base_amount", base),
				zap.Int("deduction_amount", req.DeductionAmount))
			total = 0
		}

		payment := &models.Payment{
			ID:                   paymentID,
			UserID:               req.UserID,
			PeriodStart:          req.PeriodStart,
			PeriodEnd:            req.PeriodEnd,
			BaseAmount:           base,
			TransportationAmount: req.TransportationAmount,
			DeductionAmount:      req.DeductionAmount,
			TotalAmount:          total,
			Status:               models.PaymentStatusPending,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		return payment, details, nil
	}
}

// MarkProcessing moves a pending payment into processing.
func (s *SettlementService) MarkProcessing(ctx context.Context, paymentID string) (*models.Payment, error) {
	return s.repo.UpdateStatus(ctx, paymentID, models.PaymentStatusProcessing, nil, s.clock())
}

// MarkCompleted finalises the payment. Completed entries are immutable.
func (s *SettlementService) MarkCompleted(ctx context.Context, paymentID string) (*models.Payment, error) {
	now := s.clock()
	payment, err := s.repo.UpdateStatus(ctx, paymentID, models.PaymentStatusCompleted, &now, now)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncPaymentCompleted()
	}
	if s.notify != nil {
		s.notify.Dispatch(models.Notification{
			Type:       models.NotificationPaymentCompleted,
			UserID:     payment.UserID,
			ResourceID: payment.ID,
			Message:    "your payment has been processed",
			OccurredAt: now,
		})
	}
	return payment, nil
}

// Get returns a payment with its line items.
func (s *SettlementService) Get(ctx context.Context, paymentID string) (*models.PaymentWithDetails, error) {
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// List returns payments with pagination metadata.
func (s *SettlementService) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ExportStatement renders a payment and its line items as CSV or PDF.
func (s *SettlementService) ExportStatement(ctx context.Context, paymentID string, format StatementFormat) ([]byte, string, error) {
	payment, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, "", err
	}

	headers := []string{"Attendance", "Work Hours", "Hourly Wage", "Amount"}
	rows := make([]map[string]string, 0, len(payment.Details))
	for _, d := range payment.Details {
		rows = append(rows, map[string]string{
			"Attendance":  d.AttendanceID,
			"Work Hours":  fmt.Sprintf("%.2f", d.WorkHours),
			"Hourly Wage": fmt.Sprintf("%d", d.HourlyWage),
			"Amount":      fmt.Sprintf("%d", d.Amount),
		})
	}
	dataset := export.Dataset{
		Headers: headers,
		Rows:    rows,
		Footer: map[string]string{
			"Attendance": "TOTAL",
			"Amount":     fmt.Sprintf("%d", payment.TotalAmount),
		},
	}
	title := fmt.Sprintf("Payment statement %s to %s",
		payment.PeriodStart.Format("2006-01-02"), payment.PeriodEnd.Format("2006-01-02"))

	switch format {
	case StatementPDF:
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
		}
		return data, "application/pdf", nil
	case StatementCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
		}
		return data, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported statement format")
	}
}

// roundHalfUp rounds to the nearest integer currency unit, halves up.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
