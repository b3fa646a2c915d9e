package businesses

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/localbiz-backend/pkg/db/dbtest"
	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/localbiz-backend/pkg/errors"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/localbiz-backend/pkg/pagination"
)

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newSQLiteService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	logg := newTestLogger()
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		TxRunner: dbtest.TxRunner{DB: conn},
		Outbox:   outbox.NewService(outbox.NewStore(conn), logg),
		Logger:   logg,
	})
	require.NoError(t, err)
	return svc, conn
}

func sampleInput() RegisterInput {
	return RegisterInput{
		Name:         "  Corner Bakery ",
		Category:     "Bakery",
		AddressLine1: "1 Main St",
		City:         "Austin",
		State:        "TX",
		PostalCode:   "78701",
	}
}

func outboxRows(t *testing.T, conn *gorm.DB) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, conn.Order("created_at ASC").Find(&rows).Error)
	return rows
}

func TestStatusPageRequiresIdentity(t *testing.T) {
	svc, _ := newSQLiteService(t)
	_, err := svc.StatusPage(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "got %v", err)
}

func TestStatusPageNoBusiness(t *testing.T) {
	svc, _ := newSQLiteService(t)
	view, err := svc.StatusPage(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, StateNoBusiness, view.State)
}

func TestStatusPageReflectsStoredStatus(t *testing.T) {
	svc, conn := newSQLiteService(t)
	ownerID := uuid.New()
	reason := "Add opening hours"
	require.NoError(t, NewRepository(conn).Create(context.Background(), nil, &models.Business{
		OwnerID:         ownerID,
		Name:            "Corner Bakery",
		Category:        "bakery",
		AddressLine1:    "1 Main St",
		City:            "Austin",
		State:           "TX",
		PostalCode:      "78701",
		Status:          enums.BusinessStatusRejected,
		RejectionReason: &reason,
	}))

	view, err := svc.StatusPage(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, StateRejected, view.State)
	require.NotNil(t, view.RejectionReason)
	assert.Equal(t, reason, *view.RejectionReason)
}

func TestStatusPageLookupFailureCarriesErrorView(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Repo:     failingRepo{err: errors.New("connection refused")},
		TxRunner: dbtest.TxRunner{},
		Outbox:   noopEmitter{},
		Logger:   newTestLogger(),
	})
	require.NoError(t, err)

	_, err = svc.StatusPage(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
	details, ok := pkgerrors.As(err).Details().(StatusView)
	require.True(t, ok, "expected status view details")
	assert.Equal(t, StateError, details.State)
}

func TestRegisterCreatesPendingBusinessAndEvent(t *testing.T) {
	svc, conn := newSQLiteService(t)
	ownerID := uuid.New()

	dto, err := svc.Register(context.Background(), ownerID, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, enums.BusinessStatusPending, dto.Status)
	assert.Equal(t, "Corner Bakery", dto.Name)
	assert.Equal(t, "bakery", dto.Category)

	events := outboxRows(t, conn)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventBusinessSubmitted, events[0].EventType)
	assert.Equal(t, dto.ID, events[0].AggregateID)

	envelope, _, err := outbox.DecodeEnvelope(events[0].Payload)
	require.NoError(t, err)
	var payload payloads.BusinessSubmittedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.False(t, payload.Resubmission)
	assert.Equal(t, ownerID, payload.OwnerID)
}

func TestRegisterRejectsSecondBusinessWhileNotRejected(t *testing.T) {
	svc, conn := newSQLiteService(t)
	ownerID := uuid.New()

	_, err := svc.Register(context.Background(), ownerID, sampleInput())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), ownerID, sampleInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
	assert.Len(t, outboxRows(t, conn), 1)
}

func TestRegisterResubmitsRejectedBusiness(t *testing.T) {
	svc, conn := newSQLiteService(t)
	ownerID := uuid.New()
	ctx := context.Background()

	first, err := svc.Register(ctx, ownerID, sampleInput())
	require.NoError(t, err)

	reason := "Photos missing"
	reviewer := uuid.New()
	rows, err := NewRepository(conn).ApplyReviewDecision(ctx, nil, first.ID, ReviewDecision{
		Status:          enums.BusinessStatusRejected,
		RejectionReason: &reason,
		ReviewedBy:      reviewer,
		ReviewedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	input := sampleInput()
	input.Name = "Corner Bakery & Cafe"
	second, err := svc.Register(ctx, ownerID, input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, enums.BusinessStatusPending, second.Status)
	assert.Nil(t, second.RejectionReason)

	var stored models.Business
	require.NoError(t, conn.First(&stored, "id = ?", first.ID).Error)
	assert.Equal(t, "Corner Bakery & Cafe", stored.Name)
	assert.Equal(t, enums.BusinessStatusPending, stored.Status)
	assert.Nil(t, stored.RejectionReason)
	assert.Nil(t, stored.ReviewedBy)

	events := outboxRows(t, conn)
	require.Len(t, events, 2)
	envelope, _, err := outbox.DecodeEnvelope(events[1].Payload)
	require.NoError(t, err)
	var payload payloads.BusinessSubmittedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.True(t, payload.Resubmission)
}

func TestRegisterValidatesRequiredFields(t *testing.T) {
	svc, conn := newSQLiteService(t)
	input := sampleInput()
	input.City = "   "

	_, err := svc.Register(context.Background(), uuid.New(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	assert.Empty(t, outboxRows(t, conn))
}

func TestGetMine(t *testing.T) {
	svc, _ := newSQLiteService(t)
	ownerID := uuid.New()

	_, err := svc.GetMine(context.Background(), ownerID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	created, err := svc.Register(context.Background(), ownerID, sampleInput())
	require.NoError(t, err)
	got, err := svc.GetMine(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestApplyReviewDecisionOnlyTouchesPendingRows(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	target := &models.Business{OwnerID: uuid.New(), Name: "A", Category: "cafe", AddressLine1: "1", City: "c", State: "s", PostalCode: "p"}
	other := &models.Business{OwnerID: uuid.New(), Name: "B", Category: "cafe", AddressLine1: "2", City: "c", State: "s", PostalCode: "p"}
	require.NoError(t, repo.Create(ctx, nil, target))
	require.NoError(t, repo.Create(ctx, nil, other))

	decision := ReviewDecision{Status: enums.BusinessStatusActive, ReviewedBy: uuid.New(), ReviewedAt: time.Now().UTC()}
	rows, err := repo.ApplyReviewDecision(ctx, nil, target.ID, decision)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	rows, err = repo.ApplyReviewDecision(ctx, nil, target.ID, decision)
	require.NoError(t, err)
	assert.EqualValues(t, 0, rows, "an already reviewed row must not be updated again")

	pending, err := repo.ListByStatus(ctx, enums.BusinessStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, other.ID, pending[0].ID)
}

func TestSearchTrimsPageAndReturnsCursor(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]models.Business, 0, 3)
	for i := 0; i < 3; i++ {
		rows = append(rows, models.Business{ID: uuid.New(), Name: "b", Status: enums.BusinessStatusActive, CreatedAt: base.Add(-time.Duration(i) * time.Hour)})
	}
	repo := &stubSearchRepo{rows: rows}
	svc, err := NewService(ServiceParams{Repo: repo, TxRunner: dbtest.TxRunner{}, Outbox: noopEmitter{}, Logger: newTestLogger()})
	require.NoError(t, err)

	params := SearchParams{Category: "bakery"}
	params.Limit = 2
	result, err := svc.Search(context.Background(), params)
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
	assert.NotEmpty(t, result.Cursor)
	assert.Equal(t, "bakery", repo.last.Category)

	_, err = svc.Search(context.Background(), SearchParams{Params: pagination.Params{Cursor: "%%%"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}

type failingRepo struct {
	err error
}

func (f failingRepo) FindByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) (*models.Business, error) {
	return nil, f.err
}

func (f failingRepo) Create(ctx context.Context, tx *gorm.DB, business *models.Business) error {
	return f.err
}

func (f failingRepo) Resubmit(ctx context.Context, tx *gorm.DB, business *models.Business) (int64, error) {
	return 0, f.err
}

func (f failingRepo) Search(ctx context.Context, q SearchQuery) ([]models.Business, error) {
	return nil, f.err
}

type stubSearchRepo struct {
	failingRepo
	rows []models.Business
	last SearchQuery
}

func (s *stubSearchRepo) Search(ctx context.Context, q SearchQuery) ([]models.Business, error) {
	s.last = q
	return s.rows, nil
}

type noopEmitter struct{}

func (noopEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	return nil
}
