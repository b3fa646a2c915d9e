package review

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/localbiz-backend/internal/businesses"
	"github.com/angelmondragon/localbiz-backend/pkg/db/dbtest"
	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/localbiz-backend/pkg/errors"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/metrics"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox/payloads"
)

type reviewFixture struct {
	svc  Service
	conn *gorm.DB
	repo *flakyRepo
	reg  *prometheus.Registry
}

// flakyRepo fails the pending reload once failList is set.
type flakyRepo struct {
	*businesses.Repository
	failList bool
}

func (f *flakyRepo) ListByStatus(ctx context.Context, status enums.BusinessStatus) ([]models.Business, error) {
	if f.failList {
		return nil, errors.New("replica unavailable")
	}
	return f.Repository.ListByStatus(ctx, status)
}

func newFixture(t *testing.T, emitEvents bool) *reviewFixture {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	reg := prometheus.NewRegistry()
	repo := &flakyRepo{Repository: businesses.NewRepository(conn)}
	svc, err := NewService(ServiceParams{
		Repo:       repo,
		TxRunner:   dbtest.TxRunner{DB: conn},
		Outbox:     outbox.NewService(outbox.NewStore(conn), logg),
		Metrics:    metrics.NewReviewMetrics(reg),
		Logger:     logg,
		EmitEvents: emitEvents,
	})
	require.NoError(t, err)
	return &reviewFixture{svc: svc, conn: conn, repo: repo, reg: reg}
}

func (f *reviewFixture) seed(t *testing.T, name string, status enums.BusinessStatus, createdAt time.Time) *models.Business {
	t.Helper()
	b := &models.Business{
		ID:           uuid.New(),
		OwnerID:      uuid.New(),
		Name:         name,
		Category:     "cafe",
		AddressLine1: "1 Main St",
		City:         "Austin",
		State:        "TX",
		PostalCode:   "78701",
		Status:       status,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	require.NoError(t, f.conn.Create(b).Error)
	return b
}

func (f *reviewFixture) reload(t *testing.T, id uuid.UUID) models.Business {
	t.Helper()
	var b models.Business
	require.NoError(t, f.conn.First(&b, "id = ?", id).Error)
	return b
}

func (f *reviewFixture) events(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.conn.Find(&rows).Error)
	return rows
}

func (f *reviewFixture) decisions(t *testing.T, action, result string) float64 {
	t.Helper()
	mfs, err := f.reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "localbiz_review_decisions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelValue(m, "action") == action && labelValue(m, "result") == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

var admin = Actor{UserID: uuid.New(), Role: enums.RoleAdmin}

func TestListPendingOrdersOldestFirst(t *testing.T) {
	f := newFixture(t, true)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	newer := f.seed(t, "Newer", enums.BusinessStatusPending, base.Add(2*time.Hour))
	older := f.seed(t, "Older", enums.BusinessStatusPending, base)
	f.seed(t, "Live", enums.BusinessStatusActive, base.Add(-time.Hour))
	f.seed(t, "Declined", enums.BusinessStatusRejected, base.Add(-2*time.Hour))

	pending, err := f.svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, older.ID, pending[0].ID)
	assert.Equal(t, newer.ID, pending[1].ID)
}

func TestListPendingFailure(t *testing.T) {
	f := newFixture(t, true)
	f.repo.failList = true
	_, err := f.svc.ListPending(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
}

func TestApproveMutatesOnlyTargetAndReloads(t *testing.T) {
	f := newFixture(t, true)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	target := f.seed(t, "Target", enums.BusinessStatusPending, base)
	other := f.seed(t, "Other", enums.BusinessStatusPending, base.Add(time.Minute))

	result, err := f.svc.Approve(context.Background(), admin, target.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BusinessStatusActive, result.Business.Status)
	require.Len(t, result.Pending, 1)
	assert.Equal(t, other.ID, result.Pending[0].ID)

	stored := f.reload(t, target.ID)
	assert.Equal(t, enums.BusinessStatusActive, stored.Status)
	assert.Nil(t, stored.RejectionReason)
	require.NotNil(t, stored.ReviewedBy)
	assert.Equal(t, admin.UserID, *stored.ReviewedBy)
	assert.NotNil(t, stored.ReviewedAt)

	untouched := f.reload(t, other.ID)
	assert.Equal(t, enums.BusinessStatusPending, untouched.Status)
	assert.Nil(t, untouched.ReviewedAt)

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventBusinessStatusChanged, events[0].EventType)
	envelope, _, err := outbox.DecodeEnvelope(events[0].Payload)
	require.NoError(t, err)
	var payload payloads.BusinessStatusChangedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, target.OwnerID, payload.OwnerID)
	assert.Equal(t, enums.BusinessStatusActive, payload.Status)
	assert.Equal(t, enums.BusinessStatusPending, payload.PreviousStatus)

	assert.Equal(t, 1.0, f.decisions(t, "approve", "success"))
}

func TestDeclineStoresTrimmedReason(t *testing.T) {
	f := newFixture(t, true)
	target := f.seed(t, "Target", enums.BusinessStatusPending, time.Now().UTC())

	result, err := f.svc.Decline(context.Background(), admin, target.ID, "  Missing photos  ")
	require.NoError(t, err)
	require.NotNil(t, result.Business.RejectionReason)
	assert.Equal(t, "Missing photos", *result.Business.RejectionReason)
	assert.Empty(t, result.Pending)

	stored := f.reload(t, target.ID)
	assert.Equal(t, enums.BusinessStatusRejected, stored.Status)
	require.NotNil(t, stored.RejectionReason)
	assert.Equal(t, "Missing photos", *stored.RejectionReason)
}

func TestDeclineBlankReasonStoresNull(t *testing.T) {
	f := newFixture(t, true)
	target := f.seed(t, "Target", enums.BusinessStatusPending, time.Now().UTC())

	_, err := f.svc.Decline(context.Background(), admin, target.ID, "   ")
	require.NoError(t, err)
	assert.Nil(t, f.reload(t, target.ID).RejectionReason)
}

func TestDeclineRejectsLongReason(t *testing.T) {
	f := newFixture(t, true)
	target := f.seed(t, "Target", enums.BusinessStatusPending, time.Now().UTC())

	_, err := f.svc.Decline(context.Background(), admin, target.ID, strings.Repeat("x", MaxReasonLength+1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	assert.Equal(t, enums.BusinessStatusPending, f.reload(t, target.ID).Status)
}

func TestDecisionOnNonPendingRowConflicts(t *testing.T) {
	f := newFixture(t, true)
	live := f.seed(t, "Live", enums.BusinessStatusActive, time.Now().UTC())

	_, err := f.svc.Decline(context.Background(), admin, live.ID, "too late")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	stored := f.reload(t, live.ID)
	assert.Equal(t, enums.BusinessStatusActive, stored.Status)
	assert.Nil(t, stored.RejectionReason)
	assert.Empty(t, f.events(t))
	assert.Equal(t, 1.0, f.decisions(t, "decline", "conflict"))
}

func TestSecondApproveOfSameRowConflicts(t *testing.T) {
	f := newFixture(t, true)
	target := f.seed(t, "Target", enums.BusinessStatusPending, time.Now().UTC())

	_, err := f.svc.Approve(context.Background(), admin, target.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(context.Background(), admin, target.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
	assert.Len(t, f.events(t), 1)
}

func TestDecisionOnMissingBusiness(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.svc.Approve(context.Background(), admin, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestDecisionRequiresAdmin(t *testing.T) {
	f := newFixture(t, true)
	target := f.seed(t, "Target", enums.BusinessStatusPending, time.Now().UTC())

	_, err := f.svc.Approve(context.Background(), Actor{UserID: uuid.New(), Role: enums.RoleOwner}, target.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)

	_, err = f.svc.Approve(context.Background(), Actor{Role: enums.RoleAdmin}, target.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "got %v", err)
	assert.Equal(t, enums.BusinessStatusPending, f.reload(t, target.ID).Status)
}

func TestReloadFailureIsReportedSeparately(t *testing.T) {
	f := newFixture(t, true)
	target := f.seed(t, "Target", enums.BusinessStatusPending, time.Now().UTC())
	f.repo.failList = true

	_, err := f.svc.Approve(context.Background(), admin, target.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "reload", details["step"])
	assert.Equal(t, target.ID, details["business_id"])

	assert.Equal(t, enums.BusinessStatusActive, f.reload(t, target.ID).Status, "mutation must stay committed")
}

func TestEventsCanBeDisabled(t *testing.T) {
	f := newFixture(t, false)
	target := f.seed(t, "Target", enums.BusinessStatusPending, time.Now().UTC())

	_, err := f.svc.Approve(context.Background(), admin, target.ID)
	require.NoError(t, err)
	assert.Empty(t, f.events(t))
}

func TestEmitFailureRollsBackDecision(t *testing.T) {
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(ServiceParams{
		Repo:       businesses.NewRepository(conn),
		TxRunner:   dbtest.TxRunner{DB: conn},
		Outbox:     failingEmitter{},
		Logger:     logg,
		EmitEvents: true,
	})
	require.NoError(t, err)
	f := &reviewFixture{conn: conn}
	target := f.seed(t, "Target", enums.BusinessStatusPending, time.Now().UTC())

	_, err = svc.Approve(context.Background(), admin, target.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
	assert.Equal(t, enums.BusinessStatusPending, f.reload(t, target.ID).Status)
}

type failingEmitter struct{}

func (failingEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	return errors.New("outbox insert failed")
}
