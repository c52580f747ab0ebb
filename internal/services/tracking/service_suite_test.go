package tracking

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	cachemocks "github.com/BearBump/OrderTrack/internal/cache/mocks"
	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	trackingmocks "github.com/BearBump/OrderTrack/internal/services/tracking/mocks"
)

type ServiceSuite struct {
	suite.Suite

	repo  *trackingmocks.MockRepository
	cache *cachemocks.MockBytesCache
	svc   *Service
}

func (s *ServiceSuite) SetupTest() {
	s.repo = &trackingmocks.MockRepository{}
	s.cache = &cachemocks.MockBytesCache{}
	s.svc = New(s.repo, WithCache(s.cache, 10*time.Minute))
}

func (s *ServiceSuite) TestGetTrackedOrder_CacheHit_NoDB() {
	to := &models.TrackedOrder{ID: 7, OrderID: 70, CurrentStatus: models.StatusShipped}
	b, _ := json.Marshal(to)
	s.cache.On("Get", mock.Anything, "tracking:7:current").Return(b, true, nil).Once()

	got, ok, err := s.svc.GetTrackedOrder(context.Background(), 7)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().Equal(uint64(70), got.OrderID)
	s.repo.AssertNotCalled(s.T(), "GetTrackedOrderByID", mock.Anything, mock.Anything)
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetTrackedOrder_CacheMissOrBroken_GoesToDBAndFills() {
	s.cache.On("Get", mock.Anything, "tracking:1:current").Return([]byte(nil), false, errors.New("redis down")).Once()
	s.cache.On("Get", mock.Anything, "tracking:2:current").Return([]byte("not-json"), true, nil).Once()
	s.repo.On("GetTrackedOrderByID", mock.Anything, uint64(1)).Return(&models.TrackedOrder{ID: 1}, nil).Once()
	s.repo.On("GetTrackedOrderByID", mock.Anything, uint64(2)).Return(&models.TrackedOrder{ID: 2}, nil).Once()
	// set failures are ignored
	s.cache.On("Set", mock.Anything, "tracking:1:current", mock.Anything, 10*time.Minute).Return(errors.New("set failed")).Once()
	s.cache.On("Set", mock.Anything, "tracking:2:current", mock.Anything, 10*time.Minute).Return(nil).Once()

	for _, id := range []uint64{1, 2} {
		got, ok, err := s.svc.GetTrackedOrder(context.Background(), id)
		s.Require().NoError(err)
		s.Require().True(ok)
		s.Require().Equal(id, got.ID)
	}
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetTrackedOrder_NotFoundIsNotAnError() {
	s.cache.On("Get", mock.Anything, "tracking:9:current").Return([]byte(nil), false, nil).Once()
	s.repo.On("GetTrackedOrderByID", mock.Anything, uint64(9)).Return(nil, models.ErrNotFound).Once()

	got, ok, err := s.svc.GetTrackedOrder(context.Background(), 9)
	s.Require().NoError(err)
	s.Require().False(ok)
	s.Require().Nil(got)
	s.cache.AssertNotCalled(s.T(), "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestGetTrackedOrder_RepoErrorPropagates() {
	want := errors.New("db error")
	svc := New(s.repo)
	s.repo.On("GetTrackedOrderByID", mock.Anything, uint64(3)).Return(nil, want).Once()

	_, ok, err := svc.GetTrackedOrder(context.Background(), 3)
	s.Require().ErrorIs(err, want)
	s.Require().False(ok)
	s.cache.AssertNotCalled(s.T(), "Get", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestUpdateTrackedOrder_InvalidatesCache() {
	eta := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	s.repo.On("UpdateTrackedOrder", mock.Anything, uint64(4), eta, models.StatusDelivered).Return(nil).Once()
	s.cache.On("Del", mock.Anything, "tracking:4:current").Return(nil).Once()

	s.Require().NoError(s.svc.UpdateTrackedOrder(context.Background(), 4, eta, "delivered"))
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetTrackedOrder_InvalidatedDuringRead_NoFill() {
	ctx := context.Background()
	eta := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	s.cache.On("Get", mock.Anything, "tracking:5:current").Return([]byte(nil), false, nil).Once()
	s.repo.On("GetTrackedOrderByID", mock.Anything, uint64(5)).
		Run(func(mock.Arguments) {
			s.Require().NoError(s.svc.UpdateTrackedOrder(ctx, 5, eta, "delivered"))
		}).
		Return(&models.TrackedOrder{ID: 5, CurrentStatus: models.StatusShipped}, nil).Once()
	s.repo.On("UpdateTrackedOrder", mock.Anything, uint64(5), eta, models.StatusDelivered).Return(nil).Once()
	s.cache.On("Del", mock.Anything, "tracking:5:current").Return(nil).Once()

	got, ok, err := s.svc.GetTrackedOrder(ctx, 5)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().Equal(models.StatusShipped, got.CurrentStatus)
	s.cache.AssertNotCalled(s.T(), "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetTrackedOrder_InvalidatedDuringSet_Evicts() {
	ctx := context.Background()
	eta := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	s.cache.On("Get", mock.Anything, "tracking:6:current").Return([]byte(nil), false, nil).Once()
	s.repo.On("GetTrackedOrderByID", mock.Anything, uint64(6)).
		Return(&models.TrackedOrder{ID: 6, CurrentStatus: models.StatusShipped}, nil).Once()
	s.cache.On("Set", mock.Anything, "tracking:6:current", mock.Anything, 10*time.Minute).
		Run(func(mock.Arguments) {
			s.Require().NoError(s.svc.UpdateTrackedOrder(ctx, 6, eta, "delivered"))
		}).
		Return(nil).Once()
	s.repo.On("UpdateTrackedOrder", mock.Anything, uint64(6), eta, models.StatusDelivered).Return(nil).Once()
	// one Del from the update, one dropping the racing fill
	s.cache.On("Del", mock.Anything, "tracking:6:current").Return(nil).Twice()

	_, ok, err := s.svc.GetTrackedOrder(ctx, 6)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestRevert_DeleteReportsNothingDeleted() {
	to := &models.TrackedOrder{ID: 1, CurrentStatus: models.StatusShipped}
	cps := []*models.OrderCheckpoint{
		{ID: 10, TrackedOrderID: 1, Timestamp: at(1), Status: models.StatusProcessing},
		{ID: 11, TrackedOrderID: 1, Timestamp: at(2), Status: models.StatusShipped},
	}
	s.repo.On("GetAllOrderCheckpoints", mock.Anything, uint64(1)).Return(cps, nil).Twice()
	s.repo.On("DeleteOrderCheckpoint", mock.Anything, uint64(11)).Return(false, nil).Once()
	s.cache.On("Del", mock.Anything, "tracking:1:current").Return(nil).Once()

	err := s.svc.RevertToPreviousCheckpoint(context.Background(), to)
	s.Require().ErrorIs(err, ErrInternalConsistency)
	s.Require().Contains(err.Error(), "failed to delete current checkpoint during reversion")
	s.Require().Equal(models.StatusShipped, to.CurrentStatus)
	s.repo.AssertNotCalled(s.T(), "UpdateTrackedOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestRevert_HistoryVanishedAfterDelete() {
	to := &models.TrackedOrder{ID: 1, CurrentStatus: models.StatusShipped}
	cps := []*models.OrderCheckpoint{
		{ID: 10, TrackedOrderID: 1, Timestamp: at(1), Status: models.StatusProcessing},
		{ID: 11, TrackedOrderID: 1, Timestamp: at(2), Status: models.StatusShipped},
	}
	s.repo.On("GetAllOrderCheckpoints", mock.Anything, uint64(1)).Return(cps, nil).Twice()
	s.repo.On("DeleteOrderCheckpoint", mock.Anything, uint64(11)).Return(true, nil).Once()
	s.repo.On("GetAllOrderCheckpoints", mock.Anything, uint64(1)).Return([]*models.OrderCheckpoint{}, nil).Once()
	s.cache.On("Del", mock.Anything, "tracking:1:current").Return(nil).Once()

	err := s.svc.RevertToPreviousCheckpoint(context.Background(), to)
	s.Require().ErrorIs(err, ErrInternalConsistency)
	s.repo.AssertNotCalled(s.T(), "UpdateTrackedOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestRevert_UpdatesStatusKeepsStoredDate() {
	stale := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	eta := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	to := &models.TrackedOrder{ID: 1, EstimatedDeliveryDate: stale, CurrentStatus: models.StatusShipped}
	cps := []*models.OrderCheckpoint{
		{ID: 11, TrackedOrderID: 1, Timestamp: at(2), Status: models.StatusShipped},
		{ID: 10, TrackedOrderID: 1, Timestamp: at(1), Status: models.StatusProcessing},
	}
	s.repo.On("GetAllOrderCheckpoints", mock.Anything, uint64(1)).Return(cps, nil).Twice()
	s.repo.On("DeleteOrderCheckpoint", mock.Anything, uint64(11)).Return(true, nil).Once()
	s.repo.On("GetAllOrderCheckpoints", mock.Anything, uint64(1)).Return(cps[1:], nil).Once()
	s.repo.On("GetTrackedOrderByID", mock.Anything, uint64(1)).
		Return(&models.TrackedOrder{ID: 1, EstimatedDeliveryDate: eta, CurrentStatus: models.StatusShipped}, nil).Once()
	s.repo.On("UpdateTrackedOrder", mock.Anything, uint64(1), eta, models.StatusProcessing).Return(nil).Once()
	s.cache.On("Del", mock.Anything, "tracking:1:current").Return(nil).Once()

	s.Require().NoError(s.svc.RevertToPreviousCheckpoint(context.Background(), to))
	s.Require().Equal(models.StatusProcessing, to.CurrentStatus)
	s.Require().Equal(eta, to.EstimatedDeliveryDate)
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestRevert_OrderGoneBeforeUpdate() {
	cps := []*models.OrderCheckpoint{
		{ID: 10, TrackedOrderID: 1, Timestamp: at(1), Status: models.StatusProcessing},
		{ID: 11, TrackedOrderID: 1, Timestamp: at(2), Status: models.StatusShipped},
	}
	s.repo.On("GetAllOrderCheckpoints", mock.Anything, uint64(1)).Return(cps, nil).Twice()
	s.repo.On("DeleteOrderCheckpoint", mock.Anything, uint64(11)).Return(true, nil).Once()
	s.repo.On("GetAllOrderCheckpoints", mock.Anything, uint64(1)).Return(cps[:1], nil).Once()
	s.repo.On("GetTrackedOrderByID", mock.Anything, uint64(1)).Return(nil, models.ErrNotFound).Once()
	s.cache.On("Del", mock.Anything, "tracking:1:current").Return(nil).Once()

	err := s.svc.RevertToPreviousCheckpoint(context.Background(), &models.TrackedOrder{ID: 1})
	s.Require().ErrorIs(err, models.ErrNotFound)
	s.repo.AssertNotCalled(s.T(), "UpdateTrackedOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestRevert_RepoErrorStops() {
	want := errors.New("db down")
	s.repo.On("GetAllOrderCheckpoints", mock.Anything, uint64(1)).Return(nil, want).Once()
	s.cache.On("Del", mock.Anything, "tracking:1:current").Return(nil).Once()

	err := s.svc.RevertToPreviousCheckpoint(context.Background(), &models.TrackedOrder{ID: 1})
	s.Require().ErrorIs(err, want)
	s.repo.AssertNotCalled(s.T(), "DeleteOrderCheckpoint", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestRevert_RunsInsideTransaction() {
	txm := &recordingTx{}
	svc := New(s.repo, WithTxManager(txm))
	s.repo.On("GetAllOrderCheckpoints", mock.Anything, uint64(1)).
		Return([]*models.OrderCheckpoint{{ID: 1, TrackedOrderID: 1, Timestamp: at(1)}}, nil).Once()

	s.Require().ErrorIs(svc.RevertToPreviousCheckpoint(context.Background(), &models.TrackedOrder{ID: 1}), ErrInvalidOperation)
	s.Require().Equal(1, txm.calls)
}

type recordingTx struct{ calls int }

func (r *recordingTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	r.calls++
	return fn(ctx)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
