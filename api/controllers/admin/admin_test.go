package admin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vrumi/vrumi-backend/internal/coupons"
	"github.com/vrumi/vrumi-backend/internal/notifications"
	"github.com/vrumi/vrumi-backend/internal/passes"
	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "admin-test", Output: io.Discard})
}

type stubNotificationService struct {
	notifications.Service
	input notifications.SendInput
	calls int
}

func (s *stubNotificationService) Send(_ context.Context, input notifications.SendInput) (int, error) {
	s.calls++
	s.input = input
	if input.Broadcast {
		return 42, nil
	}
	return len(input.UserIDs), nil
}

func TestSendNotificationRequiresExactlyOneAudience(t *testing.T) {
	cases := map[string]string{
		"neither": `{"title":"Oi","body":"Novidades"}`,
		"both":    `{"title":"Oi","body":"Novidades","broadcast":true,"user_ids":["` + uuid.NewString() + `"]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubNotificationService{}
			rec := httptest.NewRecorder()
			SendNotification(svc, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/v1/notifications", strings.NewReader(body)))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Zero(t, svc.calls)
		})
	}
}

func TestSendNotificationBroadcast(t *testing.T) {
	svc := &stubNotificationService{}
	rec := httptest.NewRecorder()
	body := `{"title":"Simulado novo","body":"Confira","broadcast":true,"link":"/simulados"}`
	SendNotification(svc, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/v1/notifications", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, svc.input.Broadcast)
	require.Equal(t, "/simulados", svc.input.Link)
	require.Contains(t, rec.Body.String(), `"sent":42`)
}

type stubCouponService struct {
	coupons.Service
	created coupons.CreateInput
	code    string
	active  bool
}

func (s *stubCouponService) Create(_ context.Context, input coupons.CreateInput) (*models.Coupon, error) {
	s.created = input
	return &models.Coupon{
		ID:            uuid.New(),
		Code:          input.Code,
		DiscountType:  enums.DiscountType(input.DiscountType),
		DiscountValue: decimal.RequireFromString(input.DiscountValue),
		IsActive:      true,
	}, nil
}

func (s *stubCouponService) SetActive(_ context.Context, code string, active bool) error {
	s.code = code
	s.active = active
	return nil
}

func TestCreateCoupon(t *testing.T) {
	svc := &stubCouponService{}
	rec := httptest.NewRecorder()
	body := `{"code":"VRUMI10","discount_type":"percentage","discount_value":"10"}`
	CreateCoupon(svc, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/v1/coupons", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "VRUMI10", svc.created.Code)
	require.Contains(t, rec.Body.String(), `"discount_value":10`)
}

func TestCreateCouponRejectsUnknownDiscountType(t *testing.T) {
	rec := httptest.NewRecorder()
	body := `{"code":"X","discount_type":"bogus","discount_value":"10"}`
	CreateCoupon(&stubCouponService{}, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/v1/coupons", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetCouponActive(t *testing.T) {
	svc := &stubCouponService{}
	router := chi.NewRouter()
	router.Patch("/coupons/{code}", SetCouponActive(svc, testLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/coupons/VRUMI10", strings.NewReader(`{"active":false}`)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "VRUMI10", svc.code)
	require.False(t, svc.active)
}

type stubPassService struct {
	passes.Service
	deleted uuid.UUID
}

func (s *stubPassService) AdminDelete(_ context.Context, passID uuid.UUID) error {
	s.deleted = passID
	return nil
}

func TestDeletePass(t *testing.T) {
	svc := &stubPassService{}
	router := chi.NewRouter()
	router.Delete("/passes/{passId}", DeletePass(svc, testLogger()))

	passID := uuid.New()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/passes/"+passID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, passID, svc.deleted)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/passes/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
