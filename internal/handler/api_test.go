package handler_test

import (
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/http/httptest"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/labstack/gommon/log"

    "github.com/iliyamo/hotel-reservation/internal/config"
    "github.com/iliyamo/hotel-reservation/internal/handler"
    "github.com/iliyamo/hotel-reservation/internal/lock"
    "github.com/iliyamo/hotel-reservation/internal/model"
    "github.com/iliyamo/hotel-reservation/internal/repository/boltstore"
    "github.com/iliyamo/hotel-reservation/internal/router"
    "github.com/iliyamo/hotel-reservation/internal/service/booking"
    "github.com/iliyamo/hotel-reservation/internal/utils"
)

const secret = "handler-secret"

type api struct {
    t *testing.T
    e *echo.Echo
}

func newAPI(t *testing.T) *api {
    t.Helper()
    st, err := boltstore.Open(filepath.Join(t.TempDir(), "api.db"))
    if err != nil {
        t.Fatalf("open store: %v", err)
    }
    t.Cleanup(func() { st.Close() })

    logger := log.New("booking-test")
    logger.SetOutput(io.Discard)
    now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
    cfg := config.BookingConfig{MaxRetries: 2, RetryInitialDelay: time.Millisecond, RetryMaxDelay: time.Millisecond, Location: time.UTC}
    svc := booking.NewService(st, lock.NewLocalLocker(), nil, cfg,
        booking.WithClock(func() time.Time { return now }), booking.WithLogger(logger))

    e := echo.New()
    e.Logger.SetOutput(io.Discard)
    admin := handler.NewAdminHandler(svc, nil, time.Second)
    router.RegisterRoutes(e, handler.Health(nil))
    router.RegisterPublic(e, admin, nil, nil)
    router.RegisterGuest(e, handler.NewReservationHandler(svc, nil, time.Second), secret, nil)
    router.RegisterStaff(e, handler.NewStaffHandler(svc, time.Second), secret, nil)
    router.RegisterAdmin(e, admin, secret)
    return &api{t: t, e: e}
}

func (a *api) token(id uint64, role string) string {
    tok, err := utils.NewAccessToken(secret, id, "", role, time.Hour)
    if err != nil {
        a.t.Fatalf("sign: %v", err)
    }
    return tok.Token
}

func (a *api) do(method, path, token, body string) (int, map[string]interface{}) {
    a.t.Helper()
    var r io.Reader
    if body != "" {
        r = strings.NewReader(body)
    }
    req := httptest.NewRequest(method, path, r)
    if body != "" {
        req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    }
    if token != "" {
        req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
    }
    rec := httptest.NewRecorder()
    a.e.ServeHTTP(rec, req)
    out := map[string]interface{}{}
    _ = json.Unmarshal(rec.Body.Bytes(), &out)
    return rec.Code, out
}

// seed creates a room and a customer through the admin API and returns
// their ids.
func (a *api) seed() (roomID, userID uint64) {
    admin := a.token(1, model.RoleAdmin)
    code, room := a.do(http.MethodPost, "/v1/rooms", admin, `{"name":"101","price_per_night_cents":9000}`)
    if code != http.StatusCreated {
        a.t.Fatalf("create room: %d %v", code, room)
    }
    code, user := a.do(http.MethodPost, "/v1/users", admin, `{"email":"guest@example.com"}`)
    if code != http.StatusCreated {
        a.t.Fatalf("create user: %d %v", code, user)
    }
    return uint64(room["id"].(float64)), uint64(user["id"].(float64))
}

func TestReservationLifecycleOverHTTP(t *testing.T) {
    a := newAPI(t)
    roomID, userID := a.seed()
    customer := a.token(userID, model.RoleCustomer)
    staff := a.token(500, model.RoleStaff)

    body := fmt.Sprintf(`{"reservation":{"check_in":"2024-06-01","check_out":"2024-06-03"},"room":{"id":%d}}`, roomID)
    code, created := a.do(http.MethodPost, "/v1/reservations", customer, body)
    if code != http.StatusCreated {
        t.Fatalf("create: %d %v", code, created)
    }
    blocked := created["blocked_dates"].([]interface{})
    if len(blocked) != 2 || blocked[0] != "2024-06-01T18:00:00.000Z" {
        t.Fatalf("blocked dates: %v", blocked)
    }
    resID := uint64(created["reservation"].(map[string]interface{})["id"].(float64))

    code, room := a.do(http.MethodGet, fmt.Sprintf("/v1/rooms/%d", roomID), "", "")
    if code != http.StatusOK || len(room["unavailable"].([]interface{})) != 2 {
        t.Fatalf("public room: %d %v", code, room)
    }

    code, mine := a.do(http.MethodGet, "/v1/me/reservations", customer, "")
    if code != http.StatusOK || mine["count"].(float64) != 1 {
        t.Fatalf("my reservations: %d %v", code, mine)
    }

    path := fmt.Sprintf("/v1/reservations/%d/check-in", resID)
    if code, _ := a.do(http.MethodPatch, path, customer, `{"value":true}`); code != http.StatusForbidden {
        t.Fatalf("customer check-in: expected 403, got %d", code)
    }
    code, first := a.do(http.MethodPatch, path, staff, `{"value":true}`)
    if code != http.StatusOK || first["changed"] != true {
        t.Fatalf("check-in: %d %v", code, first)
    }
    code, second := a.do(http.MethodPatch, path, staff, "")
    if code != http.StatusOK || second["changed"] != false || second["status"] != "CHECKED_IN" {
        t.Fatalf("repeat check-in: %d %v", code, second)
    }

    code, status := a.do(http.MethodGet, "/v1/status", staff, "")
    if code != http.StatusOK || status["day"] != "2024-06-01" || len(status["check_ins"].([]interface{})) != 1 {
        t.Fatalf("status: %d %v", code, status)
    }

    code, cancelled := a.do(http.MethodDelete, fmt.Sprintf("/v1/reservations/%d", resID), customer, "")
    if code != http.StatusOK {
        t.Fatalf("cancel: %d %v", code, cancelled)
    }
    cancelID := uint64(cancelled["cancellation"].(map[string]interface{})["id"].(float64))

    code, refund := a.do(http.MethodPatch, fmt.Sprintf("/v1/cancellations/%d", cancelID), staff, "")
    if code != http.StatusOK || refund["refund"] != true || refund["refund_processed_at"] == nil {
        t.Fatalf("refund toggle: %d %v", code, refund)
    }
    code, refund = a.do(http.MethodPatch, fmt.Sprintf("/v1/cancellations/%d", cancelID), staff, `{"value":false}`)
    if code != http.StatusOK || refund["refund"] != false || refund["refund_processed_at"] != nil {
        t.Fatalf("refund clear: %d %v", code, refund)
    }
}

func TestErrorMapping(t *testing.T) {
    a := newAPI(t)
    roomID, userID := a.seed()
    customer := a.token(userID, model.RoleCustomer)
    stranger := a.token(userID+100, model.RoleCustomer)
    staff := a.token(500, model.RoleStaff)

    same := fmt.Sprintf(`{"reservation":{"check_in":"2024-06-01","check_out":"2024-06-01"},"room":{"id":%d}}`, roomID)
    if code, body := a.do(http.MethodPost, "/v1/reservations", customer, same); code != http.StatusBadRequest || body["reconcile_required"] != false {
        t.Fatalf("same-day stay: %d %v", code, body)
    }
    missing := `{"reservation":{"check_in":"2024-06-01","check_out":"2024-06-02"},"room":{"id":999}}`
    if code, _ := a.do(http.MethodPost, "/v1/reservations", customer, missing); code != http.StatusNotFound {
        t.Fatalf("unknown room: expected 404, got %d", code)
    }
    if code, _ := a.do(http.MethodDelete, "/v1/reservations/4242", staff, ""); code != http.StatusNotFound {
        t.Fatalf("cancel missing: expected 404, got %d", code)
    }
    if code, _ := a.do(http.MethodDelete, "/v1/reservations/abc", staff, ""); code != http.StatusBadRequest {
        t.Fatalf("bad id: expected 400, got %d", code)
    }

    ok := fmt.Sprintf(`{"reservation":{"check_in":"2024-06-01","check_out":"2024-06-02"},"room":{"id":%d}}`, roomID)
    code, created := a.do(http.MethodPost, "/v1/reservations", customer, ok)
    if code != http.StatusCreated {
        t.Fatalf("create: %d %v", code, created)
    }
    resID := uint64(created["reservation"].(map[string]interface{})["id"].(float64))
    if code, _ := a.do(http.MethodGet, fmt.Sprintf("/v1/reservations/%d", resID), stranger, ""); code != http.StatusForbidden {
        t.Fatalf("stranger read: expected 403, got %d", code)
    }
    if code, _ := a.do(http.MethodPost, "/v1/rooms", customer, `{"name":"x"}`); code != http.StatusForbidden {
        t.Fatalf("customer create room: expected 403, got %d", code)
    }
    if code, _ := a.do(http.MethodGet, "/v1/status?date=someday", staff, ""); code != http.StatusBadRequest {
        t.Fatalf("bad date: expected 400, got %d", code)
    }
    if code, _ := a.do(http.MethodGet, "/v1/status", "", ""); code != http.StatusUnauthorized {
        t.Fatalf("anonymous status: expected 401, got %d", code)
    }
}

func TestHealth(t *testing.T) {
    a := newAPI(t)
    if code, body := a.do(http.MethodGet, "/healthz", "", ""); code != http.StatusOK || body["status"] != "ok" {
        t.Fatalf("health: %d %v", code, body)
    }
}
