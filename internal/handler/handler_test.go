package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/access-gate/internal/payment"
	"github.com/iliyamo/access-gate/internal/repository"
	"github.com/iliyamo/access-gate/internal/service"
	"github.com/iliyamo/access-gate/internal/store"
)

// fakePayments serves fixed checkout sessions and records created checkouts.
type fakePayments struct {
	sessions map[string]payment.Session
	price    payment.Price
	priceErr error
	created  []payment.CheckoutParams
}

func (f *fakePayments) CheckoutSession(_ context.Context, id string) (payment.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return payment.Session{}, &payment.Error{Message: "No such checkout.session"}
	}
	return s, nil
}

func (f *fakePayments) CreateCheckout(_ context.Context, p payment.CheckoutParams) (string, error) {
	f.created = append(f.created, p)
	return "https://checkout.example/pay", nil
}

func (f *fakePayments) Price(context.Context, string) (payment.Price, error) {
	return f.price, f.priceErr
}

func (f *fakePayments) Account(context.Context) error { return nil }

type fixture struct {
	e      *echo.Echo
	store  *store.MemoryStore
	codes  *repository.CodeRepo
	locks  *repository.SessionLockRepo
	issuer *service.Issuer
	pay    *fakePayments
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	f := &fixture{
		e:     echo.New(),
		store: s,
		codes: repository.NewCodeRepo(s, "BS"),
		locks: repository.NewSessionLockRepo(s),
		pay: &fakePayments{sessions: map[string]payment.Session{
			"sess_1":    {ID: "sess_1", Paid: true, Email: "buyer@example.com"},
			"sess_open": {ID: "sess_open", Paid: false},
		}},
	}
	f.issuer = service.NewIssuer(f.pay, f.codes, nil)
	h := NewAccessCodeHandler(f.issuer, service.NewGateway(f.codes, f.locks, 90*time.Second))
	f.e.POST("/api/issue-access-code", h.Issue)
	f.e.POST("/api/check-code", h.Check)
	f.e.POST("/api/validate-code", h.Validate)
	f.e.POST("/api/release-code-session", h.Release)
	return f
}

func do(e *echo.Echo, method, path, body string, hdr map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestAccessCodeScenario(t *testing.T) {
	f := newFixture(t)

	rec, body := do(f.e, http.MethodPost, "/api/issue-access-code", `{"session_id":"sess_1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	code := body["code"].(string)
	assert.Regexp(t, `^BS-[A-Z2-9]{5}-[A-Z2-9]{5}$`, code)
	assert.Equal(t, false, body["existing"])

	rec, body = do(f.e, http.MethodPost, "/api/issue-access-code", `{"session_id":"sess_1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, code, body["code"])
	assert.Equal(t, true, body["existing"])

	_, body = do(f.e, http.MethodPost, "/api/validate-code", `{"code":"BS-WRONG-CODE2","client_id":"dev-A"}`, nil)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "invalid_code", body["reason"])

	_, body = do(f.e, http.MethodPost, "/api/validate-code", `{"code":"`+code+`","client_id":"dev-A"}`, nil)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "session_acquired", body["reason"])
	assert.EqualValues(t, 90, body["expires_in"])

	_, body = do(f.e, http.MethodPost, "/api/validate-code", `{"code":"`+code+`","client_id":"dev-B"}`, nil)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "session_active_elsewhere", body["reason"])
	assert.Greater(t, body["retry_after_seconds"].(float64), 0.0)

	_, body = do(f.e, http.MethodPost, "/api/release-code-session", `{"code":"`+code+`","client_id":"dev-B"}`, nil)
	assert.Equal(t, false, body["released"])

	_, body = do(f.e, http.MethodPost, "/api/release-code-session", `{"code":"`+code+`","client_id":"dev-A"}`, nil)
	assert.Equal(t, true, body["released"])

	// client id may also come from the header.
	_, body = do(f.e, http.MethodPost, "/api/validate-code", `{"code":"`+code+`"}`, map[string]string{"X-Client-Id": "dev-B"})
	assert.Equal(t, "session_acquired", body["reason"])

	_, body = do(f.e, http.MethodPost, "/api/check-code", `{"code":"`+strings.ToLower(code)+`"}`, nil)
	assert.Equal(t, true, body["valid"])
}

func TestIssueErrors(t *testing.T) {
	f := newFixture(t)

	rec, body := do(f.e, http.MethodPost, "/api/issue-access-code", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing session_id", body["error"])

	rec, body = do(f.e, http.MethodPost, "/api/issue-access-code", `{"session_id":"sess_open"}`, nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "payment not confirmed", body["error"])

	rec, _ = do(f.e, http.MethodPost, "/api/issue-access-code", `{"session_id":"sess_missing"}`, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	e := echo.New()
	h := NewAccessCodeHandler(service.NewIssuer(nil, f.codes, nil), nil)
	e.POST("/api/issue-access-code", h.Issue)
	rec, body = do(e, http.MethodPost, "/api/issue-access-code", `{"session_id":"sess_1"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "stripe not configured", body["error"])
}

func TestValidateClientErrors(t *testing.T) {
	f := newFixture(t)
	res, err := f.codes.Issue(context.Background(), "sess_x", true, repository.IssueMetadata{})
	require.NoError(t, err)

	rec, body := do(f.e, http.MethodPost, "/api/validate-code", ``, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["valid"])

	rec, body = do(f.e, http.MethodPost, "/api/validate-code", `{"code":"`+res.Code+`"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing client_id", body["error"])

	rec, _ = do(f.e, http.MethodPost, "/api/release-code-session", `{"code":"`+res.Code+`"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = do(f.e, http.MethodPost, "/api/check-code", `[]`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing code", body["error"])
}

type downStore struct{ store.Store }

func (downStore) Get(context.Context, string) (string, bool, error) {
	return "", false, store.ErrUnavailable
}

func TestStoreFailureIsServerError(t *testing.T) {
	s := downStore{store.NewMemoryStore()}
	codes := repository.NewCodeRepo(s, "BS")
	h := NewAccessCodeHandler(nil, service.NewGateway(codes, repository.NewSessionLockRepo(s), time.Minute))
	e := echo.New()
	e.POST("/api/check-code", h.Check)

	rec, body := do(e, http.MethodPost, "/api/check-code", `{"code":"BS-AAAAA-AAAAA"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "store unavailable", body["error"])
	assert.Equal(t, false, body["valid"])
}
