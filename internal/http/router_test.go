package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/tourhub/internal/auth"
	"github.com/geocoder89/tourhub/internal/cache"
	"github.com/geocoder89/tourhub/internal/domain/user"
	apphttp "github.com/geocoder89/tourhub/internal/http"
	"github.com/geocoder89/tourhub/internal/jobs"
	"github.com/geocoder89/tourhub/internal/repo/memory"
	"github.com/geocoder89/tourhub/internal/revocation"
	"github.com/geocoder89/tourhub/internal/security"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testApp struct {
	t        *testing.T
	router   *gin.Engine
	users    *memory.UsersRepo
	bookings *memory.BookingsRepo
	hasher   *security.Hasher
	tokens   *auth.Manager
}

func newTestApp(t *testing.T, opts ...func(*apphttp.Deps)) *testApp {
	t.Helper()

	users := memory.NewUsersRepo()
	tours := memory.NewToursRepo()
	bookings := memory.NewBookingsRepo(tours)
	feedbacks := memory.NewFeedbacksRepo(tours)

	hasher := security.NewHasher(bcrypt.MinCost)
	tokens := auth.NewManager("test-secret-0123456789abcdefghijkl", 30*time.Minute)
	revocations := revocation.NewMemoryStore()

	deps := apphttp.Deps{
		Log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Env:         "test",
		LoginRate:   1000,
		Gate:        auth.NewGate(tokens, revocations, users, time.Second),
		Hasher:      hasher,
		Tokens:      tokens,
		Revocations: revocations,
		Users:       users,
		Tours:       tours,
		Bookings:    bookings,
		Feedbacks:   feedbacks,
		TourCache:   cache.New(time.Minute),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	router := apphttp.NewRouter(deps)

	return &testApp{t: t, router: router, users: users, bookings: bookings, hasher: hasher, tokens: tokens}
}

func (a *testApp) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) expect(rec *httptest.ResponseRecorder, status int) {
	a.t.Helper()
	if rec.Code != status {
		a.t.Fatalf("status = %d, want %d, body=%s", rec.Code, status, rec.Body.String())
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

type tokenResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	User        user.Identity `json:"user"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *testApp) seedAccount(username string, role user.Role) {
	a.t.Helper()
	hash, err := a.hasher.Hash(username + "-pass")
	if err != nil {
		a.t.Fatalf("hash: %v", err)
	}
	_, err = a.users.Create(context.Background(), user.User{
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Seed " + username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	})
	if err != nil {
		a.t.Fatalf("seed %s: %v", username, err)
	}
}

func (a *testApp) login(username string) tokenResponse {
	a.t.Helper()
	return a.loginWith(username, username+"-pass")
}

func (a *testApp) loginWith(username, password string) tokenResponse {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	a.expect(rec, http.StatusOK)
	return decode[tokenResponse](a.t, rec)
}

func (a *testApp) signup(username string) tokenResponse {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/auth/signup", "", map[string]string{
		"username":  username,
		"email":     username + "@example.com",
		"full_name": "test user",
		"password":  username + "-pass",
	})
	a.expect(rec, http.StatusCreated)
	return decode[tokenResponse](a.t, rec)
}

func TestSignupLoginMe(t *testing.T) {
	app := newTestApp(t)

	signed := app.signup("Alice_1")
	if signed.TokenType != "bearer" || signed.AccessToken == "" {
		t.Fatalf("unexpected token response: %+v", signed)
	}
	if signed.User.Username != "alice_1" || signed.User.Role != user.RoleRequestor || signed.User.FullName != "Test User" {
		t.Fatalf("unexpected user: %+v", signed.User)
	}

	// usernames fold case, passwords do not
	logged := app.loginWith("ALICE_1", "Alice_1-pass")

	rec := app.do(http.MethodGet, "/auth/me", logged.AccessToken, nil)
	app.expect(rec, http.StatusOK)
	me := decode[user.Identity](t, rec)
	if me.ID != signed.User.ID || !me.IsActive {
		t.Fatalf("unexpected me: %+v", me)
	}
}

func TestSignupTokenCarriesIdentity(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/auth/signup", "", map[string]string{
		"username":  "alice",
		"email":     "a@b.com",
		"full_name": "alice smith",
		"password":  "secret1",
	})
	app.expect(rec, http.StatusCreated)
	resp := decode[tokenResponse](t, rec)

	if resp.User.FullName != "Alice Smith" {
		t.Fatalf("full_name = %q, want %q", resp.User.FullName, "Alice Smith")
	}

	claims, err := app.tokens.Verify(resp.AccessToken)
	if err != nil {
		t.Fatalf("verify returned token: %v", err)
	}
	if claims.Subject != "alice" || claims.Role != "REQUESTOR" {
		t.Fatalf("claims sub=%q role=%q, want alice/REQUESTOR", claims.Subject, claims.Role)
	}
	if claims.UserID != resp.User.ID {
		t.Fatalf("claims id = %d, user id = %d", claims.UserID, resp.User.ID)
	}
}

func TestSignupRejections(t *testing.T) {
	app := newTestApp(t)
	app.signup("bob")

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{
			name:   "duplicate username",
			body:   map[string]string{"username": "BOB", "email": "other@example.com", "full_name": "Bob Two", "password": "secret1"},
			status: http.StatusConflict,
			code:   "user_exists",
		},
		{
			name:   "duplicate email",
			body:   map[string]string{"username": "bob2", "email": "Bob@Example.com", "full_name": "Bob Two", "password": "secret1"},
			status: http.StatusConflict,
			code:   "user_exists",
		},
		{
			name:   "admin self-signup",
			body:   map[string]string{"username": "eve", "email": "eve@example.com", "full_name": "Eve", "password": "secret1", "role": "admin"},
			status: http.StatusForbidden,
			code:   "forbidden",
		},
		{
			name:   "missing fields",
			body:   map[string]string{"username": "carl"},
			status: http.StatusUnprocessableEntity,
			code:   "validation_error",
		},
		{
			name:   "short password",
			body:   map[string]string{"username": "carl", "email": "carl@example.com", "full_name": "Carl", "password": "123"},
			status: http.StatusUnprocessableEntity,
			code:   "validation_error",
		},
		{
			name:   "malformed json",
			body:   `{"username":`,
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := app.do(http.MethodPost, "/auth/signup", "", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d, body=%s", rec.Code, tc.status, rec.Body.String())
			}
			if got := decode[errorResponse](t, rec).Error.Code; got != tc.code {
				t.Fatalf("code = %q, want %q", got, tc.code)
			}
		})
	}
}

func TestSignupAsLeader(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/auth/signup", "", map[string]string{
		"username": "lee", "email": "lee@example.com", "full_name": "Lee", "password": "secret1", "role": "leader",
	})
	app.expect(rec, http.StatusCreated)
	if decode[tokenResponse](t, rec).User.Role != user.RoleLeader {
		t.Fatalf("expected leader role")
	}
}

func TestLoginFailures(t *testing.T) {
	app := newTestApp(t)
	app.seedAccount("dana", user.RoleRequestor)

	rec := app.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "dana", "password": "wrong-pass"})
	app.expect(rec, http.StatusUnauthorized)
	wrongPw := decode[errorResponse](t, rec).Error.Message

	rec = app.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "nobody", "password": "whatever"})
	app.expect(rec, http.StatusUnauthorized)
	unknown := decode[errorResponse](t, rec).Error.Message

	if wrongPw != unknown {
		t.Fatalf("login failures must not reveal which part was wrong: %q vs %q", wrongPw, unknown)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	app := newTestApp(t)
	tok := app.signup("erin").AccessToken

	rec := app.do(http.MethodPost, "/auth/logout", tok, nil)
	app.expect(rec, http.StatusOK)
	if msg := decode[map[string]string](t, rec)["message"]; msg != "Successfully logged out" {
		t.Fatalf("message = %q", msg)
	}

	rec = app.do(http.MethodGet, "/auth/me", tok, nil)
	app.expect(rec, http.StatusUnauthorized)
	if msg := decode[errorResponse](t, rec).Error.Message; msg != "Token has been revoked" {
		t.Fatalf("message = %q", msg)
	}

	// a fresh login still works
	fresh := app.login("erin")
	app.expect(app.do(http.MethodGet, "/auth/me", fresh.AccessToken, nil), http.StatusOK)
}

func TestMeRejectsBadTokens(t *testing.T) {
	app := newTestApp(t)

	app.expect(app.do(http.MethodGet, "/auth/me", "", nil), http.StatusUnauthorized)
	app.expect(app.do(http.MethodGet, "/auth/me", "not-a-jwt", nil), http.StatusUnauthorized)

	other := auth.NewManager("some-other-secret-0123456789abcdef", time.Minute)
	forged, _, err := other.Issue(user.Identity{ID: 1, Username: "x", Role: user.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	app.expect(app.do(http.MethodGet, "/auth/me", forged, nil), http.StatusUnauthorized)
}

func TestAccountChangesApplyToLiveTokens(t *testing.T) {
	app := newTestApp(t)
	app.seedAccount("root", user.RoleAdmin)
	admin := app.login("root").AccessToken

	frank := app.signup("frank")

	// requestor cannot list users
	app.expect(app.do(http.MethodGet, "/user", frank.AccessToken, nil), http.StatusForbidden)

	// promotion is visible to the existing token
	path := "/user/" + itoa(frank.User.ID)
	app.expect(app.do(http.MethodPut, path, admin, map[string]string{"role": "admin"}), http.StatusOK)
	app.expect(app.do(http.MethodGet, "/user", frank.AccessToken, nil), http.StatusOK)

	// deactivation locks the token out
	app.expect(app.do(http.MethodPut, path, admin, map[string]bool{"is_active": false}), http.StatusOK)
	rec := app.do(http.MethodGet, "/auth/me", frank.AccessToken, nil)
	app.expect(rec, http.StatusUnauthorized)
	if msg := decode[errorResponse](t, rec).Error.Message; msg != "Inactive user" {
		t.Fatalf("message = %q", msg)
	}

	// and login reports the account as disabled
	rec = app.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "frank", "password": "frank-pass"})
	app.expect(rec, http.StatusUnauthorized)

	// deleting the account invalidates the token for good
	app.expect(app.do(http.MethodDelete, path, admin, nil), http.StatusOK)
	app.expect(app.do(http.MethodGet, "/auth/me", frank.AccessToken, nil), http.StatusUnauthorized)
}

func (a *testApp) createTour(admin, title string) int64 {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/tour", admin, map[string]any{
		"title":            title,
		"location":         "Somewhere",
		"duration_days":    3,
		"max_participants": 10,
		"price":            129900,
	})
	a.expect(rec, http.StatusCreated)
	return decode[struct {
		ID int64 `json:"id"`
	}](a.t, rec).ID
}

func TestToursPublicReadsAdminWrites(t *testing.T) {
	app := newTestApp(t)
	app.seedAccount("root", user.RoleAdmin)
	app.seedAccount("lee", user.RoleLeader)
	admin := app.login("root").AccessToken
	leader := app.login("lee").AccessToken

	body := map[string]any{"title": "Paris", "location": "France", "duration_days": 3, "max_participants": 10, "price": 0}
	app.expect(app.do(http.MethodPost, "/tour", "", body), http.StatusUnauthorized)
	app.expect(app.do(http.MethodPost, "/tour", leader, body), http.StatusForbidden)

	id := app.createTour(admin, "Paris Highlights")

	rec := app.do(http.MethodGet, "/tour", "", nil)
	app.expect(rec, http.StatusOK)
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/tour", nil)
	req.Header.Set("If-None-Match", etag)
	cached := httptest.NewRecorder()
	app.router.ServeHTTP(cached, req)
	if cached.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", cached.Code)
	}

	// deactivating hides the tour from the public reads at once
	app.expect(app.do(http.MethodPut, "/tour/"+itoa(id), admin, map[string]bool{"is_active": false}), http.StatusOK)
	app.expect(app.do(http.MethodGet, "/tour/"+itoa(id), "", nil), http.StatusNotFound)
	list := decode[[]map[string]any](t, app.do(http.MethodGet, "/tour", "", nil))
	if len(list) != 0 {
		t.Fatalf("inactive tour still listed: %v", list)
	}

	stats := decode[map[string]any](t, app.do(http.MethodGet, "/tour/stats", "", nil))
	if stats["total"].(float64) != 1 || stats["inactive"].(float64) != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
	app.expect(app.do(http.MethodGet, "/tour/stats/detailed", "", nil), http.StatusOK)

	app.expect(app.do(http.MethodGet, "/tour/abc", "", nil), http.StatusUnprocessableEntity)
}

func TestBookingOwnershipAndStatusRules(t *testing.T) {
	app := newTestApp(t)
	app.seedAccount("root", user.RoleAdmin)
	admin := app.login("root").AccessToken
	tourID := app.createTour(admin, "Tokyo Adventure")

	owner := app.signup("gina").AccessToken
	other := app.signup("hank").AccessToken

	rec := app.do(http.MethodPost, "/request", owner, map[string]any{
		"tour_id":        tourID,
		"preferred_date": "2027-05-01T00:00:00Z",
		"notes":          "  window seat  ",
	})
	app.expect(rec, http.StatusCreated)
	created := decode[map[string]any](t, rec)
	if created["status"] != "pending" || created["participants_count"].(float64) != 1 || created["notes"] != "window seat" {
		t.Fatalf("unexpected booking: %v", created)
	}
	path := "/request/" + itoa(int64(created["id"].(float64)))

	// unknown tour
	rec = app.do(http.MethodPost, "/request", owner, map[string]any{"tour_id": 999, "preferred_date": "2027-05-01T00:00:00Z"})
	app.expect(rec, http.StatusNotFound)

	// other users see nothing of it
	app.expect(app.do(http.MethodGet, path, other, nil), http.StatusForbidden)
	app.expect(app.do(http.MethodPut, path, other, map[string]string{"status": "cancelled"}), http.StatusForbidden)
	app.expect(app.do(http.MethodDelete, path, other, nil), http.StatusForbidden)
	if items := decode[[]map[string]any](t, app.do(http.MethodGet, "/request", other, nil)); len(items) != 0 {
		t.Fatalf("other user lists foreign bookings: %v", items)
	}

	// restating the current status is not a change
	app.expect(app.do(http.MethodPut, path, owner, map[string]string{"status": "pending"}), http.StatusOK)

	// owners may cancel but not approve
	app.expect(app.do(http.MethodPut, path, owner, map[string]string{"status": "approved"}), http.StatusForbidden)
	app.expect(app.do(http.MethodPut, path, owner, map[string]string{"status": "bogus"}), http.StatusUnprocessableEntity)
	app.expect(app.do(http.MethodPut, path, owner, map[string]string{"status": "cancelled"}), http.StatusOK)

	// admins may approve
	rec = app.do(http.MethodPut, path, admin, map[string]string{"status": "approved"})
	app.expect(rec, http.StatusOK)
	if decode[map[string]any](t, rec)["status"] != "approved" {
		t.Fatalf("status not applied")
	}
	if items := decode[[]map[string]any](t, app.do(http.MethodGet, "/request", admin, nil)); len(items) != 1 {
		t.Fatalf("admin should list every booking, got %d", len(items))
	}

	// create + two status changes
	queued := app.bookings.Jobs()
	if len(queued) != 3 {
		t.Fatalf("expected 3 outbox jobs, got %d", len(queued))
	}
	if jobs.JobType(queued[0].Type) != jobs.JobBookingConfirmation || jobs.JobType(queued[2].Type) != jobs.JobBookingStatusChanged {
		t.Fatalf("unexpected job types: %s, %s", queued[0].Type, queued[2].Type)
	}

	app.expect(app.do(http.MethodDelete, path, owner, nil), http.StatusOK)
	app.expect(app.do(http.MethodGet, path, owner, nil), http.StatusNotFound)
}

func TestBookingCreationRateLimitedPerAccount(t *testing.T) {
	app := newTestApp(t, func(d *apphttp.Deps) { d.BookingRate = 1 })
	app.seedAccount("root", user.RoleAdmin)
	admin := app.login("root").AccessToken
	tourID := app.createTour(admin, "Lisbon Walk")

	first := app.signup("ivy").AccessToken
	second := app.signup("jack").AccessToken
	body := map[string]any{"tour_id": tourID, "preferred_date": "2027-06-01T00:00:00Z"}

	app.expect(app.do(http.MethodPost, "/request", first, body), http.StatusCreated)
	rec := app.do(http.MethodPost, "/request", first, body)
	app.expect(rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After")
	}

	// httptest requests share one client IP; the bucket is per account
	app.expect(app.do(http.MethodPost, "/request", second, body), http.StatusCreated)
}

func TestFeedbackVisibility(t *testing.T) {
	app := newTestApp(t)
	app.seedAccount("root", user.RoleAdmin)
	admin := app.login("root").AccessToken
	tourID := app.createTour(admin, "New York City Tour")

	author := app.signup("ivy").AccessToken
	stranger := app.signup("jack").AccessToken

	rec := app.do(http.MethodPost, "/feedback", author, map[string]any{"tour_id": tourID, "rating": 5, "comment": "   "})
	app.expect(rec, http.StatusCreated)
	fb := decode[map[string]any](t, rec)
	if fb["comment"] != nil || fb["is_published"] != false {
		t.Fatalf("unexpected feedback: %v", fb)
	}
	path := "/feedback/" + itoa(int64(fb["id"].(float64)))

	app.expect(app.do(http.MethodPost, "/feedback", author, map[string]any{"tour_id": tourID, "rating": 6}), http.StatusUnprocessableEntity)
	app.expect(app.do(http.MethodPost, "/feedback", "", map[string]any{"tour_id": tourID, "rating": 4}), http.StatusUnauthorized)

	// unpublished: hidden from anonymous and other users, visible to admins
	app.expect(app.do(http.MethodGet, path, "", nil), http.StatusNotFound)
	app.expect(app.do(http.MethodGet, path, stranger, nil), http.StatusNotFound)
	app.expect(app.do(http.MethodGet, path, admin, nil), http.StatusOK)
	if items := decode[[]map[string]any](t, app.do(http.MethodGet, "/feedback", "", nil)); len(items) != 0 {
		t.Fatalf("anonymous sees unpublished: %v", items)
	}
	if items := decode[[]map[string]any](t, app.do(http.MethodGet, "/feedback", admin, nil)); len(items) != 1 {
		t.Fatalf("admin should see unpublished, got %d", len(items))
	}

	app.expect(app.do(http.MethodPut, path, stranger, map[string]bool{"is_published": true}), http.StatusForbidden)
	app.expect(app.do(http.MethodPut, path, author, map[string]bool{"is_published": true}), http.StatusOK)
	app.expect(app.do(http.MethodGet, path, "", nil), http.StatusOK)

	app.expect(app.do(http.MethodDelete, path, stranger, nil), http.StatusForbidden)
	app.expect(app.do(http.MethodDelete, path, admin, nil), http.StatusOK)
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)
	app.expect(app.do(http.MethodGet, "/healthz", "", nil), http.StatusOK)
	app.expect(app.do(http.MethodGet, "/readyz", "", nil), http.StatusOK)
}

func TestSecurityHeaders(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/healthz", "", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control = %q", got)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("HSTS sent in test env: %q", got)
	}

	rec = app.do(http.MethodGet, "/tour", "", nil)
	app.expect(rec, http.StatusOK)
	if got := rec.Header().Get("Cache-Control"); got != "private, no-cache" {
		t.Fatalf("tour list Cache-Control = %q", got)
	}
}

func TestOversizeBodyRejected(t *testing.T) {
	app := newTestApp(t)

	huge := `{"username":"` + strings.Repeat("a", 2<<20) + `"}`
	rec := app.do(http.MethodPost, "/auth/signup", "", huge)
	app.expect(rec, http.StatusRequestEntityTooLarge)
	if body := decode[errorResponse](t, rec); body.Error.Code != "payload_too_large" {
		t.Fatalf("code = %q", body.Error.Code)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
