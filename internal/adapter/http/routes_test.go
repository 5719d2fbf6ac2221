package http

import (
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"collateral-evidence/internal/adapter/middleware"
	"collateral-evidence/internal/infrastructure/logging"
	"collateral-evidence/internal/testutil/loanmock"
	"collateral-evidence/internal/usecase/evidence"
	uc "collateral-evidence/internal/usecase/loan"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

func TestRegister_GuardedEventRoute(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	runs := 0
	outcomes := []evidence.Outcome{evidence.OutcomeVerificationFailed, evidence.OutcomeVerified}
	proc := &fakeProcessor{ProcessFn: func(context.Context, evidence.StorageEvent) (evidence.Outcome, error) {
		o := outcomes[runs]
		runs++
		return o, nil
	}}

	e := newEchoWithValidator()
	log := logging.Discard()
	Register(e, Handlers{
		Health: NewHandler(nil),
		Events: NewEventHandler(proc, log),
		Loans:  NewLoanHandler(uc.NewUsecase(&loanmock.Repo{}, nil), nil),
	}, middleware.EventGuard(rdb, time.Minute, time.Hour, log))

	deliver := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(stdhttp.MethodPost, "/events/storage", strings.NewReader(`{"bucket":"evidence","name":"loans/L1/a3.jpg"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(middleware.HeaderEventID, "evt-9")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	// a failed verification lets the same event run again; the verified run is replayed
	if rec := deliver(); !strings.Contains(rec.Body.String(), "verification_failed") {
		t.Fatalf("first delivery: %s", rec.Body.String())
	}
	if rec := deliver(); !strings.Contains(rec.Body.String(), `"verified"`) {
		t.Fatalf("second delivery: %s", rec.Body.String())
	}
	if rec := deliver(); !strings.Contains(rec.Body.String(), `"verified"`) {
		t.Fatalf("third delivery: %s", rec.Body.String())
	}
	if runs != 2 {
		t.Fatalf("pipeline runs = %d, want 2", runs)
	}

	req := httptest.NewRequest(stdhttp.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
}
