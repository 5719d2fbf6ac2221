package mysql

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	domain "collateral-evidence/internal/domain/loan"
	"collateral-evidence/pkg/id"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// openTestDB creates an in-memory sqlite DB with the production schema.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// every connection to :memory: is a new database
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func entry(path string) domain.FileEntry {
	return domain.FileEntry{
		Path:        path,
		Location:    &domain.Location{Lat: -6.2, Lng: 106.8},
		Timestamp:   time.Date(2025, 9, 5, 10, 0, 0, 0, time.UTC),
		ContentType: "image/jpeg",
	}
}

func TestUpsertMerge_CreatesThenMerges(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loanID := id.NewID32()
	if err := repo.UpsertMerge(ctx, domain.New(loanID, "user-1"), nil); err != nil {
		t.Fatalf("UpsertMerge: %v", err)
	}
	got, err := repo.GetByLoanID(ctx, loanID)
	if err != nil {
		t.Fatalf("GetByLoanID: %v", err)
	}
	if got.Status != domain.StatusInitialised || got.VerificationState != domain.VerificationNone {
		t.Fatalf("unexpected initial state: %+v", got)
	}
	if got.Bill() != nil || len(got.Assets()) != 0 {
		t.Fatalf("expected empty bundle, got bill=%v assets=%v", got.Bill(), got.Assets())
	}

	// progress the record, then re-initialise
	if err := repo.AppendAsset(ctx, loanID, entry("loans/a1.jpg")); err != nil {
		t.Fatalf("AppendAsset: %v", err)
	}
	bill := entry("loans/bill.pdf")
	if err := repo.Update(ctx, loanID, domain.Fields{"bill_data": domain.BillValue(&bill), "status": domain.StatusAIPending}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := repo.UpsertMerge(ctx, domain.New(loanID, "someone-else"), domain.Fields{"borrower_name": "Mallory"}); err != nil {
		t.Fatalf("UpsertMerge by another user: %v", err)
	}
	if err := repo.UpsertMerge(ctx, domain.New(loanID, "user-1"), domain.Fields{"borrower_name": "Siti"}); err != nil {
		t.Fatalf("UpsertMerge again: %v", err)
	}
	got, err = repo.GetByLoanID(ctx, loanID)
	if err != nil {
		t.Fatalf("GetByLoanID: %v", err)
	}
	if got.Status != domain.StatusAIPending {
		t.Errorf("status clobbered: %s", got.Status)
	}
	if got.UserID != "user-1" {
		t.Errorf("user clobbered: %s", got.UserID)
	}
	if got.Bill() == nil || got.Bill().Path != "loans/bill.pdf" {
		t.Errorf("bill clobbered: %+v", got.Bill())
	}
	if len(got.Assets()) != 1 {
		t.Errorf("assets clobbered: %+v", got.Assets())
	}
	if got.BorrowerName != "Siti" {
		t.Errorf("borrower_name not merged: %q", got.BorrowerName)
	}
}

func TestUpsertMerge_SkipsRejected(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loanID := id.NewID32()
	if err := repo.UpsertMerge(ctx, domain.New(loanID, "user-1"), nil); err != nil {
		t.Fatal(err)
	}
	if err := repo.Update(ctx, loanID, domain.Fields{"status": domain.StatusRejected, "rejection_reason": "photo expired"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpsertMerge(ctx, domain.New(loanID, "user-1"), domain.Fields{"borrower_name": "Budi"}); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.GetByLoanID(ctx, loanID)
	if got.BorrowerName != "" {
		t.Fatalf("rejected loan was mutated: %+v", got)
	}
}

func TestGetByLoanID_NotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)

	_, err := repo.GetByLoanID(context.Background(), "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = repo.GetByLoanIDForUpdate(context.Background(), "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound (for update), got %v", err)
	}
}

func TestAppendAsset_KeepsOrderAndDedupes(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loanID := id.NewID32()
	if err := repo.UpsertMerge(ctx, domain.New(loanID, "user-1"), nil); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"a1.jpg", "a2.jpg", "a1.jpg", "a3.jpg"} {
		if err := repo.AppendAsset(ctx, loanID, entry(p)); err != nil {
			t.Fatalf("AppendAsset(%s): %v", p, err)
		}
	}
	got, _ := repo.GetByLoanID(ctx, loanID)
	assets := got.Assets()
	if len(assets) != 3 {
		t.Fatalf("assets len = %d, want 3 (%+v)", len(assets), assets)
	}
	for i, want := range []string{"a1.jpg", "a2.jpg", "a3.jpg"} {
		if assets[i].Path != want {
			t.Errorf("assets[%d] = %s, want %s", i, assets[i].Path, want)
		}
	}
	if assets[0].Location == nil || assets[0].Location.Lat != -6.2 {
		t.Errorf("location not persisted: %+v", assets[0].Location)
	}
}

func TestAppendAsset_UnknownLoan(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	err := repo.AppendAsset(context.Background(), "missing", entry("a.jpg"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

var (
	claimAt    = time.Date(2025, 9, 5, 10, 0, 0, 0, time.UTC)
	claimLease = 5 * time.Minute
)

func TestClaimVerification_OnlyOnce(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loanID := id.NewID32()
	if err := repo.UpsertMerge(ctx, domain.New(loanID, "user-1"), nil); err != nil {
		t.Fatal(err)
	}
	ok, err := repo.ClaimVerification(ctx, loanID, claimAt, claimLease)
	if err != nil || !ok {
		t.Fatalf("first claim ok=%v err=%v", ok, err)
	}
	ok, err = repo.ClaimVerification(ctx, loanID, claimAt.Add(time.Second), claimLease)
	if err != nil || ok {
		t.Fatalf("second claim ok=%v err=%v, want false", ok, err)
	}
	got, _ := repo.GetByLoanID(ctx, loanID)
	if got.Status != domain.StatusAIPending || got.VerificationState != domain.VerificationClaimed {
		t.Fatalf("unexpected state after claim: %s/%s", got.Status, got.VerificationState)
	}
	if got.ClaimedAt == nil || !got.ClaimedAt.Equal(claimAt) {
		t.Fatalf("claimed_at = %v, want %v", got.ClaimedAt, claimAt)
	}

	// a failed verification can be claimed again
	ok, err = repo.ResolveVerification(ctx, loanID, domain.Fields{"verification_state": domain.VerificationFailed})
	if err != nil || !ok {
		t.Fatalf("resolve ok=%v err=%v", ok, err)
	}
	ok, err = repo.ClaimVerification(ctx, loanID, claimAt.Add(time.Minute), claimLease)
	if err != nil || !ok {
		t.Fatalf("re-claim after failure ok=%v err=%v", ok, err)
	}
}

func TestClaimVerification_ExpiredClaimIsTakenOver(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loanID := id.NewID32()
	_ = repo.UpsertMerge(ctx, domain.New(loanID, "user-1"), nil)
	if ok, err := repo.ClaimVerification(ctx, loanID, claimAt, claimLease); err != nil || !ok {
		t.Fatalf("first claim ok=%v err=%v", ok, err)
	}

	// the holder never reconciled; inside the lease the claim still stands
	if ok, _ := repo.ClaimVerification(ctx, loanID, claimAt.Add(claimLease-time.Second), claimLease); ok {
		t.Fatal("live claim taken over")
	}
	later := claimAt.Add(claimLease + time.Minute)
	ok, err := repo.ClaimVerification(ctx, loanID, later, claimLease)
	if err != nil || !ok {
		t.Fatalf("takeover ok=%v err=%v", ok, err)
	}
	got, _ := repo.GetByLoanID(ctx, loanID)
	if got.ClaimedAt == nil || !got.ClaimedAt.Equal(later) {
		t.Fatalf("claimed_at = %v, want %v", got.ClaimedAt, later)
	}

	// a claim row written without a timestamp is treated as expired
	_ = repo.Update(ctx, loanID, domain.Fields{"claimed_at": nil})
	if ok, _ := repo.ClaimVerification(ctx, loanID, later, claimLease); !ok {
		t.Fatal("claim without claimed_at not taken over")
	}

	_ = repo.Update(ctx, loanID, domain.Fields{"verification_state": domain.VerificationDone})
	if ok, _ := repo.ClaimVerification(ctx, loanID, later.Add(time.Hour), claimLease); ok {
		t.Fatal("done verification claimed again")
	}
}

func TestClaimVerification_RejectedNeverClaims(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loanID := id.NewID32()
	_ = repo.UpsertMerge(ctx, domain.New(loanID, "user-1"), nil)
	_ = repo.Update(ctx, loanID, domain.Fields{"status": domain.StatusRejected})

	ok, err := repo.ClaimVerification(ctx, loanID, claimAt, claimLease)
	if err != nil || ok {
		t.Fatalf("claim on rejected ok=%v err=%v", ok, err)
	}
}

// Two connections to one database file. sqlite has no row locks, so transactions
// begin IMMEDIATE: the second one waits for the first to commit and then finds the
// claim taken.
func TestClaimVerification_RacingTransactions(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "claims.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(2)
	defer sqlDB.Close()
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	loanID := id.NewID32()
	if err := NewLoanRepository(db).UpsertMerge(ctx, domain.New(loanID, "user-1"), nil); err != nil {
		t.Fatal(err)
	}

	claimed := make(chan struct{})
	release := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- db.Transaction(func(tx *gorm.DB) error {
			ok, err := NewLoanRepository(tx).ClaimVerification(ctx, loanID, claimAt, claimLease)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("first claim lost")
			}
			close(claimed)
			<-release
			return nil
		})
	}()
	<-claimed

	type claimResult struct {
		ok  bool
		err error
	}
	second := make(chan claimResult, 1)
	go func() {
		var r claimResult
		r.err = db.Transaction(func(tx *gorm.DB) error {
			var err error
			r.ok, err = NewLoanRepository(tx).ClaimVerification(ctx, loanID, claimAt, claimLease)
			return err
		})
		second <- r
	}()

	select {
	case r := <-second:
		t.Fatalf("second claim finished while the first was open: %+v", r)
	case <-time.After(200 * time.Millisecond):
	}
	close(release)
	if err := <-first; err != nil {
		t.Fatalf("first transaction: %v", err)
	}
	r := <-second
	if r.err != nil || r.ok {
		t.Fatalf("second claim ok=%v err=%v, want false", r.ok, r.err)
	}
}

func TestResolveVerification_RequiresClaim(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loanID := id.NewID32()
	_ = repo.UpsertMerge(ctx, domain.New(loanID, "user-1"), nil)

	ok, err := repo.ResolveVerification(ctx, loanID, domain.Fields{"status": domain.StatusPending, "verification_state": domain.VerificationDone})
	if err != nil || ok {
		t.Fatalf("resolve without claim ok=%v err=%v", ok, err)
	}
	got, _ := repo.GetByLoanID(ctx, loanID)
	if got.Status != domain.StatusInitialised {
		t.Fatalf("status changed without claim: %s", got.Status)
	}
}
