package credits

import (
	"errors"
	"testing"

	"github.com/ManuelReschke/JobFuchs/app/models"
	"github.com/ManuelReschke/JobFuchs/app/repository"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/billing"
)

type memLedger struct {
	rows []models.CreditTransaction
}

func (m *memLedger) Append(tx *models.CreditTransaction) error {
	m.rows = append(m.rows, *tx)
	return nil
}

func (m *memLedger) HasPaidGrant(userID uint) (bool, error) { return false, nil }

func (m *memLedger) ListByUser(userID uint, kind string, limit, offset int) ([]models.CreditTransaction, error) {
	return m.rows, nil
}

func (m *memLedger) SumAmounts(userID uint) (int, error) {
	sum := 0
	for _, r := range m.rows {
		sum += r.Amount
	}
	return sum, nil
}

func newTestRepos() (*repository.Repositories, *memLedger) {
	ledger := &memLedger{}
	return &repository.Repositories{Ledger: ledger}, ledger
}

// replayMatches checks the core ledger invariant: the signed sum of all rows
// equals the cached metered balance.
func replayMatches(t *testing.T, ledger *memLedger, sub *models.Subscription) {
	t.Helper()
	sum, _ := ledger.SumAmounts(sub.UserID)
	want := sub.CreditBalance
	if sub.HasUnlimitedCredits() {
		want = 0
	}
	if sum != want {
		t.Fatalf("ledger replay = %d, want %d", sum, want)
	}
}

func TestApplyGrant(t *testing.T) {
	repos, ledger := newTestRepos()
	sub := &models.Subscription{UserID: 1, CreditBalance: 8}

	if err := ApplyGrant(repos, sub, 50, "premium activation", models.TierPremium, nil); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if sub.CreditBalance != 58 {
		t.Fatalf("balance = %d, want 58", sub.CreditBalance)
	}
	if len(ledger.rows) != 1 || ledger.rows[0].Amount != 50 || ledger.rows[0].BalanceAfter != 58 {
		t.Fatalf("unexpected ledger row: %+v", ledger.rows)
	}
	replayMatches(t, ledger, sub)
}

func TestApplyGrantRejectsNonPositive(t *testing.T) {
	repos, _ := newTestRepos()
	sub := &models.Subscription{UserID: 1, CreditBalance: 8}

	for _, amount := range []int{0, -5} {
		if err := ApplyGrant(repos, sub, amount, "bad", "", nil); !errors.Is(err, billing.ErrValidation) {
			t.Fatalf("grant of %d: expected validation error, got %v", amount, err)
		}
	}
}

func TestApplyDeduct(t *testing.T) {
	repos, ledger := newTestRepos()
	sub := &models.Subscription{UserID: 1, CreditBalance: 2}

	if err := ApplyDeduct(repos, sub, "lead purchase", nil); err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if sub.CreditBalance != 1 || sub.LifetimeCreditsUsed != 1 {
		t.Fatalf("balance = %d used = %d, want 1/1", sub.CreditBalance, sub.LifetimeCreditsUsed)
	}
	replayMatches(t, ledger, sub)
}

func TestApplyDeductAtZeroFails(t *testing.T) {
	repos, ledger := newTestRepos()
	sub := &models.Subscription{UserID: 1, CreditBalance: 0}

	err := ApplyDeduct(repos, sub, "lead purchase", nil)
	if !errors.Is(err, billing.ErrInsufficientCredits) {
		t.Fatalf("expected InsufficientCredits, got %v", err)
	}
	if sub.CreditBalance != 0 || sub.LifetimeCreditsUsed != 0 {
		t.Fatalf("failed deduct must not change state: %+v", sub)
	}
	if len(ledger.rows) != 0 {
		t.Fatalf("failed deduct must not append: %+v", ledger.rows)
	}
}

func TestApplyDeductUnlimited(t *testing.T) {
	repos, ledger := newTestRepos()
	sub := &models.Subscription{UserID: 1, CreditBalance: models.CreditsUnlimited}

	if err := ApplyDeduct(repos, sub, "lead purchase", nil); err != nil {
		t.Fatalf("unlimited deduct failed: %v", err)
	}
	if !sub.HasUnlimitedCredits() {
		t.Fatalf("unlimited sentinel lost: %d", sub.CreditBalance)
	}
	if sub.LifetimeCreditsUsed != 1 {
		t.Fatalf("usage counter = %d, want 1", sub.LifetimeCreditsUsed)
	}
	if len(ledger.rows) != 0 {
		t.Fatalf("unlimited deduct must not append: %+v", ledger.rows)
	}
}

func TestApplyRefundClamps(t *testing.T) {
	repos, ledger := newTestRepos()
	sub := &models.Subscription{UserID: 1, CreditBalance: 3}

	applied, err := ApplyRefund(repos, sub, 10, "job cancelled")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if applied != 3 {
		t.Fatalf("applied = %d, want clamped 3", applied)
	}
	if sub.CreditBalance != 0 {
		t.Fatalf("balance = %d, want 0", sub.CreditBalance)
	}
	if ledger.rows[0].Amount != -3 {
		t.Fatalf("recorded amount = %d, want clamped -3", ledger.rows[0].Amount)
	}
	replayMatches(t, ledger, sub)
}

func TestApplyRefundAtZeroIsNoop(t *testing.T) {
	repos, ledger := newTestRepos()
	sub := &models.Subscription{UserID: 1, CreditBalance: 0}

	applied, err := ApplyRefund(repos, sub, 5, "job cancelled")
	if err != nil || applied != 0 {
		t.Fatalf("refund at zero: applied = %d err = %v, want 0/nil", applied, err)
	}
	if len(ledger.rows) != 0 {
		t.Fatalf("refund at zero must not append: %+v", ledger.rows)
	}
}

func TestApplyAdjustTo(t *testing.T) {
	repos, ledger := newTestRepos()
	sub := &models.Subscription{UserID: 1, CreditBalance: 3}

	// Trial expiry: reset to the fixed BASIC grant.
	if err := ApplyAdjustTo(repos, sub, models.BasicCredits, "trial expired", models.TierBasic, nil); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if sub.CreditBalance != 10 {
		t.Fatalf("balance = %d, want 10", sub.CreditBalance)
	}
	if ledger.rows[0].Amount != 7 {
		t.Fatalf("adjust delta = %d, want 7", ledger.rows[0].Amount)
	}
	replayMatches(t, ledger, sub)
}

func TestUnlimitedRoundTripKeepsReplayConsistent(t *testing.T) {
	repos, ledger := newTestRepos()
	sub := &models.Subscription{UserID: 1, CreditBalance: 8}

	// PRO activation switches to the sentinel.
	if err := ApplyEnterUnlimited(repos, sub, "pro activation", models.TierPro, nil); err != nil {
		t.Fatalf("enter unlimited failed: %v", err)
	}
	if !sub.HasUnlimitedCredits() {
		t.Fatalf("expected unlimited sentinel, got %d", sub.CreditBalance)
	}
	replayMatches(t, ledger, sub)

	// Expiry downgrade leaves the sentinel for the fixed BASIC grant.
	if err := ApplyAdjustTo(repos, sub, models.BasicCredits, "subscription expired", models.TierBasic, nil); err != nil {
		t.Fatalf("adjust from unlimited failed: %v", err)
	}
	if sub.CreditBalance != 10 {
		t.Fatalf("balance = %d, want 10", sub.CreditBalance)
	}
	replayMatches(t, ledger, sub)
}
