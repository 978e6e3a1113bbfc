package code

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"quad/cmd/internal/notify"
)

type captureNotifier struct {
	lastKey  string
	lastCode string
	fail     bool
}

func (n *captureNotifier) Send(_ context.Context, identityKey, code string) error {
	if n.fail {
		return errors.New("smtp down")
	}
	n.lastKey = identityKey
	n.lastCode = code
	return nil
}

func newTestService(t *testing.T, n notify.Notifier) *Service {
	t.Helper()
	svc, err := NewService(NewInMemoryStore(), n)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestIssue_SecondCodeConflictsUntilExpiry(t *testing.T) {
	n := &captureNotifier{}
	svc := newTestService(t, n)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := svc.Issue(ctx, "a@cuchd.in", now); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if n.lastKey != "a@cuchd.in" {
		t.Fatalf("notifier not invoked: %q", n.lastKey)
	}
	if len(n.lastCode) != defaultCodeDigits {
		t.Fatalf("unexpected code length: %q", n.lastCode)
	}
	for _, r := range n.lastCode {
		if r < '0' || r > '9' {
			t.Fatalf("non-numeric code: %q", n.lastCode)
		}
	}

	if err := svc.Issue(ctx, "a@cuchd.in", now.Add(time.Minute)); !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("expected ErrAlreadyPending, got %v", err)
	}

	// After expiry the identity can request a fresh code.
	if err := svc.Issue(ctx, "a@cuchd.in", now.Add(6*time.Minute)); err != nil {
		t.Fatalf("Issue after expiry: %v", err)
	}
}

func TestIssue_DeliveryFailureRollsBack(t *testing.T) {
	n := &captureNotifier{fail: true}
	svc := newTestService(t, n)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := svc.Issue(ctx, "a@cuchd.in", now); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}

	// The failed issue must not leave a pending record behind.
	n.fail = false
	if err := svc.Issue(ctx, "a@cuchd.in", now.Add(time.Second)); err != nil {
		t.Fatalf("Issue after failed delivery: %v", err)
	}
}

func TestVerify_SingleUse(t *testing.T) {
	n := &captureNotifier{}
	svc := newTestService(t, n)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := svc.Issue(ctx, "a@cuchd.in", now); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := svc.Verify(ctx, "A@CUCHD.IN ", n.lastCode, now.Add(time.Minute)); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// Same still-valid code must not verify twice.
	if err := svc.Verify(ctx, "a@cuchd.in", n.lastCode, now.Add(time.Minute)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on reuse, got %v", err)
	}
}

func TestVerify_MismatchKeepsRecord(t *testing.T) {
	n := &captureNotifier{}
	svc := newTestService(t, n)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := svc.Issue(ctx, "a@cuchd.in", now); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	wrong := "000000"
	if wrong == n.lastCode {
		wrong = "000001"
	}
	if err := svc.Verify(ctx, "a@cuchd.in", wrong, now.Add(time.Minute)); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}

	// The correct code still works after a failed attempt.
	if err := svc.Verify(ctx, "a@cuchd.in", n.lastCode, now.Add(time.Minute)); err != nil {
		t.Fatalf("Verify after mismatch: %v", err)
	}
}

func TestVerify_ExpiredTreatedAsAbsent(t *testing.T) {
	n := &captureNotifier{}
	svc := newTestService(t, n)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := svc.Issue(ctx, "a@cuchd.in", now); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := svc.Verify(ctx, "a@cuchd.in", n.lastCode, now.Add(10*time.Minute)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired code, got %v", err)
	}
}

func TestMetrics_CountIssueAndVerify(t *testing.T) {
	n := &captureNotifier{}
	svc := newTestService(t, n)
	ctx := context.Background()
	now := time.Now().UTC()

	issuedBefore := testutil.ToFloat64(metricCodesIssued)
	verifiedBefore := testutil.ToFloat64(metricCodesVerified)

	if err := svc.Issue(ctx, "a@cuchd.in", now); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if got := testutil.ToFloat64(metricCodesIssued); got != issuedBefore+1 {
		t.Fatalf("codes_issued_total = %v, want %v", got, issuedBefore+1)
	}

	// A failed verify must not count.
	wrong := "000000"
	if wrong == n.lastCode {
		wrong = "000001"
	}
	_ = svc.Verify(ctx, "a@cuchd.in", wrong, now.Add(time.Minute))
	if got := testutil.ToFloat64(metricCodesVerified); got != verifiedBefore {
		t.Fatalf("codes_verified_total = %v after mismatch, want %v", got, verifiedBefore)
	}

	if err := svc.Verify(ctx, "a@cuchd.in", n.lastCode, now.Add(time.Minute)); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := testutil.ToFloat64(metricCodesVerified); got != verifiedBefore+1 {
		t.Fatalf("codes_verified_total = %v, want %v", got, verifiedBefore+1)
	}
}

func TestNewNumericCode_FixedLength(t *testing.T) {
	for i := 0; i < 50; i++ {
		c, err := newNumericCode(6)
		if err != nil {
			t.Fatalf("newNumericCode: %v", err)
		}
		if len(c) != 6 {
			t.Fatalf("bad length: %q", c)
		}
		if strings.TrimLeft(c, "0123456789") != "" {
			t.Fatalf("non-numeric: %q", c)
		}
	}
}
