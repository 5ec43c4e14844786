package lead

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/checkout"
	"storefront/internal/domain"
	"storefront/internal/ratelimit"
	leadrepo "storefront/internal/repository/lead"
)

type stubMinter struct {
	err   error
	calls []string
}

func (m *stubMinter) Mint(_ context.Context, lead domain.Lead) (string, error) {
	m.calls = append(m.calls, lead.ID)
	if m.err != nil {
		return "", m.err
	}
	return "/checkout/success?lead=" + lead.ID, nil
}

func validInput() SubmitInput {
	return SubmitInput{
		Service:       "custom-web-app",
		Details:       "I need a portfolio tracker with wallet import and alerts.",
		ContactMethod: "telegram",
		ContactValue:  "@satoshi",
		BudgetRange:   "1k-3k",
		Deadline:      "2025-09-01",
		Consent:       true,
	}
}

func newService(m minter) (*Service, leadrepo.Repository) {
	repo := leadrepo.NewMemory(nil)
	limiter := ratelimit.New(3, time.Hour, nil)
	return New(repo, limiter, m, nil), repo
}

func TestSubmitHappyPath(t *testing.T) {
	svc, _ := newService(checkout.NewLocal("", "/checkout/success"))
	ctx := context.Background()

	res, err := svc.Submit(ctx, validInput(), "1.2.3.4")
	require.NoError(t, err)
	require.NotEmpty(t, res.Lead.ID)
	assert.Equal(t, "/checkout/success?lead="+res.Lead.ID, res.CheckoutURL)

	got, err := svc.Get(ctx, res.Lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "custom-web-app", got.Service)
	assert.True(t, got.Consent)
	assert.Equal(t, "1.2.3.4", got.IP)
}

func TestSubmitHoneypot(t *testing.T) {
	m := &stubMinter{}
	svc, repo := newService(m)
	ctx := context.Background()

	in := validInput()
	in.Website = "http://spam.example"
	res, err := svc.Submit(ctx, in, "1.2.3.4")
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, domain.ErrSpamDetected))

	leads, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, leads)
	assert.Empty(t, m.calls)
}

func TestSubmitHoneypotDoesNotConsumeRateLimit(t *testing.T) {
	svc, _ := newService(&stubMinter{})
	spam := validInput()
	spam.Website = "x"
	for i := 0; i < 5; i++ {
		_, _ = svc.Submit(context.Background(), spam, "1.2.3.4")
	}
	_, err := svc.Submit(context.Background(), validInput(), "1.2.3.4")
	assert.NoError(t, err)
}

func TestSubmitValidation(t *testing.T) {
	tests := map[string]struct {
		mutate func(*SubmitInput)
		field  string
		msg    string
	}{
		"missing service":   {func(in *SubmitInput) { in.Service = "  " }, "service", "is required"},
		"short details":     {func(in *SubmitInput) { in.Details = "too short" }, "details", "must be at least 20 characters"},
		"markup only":       {func(in *SubmitInput) { in.Details = "<b></b><i></i><script>alert(1)</script>" }, "details", "is required"},
		"unknown method":    {func(in *SubmitInput) { in.ContactMethod = "fax" }, "contactMethod", "must be one of: telegram, discord, whatsapp, instagram, email"},
		"short contact":     {func(in *SubmitInput) { in.ContactValue = "ab" }, "contactValue", "must be at least 3 characters"},
		"bad budget":        {func(in *SubmitInput) { in.BudgetRange = "lots" }, "budgetRange", "must be one of: <1k, 1k-3k, 3k-10k, 10k+"},
		"bad deadline":      {func(in *SubmitInput) { in.Deadline = "next week" }, "deadline", "must be a date (YYYY-MM-DD)"},
		"consent not given": {func(in *SubmitInput) { in.Consent = false }, "consent", "must be accepted"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			m := &stubMinter{}
			svc, repo := newService(m)
			in := validInput()
			tc.mutate(&in)

			_, err := svc.Submit(context.Background(), in, "1.2.3.4")
			require.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.msg, verr.Fields[tc.field])

			leads, _ := repo.List(context.Background())
			assert.Empty(t, leads)
			assert.Empty(t, m.calls)
		})
	}
}

func TestSubmitOptionalFieldsMayBeEmpty(t *testing.T) {
	svc, _ := newService(&stubMinter{})
	in := validInput()
	in.BudgetRange = ""
	in.Deadline = ""
	_, err := svc.Submit(context.Background(), in, "1.2.3.4")
	assert.NoError(t, err)
}

func TestSubmitStripsMarkup(t *testing.T) {
	svc, _ := newService(&stubMinter{})
	in := validInput()
	in.Details = "<p>Build me a <b>landing page</b> for my token & community</p>"
	res, err := svc.Submit(context.Background(), in, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "Build me a landing page for my token & community", res.Lead.Details)

	for _, details := range []string{
		"&lt;script&gt;alert(1)&lt;/script&gt; please build my tracker",
		"&amp;lt;script&amp;gt;alert(1)&amp;lt;/script&amp;gt; please build my tracker",
	} {
		in.Details = details
		res, err := svc.Submit(context.Background(), in, "5.6.7.8")
		require.NoError(t, err, details)
		assert.NotContains(t, res.Lead.Details, "<script", details)
		assert.Contains(t, res.Lead.Details, "please build my tracker", details)
	}
}

func TestSubmitRateLimit(t *testing.T) {
	svc, repo := newService(&stubMinter{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(ctx, validInput(), "9.9.9.9")
		require.NoError(t, err)
	}
	_, err := svc.Submit(ctx, validInput(), "9.9.9.9")
	assert.True(t, errors.Is(err, domain.ErrRateLimited))

	_, err = svc.Submit(ctx, validInput(), "8.8.8.8")
	assert.NoError(t, err)

	leads, _ := repo.List(ctx)
	assert.Len(t, leads, 4)
}

func TestSubmitInvalidDoesNotConsumeRateLimit(t *testing.T) {
	svc, _ := newService(&stubMinter{})
	bad := validInput()
	bad.Consent = false
	for i := 0; i < 5; i++ {
		_, _ = svc.Submit(context.Background(), bad, "1.2.3.4")
	}
	_, err := svc.Submit(context.Background(), validInput(), "1.2.3.4")
	assert.NoError(t, err)
}

func TestSubmitCheckoutFailureKeepsLead(t *testing.T) {
	m := &stubMinter{err: errors.New("stripe down")}
	svc, _ := newService(m)
	ctx := context.Background()

	res, err := svc.Submit(ctx, validInput(), "1.2.3.4")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCheckoutUnavailable))
	require.NotNil(t, res)
	require.NotNil(t, res.Lead)
	assert.Empty(t, res.CheckoutURL)

	stored, err := svc.Get(ctx, res.Lead.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Lead.ID, stored.ID)

	m.err = nil
	url, err := svc.Checkout(ctx, res.Lead.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, res.Lead.ID))
	assert.Equal(t, []string{res.Lead.ID, res.Lead.ID}, m.calls)
}

func TestCheckoutUnknownLead(t *testing.T) {
	svc, _ := newService(&stubMinter{})
	_, err := svc.Checkout(context.Background(), "lead_missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestListReturnsCreationOrder(t *testing.T) {
	svc, _ := newService(&stubMinter{})
	ctx := context.Background()
	first, err := svc.Submit(ctx, validInput(), "a")
	require.NoError(t, err)
	second, err := svc.Submit(ctx, validInput(), "b")
	require.NoError(t, err)

	leads, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, first.Lead.ID, leads[0].ID)
	assert.Equal(t, second.Lead.ID, leads[1].ID)
}

func TestOptions(t *testing.T) {
	opts := Options()
	assert.Contains(t, opts.Services, "custom-tracker")
	assert.Len(t, opts.ContactMethods, 5)
	assert.Equal(t, []string{"<1k", "1k-3k", "3k-10k", "10k+"}, opts.BudgetRanges)
}
