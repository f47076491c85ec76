package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/deal-portal/internal/config"
	"github.com/spec-kit/deal-portal/internal/domain"
	"github.com/spec-kit/deal-portal/internal/observability"
)

type notifyHarness struct {
	svc    *NotificationService
	store  *fakeStore
	mailer *fakeMailer
	ledger *fakeLedger
	waits  []time.Duration
	deal   *domain.Deal
	broker domain.Profile
	admins []domain.Profile
}

func newNotifyHarness(t *testing.T, cfg config.NotificationConfig) *notifyHarness {
	t.Helper()
	store := newFakeStore()
	h := &notifyHarness{
		store:  store,
		mailer: &fakeMailer{},
		ledger: newFakeLedger(),
		broker: domain.Profile{ID: uuid.NewString(), Email: "broker@example.com", FullName: "Bea Broker", Role: domain.RoleBroker},
		admins: []domain.Profile{
			{ID: uuid.NewString(), Email: "ada@example.com", FullName: "Ada Admin", Role: domain.RoleAdmin},
			{ID: uuid.NewString(), Email: "ops@example.com", FullName: "Ops Desk", Role: domain.RoleAdmin},
			{ID: uuid.NewString(), Email: "OPS@example.com", FullName: "Ops Desk (alias)", Role: domain.RoleAdmin},
		},
	}
	h.deal = store.put(domain.Deal{
		BrokerID:          h.broker.ID,
		DealType:          domain.DealTypeEquipmentFinance,
		Status:            domain.DealStatusSubmitted,
		FundingAmount:     decimal.RequireFromString("125000"),
		LegalBusinessName: "Acme Excavation LLC",
	})
	if cfg.SiteURL == "" {
		cfg.SiteURL = "https://portal.example.com/"
	}
	h.svc = NewNotificationService(NotificationDependencies{
		Deals:     fakeDealRepo{store: store},
		Directory: &fakeDirectory{profiles: append([]domain.Profile{h.broker}, h.admins...)},
		Mailer:    h.mailer,
		Ledger:    h.ledger,
		Logger:    zaptest.NewLogger(t),
		Config:    cfg,
		Wait: func(_ context.Context, d time.Duration) error {
			h.waits = append(h.waits, d)
			return nil
		},
	})
	return h
}

func TestNotify_BrokerMessageReachesEachAdminOnce(t *testing.T) {
	h := newNotifyHarness(t, config.NotificationConfig{})
	body := strings.Repeat("x", 250)

	result, err := h.svc.Notify(context.Background(), NotificationRequest{
		Kind:    NotifyNewMessage,
		DealID:  h.deal.ID,
		Sender:  &domain.Principal{ID: h.broker.ID, Role: domain.RoleBroker},
		Message: body,
	})
	require.NoError(t, err)
	assert.Equal(t, NotificationResult{Recipients: 2, Sent: 2}, result)
	assert.Equal(t, []string{"ada@example.com", "ops@example.com"}, h.mailer.recipients())

	email := h.mailer.sent[0]
	assert.Equal(t, "New Message on Acme Excavation LLC", email.Subject)
	assert.Contains(t, email.HTML, "Bea Broker")
	assert.Contains(t, email.HTML, "https://portal.example.com/admin/deals/"+h.deal.ID)
	assert.Contains(t, email.HTML, strings.Repeat("x", 200))
	assert.NotContains(t, email.HTML, strings.Repeat("x", 201))
}

func TestNotify_AdminMessageReachesBroker(t *testing.T) {
	h := newNotifyHarness(t, config.NotificationConfig{})

	result, err := h.svc.Notify(context.Background(), NotificationRequest{
		Kind:    NotifyNewMessage,
		DealID:  h.deal.ID,
		Sender:  &domain.Principal{ID: h.admins[0].ID, Role: domain.RoleAdmin},
		Message: "Can you send the signed application?",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	require.Len(t, h.mailer.sent, 1)
	assert.Equal(t, "broker@example.com", h.mailer.sent[0].To)
	assert.Contains(t, h.mailer.sent[0].HTML, "Ada Admin")
	assert.Contains(t, h.mailer.sent[0].HTML, "https://portal.example.com/deals/"+h.deal.ID+"/messages")
}

func TestNotify_NewDealGoesToAdmins(t *testing.T) {
	h := newNotifyHarness(t, config.NotificationConfig{})

	_, err := h.svc.Notify(context.Background(), NotificationRequest{Kind: NotifyNewDeal, DealID: h.deal.ID})
	require.NoError(t, err)
	require.Len(t, h.mailer.sent, 2)

	email := h.mailer.sent[0]
	assert.Equal(t, "New Deal Submitted: Acme Excavation LLC", email.Subject)
	assert.Contains(t, email.HTML, "Bea Broker")
	assert.Contains(t, email.HTML, "Equipment Finance")
	assert.Contains(t, email.HTML, "$125,000")
	assert.Contains(t, email.HTML, "https://portal.example.com/admin/deals")
}

func TestNotify_NewDealResolvesEveryAdmin(t *testing.T) {
	broker := domain.Profile{ID: uuid.NewString(), Email: "broker@example.com", FullName: "Bea Broker", Role: domain.RoleBroker}
	admin := func(email string) domain.Profile {
		return domain.Profile{ID: uuid.NewString(), Email: email, FullName: email, Role: domain.RoleAdmin}
	}

	cases := []struct {
		name   string
		admins []domain.Profile
		want   []string
	}{
		{name: "no admins", admins: nil, want: nil},
		{name: "one admin", admins: []domain.Profile{admin("ada@example.com")}, want: []string{"ada@example.com"}},
		{
			name:   "many admins",
			admins: []domain.Profile{admin("ada@example.com"), admin("ops@example.com"), admin("risk@example.com")},
			want:   []string{"ada@example.com", "ops@example.com", "risk@example.com"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			deal := store.put(domain.Deal{
				BrokerID:          broker.ID,
				DealType:          domain.DealTypeTermLoan,
				Status:            domain.DealStatusSubmitted,
				FundingAmount:     decimal.NewFromInt(40000),
				LegalBusinessName: "Corner Cafe",
			})
			mailer := &fakeMailer{}
			metrics := observability.NewMetrics()
			svc := NewNotificationService(NotificationDependencies{
				Deals:     fakeDealRepo{store: store},
				Directory: &fakeDirectory{profiles: append([]domain.Profile{broker}, tc.admins...)},
				Mailer:    mailer,
				Ledger:    newFakeLedger(),
				Metrics:   metrics,
				Logger:    zaptest.NewLogger(t),
				Config:    config.NotificationConfig{SiteURL: "https://portal.example.com"},
			})

			result, err := svc.Notify(context.Background(), NotificationRequest{Kind: NotifyNewDeal, DealID: deal.ID})
			require.NoError(t, err)
			assert.Equal(t, len(tc.want), result.Recipients)
			assert.Equal(t, len(tc.want), result.Sent)
			assert.ElementsMatch(t, tc.want, mailer.recipients())

			noRecipients := notificationCount(t, metrics, "new_deal", "no_recipients")
			if len(tc.want) == 0 {
				assert.Equal(t, 1.0, noRecipients)
			} else {
				assert.Zero(t, noRecipients)
				assert.Equal(t, float64(len(tc.want)), notificationCount(t, metrics, "new_deal", "sent"))
			}
		})
	}
}

func notificationCount(t *testing.T, metrics *observability.Metrics, kind, result string) float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "notifications_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["kind"] == kind && labels["result"] == result {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestNotify_DocsRequestedUsesLabels(t *testing.T) {
	h := newNotifyHarness(t, config.NotificationConfig{})

	_, err := h.svc.Notify(context.Background(), NotificationRequest{
		Kind:          NotifyDocsRequested,
		DealID:        h.deal.ID,
		DocumentTypes: []string{"bank_statement", "profit_loss", "mystery_doc"},
		Note:          "Most recent quarter",
	})
	require.NoError(t, err)
	require.Len(t, h.mailer.sent, 1)

	email := h.mailer.sent[0]
	assert.Equal(t, "broker@example.com", email.To)
	assert.Equal(t, "Documents Requested: Acme Excavation LLC", email.Subject)
	assert.Contains(t, email.HTML, "<li>Bank Statement</li>")
	assert.Contains(t, email.HTML, "<li>Profit &amp; Loss Statement</li>")
	assert.Contains(t, email.HTML, "<li>mystery_doc</li>")
	assert.Contains(t, email.HTML, "Most recent quarter")
}

func TestNotify_StatusChangeFallsBackToRawToken(t *testing.T) {
	h := newNotifyHarness(t, config.NotificationConfig{})

	_, err := h.svc.Notify(context.Background(), NotificationRequest{
		Kind:      NotifyStatusChange,
		DealID:    h.deal.ID,
		OldStatus: "legacy_hold",
		NewStatus: "submitted_to_lender",
	})
	require.NoError(t, err)
	require.Len(t, h.mailer.sent, 1)
	assert.Contains(t, h.mailer.sent[0].HTML, "legacy_hold")
	assert.Contains(t, h.mailer.sent[0].HTML, "Submitted to Lender")
	assert.NotContains(t, h.mailer.sent[0].HTML, "Note:")
}

func TestNotify_EscapesUserContent(t *testing.T) {
	h := newNotifyHarness(t, config.NotificationConfig{})

	_, err := h.svc.Notify(context.Background(), NotificationRequest{
		Kind:    NotifyNewMessage,
		DealID:  h.deal.ID,
		Sender:  &domain.Principal{ID: h.broker.ID, Role: domain.RoleBroker},
		Message: `<script>alert("x")</script>`,
	})
	require.NoError(t, err)
	require.NotEmpty(t, h.mailer.sent)
	assert.NotContains(t, h.mailer.sent[0].HTML, "<script>")
}

func TestNotify_RepublishedEventIsNotSentTwice(t *testing.T) {
	h := newNotifyHarness(t, config.NotificationConfig{})
	req := NotificationRequest{Kind: NotifyStatusChange, EventID: "evt-42", DealID: h.deal.ID, OldStatus: "submitted", NewStatus: "under_review"}

	first, err := h.svc.Notify(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sent)

	second, err := h.svc.Notify(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, NotificationResult{Recipients: 1, Skipped: 1}, second)
	assert.Len(t, h.mailer.sent, 1)
	assert.Equal(t, "notify:evt-42:broker@example.com", h.mailer.sent[0].IdempotencyKey)
}

func TestNotify_RetriesWithBackoff(t *testing.T) {
	h := newNotifyHarness(t, config.NotificationConfig{SendAttempts: 3, MaxBackoffSeconds: 30})
	h.mailer.failures = 2

	result, err := h.svc.Notify(context.Background(), NotificationRequest{Kind: NotifyStatusChange, DealID: h.deal.ID, OldStatus: "submitted", NewStatus: "declined"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 3, h.mailer.attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, h.waits)
}

func TestNotify_FailureIsCountedAndReleasesKey(t *testing.T) {
	h := newNotifyHarness(t, config.NotificationConfig{SendAttempts: 2})
	h.mailer.failures = -1

	result, err := h.svc.Notify(context.Background(), NotificationRequest{Kind: NotifyStatusChange, EventID: "evt-7", DealID: h.deal.ID, OldStatus: "submitted", NewStatus: "declined"})
	require.NoError(t, err)
	assert.Equal(t, NotificationResult{Recipients: 1, Failed: 1}, result)
	assert.Equal(t, 2, h.mailer.attempts)
	assert.Equal(t, []string{"notify:evt-7:broker@example.com"}, h.ledger.released)
}

func TestNotify_Errors(t *testing.T) {
	h := newNotifyHarness(t, config.NotificationConfig{})
	ctx := context.Background()

	_, err := h.svc.Notify(ctx, NotificationRequest{Kind: "fax", DealID: h.deal.ID})
	assert.ErrorIs(t, err, ErrUnknownNotification)

	_, err = h.svc.Notify(ctx, NotificationRequest{Kind: NotifyNewDeal, DealID: uuid.NewString()})
	assert.ErrorIs(t, err, ErrDealNotFound)

	h.svc.directory = &fakeDirectory{err: errors.New("directory down")}
	_, err = h.svc.Notify(ctx, NotificationRequest{Kind: NotifyNewDeal, DealID: h.deal.ID})
	assert.EqualError(t, err, "directory down")
	assert.Empty(t, h.mailer.sent)
}

func TestNotify_MissingBrokerMeansNoRecipients(t *testing.T) {
	h := newNotifyHarness(t, config.NotificationConfig{})
	orphan := h.store.put(domain.Deal{BrokerID: uuid.NewString(), DealType: domain.DealTypeTermLoan, Status: domain.DealStatusApproved, FundingAmount: decimal.NewFromInt(1), LegalBusinessName: "Ghost LLC"})

	result, err := h.svc.Notify(context.Background(), NotificationRequest{Kind: NotifyStatusChange, DealID: orphan.ID, OldStatus: "packaging", NewStatus: "approved"})
	require.NoError(t, err)
	assert.Zero(t, result.Recipients)
	assert.Empty(t, h.mailer.sent)
}

func TestRetryBackoff(t *testing.T) {
	t.Parallel()
	limit := 10 * time.Second
	assert.Equal(t, time.Second, retryBackoff(0, limit))
	assert.Equal(t, time.Second, retryBackoff(1, limit))
	assert.Equal(t, 4*time.Second, retryBackoff(3, limit))
	assert.Equal(t, limit, retryBackoff(5, limit))
	assert.Equal(t, limit, retryBackoff(64, limit))
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"125000":     "$125,000",
		"999":        "$999",
		"1250.5":     "$1,250.5",
		"1250.25":    "$1,250.25",
		"2500000.00": "$2,500,000",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatAmount(decimal.RequireFromString(in)), in)
	}
}

func TestDedupeRecipients(t *testing.T) {
	t.Parallel()
	got := dedupeRecipients([]domain.Profile{
		{ID: "1", Email: "a@example.com"},
		{ID: "2", Email: " A@example.com "},
		{ID: "3", Email: ""},
		{ID: "4", Email: "b@example.com"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "4", got[1].ID)
}
