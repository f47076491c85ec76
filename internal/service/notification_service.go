package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/deal-portal/internal/config"
	"github.com/spec-kit/deal-portal/internal/domain"
	"github.com/spec-kit/deal-portal/internal/events"
	"github.com/spec-kit/deal-portal/internal/mail"
	"github.com/spec-kit/deal-portal/internal/observability"
)

// NotificationKind names an e-mail notification.
type NotificationKind string

const (
	NotifyNewDeal       NotificationKind = "new_deal"
	NotifyStatusChange  NotificationKind = "status_change"
	NotifyNewMessage    NotificationKind = "new_message"
	NotifyDocsRequested NotificationKind = "docs_requested"
)

// IsValid reports whether k is a known kind.
func (k NotificationKind) IsValid() bool {
	_, ok := emailSubjects[k]
	return ok
}

// Directory looks up portal accounts.
type Directory interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.Profile, error)
}

// DealReader loads deals for templating.
type DealReader interface {
	GetByID(ctx context.Context, id string) (*domain.Deal, error)
}

// SendLedger remembers which recipient already got which event.
type SendLedger interface {
	// Claim returns false when key was already claimed and has not expired.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// NotificationRequest is the payload of one notification.
type NotificationRequest struct {
	Kind NotificationKind
	// EventID scopes recipient de-duplication. A fresh id is generated when empty.
	EventID       string
	DealID        string
	Sender        *domain.Principal
	OldStatus     string
	NewStatus     string
	Note          string
	Message       string
	DocumentTypes []string
}

// NotificationResult summarizes one fan-out.
type NotificationResult struct {
	Recipients int
	Sent       int
	Skipped    int
	Failed     int
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Deals      DealReader
	Directory  Directory
	Mailer     mail.Mailer
	Ledger     SendLedger
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Config     config.NotificationConfig
	// Wait pauses between send attempts; defaults to a context-aware timer.
	Wait func(ctx context.Context, d time.Duration) error
}

// NotificationService turns deal events into e-mails.
type NotificationService struct {
	dispatcher events.Dispatcher
	deals      DealReader
	directory  Directory
	mailer     mail.Mailer
	ledger     SendLedger
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.NotificationConfig
	wait       func(ctx context.Context, d time.Duration) error
	inflight   sync.WaitGroup
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	wait := deps.Wait
	if wait == nil {
		wait = sleepContext
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		deals:      deps.Deals,
		directory:  deps.Directory,
		mailer:     deps.Mailer,
		ledger:     deps.Ledger,
		metrics:    deps.Metrics,
		logger:     logger,
		cfg:        deps.Config,
		wait:       wait,
	}
}

// RegisterHandlers subscribes to deal events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventDealCreated, n.handleEvent)
	n.dispatcher.Subscribe(events.EventDealStatusChanged, n.handleEvent)
	n.dispatcher.Subscribe(events.EventDealMessageAdded, n.handleEvent)
	n.dispatcher.Subscribe(events.EventDealDocsRequested, n.handleEvent)
}

// handleEvent sends inline for single-attempt delivery. With retries configured the send
// runs in the background so backoff never holds up the request that published the event.
func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	req, err := requestFromEvent(event)
	if err != nil {
		return err
	}
	if n.cfg.SendAttempts <= 1 {
		return n.dispatch(ctx, event, req)
	}

	bg := context.WithoutCancel(ctx)
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				n.logger.Error("notification panicked", zap.String("event_id", event.ID), zap.Any("panic", r))
			}
		}()
		if err := n.dispatch(bg, event, req); err != nil {
			n.logger.Warn("background notification failed", zap.String("event_id", event.ID), zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until background deliveries finish or ctx is done.
func (n *NotificationService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *NotificationService) dispatch(ctx context.Context, event events.Event, req NotificationRequest) error {
	result, err := n.Notify(ctx, req)
	if err != nil {
		n.metrics.RecordNotification(string(req.Kind), "error")
		return err
	}
	n.logger.Info("notification dispatched",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("deal_id", event.DealID),
		zap.Int("recipients", result.Recipients),
		zap.Int("sent", result.Sent),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return nil
}

func requestFromEvent(event events.Event) (NotificationRequest, error) {
	req := NotificationRequest{EventID: event.ID, DealID: event.DealID}
	switch payload := event.Payload.(type) {
	case events.DealCreatedPayload:
		req.Kind = NotifyNewDeal
	case events.DealStatusChangedPayload:
		req.Kind = NotifyStatusChange
		req.OldStatus = string(payload.OldStatus)
		req.NewStatus = string(payload.NewStatus)
		req.Note = payload.Note
	case events.DealMessageAddedPayload:
		req.Kind = NotifyNewMessage
		req.Message = payload.BodyPreview
		req.Sender = &domain.Principal{ID: payload.SenderID, Role: payload.SenderRole}
	case events.DealDocsRequestedPayload:
		req.Kind = NotifyDocsRequested
		req.Note = payload.Note
		for _, docType := range payload.DocumentTypes {
			req.DocumentTypes = append(req.DocumentTypes, string(docType))
		}
	default:
		return req, fmt.Errorf("notification: unsupported payload %T for %s", event.Payload, event.Type)
	}
	return req, nil
}

// Notify resolves recipients for req, renders the e-mail and sends one copy per distinct address.
// Lookup failures are returned; delivery failures are logged and counted in the result.
func (n *NotificationService) Notify(ctx context.Context, req NotificationRequest) (NotificationResult, error) {
	if !req.Kind.IsValid() {
		return NotificationResult{}, wrapDomain(ErrUnknownNotification, "VALIDATION_FAILED", "unknown notification type", http.StatusBadRequest,
			map[string]any{"type": string(req.Kind)})
	}
	deal, err := n.deals.GetByID(ctx, req.DealID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NotificationResult{}, dealNotFoundError(req.DealID)
		}
		return NotificationResult{}, err
	}
	if req.EventID == "" {
		req.EventID = uuid.NewString()
	}

	recipients, content, err := n.prepare(ctx, req, deal)
	if err != nil {
		return NotificationResult{}, err
	}
	recipients = dedupeRecipients(recipients)
	if len(recipients) == 0 {
		n.logger.Warn("notification has no recipients", zap.String("deal_id", deal.ID), zap.String("kind", string(req.Kind)))
		n.metrics.RecordNotification(string(req.Kind), "no_recipients")
		return NotificationResult{}, nil
	}

	subject, html, err := renderEmail(req.Kind, content)
	if err != nil {
		return NotificationResult{}, err
	}
	return n.fanOut(ctx, req, recipients, subject, html), nil
}

// prepare resolves who gets the notification and what it says.
func (n *NotificationService) prepare(ctx context.Context, req NotificationRequest, deal *domain.Deal) ([]domain.Profile, emailContent, error) {
	content := emailContent{BusinessName: deal.LegalBusinessName}
	site := n.siteURL()

	switch req.Kind {
	case NotifyNewDeal:
		admins, err := n.directory.ListByRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, content, err
		}
		content.BrokerName = "Unknown"
		if broker, err := n.lookupProfile(ctx, deal.BrokerID); err != nil {
			return nil, content, err
		} else if broker != nil && broker.FullName != "" {
			content.BrokerName = broker.FullName
		}
		content.DealType = deal.DealType.Label()
		content.Amount = formatAmount(deal.FundingAmount)
		content.Link = site + "/admin/deals"
		return admins, content, nil

	case NotifyStatusChange:
		content.OldStatus = domain.StatusLabel(req.OldStatus)
		content.NewStatus = domain.StatusLabel(req.NewStatus)
		content.Note = strings.TrimSpace(req.Note)
		content.Link = site + "/deals"
		broker, err := n.lookupProfile(ctx, deal.BrokerID)
		return profiles(broker), content, err

	case NotifyNewMessage:
		content.MessagePreview = stringPreview(req.Message, messagePreviewLength)
		var sender *domain.Profile
		if req.Sender != nil {
			var err error
			if sender, err = n.lookupProfile(ctx, req.Sender.ID); err != nil {
				return nil, content, err
			}
		}
		if req.Sender.IsAdmin() {
			content.SenderName = "Admin"
			if sender != nil && sender.FullName != "" {
				content.SenderName = sender.FullName
			}
			content.Link = fmt.Sprintf("%s/deals/%s/messages", site, deal.ID)
			broker, err := n.lookupProfile(ctx, deal.BrokerID)
			return profiles(broker), content, err
		}
		content.SenderName = "Broker"
		if sender != nil && sender.FullName != "" {
			content.SenderName = sender.FullName
		}
		content.Link = fmt.Sprintf("%s/admin/deals/%s", site, deal.ID)
		admins, err := n.directory.ListByRole(ctx, domain.RoleAdmin)
		return admins, content, err

	case NotifyDocsRequested:
		for _, docType := range req.DocumentTypes {
			content.Documents = append(content.Documents, domain.DocumentType(docType).Label())
		}
		content.Note = strings.TrimSpace(req.Note)
		content.Link = site + "/deals"
		broker, err := n.lookupProfile(ctx, deal.BrokerID)
		return profiles(broker), content, err
	}
	return nil, content, fmt.Errorf("notification: unhandled kind %q", req.Kind)
}

// lookupProfile returns nil without error when the account does not exist.
func (n *NotificationService) lookupProfile(ctx context.Context, id string) (*domain.Profile, error) {
	if id == "" {
		return nil, nil
	}
	profile, err := n.directory.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return profile, nil
}

func (n *NotificationService) siteURL() string {
	site := strings.TrimRight(strings.TrimSpace(n.cfg.SiteURL), "/")
	if site == "" {
		return "http://localhost:3000"
	}
	return site
}

func profiles(p *domain.Profile) []domain.Profile {
	if p == nil {
		return nil
	}
	return []domain.Profile{*p}
}

// dedupeRecipients keeps the first profile per case-insensitive address and drops blank ones.
func dedupeRecipients(recipients []domain.Profile) []domain.Profile {
	seen := make(map[string]struct{}, len(recipients))
	out := make([]domain.Profile, 0, len(recipients))
	for _, p := range recipients {
		key := strings.ToLower(strings.TrimSpace(p.Email))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

func (n *NotificationService) fanOut(ctx context.Context, req NotificationRequest, recipients []domain.Profile, subject, html string) NotificationResult {
	var (
		mu     sync.Mutex
		result = NotificationResult{Recipients: len(recipients)}
		g      errgroup.Group
	)
	if n.cfg.FanOutLimit > 0 {
		g.SetLimit(n.cfg.FanOutLimit)
	}

	for _, recipient := range recipients {
		email := strings.TrimSpace(recipient.Email)
		g.Go(func() error {
			outcome := n.deliver(ctx, req, mail.Email{
				To:             email,
				Subject:        subject,
				HTML:           html,
				IdempotencyKey: idempotencyKey(req.EventID, email),
			})
			n.metrics.RecordNotification(string(req.Kind), outcome)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case "sent":
				result.Sent++
			case "duplicate":
				result.Skipped++
			default:
				result.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()
	return result
}

func (n *NotificationService) deliver(ctx context.Context, req NotificationRequest, email mail.Email) string {
	logger := n.logger.With(
		zap.String("deal_id", req.DealID),
		zap.String("kind", string(req.Kind)),
		zap.String("recipient", email.To))

	claimed := false
	if n.ledger != nil {
		ok, err := n.ledger.Claim(ctx, email.IdempotencyKey, n.idempotencyTTL())
		switch {
		case err != nil:
			logger.Warn("notification ledger unavailable; sending without de-duplication", zap.Error(err))
		case !ok:
			logger.Debug("notification already sent")
			return "duplicate"
		default:
			claimed = true
		}
	}

	if err := n.sendWithRetry(ctx, email); err != nil {
		logger.Error("notification send failed", zap.Error(err))
		if claimed {
			if err := n.ledger.Release(context.WithoutCancel(ctx), email.IdempotencyKey); err != nil {
				logger.Warn("release notification key", zap.Error(err))
			}
		}
		return "failed"
	}
	return "sent"
}

func (n *NotificationService) sendWithRetry(ctx context.Context, email mail.Email) error {
	if n.mailer == nil {
		return errors.New("notification: mailer not configured")
	}
	attempts := n.cfg.SendAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = n.mailer.Send(ctx, email); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if waitErr := n.wait(ctx, retryBackoff(attempt, n.maxBackoff())); waitErr != nil {
			return errors.Join(err, waitErr)
		}
	}
	return fmt.Errorf("after %d attempt(s): %w", attempts, err)
}

func (n *NotificationService) idempotencyTTL() time.Duration {
	if ttl := n.cfg.IdempotencyTTL(); ttl > 0 {
		return ttl
	}
	return 24 * time.Hour
}

func (n *NotificationService) maxBackoff() time.Duration {
	if limit := n.cfg.MaxBackoff(); limit > 0 {
		return limit
	}
	return 30 * time.Second
}

func idempotencyKey(eventID, email string) string {
	return "notify:" + eventID + ":" + strings.ToLower(email)
}

// retryBackoff doubles from one second per attempt, capped at limit.
func retryBackoff(attempt int, limit time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 31 {
		return limit
	}
	delay := time.Second << (attempt - 1)
	if delay > limit {
		return limit
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
