package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fulfly-integrations/pkg/backoff"
	"fulfly-integrations/pkg/config"
	"fulfly-integrations/pkg/errutil"
	"fulfly-integrations/pkg/repository"
	"fulfly-integrations/pkg/signature"
	"fulfly-integrations/pkg/task"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	asynq      task.Enqueuer
	httpClient *http.Client
	subs       repository.Repository[Subscription]
	deliveries repository.Repository[Delivery]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Asynq  task.Enqueuer
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		node:       p.Node,
		asynq:      p.Asynq,
		httpClient: &http.Client{Timeout: p.Config.Webhook.RequestTimeout},
		subs:       repository.ProvideStore[Subscription](p.DB),
		deliveries: repository.ProvideStore[Delivery](p.DB),
	}
}

type CreateSubscriptionInput struct {
	ClientID string   `json:"client_id" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	URL      string   `json:"url" binding:"required,url"`
	Secret   string   `json:"secret" binding:"required"`
	Events   []string `json:"events" binding:"required,min=1"`
}

func (s *Service) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*Subscription, error) {
	eventsJSON, err := json.Marshal(in.Events)
	if err != nil {
		return nil, errutil.Internal("failed to encode events")
	}

	record := &Subscription{
		ID:        s.node.Generate().String(),
		ClientID:  in.ClientID,
		Name:      in.Name,
		TargetURL: in.URL,
		Secret:    in.Secret,
		Events:    datatypes.JSON(eventsJSON),
		IsActive:  true,
	}

	if err := s.subs.Create(ctx, record); err != nil {
		zap.L().Error("failed to create webhook subscription", zap.Error(err))
		return nil, errutil.Internal("failed to create subscription")
	}
	return record, nil
}

// Dispatch fans a committed domain event out to all active subscriptions of
// the client that listen for eventType: one pending delivery row per match,
// each driven asynchronously by a deliver task. No matching subscription is
// a silent no-op.
func (s *Service) Dispatch(ctx context.Context, clientID, eventType string, payload json.RawMessage) error {
	subs, err := s.subs.Find(ctx, &Subscription{ClientID: clientID, IsActive: true})
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}

	now := time.Now().UTC()
	for _, sub := range subs {
		if !sub.Subscribed(eventType) {
			continue
		}

		delivery := &Delivery{
			ID:             s.node.Generate().String(),
			SubscriptionID: sub.ID,
			EventType:      eventType,
			Payload:        datatypes.JSON(payload),
			Status:         DeliveryStatusPending,
			Attempts:       0,
			NextRetryAt:    &now,
		}
		if err := s.deliveries.Create(ctx, delivery); err != nil {
			zap.L().Error("failed to create webhook delivery",
				zap.String("subscription_id", sub.ID),
				zap.String("event_type", eventType),
				zap.Error(err))
			continue
		}

		s.enqueueDeliver(delivery.ID, delivery.Attempts)
	}
	return nil
}

// enqueueDeliver schedules one delivery attempt. The task id carries the
// attempt counter so the scheduler and the dispatch path cannot double-book
// the same attempt.
func (s *Service) enqueueDeliver(deliveryID string, attempts int) {
	payload, _ := json.Marshal(DeliverPayload{DeliveryID: deliveryID})
	_, err := s.asynq.Enqueue(asynq.NewTask(TaskDeliver, payload,
		asynq.Queue("default"),
		asynq.MaxRetry(0),
		asynq.TaskID(fmt.Sprintf("%s:%s:%d", TaskDeliver, deliveryID, attempts)),
	))
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		zap.L().Warn("failed to enqueue webhook delivery",
			zap.String("delivery_id", deliveryID),
			zap.Error(err))
	}
}

// ProcessDelivery performs exactly one delivery attempt and one state update.
// It never blocks waiting for a retry: a failed attempt leaves the row
// pending with next_retry_at set (or failed once attempts are exhausted) and
// the scheduler picks it up again.
func (s *Service) ProcessDelivery(ctx context.Context, deliveryID string) error {
	delivery, err := s.deliveries.FindOne(ctx, &Delivery{ID: deliveryID})
	if err != nil {
		return fmt.Errorf("load delivery: %w", err)
	}
	if delivery == nil || delivery.Status != DeliveryStatusPending {
		return nil
	}

	sub, err := s.subs.FindOne(ctx, &Subscription{ID: delivery.SubscriptionID})
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		return nil
	}

	if err := s.attempt(ctx, delivery, sub); err != nil {
		return s.recordFailure(ctx, delivery, err)
	}
	return s.recordSuccess(ctx, delivery)
}

// attempt signs the stored payload bytes and posts them to the subscriber.
func (s *Service) attempt(ctx context.Context, delivery *Delivery, sub *Subscription) error {
	body := []byte(delivery.Payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.TargetURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", delivery.EventType)
	req.Header.Set("X-Delivery-Id", delivery.ID)
	req.Header.Set("X-Signature", signature.Sign(sub.Secret, body))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

func (s *Service) recordSuccess(ctx context.Context, delivery *Delivery) error {
	return s.deliveries.Update(ctx, delivery.ID, map[string]any{
		"status":        DeliveryStatusSuccess,
		"attempts":      delivery.Attempts + 1,
		"last_error":    nil,
		"next_retry_at": nil,
	})
}

func (s *Service) recordFailure(ctx context.Context, delivery *Delivery, cause error) error {
	attempts := delivery.Attempts + 1
	msg := cause.Error()

	values := map[string]any{
		"attempts":   attempts,
		"last_error": msg,
	}

	if next := backoff.Next(attempts, time.Now().UTC()); next != nil {
		values["status"] = DeliveryStatusPending
		values["next_retry_at"] = *next
	} else {
		values["status"] = DeliveryStatusFailed
		values["next_retry_at"] = nil
	}

	zap.L().Warn("webhook delivery attempt failed",
		zap.String("delivery_id", delivery.ID),
		zap.Int("attempts", attempts),
		zap.String("error", msg))

	return s.deliveries.Update(ctx, delivery.ID, values)
}

// EnqueueDue re-enqueues pending deliveries whose retry time has passed.
// Called by the scheduler loop on the worker.
func (s *Service) EnqueueDue(ctx context.Context, limit int) (int, error) {
	var due []*Delivery
	err := s.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", DeliveryStatusPending, time.Now().UTC()).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	for _, d := range due {
		s.enqueueDeliver(d.ID, d.Attempts)
	}
	return len(due), nil
}

// HandleDispatchTask runs the fan-out on the worker.
func (s *Service) HandleDispatchTask(ctx context.Context, t *asynq.Task) error {
	var payload DispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return s.Dispatch(ctx, payload.ClientID, payload.EventType, payload.Payload)
}

// HandleDeliverTask runs one delivery attempt on the worker.
func (s *Service) HandleDeliverTask(ctx context.Context, t *asynq.Task) error {
	var payload DeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return s.ProcessDelivery(ctx, payload.DeliveryID)
}
