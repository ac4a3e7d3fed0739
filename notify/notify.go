// Package notify delivers web push notifications to subscribed users.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"curalink/database"
	"curalink/models"
)

// ErrDisabled is returned when no VAPID key pair is configured.
var ErrDisabled = errors.New("push notifications are not configured")

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

type Pusher struct {
	publicKey  string
	privateKey string
	subject    string
	ttl        int
	client     *http.Client
	log        *zap.Logger
}

func NewPusher(publicKey, privateKey, subject string, log *zap.Logger) *Pusher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pusher{
		publicKey:  publicKey,
		privateKey: privateKey,
		subject:    strings.TrimPrefix(subject, "mailto:"),
		ttl:        30,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

func (p *Pusher) Enabled() bool {
	return p != nil && p.publicKey != "" && p.privateKey != ""
}

func (p *Pusher) PublicKey() string {
	if p == nil {
		return ""
	}
	return p.publicKey
}

// Subscribe stores the browser subscription for userID, replacing any
// previous one.
func (p *Pusher) Subscribe(ctx context.Context, userID primitive.ObjectID, endpoint string, keys models.PushKeys) error {
	_, err := database.PushSubs.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$set": bson.M{
				"endpoint":  endpoint,
				"keys":      keys,
				"updatedAt": time.Now(),
			},
			"$setOnInsert": bson.M{"user_id": userID},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// Send pushes n to userID. A user without a subscription is not an error.
// Subscriptions the push service reports as gone are deleted.
func (p *Pusher) Send(ctx context.Context, userID primitive.ObjectID, n Notification) error {
	if !p.Enabled() {
		return ErrDisabled
	}

	var sub models.PushSubscription
	err := database.PushSubs.FindOne(ctx, bson.M{"user_id": userID}).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find subscription: %w", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"title": n.Title,
		"body":  n.Body,
		"data": map[string]interface{}{
			"url":       n.URL,
			"timestamp": time.Now().Unix(),
		},
	})
	if err != nil {
		return err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
	}, &webpush.Options{
		HTTPClient:      p.client,
		Subscriber:      p.subject,
		VAPIDPublicKey:  p.publicKey,
		VAPIDPrivateKey: p.privateKey,
		TTL:             p.ttl,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		p.log.Info("push subscription expired, deleting", zap.String("user_id", userID.Hex()))
		if _, err := database.PushSubs.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
			return fmt.Errorf("delete expired subscription: %w", err)
		}
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

// SendAsync is Send on a background goroutine with its own timeout.
// Failures are logged.
func (p *Pusher) SendAsync(userID primitive.ObjectID, n Notification) {
	if !p.Enabled() {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("panic in push notification", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := p.Send(ctx, userID, n); err != nil {
			p.log.Warn("push notification failed", zap.String("user_id", userID.Hex()), zap.Error(err))
		}
	}()
}

// Truncate shortens body text for a notification.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
