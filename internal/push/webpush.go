package push

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

const defaultTTL = 24 * time.Hour

// WebPushConfig configures the VAPID-authenticated sender.
type WebPushConfig struct {
	// Subscriber is the contact (mailto: address or https URL) sent in the VAPID
	// claims. A mailto: prefix is optional.
	Subscriber      string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	TTL             time.Duration
	Urgency         string
	HTTPClient      *http.Client
}

// WebPushSender delivers encrypted payloads with RFC 8291 and VAPID.
type WebPushSender struct {
	cfg WebPushConfig
}

var _ Sender = (*WebPushSender)(nil)

// NewWebPushSender validates cfg and constructs a sender.
func NewWebPushSender(cfg WebPushConfig) (*WebPushSender, error) {
	if strings.TrimSpace(cfg.VAPIDPublicKey) == "" || strings.TrimSpace(cfg.VAPIDPrivateKey) == "" {
		return nil, errors.New("webpush: vapid key pair is required")
	}
	cfg.Subscriber = bareSubscriber(cfg.Subscriber)
	if cfg.Subscriber == "" {
		return nil, errors.New("webpush: subscriber is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &WebPushSender{cfg: cfg}, nil
}

// bareSubscriber drops a mailto: scheme; webpush-go prefixes every non-https
// subscriber with mailto: when it builds the sub claim.
func bareSubscriber(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= len("mailto:") && strings.EqualFold(raw[:len("mailto:")], "mailto:") {
		raw = strings.TrimSpace(raw[len("mailto:"):])
	}
	return raw
}

// Send encrypts payload for sub and posts it to the push service.
func (s *WebPushSender) Send(ctx context.Context, sub Subscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      s.cfg.HTTPClient,
		Subscriber:      s.cfg.Subscriber,
		TTL:             int(s.cfg.TTL / time.Second),
		Urgency:         webpush.Urgency(s.cfg.Urgency),
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
	})
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) || ctx.Err() != nil {
			return &DeliveryError{Class: FailureTransient, Err: err}
		}
		// Encryption or key decoding failed; retrying the same keys cannot help.
		return &DeliveryError{Class: FailurePermanent, Err: err}
	}
	defer resp.Body.Close()

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return StatusError(resp.StatusCode, strings.TrimSpace(string(detail)))
}

// GenerateVAPIDKeys returns a fresh base64url encoded (private, public) key pair.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}
