// Package notifications renders push notification payloads from templates.
package notifications

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MaxPayloadSize bounds the encoded payload so it fits a single encrypted
// Web Push record (4096 bytes minus encryption overhead).
const MaxPayloadSize = 3800

var (
	errMissingTitle = errors.New("title is required")
	errMissingBody  = errors.New("body is required")
)

// Action is a button rendered on the system notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// Payload is the JSON document delivered to push endpoints and rendered by
// the service worker.
type Payload struct {
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Icon    string         `json:"icon,omitempty"`
	Badge   string         `json:"badge,omitempty"`
	Tag     string         `json:"tag,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Actions []Action       `json:"actions,omitempty"`
}

// URL returns the deep-link target stored under data.url.
func (p Payload) URL() string {
	if url, ok := p.Data["url"].(string); ok {
		return url
	}
	return ""
}

// Type returns the notification type stored under data.type.
func (p Payload) Type() string {
	if kind, ok := p.Data["type"].(string); ok {
		return kind
	}
	return ""
}

// Validate checks the structural requirements of the wire contract.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return errMissingTitle
	}
	if strings.TrimSpace(p.Body) == "" {
		return errMissingBody
	}
	if raw, ok := p.Data["url"]; ok {
		if _, isString := raw.(string); !isString {
			return errors.New("data.url must be a string")
		}
	}
	for i, action := range p.Actions {
		if strings.TrimSpace(action.Action) == "" || strings.TrimSpace(action.Title) == "" {
			return fmt.Errorf("actions[%d]: action and title are required", i)
		}
	}
	return nil
}

// Encode validates the payload and renders it as UTF-8 JSON.
func (p Payload) Encode() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if len(raw) > MaxPayloadSize {
		return nil, fmt.Errorf("encoded payload is %d bytes, limit is %d", len(raw), MaxPayloadSize)
	}
	return raw, nil
}
