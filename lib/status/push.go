package status

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	defaultPushTimeout = 10 * time.Second
	maxErrorBody       = 512
)

// ErrPushRejected is returned when the receiver answers with a non-2xx status.
var ErrPushRejected = errors.New("status push rejected")

// Pusher POSTs snapshots as JSON to a remote collector.
type Pusher struct {
	URL    string
	Token  string // Token is sent as a bearer token when set.
	Client *http.Client
}

// NewPusher returns a pusher with a bounded-timeout client.
func NewPusher(url, token string) *Pusher {
	return &Pusher{URL: url, Token: token, Client: &http.Client{Timeout: defaultPushTimeout}}
}

// Push sends one snapshot.
func (p *Pusher) Push(ctx context.Context, snap Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "encoding status snapshot")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "building status push to %q", p.URL)
	}

	req.Header.Set("Content-Type", "application/json")

	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "pushing status to %q", p.URL)
	}
	defer resp.Body.Close() //nolint:errcheck // body fully drained below

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errors.Wrapf(ErrPushRejected, "%s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	return nil
}
