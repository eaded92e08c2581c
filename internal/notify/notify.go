package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const defaultRetryWaitMax = 5 * time.Second

// Message is one push notification to a role group within an establishment.
type Message struct {
	EstablishmentID string `json:"establishment_id"`
	Recipient       string `json:"recipient"` // role, e.g. WAITER, MANAGER
	Title           string `json:"title"`
	Body            string `json:"body"`
}

// Notifier delivers push messages to an external gateway. With no URL
// configured it only logs, which keeps development setups working.
type Notifier struct {
	client *retryablehttp.Client
	url    string
	apiKey string
}

func New(url, apiKey string) *Notifier {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = defaultRetryWaitMax
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	return &Notifier{client: client, url: url, apiKey: apiKey}
}

// Send posts the message to the gateway. Delivery is best effort: order flow
// must never fail because a push did not go out, so callers run this in a
// goroutine and the error is only logged.
func (n *Notifier) Send(ctx context.Context, msg Message) error {
	if n.url == "" {
		log.Printf("push (no gateway configured): [%s] %s: %s", msg.Recipient, msg.Title, msg.Body)
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal push message: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("push gateway returned %d", resp.StatusCode)
	}
	return nil
}

// SendAsync fires Send in the background and logs failures.
func (n *Notifier) SendAsync(msg Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := n.Send(ctx, msg); err != nil {
			log.Printf("ERROR: push to %s failed: %v", msg.Recipient, err)
		}
	}()
}
