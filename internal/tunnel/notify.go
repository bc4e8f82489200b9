package tunnel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// TimestampLayout matches the registration service's expected format.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Registration is the body posted to the registration endpoint.
type Registration struct {
	NgrokURL  string `json:"ngrok_url"`
	Timestamp string `json:"timestamp"`
	MachineID string `json:"machine_id"`
}

// Notifier reports a public URL to a remote registration endpoint.
type Notifier struct {
	URL       string
	MachineID string
	Client    *http.Client
	Now       func() time.Time
}

// NewNotifier uses the hostname as machine identifier.
func NewNotifier(url string, timeout time.Duration) *Notifier {
	machineID, err := os.Hostname()
	if err != nil {
		machineID = "unknown"
	}
	return &Notifier{
		URL:       url,
		MachineID: machineID,
		Client:    &http.Client{Timeout: timeout},
		Now:       time.Now,
	}
}

// Notify posts the registration. Any non-2xx status is an error.
func (n *Notifier) Notify(ctx context.Context, publicURL string) error {
	body, err := json.Marshal(Registration{
		NgrokURL:  publicURL,
		Timestamp: n.Now().Format(TimestampLayout),
		MachineID: n.MachineID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send registration to %s: %w", n.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("registration rejected with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
