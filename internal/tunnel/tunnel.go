package tunnel

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"golang.ngrok.com/ngrok"
	"golang.ngrok.com/ngrok/config"
)

// Forwarder is an open tunnel relaying traffic to a local backend.
type Forwarder interface {
	URL() string
	Close() error
}

// Opener opens a public tunnel to backend.
type Opener interface {
	Open(ctx context.Context, backend *url.URL) (Forwarder, error)
}

// NgrokOpener opens HTTP tunnels through ngrok. An empty Authtoken reads NGROK_AUTHTOKEN.
type NgrokOpener struct {
	Authtoken string
}

func (o NgrokOpener) Open(ctx context.Context, backend *url.URL) (Forwarder, error) {
	opts := []ngrok.ConnectOption{ngrok.WithAuthtokenFromEnv()}
	if o.Authtoken != "" {
		opts = []ngrok.ConnectOption{ngrok.WithAuthtoken(o.Authtoken)}
	}
	fwd, err := ngrok.ListenAndForward(ctx, backend, config.HTTPEndpoint(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open ngrok tunnel to %s: %w", backend, err)
	}
	return fwd, nil
}

// Publisher exposes the local port publicly and reports the URL once.
type Publisher struct {
	opener   Opener
	notifier *Notifier
	logger   *slog.Logger
}

func NewPublisher(opener Opener, notifier *Notifier, logger *slog.Logger) *Publisher {
	return &Publisher{opener: opener, notifier: notifier, logger: logger}
}

// Publish opens the tunnel to localhost:port and notifies the registration endpoint.
// A failed notification is logged and otherwise ignored; only a failure to
// open the tunnel is returned.
func (p *Publisher) Publish(ctx context.Context, port int) (Forwarder, error) {
	backend := &url.URL{Scheme: "http", Host: fmt.Sprintf("localhost:%d", port)}

	fwd, err := p.opener.Open(ctx, backend)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Tunnel created", slog.String("public_url", fwd.URL()), slog.String("backend", backend.String()))

	if p.notifier == nil || p.notifier.URL == "" {
		return fwd, nil
	}
	if err := p.notifier.Notify(ctx, fwd.URL()); err != nil {
		p.logger.Warn("Failed to send URL to server", slog.String("notify_url", p.notifier.URL), slog.Any("error", err))
	} else {
		p.logger.Info("Sent URL to server", slog.String("notify_url", p.notifier.URL), slog.String("public_url", fwd.URL()))
	}
	return fwd, nil
}

// Run publishes and keeps the tunnel open until ctx ends. It never returns an
// error: the server stays available on its local port without a tunnel.
func (p *Publisher) Run(ctx context.Context, port int) error {
	fwd, err := p.Publish(ctx, port)
	if err != nil {
		p.logger.Error("Tunnel unavailable, serving locally only", slog.Any("error", err))
		return nil
	}

	<-ctx.Done()
	if err := fwd.Close(); err != nil {
		p.logger.Warn("Failed to close tunnel", slog.Any("error", err))
	}
	return nil
}
