package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/api"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/wsclient"
)

// Source delivers metrics payloads to the dashboard. The WebSocket
// subscriber satisfies it directly; PollSource adapts the REST endpoint.
type Source interface {
	Payloads() <-chan api.Payload
	Errs() <-chan error
	Close() error
}

// PollSource fetches /api/metrics on a fixed interval.
type PollSource struct {
	client   *http.Client
	url      string
	interval time.Duration

	cancel   context.CancelFunc
	payloads chan api.Payload
	errs     chan error
}

// NewPollSource starts polling the ops API at apiBase.
func NewPollSource(apiBase string, interval time.Duration) *PollSource {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &PollSource{
		client:   &http.Client{Timeout: 5 * time.Second},
		url:      strings.TrimRight(apiBase, "/") + "/api/metrics",
		interval: interval,
		cancel:   cancel,
		payloads: make(chan api.Payload, 1),
		errs:     make(chan error, 1),
	}
	go s.run(ctx)
	return s
}

func (s *PollSource) Payloads() <-chan api.Payload { return s.payloads }
func (s *PollSource) Errs() <-chan error           { return s.errs }

func (s *PollSource) Close() error {
	s.cancel()
	return nil
}

func (s *PollSource) run(ctx context.Context) {
	defer close(s.payloads)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		p, err := s.fetch(ctx)
		if err == nil {
			select {
			case s.payloads <- p:
			default:
				select {
				case <-s.payloads:
				default:
				}
				s.payloads <- p
			}
		} else if ctx.Err() == nil {
			select {
			case s.errs <- err:
			default:
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *PollSource) fetch(ctx context.Context) (api.Payload, error) {
	var p api.Payload
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return p, fmt.Errorf("build metrics request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return p, fmt.Errorf("fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return p, fmt.Errorf("fetch metrics: unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return p, fmt.Errorf("decode metrics: %w", err)
	}
	return p, nil
}

// NewStreamSource subscribes to the WebSocket feed at apiBase.
func NewStreamSource(ctx context.Context, apiBase string) (Source, error) {
	streamURL, err := wsclient.StreamURL(apiBase)
	if err != nil {
		return nil, err
	}
	return wsclient.Dial(ctx, streamURL)
}

// ToggleCache flips the server's response cache via the ops API.
func ToggleCache(ctx context.Context, apiBase string) error {
	url := strings.TrimRight(apiBase, "/") + "/api/cache/toggle"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("build toggle request: %w", err)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("toggle cache: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("toggle cache: unexpected status %s", resp.Status)
	}
	return nil
}
