package hec

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mosajjal/Go-Splunk-HTTP/splunk/v2"

	"github.com/mosajjal/awslogs-provision/pkg/models"
	"github.com/mosajjal/awslogs-provision/pkg/storage"
)

// ErrUndelivered is returned when no endpoint accepted the events and no
// failure storage took them
var ErrUndelivered = errors.New("events not delivered")

// Config holds HEC client configuration
type Config struct {
	Endpoints     []string
	TLSSkipVerify bool
	Proxy         string
	Token         string
	Index         string
	Source        string
	SourceType    string
	Host          string
	ChannelID     string
	Timeout       time.Duration
}

// eventLogger is the part of splunk.Client used here
type eventLogger interface {
	CheckHealth() error
	LogEvents(events []*splunk.Event) error
}

type connection struct {
	endpoint string
	client   eventLogger
}

// Client delivers events to the first healthy HEC endpoint, falling back to
// storage when none accepts them
type Client struct {
	config         Config
	connections    []*connection
	failureStorage storage.StorageBackend
}

// NewClient creates a new HEC client
func NewClient(cfg Config, failureStorage storage.StorageBackend) (*Client, error) {
	client := &Client{
		config:         cfg,
		failureStorage: failureStorage,
	}

	for _, endpoint := range cfg.Endpoints {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint == "" {
			continue
		}
		conn, err := newConnection(endpoint, cfg)
		if err != nil {
			slog.Warn("failed to create HEC connection", "endpoint", endpoint, "error", err)
			continue
		}
		client.connections = append(client.connections, conn)
	}

	if len(client.connections) == 0 {
		return nil, fmt.Errorf("no valid HEC endpoints configured")
	}
	return client, nil
}

func newConnection(endpoint string, cfg Config) (*connection, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify},
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout, Transport: transport}

	endpoint = CollectorURL(endpoint)
	return &connection{
		endpoint: endpoint,
		client: splunk.NewClient(
			httpClient,
			endpoint,
			cfg.Token,
			ChannelID(cfg.ChannelID),
			cfg.Source,
			cfg.SourceType,
			cfg.Index,
		),
	}, nil
}

// ChannelID returns id when it is a valid UUID, otherwise a fresh one
func ChannelID(id string) string {
	if _, err := uuid.Parse(id); err != nil {
		return uuid.New().String()
	}
	return id
}

// CollectorURL appends the HEC collector path when it is missing
func CollectorURL(endpoint string) string {
	endpoint = strings.TrimSuffix(endpoint, "/")
	if !strings.HasSuffix(endpoint, "/services/collector") {
		endpoint = endpoint + "/services/collector"
	}
	return endpoint
}

// SendEvents sends events to the first endpoint that is healthy and accepts
// them. When every endpoint fails the events go to failure storage.
func (c *Client) SendEvents(ctx context.Context, events []*models.Event) error {
	splunkEvents := make([]*splunk.Event, len(events))
	for i, event := range events {
		splunkEvents[i] = &splunk.Event{
			Time:       splunk.EventTime{Time: event.Time},
			Host:       orDefault(event.Host, c.config.Host),
			Source:     orDefault(event.Source, c.config.Source),
			SourceType: orDefault(event.SourceType, c.config.SourceType),
			Index:      orDefault(event.Index, c.config.Index),
			Event:      event.Event,
		}
	}

	var errs []error
	for _, conn := range c.connections {
		if err := conn.client.CheckHealth(); err != nil {
			errs = append(errs, fmt.Errorf("%s unhealthy: %w", conn.endpoint, err))
			continue
		}
		if err := conn.client.LogEvents(splunkEvents); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", conn.endpoint, err))
			continue
		}
		slog.Info("sent events to HEC", "endpoint", conn.endpoint, "count", len(events))
		return nil
	}

	sendErr := errors.Join(errs...)
	if c.failureStorage == nil {
		return fmt.Errorf("%w: %v", ErrUndelivered, sendErr)
	}
	slog.Warn("HEC delivery failed, sending to failure storage", "error", sendErr)
	if err := c.failureStorage.Store(ctx, events); err != nil {
		return fmt.Errorf("%w: %v; failure storage: %v", ErrUndelivered, sendErr, err)
	}
	return nil
}

// Close closes the failure storage
func (c *Client) Close() error {
	if c.failureStorage != nil {
		return c.failureStorage.Close()
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
