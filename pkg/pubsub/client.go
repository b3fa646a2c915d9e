// Package pubsub wraps the Cloud Pub/Sub v2 client with project-relative
// topic and subscription naming and startup verification.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/localbiz-backend/pkg/config"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
)

var (
	ErrNoProject         = errors.New("pubsub: gcp project id is required")
	ErrNoSubscription    = errors.New("pubsub: notification subscription is required")
	ErrResourceNotExists = errors.New("pubsub: resource does not exist")
)

type Client struct {
	ps      *pubsub.Client
	project string
	cfg     config.PubSubConfig
}

// NewClient connects to Pub/Sub and fails fast when the notification
// subscription is missing. PUBSUB_EMULATOR_HOST is honored by the library.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, ErrNoProject
	}

	ps, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("pubsub: connect: %w", err)
	}
	c := &Client{ps: ps, project: project, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "project", project), "pubsub connected")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

// Ping confirms the notification subscription exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errors.New("pubsub: client not initialized")
	}
	sub := c.subscriptionPath(c.cfg.NotificationSubscription)
	if sub == "" {
		return ErrNoSubscription
	}
	_, err := c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: sub})
	return classify(sub, err)
}

// TopicExists reports an error unless name resolves to an existing topic.
func (c *Client) TopicExists(ctx context.Context, name string) error {
	if c == nil || c.ps == nil {
		return errors.New("pubsub: client not initialized")
	}
	topic := c.topicPath(name)
	if topic == "" {
		return fmt.Errorf("pubsub: empty topic name")
	}
	_, err := c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic})
	return classify(topic, err)
}

func classify(resource string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%w: %s", ErrResourceNotExists, resource)
	default:
		return fmt.Errorf("pubsub: lookup %s: %w", resource, err)
	}
}

// Subscription returns a subscriber for a subscription ID or full path.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.ps == nil {
		return nil
	}
	if path := c.subscriptionPath(name); path != "" {
		return c.ps.Subscriber(path)
	}
	return nil
}

// NotificationSubscription feeds business status changes to the worker.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.NotificationSubscription)
}

// Publisher returns a publisher for a topic ID or full path.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.ps == nil {
		return nil
	}
	if path := c.topicPath(name); path != "" {
		return c.ps.Publisher(path)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}

func (c *Client) subscriptionPath(name string) string {
	return resourcePath(c.project, "subscriptions", name)
}

func (c *Client) topicPath(name string) string {
	return resourcePath(c.project, "topics", name)
}

// resourcePath qualifies a bare ID as projects/<project>/<kind>/<id>. Names
// that are already fully qualified pass through unchanged.
func resourcePath(project, kind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	if project == "" {
		return ""
	}
	return "projects/" + project + "/" + kind + "/" + name
}
