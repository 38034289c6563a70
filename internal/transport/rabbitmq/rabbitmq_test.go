package rabbitmq

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffasante/photo-mood/internal/transport"
)

func TestInitRegistersTransport(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))

	caps := transport.CapabilitiesFor(TransportName)
	assert.Equal(t, "rabbitmq", caps.Name)
	assert.True(t, caps.SupportsReliableDelivery())
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, transport.RabbitMQCapabilities, Capabilities())
}

func TestBuild(t *testing.T) {
	t.Run("creates transport with mocked factories", func(t *testing.T) {
		originalConnFactory := ConnectionFactory
		originalPubFactory := PublisherFactory
		originalSubFactory := SubscriberFactory
		defer func() {
			ConnectionFactory = originalConnFactory
			PublisherFactory = originalPubFactory
			SubscriberFactory = originalSubFactory
		}()

		mockConn := &amqp.ConnectionWrapper{}
		mockPub := &mockPublisher{}
		mockSub := &mockSubscriber{}

		ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
			assert.Equal(t, "amqp://localhost:5672", cfg.AmqpURI)
			return mockConn, nil
		}
		PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
			assert.Same(t, mockConn, conn)
			return mockPub, nil
		}
		SubscriberFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
			assert.Same(t, mockConn, conn)
			return mockSub, nil
		}

		cfg := &mockConfig{url: "amqp://localhost:5672"}
		tr, err := Build(context.Background(), cfg, watermill.NopLogger{})

		require.NoError(t, err)
		assert.Equal(t, mockPub, tr.Publisher)
		assert.Equal(t, mockSub, tr.Subscriber)
	})

	t.Run("returns error when connection fails", func(t *testing.T) {
		originalConnFactory := ConnectionFactory
		defer func() { ConnectionFactory = originalConnFactory }()

		ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
			return nil, errors.New("dial refused")
		}

		cfg := &mockConfig{url: "amqp://localhost:5672"}
		_, err := Build(context.Background(), cfg, watermill.NopLogger{})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "dial refused")
	})

	t.Run("returns error when publisher factory fails", func(t *testing.T) {
		originalConnFactory := ConnectionFactory
		originalPubFactory := PublisherFactory
		defer func() {
			ConnectionFactory = originalConnFactory
			PublisherFactory = originalPubFactory
		}()

		ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
			return &amqp.ConnectionWrapper{}, nil
		}
		PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
			return nil, errors.New("channel error")
		}

		cfg := &mockConfig{url: "amqp://localhost:5672"}
		_, err := Build(context.Background(), cfg, watermill.NopLogger{})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "channel error")
	})
}

type mockConfig struct {
	url string
}

func (m *mockConfig) GetPubSubSystem() string       { return "rabbitmq" }
func (m *mockConfig) GetKafkaBrokers() []string     { return nil }
func (m *mockConfig) GetKafkaConsumerGroup() string { return "" }
func (m *mockConfig) GetRabbitMQURL() string        { return m.url }
func (m *mockConfig) GetNATSURL() string            { return "" }
func (m *mockConfig) GetAWSRegion() string          { return "" }
func (m *mockConfig) GetAWSAccountID() string       { return "" }
func (m *mockConfig) GetAWSAccessKeyID() string     { return "" }
func (m *mockConfig) GetAWSSecretAccessKey() string { return "" }
func (m *mockConfig) GetAWSEndpoint() string        { return "" }

type mockPublisher struct{}

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error { return nil }
func (m *mockPublisher) Close() error                                             { return nil }

type mockSubscriber struct{}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return make(chan *message.Message), nil
}
func (m *mockSubscriber) Close() error { return nil }
