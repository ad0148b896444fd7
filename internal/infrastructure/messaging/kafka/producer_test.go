package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/erp/customer/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("sends JSON value", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, nil)
		p := NewProducer(sp, "", nil)
		assert.Equal(t, DefaultTopic, p.Topic())

		sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			var mail Mail
			if err := json.Unmarshal(val, &mail); err != nil {
				return err
			}
			assert.Equal(t, "New customer c-1", mail.Subject)
			return nil
		})

		require.NoError(t, p.Publish(ctx, "c-1", Mail{Subject: "New customer c-1"}))
		require.NoError(t, p.Close())
	})

	t.Run("send failure", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, nil)
		p := NewProducer(sp, "crm.mail", nil)
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		err := p.Publish(ctx, "c-1", Mail{})
		require.Error(t, err)
		assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
		assert.Contains(t, err.Error(), "crm.mail")
		require.NoError(t, p.Close())
	})

	t.Run("cancelled context does not send", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, nil)
		p := NewProducer(sp, "", nil)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		assert.ErrorIs(t, p.Publish(cancelled, "c-1", Mail{}), context.Canceled)
		require.NoError(t, p.Close())
	})
}

func TestDial_RequiresBrokers(t *testing.T) {
	_, err := Dial(config.KafkaConfig{Enabled: true}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brokers")
}

func TestNewSaramaConfig(t *testing.T) {
	cfg := NewSaramaConfig("customer-service")
	assert.Equal(t, "customer-service", cfg.ClientID)
	assert.True(t, cfg.Producer.Return.Successes)
	assert.True(t, cfg.Producer.Idempotent)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.NoError(t, cfg.Validate())
}
