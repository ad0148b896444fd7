package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisEvictionBroadcaster_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes id and origin", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		b := NewRedisEvictionBroadcaster(client, WithChannel("crm:evictions"))

		var published EvictionMessage
		mock.CustomMatch(func(_, actual []any) error {
			if len(actual) != 3 || actual[1] != "crm:evictions" {
				return errors.New("unexpected publish arguments")
			}
			payload, ok := actual[2].([]byte)
			if !ok {
				return errors.New("payload is not bytes")
			}
			return json.Unmarshal(payload, &published)
		}).ExpectPublish("crm:evictions", nil).SetVal(1)

		require.NoError(t, b.Publish(ctx, "c-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Equal(t, "c-1", published.CustomerID)
		assert.Equal(t, b.Origin(), published.Origin)
		assert.NotZero(t, published.Timestamp)
	})

	t.Run("publish failure", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		b := NewRedisEvictionBroadcaster(client)
		mock.CustomMatch(func(_, _ []any) error { return nil }).
			ExpectPublish(defaultEvictionChannel, nil).SetErr(errors.New("down"))

		err := b.Publish(ctx, "c-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "c-1")
	})
}

func TestRedisEvictionBroadcaster_Dispatch(t *testing.T) {
	client, _ := redismock.NewClientMock()
	b := NewRedisEvictionBroadcaster(client)

	encode := func(msg EvictionMessage) string {
		data, err := json.Marshal(msg)
		require.NoError(t, err)
		return string(data)
	}

	tests := []struct {
		name    string
		payload string
		want    []string
	}{
		{"peer eviction", encode(EvictionMessage{CustomerID: "c-1", Origin: "peer"}), []string{"c-1"}},
		{"own eviction ignored", encode(EvictionMessage{CustomerID: "c-1", Origin: b.Origin()}), nil},
		{"empty id ignored", encode(EvictionMessage{Origin: "peer"}), nil},
		{"garbage ignored", "not-json", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			b.dispatch(tt.payload, func(id string) { got = append(got, id) })
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedisEvictionBroadcaster_CloseWithoutSubscribe(t *testing.T) {
	client, _ := redismock.NewClientMock()
	b := NewRedisEvictionBroadcaster(client)
	assert.NoError(t, b.Close())
}
