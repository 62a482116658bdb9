package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ====================================================================
// MemoryPubSub
// ====================================================================

func TestMemoryPubSub_PublishSubscribe(t *testing.T) {
	// Arrange
	provider := NewMemoryPubSub()
	defer provider.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgCh, err := provider.Subscribe(ctx, "session:broadcast:s1")
	require.NoError(t, err)

	// Act
	err = provider.Publish("session:broadcast:s1", []byte(`{"entries":[{"kind":2}]}`))
	require.NoError(t, err)

	// Assert
	select {
	case msg := <-msgCh:
		assert.JSONEq(t, `{"entries":[{"kind":2}]}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("Сообщение не доставлено подписчику")
	}
}

func TestMemoryPubSub_ChannelIsolation(t *testing.T) {
	// Сообщения одного канала не должны попадать подписчикам другого
	provider := NewMemoryPubSub()
	defer provider.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broadcastCh, err := provider.Subscribe(ctx, "session:broadcast:s1")
	require.NoError(t, err)
	directCh, err := provider.Subscribe(ctx, "session:direct:s1")
	require.NoError(t, err)

	require.NoError(t, provider.Publish("session:direct:s1", []byte(`direct`)))

	select {
	case msg := <-directCh:
		assert.Equal(t, "direct", string(msg))
	case <-time.After(time.Second):
		t.Fatal("Адресное сообщение не доставлено")
	}

	select {
	case msg := <-broadcastCh:
		t.Fatalf("Широковещательный подписчик получил чужое сообщение: %s", msg)
	case <-time.After(50 * time.Millisecond):
		// ожидаемо: ничего не пришло
	}
}

func TestMemoryPubSub_OrderPreserved(t *testing.T) {
	provider := NewMemoryPubSub()
	defer provider.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgCh, err := provider.Subscribe(ctx, "session:broadcast:s1")
	require.NoError(t, err)

	payloads := []string{"a", "b", "c", "d", "e"}
	for _, p := range payloads {
		require.NoError(t, provider.Publish("session:broadcast:s1", []byte(p)))
	}

	for _, expected := range payloads {
		select {
		case msg := <-msgCh:
			assert.Equal(t, expected, string(msg), "Порядок сообщений в канале должен сохраняться")
		case <-time.After(time.Second):
			t.Fatal("Не все сообщения доставлены")
		}
	}
}

func TestMemoryPubSub_UnsubscribeOnContextCancel(t *testing.T) {
	provider := NewMemoryPubSub()
	defer provider.Close()

	ctx, cancel := context.WithCancel(context.Background())
	msgCh, err := provider.Subscribe(ctx, "session:broadcast:s1")
	require.NoError(t, err)

	cancel()

	// Канал подписчика должен закрыться
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-msgCh:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "Подписка должна сниматься при отмене контекста")
}

// ====================================================================
// RedisPubSub
// ====================================================================

func setupRedisProvider(t *testing.T) (*RedisPubSub, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	provider, err := NewRedisPubSub(client)
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })

	return provider, mr
}

func TestRedisPubSub_PublishSubscribe(t *testing.T) {
	// Arrange
	provider, _ := setupRedisProvider(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgCh, err := provider.Subscribe(ctx, "session:broadcast:s1")
	require.NoError(t, err)

	// Act
	require.NoError(t, provider.Publish("session:broadcast:s1", []byte(`hello`)))

	// Assert
	select {
	case msg := <-msgCh:
		assert.Equal(t, "hello", string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("Сообщение не доставлено через Redis")
	}
}

func TestNewRedisPubSub_NilClient(t *testing.T) {
	provider, err := NewRedisPubSub(nil)
	assert.Error(t, err, "Создание провайдера без клиента должно возвращать ошибку")
	assert.Nil(t, provider)
}
