package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
)

func testRecord() *entity.SessionRecord {
	return &entity.SessionRecord{
		SessionID:   "sess-1",
		GameID:      1,
		HostID:      7,
		PIN:         "123456",
		FinalStatus: entity.FinalStatusEnded,
		StartedAt:   time.Now().Add(-10 * time.Minute),
		EndedAt:     time.Now(),
		PlayerCount: 2,
	}
}

func TestHTTPFinalizationPublisher_PostsRecord(t *testing.T) {
	// Arrange
	var received entity.SessionRecord
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	publisher := NewHTTPFinalizationPublisher(server.URL, "secret-key")

	// Act
	err := publisher.Publish(context.Background(), testRecord())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "sess-1", received.SessionID)
	assert.Equal(t, entity.FinalStatusEnded, received.FinalStatus)
	assert.Equal(t, "Bearer secret-key", authHeader)
}

func TestHTTPFinalizationPublisher_ErrorStatusSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	publisher := NewHTTPFinalizationPublisher(server.URL, "")

	err := publisher.Publish(context.Background(), testRecord())

	assert.Error(t, err, "Неуспешный статус хранилища должен возвращаться как ошибка для повтора")
}

func TestHTTPFinalizationPublisher_NoEndpointIsNoop(t *testing.T) {
	publisher := NewHTTPFinalizationPublisher("", "")

	err := publisher.Publish(context.Background(), testRecord())

	assert.NoError(t, err)
}
