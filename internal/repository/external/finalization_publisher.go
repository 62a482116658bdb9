package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
)

// HTTPFinalizationPublisher отправляет записи финализации во внешнее
// хранилище одним POST-запросом. Реализует repository.FinalizationPublisher.
type HTTPFinalizationPublisher struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPFinalizationPublisher создает издателя финализаций.
// Пустой endpoint означает, что внешнее хранилище не сконфигурировано:
// отправка становится no-op и сессии завершаются только с локальным
// сохранением.
func NewHTTPFinalizationPublisher(endpoint, apiKey string) *HTTPFinalizationPublisher {
	return &HTTPFinalizationPublisher{
		endpoint: endpoint,
		apiKey:   apiKey,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Publish отправляет запись финализации. Вызов повторяем: тело запроса
// строится из записи заново при каждой попытке.
func (p *HTTPFinalizationPublisher) Publish(ctx context.Context, record *entity.SessionRecord) error {
	if p.endpoint == "" {
		log.Printf("[FinalizationPublisher] Внешнее хранилище не сконфигурировано, запись %s не отправлена", record.SessionID)
		return nil
	}

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal finalization record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build finalization request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("finalization request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Тело ответа попадает в лог для диагностики, но не в ошибку
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("[FinalizationPublisher] Хранилище ответило %d на запись %s: %s",
			resp.StatusCode, record.SessionID, string(snippet))
		return fmt.Errorf("finalization endpoint returned status %d", resp.StatusCode)
	}

	log.Printf("[FinalizationPublisher] Запись финализации %s отправлена", record.SessionID)
	return nil
}
