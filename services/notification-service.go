package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tasknest/backend/logging"
	"tasknest/backend/models"

	"github.com/sony/gobreaker"
)

// NotificationService šalje obaveštenja o promenama taskova na podešeni
// webhook. Slanje je best-effort: greška se loguje i nikad se ne vraća
// pozivaocu, a circuit breaker štiti engine od spore ili nedostupne mete.
type NotificationService struct {
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
	webhookURL string
}

func NewNotificationService(client *http.Client, webhookURL string) *NotificationService {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notifications-cb",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})

	return &NotificationService{
		client:     client,
		breaker:    breaker,
		webhookURL: webhookURL,
	}
}

type taskEvent struct {
	EventType string      `json:"eventType"`
	Task      models.Task `json:"task"`
	Timestamp time.Time   `json:"timestamp"`
}

// NotifyTaskEvent šalje događaj na webhook; bez webhook-a je no-op.
func (s *NotificationService) NotifyTaskEvent(eventType string, task *models.Task) {
	if s.webhookURL == "" {
		return
	}

	event := taskEvent{
		EventType: eventType,
		Task:      *task,
		Timestamp: time.Now(),
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		body, err := json.Marshal(event)
		if err != nil {
			return nil, err
		}

		resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("webhook responded with status %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil {
		logging.Logger.Warnf("Event ID: NOTIFICATION_FAILED, Description: Failed to deliver %s notification for task %s: %v", eventType, task.ID.Hex(), err)
	}
}
