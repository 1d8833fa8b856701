package monitoring

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"nuha.dev/loctrack/internal/events"
	"nuha.dev/loctrack/internal/notify"
	"nuha.dev/loctrack/internal/tracking"
)

type mockController struct {
	state  tracking.State
	intent bool
}

func (m *mockController) State() tracking.State {
	return m.state
}

func (m *mockController) IsActive(context.Context) (bool, error) {
	return m.intent, nil
}

func TestStatus(t *testing.T) {
	eb, err := events.New()
	if err != nil {
		t.Fatal(err)
	}
	rec := events.NewRecorder(eb, "monitoring-test")
	board := notify.NewBoard(eb)
	_ = board.Publish(context.Background(), notify.Tracking())

	m := NewMonApi(Sources{
		Controller: &mockController{state: tracking.Running, intent: true},
		Board:      board,
		Recorder:   rec,
		Provider:   "simplejson",
		Clients:    func() int { return 2 },
	}, &MonitoringConfig{ListenAddr: ":0"})

	w := httptest.NewRecorder()
	m.GetHandler().ServeHTTP(w, httptest.NewRequest("GET", "/status", nil))
	if w.Code != 200 {
		t.Fatalf("status code %d", w.Code)
	}
	var res struct {
		State         string                `json:"state"`
		Intent        bool                  `json:"intent"`
		Provider      string                `json:"provider"`
		Clients       int                   `json:"clients"`
		Notifications []notify.Notification `json:"notifications"`
		LastEvents    map[string]struct {
			ID string `json:"id"`
		} `json:"last_events"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.State != "running" || !res.Intent || res.Provider != "simplejson" || res.Clients != 2 {
		t.Errorf("unexpected status %+v", res)
	}
	if len(res.Notifications) != 1 || res.Notifications[0].ID != notify.TRACKING_ID {
		t.Errorf("notifications %+v", res.Notifications)
	}
	if _, ok := res.LastEvents[events.NOTIFICATION_POSTED]; !ok {
		t.Errorf("last events %+v", res.LastEvents)
	}
}
