package stats

import (
	"sort"
	"time"

	"github.com/shieldai/cetp-monitor/internal/model"
)

// Manager fans a stream of readings out to one Window per sensor_id.
type Manager struct {
	duration time.Duration
	hop      time.Duration
	windows  map[string]*Window
}

// NewManager constructs a Manager for the given hop/duration tunables.
func NewManager(duration, hop time.Duration) *Manager {
	return &Manager{duration: duration, hop: hop, windows: make(map[string]*Window)}
}

// Process routes a reading to its sensor's Window. Null-valued (BLACKOUT)
// readings are skipped ("windows containing only nulls are
// skipped").
func (m *Manager) Process(r model.Reading) []model.WindowStats {
	if r.Value == nil {
		return nil
	}
	win, ok := m.windows[r.SensorID]
	if !ok {
		win = NewWindow(r.SensorID, m.duration, m.hop)
		m.windows[r.SensorID] = win
	}
	return win.Process(r.Timestamp, *r.Value)
}

// Flush drains every sensor's trailing partial window, in deterministic
// sensor_id order for reproducible output.
func (m *Manager) Flush() []model.WindowStats {
	var out []model.WindowStats
	for _, id := range m.sortedSensorIDs() {
		out = append(out, m.windows[id].Flush()...)
	}
	return out
}

func (m *Manager) sortedSensorIDs() []string {
	ids := make([]string, 0, len(m.windows))
	for id := range m.windows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
