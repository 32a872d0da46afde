package runner

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"divergence_bot/internal/models"

	"gopkg.in/yaml.v2"
)

// SettingsStore хранит текущий снимок настроек. Читатели берут копию без блокировок,
// каждое изменение создаёт новый снимок со следующей версией.
type SettingsStore struct {
	cur atomic.Pointer[models.Settings]
	mu  sync.Mutex // писатели
}

func NewSettingsStore(initial models.Settings) (*SettingsStore, error) {
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("initial settings: %w", err)
	}
	initial.Version = 1
	st := &SettingsStore{}
	st.cur.Store(&initial)
	return st, nil
}

func (st *SettingsStore) Snapshot() models.Settings {
	return *st.cur.Load()
}

// Update применяет fn к копии. При ошибке fn или валидации текущий снимок не меняется.
func (st *SettingsStore) Update(fn func(s *models.Settings) error) (models.Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := *st.cur.Load()
	version := next.Version
	if err := fn(&next); err != nil {
		return *st.cur.Load(), err
	}
	if err := next.Validate(); err != nil {
		return *st.cur.Load(), err
	}
	next.Version = version + 1
	st.cur.Store(&next)
	return next, nil
}

// Set меняет одно поле по его yaml-ключу: "stop_loss_percent 2.5".
func (st *SettingsStore) Set(key, value string) (models.Settings, error) {
	key = strings.TrimSpace(strings.ToLower(key))
	value = strings.TrimSpace(value)
	if !isSettingKey(key) {
		return st.Snapshot(), fmt.Errorf("unknown setting %q", key)
	}
	if value == "" || strings.ContainsAny(value, "\n\r") {
		return st.Snapshot(), fmt.Errorf("bad value for %s", key)
	}

	return st.Update(func(s *models.Settings) error {
		if err := yaml.UnmarshalStrict([]byte(key+": "+value), s); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return nil
	})
}

func (st *SettingsStore) ApplyPreset(name string) (models.Settings, error) {
	p, ok := models.Presets[strings.ToLower(name)]
	if !ok {
		return st.Snapshot(), fmt.Errorf("unknown preset %q (есть: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return st.Update(func(s *models.Settings) error {
		p.Apply(s)
		return nil
	})
}

// SettingKeys: ключи, которые можно менять через Set.
func SettingKeys() []string {
	return append([]string(nil), settingKeys...)
}

func PresetNames() []string {
	out := make([]string, 0, len(models.Presets))
	for k := range models.Presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var settingKeys = []string{
	"position_size",
	"max_concurrent_positions",
	"commission_rate",
	"stop_mode",
	"stop_loss_percent",
	"take_profit_percent",
	"atr_multiplier",
	"trailing_enabled",
	"trailing_activation_percent",
	"trailing_breakeven",
	"min_price_diff_percent",
	"require_higher_low",
	"near_window",
	"far_window",
	"trend_filter",
	"trend_interval",
}

func isSettingKey(key string) bool {
	for _, k := range settingKeys {
		if k == key {
			return true
		}
	}
	return false
}
