package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/i474232898/kp-index-aggregation/internal/kp"
	"github.com/i474232898/kp-index-aggregation/internal/widget"
)

type settingsCardStore interface {
	kp.SettingsStore
	widget.CardStore
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), m.Addr(), 0, "kp:test:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, m
}

func TestStores(t *testing.T) {
	redisStore, _ := newRedisStore(t)
	stores := map[string]settingsCardStore{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := s.LoadLocation(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound for missing location, got %v", err)
			}
			if _, err := s.LoadPreferences(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound for missing preferences, got %v", err)
			}
			if _, err := s.LoadCard(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound for missing card, got %v", err)
			}
			if last, err := s.LastNotification(ctx); err != nil || !last.IsZero() {
				t.Fatalf("expected zero last notification, got %v, %v", last, err)
			}

			loc := kp.Location{DisplayName: "Львів, Україна", TimeZoneID: "Europe/Kyiv"}
			if err := s.SaveLocation(ctx, loc); err != nil {
				t.Fatalf("save location: %v", err)
			}
			if got, err := s.LoadLocation(ctx); err != nil || got != loc {
				t.Fatalf("expected %+v, got %+v, %v", loc, got, err)
			}

			prefs := kp.DefaultPreferences()
			prefs.RefreshMode = kp.RefreshBackground
			prefs.NotificationsEnabled = true
			if err := s.SavePreferences(ctx, prefs); err != nil {
				t.Fatalf("save preferences: %v", err)
			}
			if got, err := s.LoadPreferences(ctx); err != nil || got != prefs {
				t.Fatalf("expected %+v, got %+v, %v", prefs, got, err)
			}

			at := time.Date(2026, 2, 7, 9, 0, 0, 0, time.UTC)
			if err := s.SetLastNotification(ctx, at); err != nil {
				t.Fatalf("set last notification: %v", err)
			}
			if got, err := s.LastNotification(ctx); err != nil || !got.Equal(at) {
				t.Fatalf("expected %v, got %v, %v", at, got, err)
			}

			if err := s.SaveCard(ctx, map[string]string{"v": "1", "kp": "3"}); err != nil {
				t.Fatalf("save card: %v", err)
			}
			if err := s.SaveCard(ctx, map[string]string{"kp": "4.33"}); err != nil {
				t.Fatalf("merge card: %v", err)
			}
			card, err := s.LoadCard(ctx)
			if err != nil {
				t.Fatalf("load card: %v", err)
			}
			if card["v"] != "1" || card["kp"] != "4.33" {
				t.Fatalf("expected merged card, got %v", card)
			}
		})
	}
}

func TestRedisStoreUsesPrefix(t *testing.T) {
	s, m := newRedisStore(t)

	if err := s.SaveLocation(context.Background(), kp.DefaultLocation); err != nil {
		t.Fatalf("save location: %v", err)
	}
	if !m.Exists("kp:test:location") {
		t.Fatalf("expected prefixed key, have %v", m.Keys())
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	m := miniredis.RunT(t)
	addr := m.Addr()
	m.Close()

	if _, err := NewRedisStore(context.Background(), addr, 0, ""); err == nil {
		t.Fatalf("expected ping error for closed server")
	}
}
