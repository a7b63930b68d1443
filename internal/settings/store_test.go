package settings

import (
	"errors"
	"testing"

	"swapdesk/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(config.SettingsConfig{
		SlippagePresets:        []int{100, 10, 50},
		DefaultSlippageBps:     50,
		DefaultDeadlineMinutes: 20,
	})
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	return s
}

func TestStore_Defaults(t *testing.T) {
	s := newTestStore(t)

	if got := s.Snapshot(); got.SlippageBps != 50 || got.DeadlineMinutes != 20 {
		t.Fatalf("unexpected defaults %+v", got)
	}
	v := s.View()
	if v.SelectedPreset != 50 || v.Custom {
		t.Errorf("expected preset 50 selected, got %+v", v)
	}
	if len(v.Presets) != 3 || v.Presets[0] != 10 {
		t.Errorf("expected sorted presets, got %v", v.Presets)
	}
}

func TestStore_SelectPreset(t *testing.T) {
	s := newTestStore(t)

	if err := s.SelectPreset(100); err != nil {
		t.Fatalf("SelectPreset returned error: %v", err)
	}
	if s.Snapshot().SlippageBps != 100 {
		t.Errorf("expected 100bps, got %d", s.Snapshot().SlippageBps)
	}
	if err := s.SelectPreset(30); !errors.Is(err, ErrInvalidSlippage) {
		t.Errorf("expected ErrInvalidSlippage for non-preset, got %v", err)
	}
}

func TestStore_CustomSlippage(t *testing.T) {
	tests := []struct {
		text    string
		want    int
		wantErr bool
	}{
		{"75", 75, false},
		{"0.75%", 75, false},
		{" 1% ", 100, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"7.5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"60%", 0, true},
	}

	for _, tt := range tests {
		s := newTestStore(t)
		err := s.SetCustomSlippage(tt.text)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidSlippage) {
				t.Errorf("SetCustomSlippage(%q): expected ErrInvalidSlippage, got %v", tt.text, err)
			}
			v := s.View()
			if v.CustomValid || !v.Custom || v.CustomText != tt.text {
				t.Errorf("SetCustomSlippage(%q): invalid input must be retained and flagged, got %+v", tt.text, v)
			}
			if v.Effective.SlippageBps != 50 {
				t.Errorf("SetCustomSlippage(%q): effective value must stay 50, got %d", tt.text, v.Effective.SlippageBps)
			}
			if v.SelectedPreset != 50 {
				t.Errorf("SetCustomSlippage(%q): previous preset must remain selected, got %d", tt.text, v.SelectedPreset)
			}
			continue
		}
		if err != nil {
			t.Errorf("SetCustomSlippage(%q) returned error: %v", tt.text, err)
			continue
		}
		if got := s.Snapshot().SlippageBps; got != tt.want {
			t.Errorf("SetCustomSlippage(%q) = %d, want %d", tt.text, got, tt.want)
		}
		if v := s.View(); v.SelectedPreset != 0 || !v.CustomValid {
			t.Errorf("SetCustomSlippage(%q): expected custom selection, got %+v", tt.text, v)
		}
	}
}

func TestStore_Deadline(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetDeadline("45"); err != nil {
		t.Fatalf("SetDeadline returned error: %v", err)
	}
	if s.Snapshot().DeadlineMinutes != 45 {
		t.Errorf("expected 45 minutes")
	}

	for _, bad := range []string{"0", "-1", "abc", "9999", "1.5"} {
		if err := s.SetDeadline(bad); !errors.Is(err, ErrInvalidDeadline) {
			t.Errorf("SetDeadline(%q): expected ErrInvalidDeadline, got %v", bad, err)
		}
		if s.Snapshot().DeadlineMinutes != 45 {
			t.Errorf("SetDeadline(%q) must keep last valid value", bad)
		}
		if s.View().DeadlineValid {
			t.Errorf("SetDeadline(%q) must flag field invalid", bad)
		}
	}
}

func TestNewStore_RejectsBadConfig(t *testing.T) {
	if _, err := NewStore(config.SettingsConfig{SlippagePresets: []int{10}, DefaultSlippageBps: 0, DefaultDeadlineMinutes: 20}); err == nil {
		t.Errorf("expected error for zero default slippage")
	}
	if _, err := NewStore(config.SettingsConfig{SlippagePresets: []int{10}, DefaultSlippageBps: 10, DefaultDeadlineMinutes: 0}); err == nil {
		t.Errorf("expected error for zero default deadline")
	}
	s, err := NewStore(config.SettingsConfig{SlippagePresets: []int{10}, DefaultSlippageBps: 30, DefaultDeadlineMinutes: 5})
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	if v := s.View(); !v.Custom || v.CustomText != "30" {
		t.Errorf("non-preset default should surface as custom, got %+v", v)
	}
}
