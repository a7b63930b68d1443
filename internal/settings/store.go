package settings

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"swapdesk/internal/config"
)

const (
	maxSlippageBps     = 5000
	maxDeadlineMinutes = 4320
)

var (
	// ErrInvalidSlippage 表示滑点输入不合法。
	ErrInvalidSlippage = errors.New("settings: invalid slippage")
	// ErrInvalidDeadline 表示截止时间输入不合法。
	ErrInvalidDeadline = errors.New("settings: invalid deadline")
)

// Execution 为随订单透传给执行服务的设置，本模块不解释其含义。
type Execution struct {
	SlippageBps     int
	DeadlineMinutes int
}

// View 为设置面板的展示状态。
type View struct {
	Presets        []int
	SelectedPreset int
	Custom         bool
	CustomText     string
	CustomValid    bool
	DeadlineText   string
	DeadlineValid  bool
	Effective      Execution
}

// Store 保存滑点与截止时间。非法的自定义输入会被保留用于展示，但不会成为生效值。
type Store struct {
	mu sync.RWMutex

	presets        []int
	effective      Execution
	selectedPreset int
	custom         bool
	customText     string
	customValid    bool
	deadlineText   string
	deadlineValid  bool
}

// NewStore 根据配置创建设置存储。
func NewStore(cfg config.SettingsConfig) (*Store, error) {
	presets := append([]int(nil), cfg.SlippagePresets...)
	sort.Ints(presets)
	for _, p := range presets {
		if p <= 0 || p > maxSlippageBps {
			return nil, fmt.Errorf("%w: 预设值 %d 超出范围", ErrInvalidSlippage, p)
		}
	}
	if cfg.DefaultSlippageBps <= 0 || cfg.DefaultSlippageBps > maxSlippageBps {
		return nil, fmt.Errorf("%w: 默认值 %d 超出范围", ErrInvalidSlippage, cfg.DefaultSlippageBps)
	}
	if cfg.DefaultDeadlineMinutes <= 0 || cfg.DefaultDeadlineMinutes > maxDeadlineMinutes {
		return nil, fmt.Errorf("%w: 默认值 %d 超出范围", ErrInvalidDeadline, cfg.DefaultDeadlineMinutes)
	}

	s := &Store{
		presets: presets,
		effective: Execution{
			SlippageBps:     cfg.DefaultSlippageBps,
			DeadlineMinutes: cfg.DefaultDeadlineMinutes,
		},
		deadlineText:  strconv.Itoa(cfg.DefaultDeadlineMinutes),
		deadlineValid: true,
		customValid:   true,
	}
	if containsInt(presets, cfg.DefaultSlippageBps) {
		s.selectedPreset = cfg.DefaultSlippageBps
	} else {
		s.custom = true
		s.customText = strconv.Itoa(cfg.DefaultSlippageBps)
	}
	return s, nil
}

// SelectPreset 选择预设滑点。
func (s *Store) SelectPreset(bps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !containsInt(s.presets, bps) {
		return fmt.Errorf("%w: %d 不是预设值", ErrInvalidSlippage, bps)
	}
	s.selectedPreset = bps
	s.custom = false
	s.customText = ""
	s.customValid = true
	s.effective.SlippageBps = bps
	return nil
}

// SetCustomSlippage 设置自定义滑点，支持 "75"（基点）或 "0.75%"（百分比）。
// 输入非法时保留原文并返回错误，生效值保持上一次合法选择。
func (s *Store) SetCustomSlippage(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.custom = true
	s.customText = text

	bps, err := parseSlippage(text)
	if err != nil {
		s.customValid = false
		return err
	}
	s.customValid = true
	s.selectedPreset = 0
	s.effective.SlippageBps = bps
	return nil
}

// SetDeadline 设置截止分钟数，规则同上。
func (s *Store) SetDeadline(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deadlineText = text
	minutes, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || minutes <= 0 || minutes > maxDeadlineMinutes {
		s.deadlineValid = false
		return fmt.Errorf("%w: %q 需为 1-%d 的整数", ErrInvalidDeadline, text, maxDeadlineMinutes)
	}
	s.deadlineValid = true
	s.effective.DeadlineMinutes = minutes
	return nil
}

// Snapshot 返回当前生效的执行设置。
func (s *Store) Snapshot() Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effective
}

// View 返回设置面板状态。
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	selected := s.selectedPreset
	if s.custom && s.customValid {
		selected = 0
	}
	return View{
		Presets:        append([]int(nil), s.presets...),
		SelectedPreset: selected,
		Custom:         s.custom,
		CustomText:     s.customText,
		CustomValid:    s.customValid,
		DeadlineText:   s.deadlineText,
		DeadlineValid:  s.deadlineValid,
		Effective:      s.effective,
	}
}

func parseSlippage(text string) (int, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return 0, fmt.Errorf("%w: 不能为空", ErrInvalidSlippage)
	}

	var bps decimal.Decimal
	if strings.HasSuffix(raw, "%") {
		pct, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(raw, "%")))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidSlippage, text)
		}
		bps = pct.Mul(decimal.NewFromInt(100))
	} else {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidSlippage, text)
		}
		bps = v
	}

	if !bps.Equal(bps.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q 精度超过 1 个基点", ErrInvalidSlippage, text)
	}
	if !bps.IsPositive() || bps.GreaterThan(decimal.NewFromInt(maxSlippageBps)) {
		return 0, fmt.Errorf("%w: %q 超出 (0, %d] 基点", ErrInvalidSlippage, text, maxSlippageBps)
	}
	return int(bps.IntPart()), nil
}

func containsInt(items []int, v int) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
