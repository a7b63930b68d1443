package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultHistoryLimit = 10

// Book 维护钱包余额与最近成交的最新快照。
type Book struct {
	wallets Service
	history HistoryService
	limit   int
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewBook 创建钱包簿。history 为空时不拉取成交记录。
func NewBook(wallets Service, history HistoryService, limit int, logger *zap.Logger) *Book {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &Book{
		wallets: wallets,
		history: history,
		limit:   limit,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Refresh 并发拉取钱包与成交记录。任一失败时保留旧快照并返回错误。
func (b *Book) Refresh(ctx context.Context) (Snapshot, error) {
	var (
		wallets []Balance
		trades  []Trade
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		data, err := b.wallets.GetWallets(groupCtx)
		if err != nil {
			return fmt.Errorf("wallet: 获取钱包失败: %w", err)
		}
		wallets = data
		return nil
	})

	if b.history != nil {
		group.Go(func() error {
			data, err := b.history.GetRecentTrades(groupCtx, b.limit)
			if err != nil {
				return fmt.Errorf("wallet: 获取成交记录失败: %w", err)
			}
			trades = data
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		b.logger.Warn("刷新钱包失败", zap.Error(err))
		return b.Snapshot(), err
	}

	if len(trades) > b.limit {
		trades = trades[:b.limit]
	}

	snap := Snapshot{
		Wallets:   wallets,
		Trades:    trades,
		UpdatedAt: b.now(),
	}

	b.mu.Lock()
	b.snapshot = snap
	b.mu.Unlock()

	b.logger.Debug("钱包快照已更新",
		zap.Int("wallets", len(wallets)),
		zap.Int("trades", len(trades)),
	)
	return snap, nil
}

// Snapshot 返回最近一次成功刷新的快照。
func (b *Book) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot
}
