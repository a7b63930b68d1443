//go:build integration
// +build integration

package execution_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"swapdesk/internal/asset"
	"swapdesk/internal/backend"
	"swapdesk/internal/config"
	"swapdesk/internal/execution"
	"swapdesk/internal/settings"
	"swapdesk/internal/wallet"
)

func TestExecutorIntegration_BackendBuy(t *testing.T) {
	configPath := os.Getenv("SWAPDESK_CONFIG")
	if configPath == "" {
		configPath = "../../configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Backend.Token == "" {
		t.Skip("缺少 backend.token，跳过真实下单测试")
	}
	amountText := os.Getenv("SWAPDESK_IT_AMOUNT")
	if amountText == "" {
		t.Skip("未设置 SWAPDESK_IT_AMOUNT，出于安全考虑跳过真实下单测试")
	}

	logger := zaptest.NewLogger(t)
	client, err := backend.NewClient(cfg.Backend, logger)
	if err != nil {
		t.Fatalf("创建后端客户端失败: %v", err)
	}

	reg, err := asset.NewRegistry(cfg.Assets.Fiat, cfg.Assets.Crypto)
	if err != nil {
		t.Fatalf("构建资产表失败: %v", err)
	}
	fiat, _ := reg.LookupKind(cfg.Exchange.DefaultFiat, asset.KindFiat)
	crypto, _ := reg.LookupKind(cfg.Exchange.DefaultCrypto, asset.KindCrypto)
	pair, err := asset.ResolvePair(asset.ModeBuy, fiat, crypto)
	if err != nil {
		t.Fatalf("解析交易对失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	book := wallet.NewBook(client, client, cfg.Exchange.HistoryLimit, logger)
	snap, err := book.Refresh(ctx)
	if err != nil {
		t.Fatalf("刷新钱包失败: %v", err)
	}
	w, ok := snap.WalletFor(fiat.Code)
	if !ok {
		t.Skipf("没有 %s 钱包，跳过测试", fiat.Code)
	}

	amount, err := asset.ParseAmount(amountText)
	if err != nil {
		t.Fatalf("解析金额失败: %v", err)
	}
	if amount.GreaterThan(w.Available()) {
		t.Skipf("可用余额不足: %s", w.Available())
	}

	done := make(chan execution.Result, 1)
	exec := execution.NewExecutor(client, execution.Options{Timeout: cfg.Exchange.ExecTimeout}, logger)
	order := execution.Order{
		Mode:      asset.ModeBuy,
		Pair:      pair,
		PayAmount: amount,
		WalletID:  w.WalletID,
		Settings: settings.Execution{
			SlippageBps:     cfg.Settings.DefaultSlippageBps,
			DeadlineMinutes: cfg.Settings.DefaultDeadlineMinutes,
		},
	}
	if _, err := exec.Confirm(ctx, order, func(r execution.Result) { done <- r }); err != nil {
		t.Fatalf("提交订单失败: %v", err)
	}

	select {
	case res := <-done:
		if res.Err != nil {
			t.Fatalf("订单执行失败: %v", res.Err)
		}
		if !res.Receipt.ExecutedAmount.GreaterThan(decimal.Zero) {
			t.Logf("订单状态 %s，成交数量为0", res.Receipt.Status)
		}
	case <-ctx.Done():
		t.Fatalf("等待订单结果超时")
	}
}
