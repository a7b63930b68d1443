package engine

import (
	"time"

	"swapdesk/internal/asset"
	"swapdesk/internal/quote"
	"swapdesk/internal/risk"
	"swapdesk/internal/settings"
	"swapdesk/internal/wallet"
)

// BannerKind 区分提示条类型。
type BannerKind string

const (
	BannerNone    BannerKind = ""
	BannerError   BannerKind = "error"
	BannerSuccess BannerKind = "success"
	BannerInfo    BannerKind = "info"
)

// Banner 为页面顶部提示。
type Banner struct {
	Kind    BannerKind
	Message string
}

// View 为兑换页面的只读快照，金额均已按资产精度格式化。
type View struct {
	Version uint64

	Mode          asset.Mode
	Fiat          string
	Crypto        string
	PayAsset      string
	ReceiveAsset  string
	FiatOptions   []string
	CryptoOptions []string

	PayAmountText  string
	PayAmount      string
	PayAmountValid bool
	ReceiveAmount  string
	ReceiveDisplay string
	Rate           string
	Fee            string

	QuoteState    quote.State
	QuoteSequence uint64
	LatestIssued  uint64
	QuoteError    string

	Available     string
	MaxAmount     string
	CanExecute    bool
	Reasons       []risk.Reason
	OrderInFlight bool
	PendingOrder  string

	Banner   Banner
	Settings settings.View
	Wallets  []wallet.Balance
	Trades   []wallet.Trade

	WalletsUpdatedAt time.Time
	UpdatedAt        time.Time
}

// ReasonMessages 返回禁止执行原因的说明文本。
func (v View) ReasonMessages() []string {
	out := make([]string, 0, len(v.Reasons))
	for _, r := range v.Reasons {
		out = append(out, r.Message())
	}
	return out
}
