package app

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"swapdesk/internal/asset"
	"swapdesk/internal/engine"
	"swapdesk/internal/risk"
	"swapdesk/internal/settings"
)

type fakeCommands struct {
	calls []string
	view  engine.View
}

func (f *fakeCommands) SetPayAmount(text string)      { f.calls = append(f.calls, "amount:"+text) }
func (f *fakeCommands) SetMode(mode asset.Mode)       { f.calls = append(f.calls, "mode:"+string(mode)) }
func (f *fakeCommands) SetFiat(code string)           { f.calls = append(f.calls, "fiat:"+code) }
func (f *fakeCommands) SetCrypto(code string)         { f.calls = append(f.calls, "crypto:"+code) }
func (f *fakeCommands) UseMax()                       { f.calls = append(f.calls, "max") }
func (f *fakeCommands) SelectSlippagePreset(bps int)  { f.calls = append(f.calls, "preset") }
func (f *fakeCommands) SetCustomSlippage(text string) { f.calls = append(f.calls, "custom:"+text) }
func (f *fakeCommands) SetDeadline(text string)       { f.calls = append(f.calls, "deadline:"+text) }
func (f *fakeCommands) Confirm()                      { f.calls = append(f.calls, "confirm") }
func (f *fakeCommands) DismissError()                 { f.calls = append(f.calls, "dismiss") }
func (f *fakeCommands) Refresh()                      { f.calls = append(f.calls, "refresh") }
func (f *fakeCommands) Snapshot() engine.View         { return f.view }

func TestConsole_Execute(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{line: "buy", want: []string{"mode:buy"}},
		{line: "SELL", want: []string{"mode:sell"}},
		{line: "amount 1,000.50", want: []string{"amount:1,000.50"}},
		{line: "amount", want: []string{"amount:"}},
		{line: "max", want: []string{"max"}},
		{line: "fiat eur", want: []string{"fiat:eur"}},
		{line: "crypto ETH", want: []string{"crypto:ETH"}},
		{line: "slippage 50", want: []string{"preset"}},
		{line: "slippage custom 0.7", want: []string{"custom:0.7"}},
		{line: "deadline 30", want: []string{"deadline:30"}},
		{line: "confirm", want: []string{"confirm"}},
		{line: "dismiss", want: []string{"dismiss"}},
		{line: "refresh", want: []string{"refresh"}},
		{line: "   ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmds := &fakeCommands{}
			c := NewConsole(cmds, strings.NewReader(""), &bytes.Buffer{})
			require.NoError(t, c.Execute(tt.line))
			require.Equal(t, tt.want, cmds.calls)
		})
	}
}

func TestConsole_ExecuteErrors(t *testing.T) {
	cmds := &fakeCommands{}
	c := NewConsole(cmds, strings.NewReader(""), &bytes.Buffer{})

	require.Error(t, c.Execute("launch"))
	require.Error(t, c.Execute("fiat"))
	require.Error(t, c.Execute("slippage abc"))
	require.Error(t, c.Execute("slippage custom"))
	require.ErrorIs(t, c.Execute("quit"), errQuit)
	require.Empty(t, cmds.calls)
}

func TestConsole_RunStopsAtQuit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmds := &fakeCommands{}
	out := &bytes.Buffer{}
	c := NewConsole(cmds, strings.NewReader("amount 100\nbogus\nquit\nconfirm\n"), out)

	require.NoError(t, c.Run(ctx))
	require.Equal(t, []string{"amount:100"}, cmds.calls)
	require.Contains(t, out.String(), "未知命令")
}

func TestConsole_RenderSkipsUnchangedLines(t *testing.T) {
	out := &bytes.Buffer{}
	c := NewConsole(&fakeCommands{}, strings.NewReader(""), out)

	v := engine.View{
		Mode:           asset.ModeBuy,
		Fiat:           "USD",
		Crypto:         "BTC",
		PayAsset:       "USD",
		ReceiveAsset:   "BTC",
		PayAmountText:  "100",
		PayAmountValid: true,
		ReceiveAmount:  "0.002000",
		ReceiveDisplay: "0.002000",
		QuoteSequence:  3,
		Available:      "500.00",
		CanExecute:     true,
	}
	c.Render(v)
	v.Version++
	c.Render(v)
	require.Equal(t, 1, strings.Count(out.String(), "\n"))
	require.Contains(t, out.String(), "-> 0.002000 BTC #3")
	require.Contains(t, out.String(), "可执行")

	v.Banner = engine.Banner{Kind: engine.BannerError, Message: "Insufficient balance"}
	c.Render(v)
	require.Equal(t, 2, strings.Count(out.String(), "\n"))
	require.Contains(t, out.String(), "error: Insufficient balance")
}

func TestRenderView_ShowsReasonsAndSettings(t *testing.T) {
	v := engine.View{
		Mode:         asset.ModeSell,
		Fiat:         "USD",
		Crypto:       "BTC",
		PayAsset:     "BTC",
		ReceiveAsset: "USD",
		MaxAmount:    "0.000000",
		Reasons:      []risk.Reason{risk.ReasonNoQuote},
		Settings: settings.View{
			Custom:        true,
			CustomText:    "abc",
			DeadlineValid: true,
			Effective:     settings.Execution{SlippageBps: 50, DeadlineMinutes: 20},
		},
	}
	out := RenderView(v)
	require.Contains(t, out, "不可执行")
	require.Contains(t, out, risk.ReasonNoQuote.Message())
	require.Contains(t, out, "滑点 50 bps")
	require.Contains(t, out, `"abc"`)
}
