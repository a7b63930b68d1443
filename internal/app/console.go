package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"swapdesk/internal/asset"
	"swapdesk/internal/engine"
)

// Commands 为控制台可调用的引擎命令集合。
type Commands interface {
	SetPayAmount(text string)
	SetMode(mode asset.Mode)
	SetFiat(code string)
	SetCrypto(code string)
	UseMax()
	SelectSlippagePreset(bps int)
	SetCustomSlippage(text string)
	SetDeadline(text string)
	Confirm()
	DismissError()
	Refresh()
	Snapshot() engine.View
}

var errQuit = errors.New("quit")

const consoleHelp = `可用命令:
  buy | sell                 切换方向（会清空金额）
  amount <数量>              输入支付金额
  max                        使用全部可用余额
  fiat <代码> | crypto <代码> 切换资产
  slippage <bps>             选择预设滑点
  slippage custom <百分比>   自定义滑点
  deadline <分钟>            设置截止时间
  confirm                    提交订单
  dismiss                    关闭错误提示
  refresh                    刷新钱包
  show                       显示完整状态
  quit                       退出`

// Console 以行命令驱动引擎，并把视图变化输出为文本。
type Console struct {
	cmds Commands
	in   io.Reader
	out  io.Writer

	mu       sync.Mutex
	lastLine string
}

// NewConsole 创建控制台。
func NewConsole(cmds Commands, in io.Reader, out io.Writer) *Console {
	return &Console{cmds: cmds, in: in, out: out}
}

// Run 逐行读取命令，直到输入结束、收到 quit 或 ctx 取消。
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	c.println(consoleHelp)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if err := c.Execute(line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				c.println("错误: " + err.Error())
			}
		}
	}
}

// Execute 解析并执行单行命令。
func (c *Console) Execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	args := fields[1:]

	switch strings.ToLower(fields[0]) {
	case "buy", "sell":
		mode, err := asset.ParseMode(fields[0])
		if err != nil {
			return err
		}
		c.cmds.SetMode(mode)
	case "amount":
		c.cmds.SetPayAmount(strings.Join(args, ""))
	case "max":
		c.cmds.UseMax()
	case "fiat":
		if len(args) != 1 {
			return errors.New("用法: fiat <代码>")
		}
		c.cmds.SetFiat(args[0])
	case "crypto":
		if len(args) != 1 {
			return errors.New("用法: crypto <代码>")
		}
		c.cmds.SetCrypto(args[0])
	case "slippage":
		return c.slippage(args)
	case "deadline":
		if len(args) != 1 {
			return errors.New("用法: deadline <分钟>")
		}
		c.cmds.SetDeadline(args[0])
	case "confirm":
		c.cmds.Confirm()
	case "dismiss":
		c.cmds.DismissError()
	case "refresh":
		c.cmds.Refresh()
	case "show":
		c.println(RenderView(c.cmds.Snapshot()))
	case "help", "?":
		c.println(consoleHelp)
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("未知命令 %q，输入 help 查看帮助", fields[0])
	}
	return nil
}

func (c *Console) slippage(args []string) error {
	switch {
	case len(args) == 1:
		bps, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("滑点预设必须为整数基点: %w", err)
		}
		c.cmds.SelectSlippagePreset(bps)
	case len(args) == 2 && strings.EqualFold(args[0], "custom"):
		c.cmds.SetCustomSlippage(args[1])
	default:
		return errors.New("用法: slippage <bps> | slippage custom <百分比>")
	}
	return nil
}

// Render 输出视图的状态行，内容未变化时不重复输出。可作为 Engine.Subscribe 的回调。
func (c *Console) Render(v engine.View) {
	line := StatusLine(v)
	c.mu.Lock()
	defer c.mu.Unlock()
	if line == c.lastLine {
		return
	}
	c.lastLine = line
	fmt.Fprintln(c.out, line)
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// StatusLine 把视图压缩成一行。
func StatusLine(v engine.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s %s/%s] 支付 ", v.Mode, v.Fiat, v.Crypto)
	if v.PayAmountText == "" {
		b.WriteString("-")
	} else {
		b.WriteString(v.PayAmountText)
		if !v.PayAmountValid {
			b.WriteString("(无效)")
		}
	}
	fmt.Fprintf(&b, " %s", v.PayAsset)

	switch {
	case v.ReceiveAmount != "":
		fmt.Fprintf(&b, " -> %s %s #%d", v.ReceiveDisplay, v.ReceiveAsset, v.QuoteSequence)
	case v.QuoteError != "":
		fmt.Fprintf(&b, " -> 报价失败: %s", v.QuoteError)
	default:
		fmt.Fprintf(&b, " -> %s", v.QuoteState)
	}

	fmt.Fprintf(&b, " | 可用 %s", v.Available)
	switch {
	case v.OrderInFlight:
		b.WriteString(" | 提交中")
	case v.CanExecute:
		b.WriteString(" | 可执行")
	default:
		b.WriteString(" | 不可执行")
	}
	if v.Banner.Kind != engine.BannerNone {
		fmt.Fprintf(&b, " | %s: %s", v.Banner.Kind, v.Banner.Message)
	}
	return b.String()
}

// RenderView 输出完整视图。
func RenderView(v engine.View) string {
	var b strings.Builder
	b.WriteString(StatusLine(v))
	b.WriteByte('\n')

	if v.Rate != "" {
		fmt.Fprintf(&b, "  汇率 %s", v.Rate)
		if v.Fee != "" {
			fmt.Fprintf(&b, "  手续费 %s", v.Fee)
		}
		b.WriteByte('\n')
	}
	if !v.CanExecute && !v.OrderInFlight {
		if reasons := v.ReasonMessages(); len(reasons) > 0 {
			fmt.Fprintf(&b, "  原因: %s\n", strings.Join(reasons, "；"))
		}
	}
	fmt.Fprintf(&b, "  最大可用 %s %s\n", v.MaxAmount, v.PayAsset)

	s := v.Settings
	fmt.Fprintf(&b, "  滑点 %d bps", s.Effective.SlippageBps)
	if s.Custom && !s.CustomValid {
		fmt.Fprintf(&b, "（自定义 %q 无效）", s.CustomText)
	}
	fmt.Fprintf(&b, "  截止 %d 分钟", s.Effective.DeadlineMinutes)
	if !s.DeadlineValid {
		fmt.Fprintf(&b, "（%q 无效）", s.DeadlineText)
	}
	b.WriteByte('\n')

	if len(v.Wallets) > 0 {
		b.WriteString("  钱包:\n")
		for _, w := range v.Wallets {
			frozen := ""
			if w.IsFrozen {
				frozen = " 已冻结"
			}
			fmt.Fprintf(&b, "    %s %s %s%s\n", w.WalletID, w.Amount.String(), w.Asset, frozen)
		}
	}
	if len(v.Trades) > 0 {
		b.WriteString("  最近成交:\n")
		for _, t := range v.Trades {
			fmt.Fprintf(&b, "    %s %s %s %s @ %s %s\n", t.CreatedAt.Format("01-02 15:04"), t.Mode, t.Amount.String(), t.Asset, t.Price.String(), t.Status)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
