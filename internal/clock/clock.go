package clock

import "time"

// Timer 为可取消的一次性定时器。
type Timer interface {
	Stop() bool
}

// Clock 抽象时间来源，报价防抖与订单时间戳都从这里取时间。
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// Real 返回基于 time 包的 UTC 时钟。
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
