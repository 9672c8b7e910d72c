package collector

import "time"

// Delayer 请求间隔策略，用于对外部数据源限速
type Delayer interface {
	Wait()
}

// SleepDelayer 固定间隔限速
type SleepDelayer struct {
	Interval time.Duration
}

// Wait 阻塞一个固定间隔
func (d SleepDelayer) Wait() {
	if d.Interval > 0 {
		time.Sleep(d.Interval)
	}
}

// NoDelay 不限速，测试用
type NoDelay struct{}

// Wait 立即返回
func (NoDelay) Wait() {}
