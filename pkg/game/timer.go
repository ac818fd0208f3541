package game

import "time"

// Timer 记录一局的游戏时长
//
// 胜负确定后停止；撤销后继续计时
type Timer struct {
	now     func() time.Time
	started time.Time
	elapsed time.Duration
	running bool
}

// NewTimer 创建计时器；now 为 nil 时使用 time.Now
func NewTimer(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now}
}

// Start 开始或继续计时
func (t *Timer) Start() {
	if t.running {
		return
	}
	t.started = t.now()
	t.running = true
}

// Stop 暂停计时，已经过的时间保留
func (t *Timer) Stop() {
	if !t.running {
		return
	}
	t.elapsed += t.now().Sub(t.started)
	t.running = false
}

// Reset 停止计时并把已用时间设为 elapsed
func (t *Timer) Reset(elapsed time.Duration) {
	t.running = false
	t.elapsed = elapsed
}

// Running 判断是否正在计时
func (t *Timer) Running() bool { return t.running }

// Elapsed 返回累计时长
func (t *Timer) Elapsed() time.Duration {
	if t.running {
		return t.elapsed + t.now().Sub(t.started)
	}
	return t.elapsed
}
