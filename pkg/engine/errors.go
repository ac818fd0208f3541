package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrReleased 表示使用了已释放的句柄，或桥接器已关闭
	//
	// 这是编程错误：组件注销后其句柄即视为失效，绝不能再次使用。
	ErrReleased = errors.New("engine: handle released")

	// ErrMissingFunction 表示规则程序没有定义某个必需函数
	ErrMissingFunction = errors.New("engine: function not defined")

	// ErrNoGame 表示在 Initialize/Deserialize 之前访问了游戏对象
	ErrNoGame = errors.New("engine: no game loaded")

	// ErrNoHistory 表示历史记录为空，无法撤销
	ErrNoHistory = errors.New("engine: history is empty")
)

// EngineFault 描述规则程序中必需函数（init、serialize、deserialize、split、layout）
// 缺失或执行失败。它对当前对局是致命的。
type EngineFault struct {
	Func string
	Err  error
}

func (e *EngineFault) Error() string {
	return fmt.Sprintf("engine: rule function %s: %v", e.Func, e.Err)
}

func (e *EngineFault) Unwrap() error {
	return e.Err
}
