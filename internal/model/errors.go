package model

import "errors"

// 错误类型：调用方通过 errors.Is 判定，桥接层据此生成统一的失败响应。
var (
	ErrBusy              = errors.New("采集任务正在进行中")
	ErrWrongPage         = errors.New("当前页面不是用户主页")
	ErrNoCreatorData     = errors.New("无法提取达人信息，请确保在用户主页")
	ErrBridgeUnavailable = errors.New("无法与页面通信")
	ErrStorage           = errors.New("存储读写失败")
	// ErrParse 仅在挖掘内嵌 JSON 时内部使用，不向外传播。
	ErrParse = errors.New("内嵌数据解析失败")
)
