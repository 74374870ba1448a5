package xmetrics

import "errors"

var (
	// ErrInstrument 表示创建 OTel 指标仪器或注册回调失败。
	ErrInstrument = errors.New("xmetrics: create instrument failed")

	// ErrNilUsageFunc 表示 RegisterUsage 的采集函数为 nil。
	ErrNilUsageFunc = errors.New("xmetrics: usage func is nil")
)
