// Package oracle 将传输结果映射为存活判定。
//
// 设备应答即认为输入非致命；超时内无任何应答是唯一的崩溃信号。
// 判定之前不做重试，慢速设备与崩溃设备无法区分。
package oracle

import "github.com/taoyao-code/atfuzz/internal/transport"

// Verdict 存活判定
type Verdict int

const (
	Stable Verdict = iota
	Crashed
)

func (v Verdict) String() string {
	if v == Crashed {
		return "crashed"
	}
	return "stable"
}

// Classify 仅依据结果类别判定，不检查应答内容
func Classify(o transport.Outcome) Verdict {
	if o.Kind == transport.Responded {
		return Stable
	}
	return Crashed
}
