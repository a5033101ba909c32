package transport

// ResponseWindow 单次读取的固定窗口大小
const ResponseWindow = 64

// OutcomeKind 传输结果类别
type OutcomeKind int

const (
	// Silent 超时或读取错误，设备没有应答
	Silent OutcomeKind = iota
	// Responded 设备应答（哪怕只读到部分字节）
	Responded
)

func (k OutcomeKind) String() string {
	switch k {
	case Responded:
		return "responded"
	default:
		return "silent"
	}
}

// Outcome 一次发送的结果；Window 是尽力读取的内容，未读部分为零值
type Outcome struct {
	Kind   OutcomeKind
	Window [ResponseWindow]byte
}

// NewResponded 构造应答结果，超出窗口的内容被丢弃
func NewResponded(b []byte) Outcome {
	o := Outcome{Kind: Responded}
	copy(o.Window[:], b)
	return o
}

// NewSilent 构造无应答结果
func NewSilent() Outcome { return Outcome{Kind: Silent} }
