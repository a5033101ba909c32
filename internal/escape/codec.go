// Package escape 实现崩溃日志使用的可打印转义编解码。
//
// 编码规则：0x20-0x7E 的可打印 ASCII 原样输出（反斜杠与引号除外）；
// \t \r \n \\ \' \" 使用短转义；其余字节输出为 \xNN（小写十六进制）。
// 解码额外接受 \0 以及大写十六进制，便于读取其他工具写出的行。
package escape

import (
	"errors"
	"fmt"
)

const hexDigits = "0123456789abcdef"

// ErrDecode 转义文本格式错误
var ErrDecode = errors.New("malformed escape sequence")

// DecodeError 携带出错位置的解码错误
type DecodeError struct {
	Offset int    // 出错的反斜杠在输入中的偏移
	Reason string // 简要原因
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode escaped text at offset %d: %s", e.Offset, e.Reason)
}

// Is 使 errors.Is(err, ErrDecode) 成立
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Escape 将任意字节编码为单行可打印文本
func Escape(b []byte) string {
	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		switch c {
		case '\t':
			out = append(out, '\\', 't')
		case '\r':
			out = append(out, '\\', 'r')
		case '\n':
			out = append(out, '\\', 'n')
		case '\\', '\'', '"':
			out = append(out, '\\', c)
		default:
			if c >= 0x20 && c <= 0x7e {
				out = append(out, c)
			} else {
				out = append(out, '\\', 'x', hexDigits[c>>4], hexDigits[c&0x0f])
			}
		}
	}
	return string(out)
}

// Unescape 是 Escape 的逆运算；对任意 b 满足 Unescape(Escape(b)) == b
func Unescape(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		if i+1 >= len(s) {
			return nil, &DecodeError{Offset: i, Reason: "trailing backslash"}
		}
		start := i
		i++
		switch s[i] {
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case 'n':
			out = append(out, '\n')
		case '0':
			out = append(out, 0)
		case '\\', '\'', '"':
			out = append(out, s[i])
		case 'x':
			if i+2 >= len(s) {
				return nil, &DecodeError{Offset: start, Reason: "truncated \\x escape"}
			}
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if !ok1 || !ok2 {
				return nil, &DecodeError{Offset: start, Reason: fmt.Sprintf("invalid hex digits %q", s[i+1:i+3])}
			}
			out = append(out, hi<<4|lo)
			i += 2
		default:
			return nil, &DecodeError{Offset: start, Reason: fmt.Sprintf("unknown escape \\%c", s[i])}
		}
	}
	return out, nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
