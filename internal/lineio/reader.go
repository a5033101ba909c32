// Package lineio 逐行读取任意长度的文本，内存占用有上限。
package lineio

import (
	"bufio"
	"errors"
	"io"
)

// Reader 按 '\n' 切分输入，去掉行尾的 "\n" 与 "\r\n"。
// 超过 limit 的行只保留前 limit 字节，其余部分被丢弃并标记为截断。
type Reader struct {
	br    *bufio.Reader
	limit int
	buf   []byte
}

// NewReader 创建行读取器；limit <= 0 时使用 bufio 默认缓冲大小
func NewReader(r io.Reader, limit int) *Reader {
	if limit <= 0 {
		limit = 4096
	}
	return &Reader{br: bufio.NewReader(r), limit: limit}
}

// Next 返回下一行及是否被截断；读完后返回 io.EOF。
// 返回的切片在下一次调用前有效。
func (r *Reader) Next() (line []byte, truncated bool, err error) {
	r.buf = r.buf[:0]
	seen := false
	for {
		frag, err := r.br.ReadSlice('\n')
		if len(frag) > 0 {
			seen = true
		}
		if err == nil {
			frag = frag[:len(frag)-1]
		}
		if room := r.limit - len(r.buf); len(frag) > room {
			r.buf = append(r.buf, frag[:room]...)
			truncated = true
		} else {
			r.buf = append(r.buf, frag...)
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil, errors.Is(err, io.EOF) && seen:
			return trimCR(r.buf), truncated, nil
		default:
			return nil, false, err
		}
	}
}

func trimCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}
