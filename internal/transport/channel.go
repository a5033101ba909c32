package transport

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/atfuzz/internal/config"
)

var (
	// ErrDeviceNotFound 枚举的串口中没有匹配的设备
	ErrDeviceNotFound = errors.New("device not found")
	// ErrOpenFailed 驱动或权限原因导致打开失败
	ErrOpenFailed = errors.New("open device failed")
)

const (
	// DefaultBaudRate 默认波特率
	DefaultBaudRate = 115200
	// DefaultReadTimeout 默认读超时
	DefaultReadTimeout = 10 * time.Second
)

// Channel 发送命令并等待一次应答
type Channel interface {
	SendAndAwait(cmd []byte) Outcome
}

// Port 串口的最小读写能力
type Port interface {
	io.ReadWriteCloser
}

// 便于测试替换
var (
	listPorts = serial.GetPortsList
	openPort  = func(name string, mode *serial.Mode, timeout time.Duration) (Port, error) {
		p, err := serial.Open(name, mode)
		if err != nil {
			return nil, err
		}
		if err := p.SetReadTimeout(timeout); err != nil {
			_ = p.Close()
			return nil, err
		}
		return p, nil
	}
)

// SerialChannel 绑定到单个串口设备的传输通道，进程生命周期内持有
type SerialChannel struct {
	name    string
	port    Port
	timeout time.Duration
	log     *zap.Logger
	bytesTx atomic.Uint64
	bytesRx atomic.Uint64
}

// Open 在枚举的串口中查找 name 并以配置的波特率与读超时打开
func Open(cfg cfgpkg.DeviceConfig, log *zap.Logger) (*SerialChannel, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate ports: %v", ErrDeviceNotFound, err)
	}
	if !slices.Contains(ports, cfg.Name) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, cfg.Name)
	}

	baud := cfg.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	p, err := openPort(cfg.Name, &serial.Mode{BaudRate: baud}, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenFailed, cfg.Name, err)
	}
	log.Info("serial port opened",
		zap.String("device", cfg.Name),
		zap.Int("baud", baud),
		zap.Duration("read_timeout", timeout))
	return NewSerialChannel(cfg.Name, p, timeout, log), nil
}

// NewSerialChannel 使用已打开的端口构造通道
func NewSerialChannel(name string, p Port, timeout time.Duration, log *zap.Logger) *SerialChannel {
	if log == nil {
		log = zap.NewNop()
	}
	return &SerialChannel{name: name, port: p, timeout: timeout, log: log}
}

// Name 返回设备名
func (c *SerialChannel) Name() string { return c.name }

// Timeout 返回读超时
func (c *SerialChannel) Timeout() time.Duration { return c.timeout }

// SendAndAwait 写出命令与结束符 \r，然后进行一次最多 64 字节的读取。
// 写失败不会中止调用；读错误或超时（读到 0 字节）视为 Silent。
func (c *SerialChannel) SendAndAwait(cmd []byte) Outcome {
	frame := make([]byte, 0, len(cmd)+1)
	frame = append(frame, cmd...)
	frame = append(frame, '\r')

	// 写失败不区分，沿用 best-effort 语义
	if n, err := c.port.Write(frame); err != nil {
		c.log.Debug("serial write failed", zap.String("device", c.name), zap.Int("written", n), zap.Error(err))
	} else {
		c.bytesTx.Add(uint64(n))
	}

	var buf [ResponseWindow]byte
	n, err := c.port.Read(buf[:])
	if err != nil || n == 0 {
		// go.bug.st/serial 超时返回 (0, nil)
		if err != nil {
			c.log.Debug("serial read failed", zap.String("device", c.name), zap.Error(err))
		}
		return NewSilent()
	}
	c.bytesRx.Add(uint64(n))
	return NewResponded(buf[:n])
}

// Stats 返回累计收发字节数
func (c *SerialChannel) Stats() (tx, rx uint64) { return c.bytesTx.Load(), c.bytesRx.Load() }

// Close 关闭串口
func (c *SerialChannel) Close() error {
	if c.port == nil {
		return nil
	}
	return c.port.Close()
}
