package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	cfgpkg "github.com/taoyao-code/atfuzz/internal/config"
)

// fakePort 记录写入内容并按脚本返回读取结果
type fakePort struct {
	written  []byte
	writeErr error
	reply    []byte
	readErr  error
	closed   bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	return copy(b, p.reply), nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestSendAndAwait_WireFormat(t *testing.T) {
	p := &fakePort{reply: []byte("OK\r\n")}
	ch := NewSerialChannel("/dev/ttyUSB0", p, time.Second, nil)

	out := ch.SendAndAwait([]byte("AT+CGMI"))
	assert.Equal(t, []byte("AT+CGMI\r"), p.written)
	assert.Equal(t, Responded, out.Kind)

	// 部分读取：未读部分保持零值
	var want [ResponseWindow]byte
	copy(want[:], "OK\r\n")
	assert.Equal(t, want, out.Window)

	tx, rx := ch.Stats()
	assert.Equal(t, uint64(8), tx)
	assert.Equal(t, uint64(4), rx)
}

func TestSendAndAwait_FullWindow(t *testing.T) {
	reply := make([]byte, 200)
	for i := range reply {
		reply[i] = byte(i)
	}
	ch := NewSerialChannel("dev", &fakePort{reply: reply}, time.Second, nil)

	out := ch.SendAndAwait([]byte("AT"))
	require.Equal(t, Responded, out.Kind)
	assert.Equal(t, reply[:ResponseWindow], out.Window[:])
}

func TestSendAndAwait_Silent(t *testing.T) {
	t.Run("超时读到0字节", func(t *testing.T) {
		ch := NewSerialChannel("dev", &fakePort{}, time.Second, nil)
		assert.Equal(t, Silent, ch.SendAndAwait([]byte("AT")).Kind)
	})
	t.Run("读取错误", func(t *testing.T) {
		ch := NewSerialChannel("dev", &fakePort{readErr: errors.New("port gone")}, time.Second, nil)
		assert.Equal(t, Silent, ch.SendAndAwait([]byte("AT")).Kind)
	})
}

func TestSendAndAwait_WriteFailureDoesNotAbort(t *testing.T) {
	p := &fakePort{writeErr: errors.New("write failed"), reply: []byte("ERROR")}
	ch := NewSerialChannel("dev", p, time.Second, nil)

	out := ch.SendAndAwait([]byte("AT"))
	assert.Equal(t, Responded, out.Kind)
}

func TestOpen(t *testing.T) {
	origList, origOpen := listPorts, openPort
	t.Cleanup(func() { listPorts, openPort = origList, origOpen })

	listPorts = func() ([]string, error) { return []string{"/dev/ttyS0", "/dev/ttyUSB0"}, nil }

	t.Run("设备不存在", func(t *testing.T) {
		_, err := Open(cfgpkg.DeviceConfig{Name: "/dev/ttyUSB7"}, nil)
		assert.ErrorIs(t, err, ErrDeviceNotFound)
	})

	t.Run("枚举失败", func(t *testing.T) {
		listPorts = func() ([]string, error) { return nil, errors.New("no ports") }
		defer func() { listPorts = func() ([]string, error) { return []string{"/dev/ttyUSB0"}, nil } }()
		_, err := Open(cfgpkg.DeviceConfig{Name: "/dev/ttyUSB0"}, nil)
		assert.ErrorIs(t, err, ErrDeviceNotFound)
	})

	t.Run("打开失败", func(t *testing.T) {
		openPort = func(string, *serial.Mode, time.Duration) (Port, error) {
			return nil, errors.New("permission denied")
		}
		_, err := Open(cfgpkg.DeviceConfig{Name: "/dev/ttyUSB0"}, nil)
		assert.ErrorIs(t, err, ErrOpenFailed)
	})

	t.Run("默认参数", func(t *testing.T) {
		var gotMode *serial.Mode
		var gotTimeout time.Duration
		fp := &fakePort{}
		openPort = func(name string, mode *serial.Mode, timeout time.Duration) (Port, error) {
			gotMode, gotTimeout = mode, timeout
			return fp, nil
		}
		ch, err := Open(cfgpkg.DeviceConfig{Name: "/dev/ttyUSB0"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "/dev/ttyUSB0", ch.Name())
		assert.Equal(t, DefaultBaudRate, gotMode.BaudRate)
		assert.Equal(t, DefaultReadTimeout, gotTimeout)
		assert.Equal(t, DefaultReadTimeout, ch.Timeout())

		require.NoError(t, ch.Close())
		assert.True(t, fp.closed)
	})
}
