package drive

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	// ErrInvalidFrameSize 帧长不是 6/9/15
	ErrInvalidFrameSize = errors.New("invalid frame size")
	// ErrShortBuffer 缓冲区不足声明长度
	ErrShortBuffer = errors.New("buffer shorter than declared size")
	// ErrMalformedBodyText 报文体文本字段数或格式错误
	ErrMalformedBodyText = errors.New("malformed body text")
	// ErrChecksumMismatch checksum校验失败
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrBadLength 报文头长度字段与实际帧长不一致
	ErrBadLength = errors.New("bad length")
	// ErrLengthInvariant 推导出的帧长非法，属于程序逻辑错误
	ErrLengthInvariant = errors.New("length invariant violated")
)

// ChecksumOf 计算校验值：所有字节中置1位的个数，取低8位。
// 注意这不是多项式CRC，只是位计数和。
func ChecksumOf(data []byte) uint8 {
	var n int
	for _, b := range data {
		n += bits.OnesCount8(b)
	}
	return uint8(n & 0xFF)
}

// VerifyFrameChecksum 校验完整帧（末字节为校验值）
func VerifyFrameChecksum(frame []byte) error {
	if len(frame) < 1 {
		return fmt.Errorf("%w: checksum needs at least 1 byte", ErrShortBuffer)
	}
	pos := len(frame) - 1
	if ChecksumOf(frame[:pos]) != frame[pos] {
		return ErrChecksumMismatch
	}
	return nil
}
