package drive

import (
	"encoding/binary"
	"strings"
)

// 帧布局（多字节整数均为小端）：
// seq[2] | flags[1] | lenLE[2] | body[0/3/9] | checksum[1]
// flags: bit7=drive bit6=response bit5=sleep bit4=ack bit3-0=reserved(恒为0)
const (
	HeaderSize         = 5
	SleepFrameSize     = 6  // header + checksum，SLEEP 或无遥测的 RESPONSE
	DriveFrameSize     = 9  // header + drivebody(3) + checksum
	TelemetryFrameSize = 15 // header + telemetrybody(9) + checksum

	driveBodySize     = 3
	telemetryBodySize = 9
)

const (
	flagDrive    byte = 0x80
	flagResponse byte = 0x40
	flagSleep    byte = 0x20
	flagAck      byte = 0x10
	reservedMask byte = 0x0F
)

// 方向码（与设备固件约定一致）
const (
	DirForward  = 1
	DirBackward = 2
	DirLeft     = 3
	DirRight    = 4
)

// CommandType 报文逻辑类型
type CommandType int

const (
	Drive CommandType = iota
	Sleep
	Response
)

func (c CommandType) String() string {
	switch c {
	case Drive:
		return "DRIVE"
	case Sleep:
		return "SLEEP"
	case Response:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// ParseCommandType 将名称（大小写不敏感）转为 CommandType
func ParseCommandType(s string) (CommandType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DRIVE":
		return Drive, true
	case "SLEEP":
		return Sleep, true
	case "RESPONSE":
		return Response, true
	}
	return Drive, false
}

// Header 5 字节报文头
type Header struct {
	Seq      uint16
	Drive    bool
	Response bool
	Sleep    bool
	Ack      bool
	Reserved uint8 // 低4位，输出时恒为0
	Length   uint16
}

// flagsByte 编码 flags 字节；reserved 位不输出
func (h Header) flagsByte() byte {
	var b byte
	if h.Drive {
		b |= flagDrive
	}
	if h.Response {
		b |= flagResponse
	}
	if h.Sleep {
		b |= flagSleep
	}
	if h.Ack {
		b |= flagAck
	}
	return b
}

func putHeader(b []byte, h Header) {
	binary.LittleEndian.PutUint16(b[0:2], h.Seq)
	b[2] = h.flagsByte()
	binary.LittleEndian.PutUint16(b[3:5], h.Length)
}

func readHeader(b []byte) Header {
	f := b[2]
	return Header{
		Seq:      binary.LittleEndian.Uint16(b[0:2]),
		Drive:    f&flagDrive != 0,
		Response: f&flagResponse != 0,
		Sleep:    f&flagSleep != 0,
		Ack:      f&flagAck != 0,
		Reserved: f & reservedMask,
		Length:   binary.LittleEndian.Uint16(b[3:5]),
	}
}

// validFrameSize 仅 6/9/15 为合法帧长
func validFrameSize(n int) bool {
	return n == SleepFrameSize || n == DriveFrameSize || n == TelemetryFrameSize
}
