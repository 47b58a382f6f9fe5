package drive

import "fmt"

// Packet 控制/遥测数据包。
// 同一时刻只有一种报文体有效：response 置位时为 TelemetryBody，否则为 DriveBody。
// 非并发安全，由单一持有者使用。
type Packet struct {
	header    Header
	drive     DriveBody
	telemetry TelemetryBody
	checksum  uint8
}

// New 创建空包：默认读作无报文体的 RESPONSE，长度6
func New() *Packet {
	return &Packet{
		header: Header{Response: true, Length: SleepFrameSize},
	}
}

// Decode 按声明长度从原始字节构造数据包，不校验 checksum。
// size 必须为 6、9 或 15。
func Decode(buf []byte, size int) (*Packet, error) {
	if !validFrameSize(size) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFrameSize, size)
	}
	if len(buf) < size {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrShortBuffer, len(buf), size)
	}
	p := &Packet{header: readHeader(buf)}
	switch size {
	case DriveFrameSize:
		p.drive = readDriveBody(buf[HeaderSize:])
	case TelemetryFrameSize:
		p.telemetry = readTelemetryBody(buf[HeaderSize:])
	}
	p.checksum = buf[size-1]
	return p, nil
}

// SetCommandType 清空全部标志位与两种报文体后置位对应标志。
// 之前写入的报文体数据会丢失，需在此之后再调用 SetBodyData。
func (p *Packet) SetCommandType(t CommandType) {
	p.header.Drive = false
	p.header.Response = false
	p.header.Sleep = false
	p.header.Ack = false
	p.drive = DriveBody{}
	p.telemetry = TelemetryBody{}

	switch t {
	case Drive:
		p.header.Drive = true
	case Sleep:
		p.header.Sleep = true
	case Response:
		p.header.Response = true
	}
}

// CommandType 优先级 drive > sleep > response；无标志位时回退为 Drive
func (p *Packet) CommandType() CommandType {
	switch {
	case p.header.Drive:
		return Drive
	case p.header.Sleep:
		return Sleep
	case p.header.Response:
		return Response
	default:
		return Drive
	}
}

// SetBodyData 按当前 response 标志解析文本报文体。
// 格式错误时返回 ErrMalformedBodyText，原报文体保持不变。
func (p *Packet) SetBodyData(text string) error {
	if p.header.Response {
		t, err := ParseTelemetryText(text)
		if err != nil {
			return err
		}
		p.telemetry = t
		return nil
	}
	d, err := ParseDriveText(text)
	if err != nil {
		return err
	}
	p.drive = d
	return nil
}

// SetDriveBody 直接写入运动指令体
func (p *Packet) SetDriveBody(d DriveBody) { p.drive = d }

// SetTelemetryBody 直接写入遥测体
func (p *Packet) SetTelemetryBody(t TelemetryBody) { p.telemetry = t }

// Body 返回当前有效的报文体
func (p *Packet) Body() Body {
	if p.header.Response {
		return p.telemetry
	}
	return p.drive
}

// DriveBody 返回运动指令体
func (p *Packet) DriveBody() DriveBody { return p.drive }

// TelemetryBody 返回遥测体
func (p *Packet) TelemetryBody() TelemetryBody { return p.telemetry }

// BodyText 当前有效报文体的文本形式
func (p *Packet) BodyText() string { return p.Body().Text() }

func (p *Packet) Ack() bool { return p.header.Ack }

func (p *Packet) SetAck(ack bool) { p.header.Ack = ack }

func (p *Packet) SetPacketCount(n uint16) { p.header.Seq = n }

func (p *Packet) PacketCount() uint16 { return p.header.Seq }

// Header 返回报文头副本
func (p *Packet) Header() Header { return p.header }

func (p *Packet) Checksum() uint8 { return p.checksum }

// Length 按标志位与报文体推导帧长：
//  1. response 置位：遥测任一字段非0为15，否则为6
//  2. drive 置位：9
//  3. 其它：6
//
// 全0遥测与"无报文体"无法区分。
func (p *Packet) Length() int {
	if p.header.Response {
		if !p.telemetry.IsZero() {
			return TelemetryFrameSize
		}
		return SleepFrameSize
	}
	if p.header.Drive {
		return DriveFrameSize
	}
	return SleepFrameSize
}

// encode 按帧长 n 写入 header 与报文体（不含校验字节），b 至少 n-1 字节
func (p *Packet) encode(b []byte, n int) {
	putHeader(b, p.header)
	switch n {
	case DriveFrameSize:
		p.drive.put(b[HeaderSize:])
	case TelemetryFrameSize:
		p.telemetry.put(b[HeaderSize:])
	}
}

// ComputeChecksum 重新序列化 header+报文体并计算校验值。
// 字段修改后不会自动同步，Serialize 前会调用一次。
func (p *Packet) ComputeChecksum() {
	n := p.Length()
	scratch := make([]byte, n-1)
	p.encode(scratch, n)
	p.checksum = ChecksumOf(scratch)
}

// VerifyChecksum 对 buf 前 Length()-1 字节重算校验值并与 buf[Length()-1] 比较。
// 与包内保存的 checksum 字段无关。
func (p *Packet) VerifyChecksum(buf []byte, size int) bool {
	n := p.Length()
	if size < n || len(buf) < n {
		return false
	}
	return ChecksumOf(buf[:n-1]) == buf[n-1]
}

// Serialize 生成完整帧，返回的切片归调用方所有
func (p *Packet) Serialize() ([]byte, error) {
	n := p.Length()
	if !validFrameSize(n) {
		return nil, fmt.Errorf("%w: %d", ErrLengthInvariant, n)
	}
	p.header.Length = uint16(n)
	p.ComputeChecksum()

	out := make([]byte, n)
	p.encode(out, n)
	out[n-1] = p.checksum
	return out, nil
}

func (p *Packet) String() string {
	return fmt.Sprintf("%s seq=%d ack=%t len=%d body=%s",
		p.CommandType(), p.header.Seq, p.header.Ack, p.Length(), p.BodyText())
}
