package drive

import "encoding/binary"

// Parse 解析一帧（严格校验：帧长、长度字段、checksum）
func Parse(raw []byte) (*Packet, error) {
	p, err := Decode(raw, len(raw))
	if err != nil {
		return nil, err
	}
	if int(p.header.Length) != len(raw) {
		return nil, ErrBadLength
	}
	if err := VerifyFrameChecksum(raw); err != nil {
		return nil, err
	}
	return p, nil
}

// StreamDecoder 处理半包/粘包的流式解码器。
// 帧没有起始魔数，靠长度字段 + 标志位合法性 + checksum 同步。
type StreamDecoder struct {
	buf       []byte
	maxBuffer int

	checksumFailures uint64
	resyncBytes      uint64
}

// NewStreamDecoder 创建流式解码器，maxBuffer 为缓冲上限
func NewStreamDecoder(maxBuffer int) *StreamDecoder {
	if maxBuffer <= 0 {
		maxBuffer = 4096
	}
	return &StreamDecoder{maxBuffer: maxBuffer}
}

// headerLooksValid 粗判：长度字段合法、reserved 为0、最多一个类型位
func headerLooksValid(b []byte) bool {
	if b[2]&reservedMask != 0 {
		return false
	}
	kinds := 0
	for _, f := range []byte{flagDrive, flagResponse, flagSleep} {
		if b[2]&f != 0 {
			kinds++
		}
	}
	if kinds > 1 {
		return false
	}
	return validFrameSize(int(binary.LittleEndian.Uint16(b[3:5])))
}

// Feed 追加数据并尽可能解出多帧
func (d *StreamDecoder) Feed(p []byte) ([]*Packet, error) {
	if len(p) == 0 {
		return nil, nil
	}
	d.buf = append(d.buf, p...)
	if len(d.buf) > d.maxBuffer {
		// 异常数据堆积，只保留尾部一个最大帧的长度
		drop := len(d.buf) - TelemetryFrameSize
		d.resyncBytes += uint64(drop)
		d.buf = d.buf[drop:]
	}
	frames := make([]*Packet, 0, 2)

	for len(d.buf) >= HeaderSize {
		if !headerLooksValid(d.buf) {
			d.skip()
			continue
		}
		total := int(binary.LittleEndian.Uint16(d.buf[3:5]))
		if len(d.buf) < total {
			// 半包，等待更多
			break
		}
		candidate := d.buf[:total]
		if VerifyFrameChecksum(candidate) != nil {
			d.checksumFailures++
			d.skip()
			continue
		}
		pkt, err := Parse(candidate)
		if err != nil {
			d.skip()
			continue
		}
		frames = append(frames, pkt)
		d.buf = d.buf[total:]
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames, nil
}

func (d *StreamDecoder) skip() {
	d.buf = d.buf[1:]
	d.resyncBytes++
}

// Buffered 当前缓存的未解析字节数
func (d *StreamDecoder) Buffered() int { return len(d.buf) }

// ChecksumFailures 累计校验失败次数
func (d *StreamDecoder) ChecksumFailures() uint64 { return d.checksumFailures }

// ResyncBytes 累计为重新同步丢弃的字节数
func (d *StreamDecoder) ResyncBytes() uint64 { return d.resyncBytes }
