package drive

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Body 报文体：DriveBody 或 TelemetryBody，由 response 标志位选择
type Body interface {
	// Text 逗号分隔的十进制字段，与 SetBodyData 的输入格式一致
	Text() string
	size() int
	put(b []byte)
}

// DriveBody 运动指令体（3字节）
type DriveBody struct {
	Direction uint8 `json:"direction"`
	Duration  uint8 `json:"duration"`
	Speed     uint8 `json:"speed"`
}

func (d DriveBody) Text() string {
	return fmt.Sprintf("%d,%d,%d", d.Direction, d.Duration, d.Speed)
}

func (d DriveBody) size() int { return driveBodySize }

func (d DriveBody) put(b []byte) {
	b[0] = d.Direction
	b[1] = d.Duration
	b[2] = d.Speed
}

func readDriveBody(b []byte) DriveBody {
	return DriveBody{Direction: b[0], Duration: b[1], Speed: b[2]}
}

// TelemetryBody 遥测体（9字节）
type TelemetryBody struct {
	LastPacketCounter uint16 `json:"last_packet_counter"`
	CurrentGrade      uint16 `json:"current_grade"`
	HitCount          uint16 `json:"hit_count"`
	LastCommand       uint8  `json:"last_command"`
	LastCommandValue  uint8  `json:"last_command_value"`
	LastCommandSpeed  uint8  `json:"last_command_speed"`
}

func (t TelemetryBody) Text() string {
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d",
		t.LastPacketCounter, t.CurrentGrade, t.HitCount,
		t.LastCommand, t.LastCommandValue, t.LastCommandSpeed)
}

func (t TelemetryBody) size() int { return telemetryBodySize }

func (t TelemetryBody) put(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], t.LastPacketCounter)
	binary.LittleEndian.PutUint16(b[2:4], t.CurrentGrade)
	binary.LittleEndian.PutUint16(b[4:6], t.HitCount)
	b[6] = t.LastCommand
	b[7] = t.LastCommandValue
	b[8] = t.LastCommandSpeed
}

// IsZero 全部字段为0时，遥测与"无报文体"无法区分
func (t TelemetryBody) IsZero() bool { return t == TelemetryBody{} }

func readTelemetryBody(b []byte) TelemetryBody {
	return TelemetryBody{
		LastPacketCounter: binary.LittleEndian.Uint16(b[0:2]),
		CurrentGrade:      binary.LittleEndian.Uint16(b[2:4]),
		HitCount:          binary.LittleEndian.Uint16(b[4:6]),
		LastCommand:       b[6],
		LastCommandValue:  b[7],
		LastCommandSpeed:  b[8],
	}
}

// splitFields 按逗号切分并校验字段数
func splitFields(text string, want int) ([]string, error) {
	parts := strings.Split(strings.TrimSpace(text), ",")
	if len(parts) != want {
		return nil, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedBodyText, want, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

// parseUnsigned 超出位宽的值按模截断，不报错
func parseUnsigned(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an unsigned integer", ErrMalformedBodyText, s)
	}
	return v, nil
}

func parseSigned(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformedBodyText, s)
	}
	return v, nil
}

// ParseDriveText 解析 "direction,duration,speed"，direction/speed 有符号，duration 无符号
func ParseDriveText(text string) (DriveBody, error) {
	f, err := splitFields(text, 3)
	if err != nil {
		return DriveBody{}, err
	}
	dir, err := parseSigned(f[0])
	if err != nil {
		return DriveBody{}, err
	}
	dur, err := parseUnsigned(f[1])
	if err != nil {
		return DriveBody{}, err
	}
	spd, err := parseSigned(f[2])
	if err != nil {
		return DriveBody{}, err
	}
	return DriveBody{Direction: uint8(dir), Duration: uint8(dur), Speed: uint8(spd)}, nil
}

// ParseTelemetryText 解析六个无符号字段：
// lastPacketCounter,currentGrade,hitCount,lastCommand,lastCommandValue,lastCommandSpeed
func ParseTelemetryText(text string) (TelemetryBody, error) {
	f, err := splitFields(text, 6)
	if err != nil {
		return TelemetryBody{}, err
	}
	var v [6]uint64
	for i := range f {
		if v[i], err = parseUnsigned(f[i]); err != nil {
			return TelemetryBody{}, err
		}
	}
	return TelemetryBody{
		LastPacketCounter: uint16(v[0]),
		CurrentGrade:      uint16(v[1]),
		HitCount:          uint16(v[2]),
		LastCommand:       uint8(v[3]),
		LastCommandValue:  uint8(v[4]),
		LastCommandSpeed:  uint8(v[5]),
	}, nil
}
