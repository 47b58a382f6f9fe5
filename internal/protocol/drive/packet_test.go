package drive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bitSum 测试用的独立实现：逐位累加
func bitSum(b []byte) uint8 {
	n := 0
	for _, v := range b {
		for i := 0; i < 8; i++ {
			n += int(v>>i) & 1
		}
	}
	return uint8(n)
}

func TestNew_Defaults(t *testing.T) {
	p := New()
	assert.Equal(t, Response, p.CommandType())
	assert.Equal(t, SleepFrameSize, p.Length())
	assert.Equal(t, uint16(0), p.PacketCount())
	assert.False(t, p.Ack())
	assert.Equal(t, uint8(0), p.Checksum())
	assert.Equal(t, "0,0,0,0,0,0", p.BodyText())
}

func TestDecode_Drive(t *testing.T) {
	raw := []byte{1, 0, 0x80, 9, 0, 1, 10, 90, 0}
	raw[8] = bitSum(raw[:8])

	p, err := Decode(raw, DriveFrameSize)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), p.PacketCount())
	assert.Equal(t, Drive, p.CommandType())
	assert.Equal(t, DriveFrameSize, p.Length())
	assert.Equal(t, "1,10,90", p.BodyText())
	assert.Equal(t, raw[8], p.Checksum())
	assert.True(t, p.VerifyChecksum(raw, len(raw)))
}

func TestDecode_Telemetry(t *testing.T) {
	raw := []byte{3, 0, 0x40, 15, 0, 5, 0, 95, 0, 3, 0, 1, 10, 80, 0}
	raw[14] = bitSum(raw[:14])

	p, err := Decode(raw, TelemetryFrameSize)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), p.PacketCount())
	assert.Equal(t, Response, p.CommandType())
	assert.Equal(t, TelemetryFrameSize, p.Length())
	assert.Equal(t, "5,95,3,1,10,80", p.BodyText())
	assert.Equal(t, TelemetryBody{
		LastPacketCounter: 5, CurrentGrade: 95, HitCount: 3,
		LastCommand: 1, LastCommandValue: 10, LastCommandSpeed: 80,
	}, p.TelemetryBody())
}

// 无标志位的帧回退为 DRIVE（沿用设备端既有行为）
func TestDecode_NoFlagsFallsBackToDrive(t *testing.T) {
	raw := []byte{2, 0, 0, 6, 0, 0}
	raw[5] = bitSum(raw[:5])

	p, err := Decode(raw, SleepFrameSize)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), p.PacketCount())
	assert.Equal(t, Drive, p.CommandType())
	assert.Equal(t, SleepFrameSize, p.Length())
}

func TestDecode_InvalidSize(t *testing.T) {
	for _, size := range []int{0, 5, 7, 8, 10, 14, 16} {
		_, err := Decode(make([]byte, 20), size)
		assert.ErrorIs(t, err, ErrInvalidFrameSize, "size=%d", size)
	}
}

func TestDecode_ShortBuffer(t *testing.T) {
	_, err := Decode([]byte{1, 0, 0x80}, DriveFrameSize)
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestSetCommandType(t *testing.T) {
	p := New()
	for _, c := range []CommandType{Drive, Response, Drive, Response, Sleep} {
		p.SetCommandType(c)
		assert.Equal(t, c, p.CommandType())
	}
}

func TestSetCommandType_ClearsBodyAndAck(t *testing.T) {
	p := New()
	p.SetCommandType(Drive)
	require.NoError(t, p.SetBodyData("1,10,90"))
	p.SetAck(true)

	p.SetCommandType(Drive)
	assert.Equal(t, "0,0,0", p.BodyText())
	assert.False(t, p.Ack())

	p.SetCommandType(Response)
	require.NoError(t, p.SetBodyData("5,95,3,1,10,80"))
	p.SetCommandType(Response)
	assert.Equal(t, SleepFrameSize, p.Length())
}

// DRIVE 状态下允许直接切换到 SLEEP
func TestSetCommandType_DriveToSleepUnguarded(t *testing.T) {
	p := New()
	p.SetCommandType(Drive)
	p.SetCommandType(Sleep)
	assert.Equal(t, Sleep, p.CommandType())
	assert.Equal(t, SleepFrameSize, p.Length())
}

func TestSetBodyData_Drive(t *testing.T) {
	p := New()
	p.SetCommandType(Drive)
	require.NoError(t, p.SetBodyData("1,10,90"))
	assert.Equal(t, "1,10,90", p.BodyText())
	assert.Equal(t, DriveBody{Direction: 1, Duration: 10, Speed: 90}, p.Body())
}

func TestSetBodyData_Telemetry(t *testing.T) {
	p := New()
	p.SetCommandType(Response)
	require.NoError(t, p.SetBodyData("5,95,3,1,10,80"))
	assert.Equal(t, "5,95,3,1,10,80", p.BodyText())
}

func TestSetBodyData_Truncates(t *testing.T) {
	p := New()
	p.SetCommandType(Drive)
	require.NoError(t, p.SetBodyData("-1,256,-2"))
	assert.Equal(t, "255,0,254", p.BodyText())

	p.SetCommandType(Response)
	require.NoError(t, p.SetBodyData("70000,65535,65536,300,255,511"))
	assert.Equal(t, "4464,65535,0,44,255,255", p.BodyText())
}

func TestSetBodyData_MalformedIsNoop(t *testing.T) {
	cases := []struct {
		name string
		cmd  CommandType
		good string
		bad  []string
	}{
		{"drive", Drive, "1,10,90", []string{"1,2", "1,2,3,4", "", "a,b,c", "1,-10,90"}},
		{"telemetry", Response, "5,95,3,1,10,80", []string{"1,2,3", "1,2,3,4,5,6,7", "1,2,3,4,5,-6", "x,2,3,4,5,6"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := New()
			p.SetCommandType(tc.cmd)
			require.NoError(t, p.SetBodyData(tc.good))
			for _, in := range tc.bad {
				err := p.SetBodyData(in)
				assert.True(t, errors.Is(err, ErrMalformedBodyText), "input %q", in)
				assert.Equal(t, tc.good, p.BodyText(), "input %q", in)
			}
		})
	}
}

func TestLength_Inference(t *testing.T) {
	p := New()
	p.SetCommandType(Response)
	assert.Equal(t, SleepFrameSize, p.Length())

	p.SetTelemetryBody(TelemetryBody{LastCommandSpeed: 1})
	assert.Equal(t, TelemetryFrameSize, p.Length())

	p.SetCommandType(Drive)
	assert.Equal(t, DriveFrameSize, p.Length())

	p.SetCommandType(Sleep)
	assert.Equal(t, SleepFrameSize, p.Length())
}

func TestLength_EachTelemetryFieldCounts(t *testing.T) {
	bodies := []TelemetryBody{
		{LastPacketCounter: 1}, {CurrentGrade: 1}, {HitCount: 1},
		{LastCommand: 1}, {LastCommandValue: 1}, {LastCommandSpeed: 1},
	}
	for _, b := range bodies {
		p := New()
		p.SetTelemetryBody(b)
		assert.Equal(t, TelemetryFrameSize, p.Length(), "%+v", b)
	}
}

func TestChecksum_KnownBytes(t *testing.T) {
	payload := []byte{1, 0, 0x80, 9, 0, 1, 10, 90}
	assert.Equal(t, uint8(11), ChecksumOf(payload))
	assert.Equal(t, bitSum(payload), ChecksumOf(payload))

	raw := append(append([]byte{}, payload...), 11)
	p, err := Decode(raw, DriveFrameSize)
	require.NoError(t, err)
	assert.True(t, p.VerifyChecksum(raw, DriveFrameSize))
	assert.NoError(t, VerifyFrameChecksum(raw))
}

func TestChecksum_SingleBitFlipsDetected(t *testing.T) {
	raw := []byte{1, 0, 0x80, 9, 0, 1, 10, 90, 11}
	p, err := Decode(raw, DriveFrameSize)
	require.NoError(t, err)

	flips := []struct{ idx, bit int }{{0, 3}, {5, 0}, {7, 6}, {6, 1}, {1, 7}}
	for _, f := range flips {
		bad := append([]byte{}, raw...)
		bad[f.idx] ^= 1 << f.bit
		assert.False(t, p.VerifyChecksum(bad, len(bad)), "flip byte %d bit %d", f.idx, f.bit)
		assert.ErrorIs(t, VerifyFrameChecksum(bad), ErrChecksumMismatch)
	}
}

func TestVerifyFrameChecksum_Empty(t *testing.T) {
	assert.ErrorIs(t, VerifyFrameChecksum(nil), ErrShortBuffer)
	assert.ErrorIs(t, VerifyFrameChecksum([]byte{}), ErrShortBuffer)
}

func TestVerifyChecksum_SizeTooSmall(t *testing.T) {
	p := NewDrive(1, DriveBody{Direction: 1, Duration: 10, Speed: 90})
	buf, err := p.Serialize()
	require.NoError(t, err)
	assert.False(t, p.VerifyChecksum(buf, DriveFrameSize-1))
	assert.False(t, p.VerifyChecksum(buf[:4], DriveFrameSize))
}

// VerifyChecksum 只看缓冲区，不看包内 checksum 字段
func TestVerifyChecksum_IgnoresStoredChecksum(t *testing.T) {
	p := New()
	p.SetCommandType(Drive)
	require.NoError(t, p.SetBodyData("1,10,90"))
	assert.Equal(t, uint8(0), p.Checksum())
	assert.False(t, p.VerifyChecksum([]byte{1, 0, 0x80, 9, 0, 1, 10, 90, 10}, 9))
	assert.True(t, p.VerifyChecksum([]byte{1, 0, 0x80, 9, 0, 1, 10, 90, 11}, 9))
}

func TestSerialize_DriveScenario(t *testing.T) {
	p := New()
	p.SetPacketCount(1)
	p.SetCommandType(Drive)
	require.NoError(t, p.SetBodyData("1,10,90"))

	buf, err := p.Serialize()
	require.NoError(t, err)
	require.Len(t, buf, DriveFrameSize)
	assert.Equal(t, []byte{1, 0}, buf[0:2])
	assert.Equal(t, byte(0x80), buf[2])
	assert.Equal(t, []byte{9, 0}, buf[3:5])
	assert.Equal(t, []byte{1, 10, 90}, buf[5:8])
	assert.Equal(t, []byte{1, 0, 0x80, 9, 0, 1, 10, 90, 11}, buf)
	assert.True(t, p.VerifyChecksum(buf, DriveFrameSize))
	assert.Equal(t, uint8(11), p.Checksum())
	assert.Equal(t, uint16(DriveFrameSize), p.Header().Length)
}

func TestSerialize_Sleep(t *testing.T) {
	p := NewSleep(2)
	buf, err := p.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 0x20, 6, 0, 4}, buf)
	assert.True(t, p.VerifyChecksum(buf, p.Length()))
}

func TestSerialize_Telemetry(t *testing.T) {
	p := New()
	p.SetPacketCount(3)
	p.SetCommandType(Response)
	require.NoError(t, p.SetBodyData("5,95,3,1,10,80"))

	buf, err := p.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 0, 0x40, 15, 0, 5, 0, 95, 0, 3, 0, 1, 10, 80, 22}, buf)
	assert.True(t, p.VerifyChecksum(buf, p.Length()))
}

func TestSerialize_SequenceWraps(t *testing.T) {
	p := NewSleep(0xFFFF)
	buf, err := p.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF}, buf[:2])

	p.SetPacketCount(p.PacketCount() + 1)
	assert.Equal(t, uint16(0), p.PacketCount())
}

func TestSerialize_ClearsReservedBits(t *testing.T) {
	raw := []byte{7, 0, 0x2F, 6, 0, 0}
	raw[5] = bitSum(raw[:5])
	p, err := Decode(raw, SleepFrameSize)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x0F), p.Header().Reserved)

	buf, err := p.Serialize()
	require.NoError(t, err)
	assert.Equal(t, byte(0x20), buf[2])
	assert.True(t, p.VerifyChecksum(buf, len(buf)))
}

func TestSerialize_AckBit(t *testing.T) {
	p := NewResponse(9, true, TelemetryBody{})
	buf, err := p.Serialize()
	require.NoError(t, err)
	assert.Equal(t, byte(0x50), buf[2])
	assert.Len(t, buf, SleepFrameSize)
}

// 返回的缓冲区归调用方所有，后续修改数据包不影响它
func TestSerialize_BufferOwnedByCaller(t *testing.T) {
	p := NewDrive(1, DriveBody{Direction: 1, Duration: 10, Speed: 90})
	buf, err := p.Serialize()
	require.NoError(t, err)
	snapshot := append([]byte{}, buf...)

	p.SetDriveBody(DriveBody{Direction: 4})
	_, err = p.Serialize()
	require.NoError(t, err)
	assert.Equal(t, snapshot, buf)
}

func TestRoundTrip(t *testing.T) {
	packets := map[string]*Packet{
		"drive":         NewDrive(1, DriveBody{Direction: DirLeft, Duration: 10, Speed: 90}),
		"sleep":         NewSleep(2),
		"telemetry":     NewResponse(3, false, TelemetryBody{LastPacketCounter: 5, CurrentGrade: 95, HitCount: 3, LastCommand: 1, LastCommandValue: 10, LastCommandSpeed: 80}),
		"bare response": NewResponse(4, true, TelemetryBody{}),
		"empty":         New(),
	}
	for name, p := range packets {
		t.Run(name, func(t *testing.T) {
			buf, err := p.Serialize()
			require.NoError(t, err)

			got, err := Decode(buf, len(buf))
			require.NoError(t, err)
			assert.Equal(t, p.CommandType(), got.CommandType())
			assert.Equal(t, p.PacketCount(), got.PacketCount())
			assert.Equal(t, p.BodyText(), got.BodyText())
			assert.Equal(t, p.Length(), got.Length())
			assert.Equal(t, p.Ack(), got.Ack())
			assert.Equal(t, p.Checksum(), got.Checksum())
			assert.True(t, got.VerifyChecksum(buf, len(buf)))
		})
	}
}

func TestBuild(t *testing.T) {
	buf, err := Build(Drive, 1, false, "1,10,90")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0x80, 9, 0, 1, 10, 90, 11}, buf)

	_, err = Build(Drive, 1, false, "1,10")
	assert.ErrorIs(t, err, ErrMalformedBodyText)

	buf, err = Build(Sleep, 2, false, "ignored")
	require.NoError(t, err)
	assert.Len(t, buf, SleepFrameSize)
}

func TestParseCommandType(t *testing.T) {
	c, ok := ParseCommandType(" drive ")
	assert.True(t, ok)
	assert.Equal(t, Drive, c)
	c, ok = ParseCommandType("Sleep")
	assert.True(t, ok)
	assert.Equal(t, Sleep, c)
	_, ok = ParseCommandType("reverse")
	assert.False(t, ok)
	assert.Equal(t, "UNKNOWN", CommandType(9).String())
}
