package drive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_RoutesByCommandType(t *testing.T) {
	a := NewAdapter()
	var got []CommandType
	a.Register(Drive, func(p *Packet) error { got = append(got, Drive); return nil })
	a.Register(Sleep, func(p *Packet) error { got = append(got, Sleep); return nil })
	a.Register(Response, func(p *Packet) error { got = append(got, Response); return nil })

	var stream []byte
	stream = append(stream, mustFrame(t, NewSleep(1))...)
	stream = append(stream, mustFrame(t, NewResponse(2, true, TelemetryBody{}))...)
	stream = append(stream, mustFrame(t, NewDrive(3, DriveBody{Direction: DirLeft, Duration: 1, Speed: 2}))...)

	require.NoError(t, a.ProcessBytes(stream))
	assert.Equal(t, []CommandType{Sleep, Response, Drive}, got)
}

func TestAdapter_OnParseCountsResults(t *testing.T) {
	a := NewAdapter()
	results := map[string]int{}
	a.SetOnParse(func(r string) { results[r]++ })

	bad := mustFrame(t, NewDrive(1, DriveBody{1, 10, 90}))
	bad[len(bad)-1] ^= 0x01
	good := mustFrame(t, NewDrive(2, DriveBody{1, 10, 90}))

	require.NoError(t, a.ProcessBytes(append(bad, good...)))
	assert.Equal(t, 1, results["ok"])
	assert.Equal(t, 1, results["checksum_error"])
	assert.Equal(t, uint64(1), a.Decoder().ChecksumFailures())
}

func TestAdapter_HandlerErrorPropagates(t *testing.T) {
	a := NewAdapter()
	boom := errors.New("boom")
	a.Register(Sleep, func(p *Packet) error { return boom })
	err := a.ProcessBytes(mustFrame(t, NewSleep(9)))
	assert.ErrorIs(t, err, boom)
}

func TestAdapter_HandlerErrorDoesNotDropLaterFrames(t *testing.T) {
	a := NewAdapter()
	boom := errors.New("boom")
	var routed []uint16
	a.Register(Response, func(p *Packet) error {
		routed = append(routed, p.PacketCount())
		if p.PacketCount() == 1 {
			return boom
		}
		return nil
	})

	var stream []byte
	stream = append(stream, mustFrame(t, NewResponse(1, false, TelemetryBody{HitCount: 1}))...)
	stream = append(stream, mustFrame(t, NewResponse(2, true, TelemetryBody{}))...)

	err := a.ProcessBytes(stream)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []uint16{1, 2}, routed)
	assert.Equal(t, 0, a.Decoder().Buffered())
}

func TestAdapter_UnregisteredIsIgnored(t *testing.T) {
	a := NewAdapter()
	assert.NoError(t, a.ProcessBytes(mustFrame(t, NewSleep(9))))
}

func TestAdapter_Sniff(t *testing.T) {
	a := NewAdapter()
	assert.True(t, a.Sniff(mustFrame(t, NewDrive(1, DriveBody{}))))
	assert.True(t, a.Sniff(mustFrame(t, NewSleep(1))[:HeaderSize]))
	assert.False(t, a.Sniff([]byte{1, 0, 0x80}))
	assert.False(t, a.Sniff([]byte{1, 0, 0xA0, 9, 0}), "two kind flags")
	assert.False(t, a.Sniff([]byte{1, 0, 0x81, 9, 0}), "reserved bit set")
	assert.False(t, a.Sniff([]byte{1, 0, 0x80, 10, 0}), "bad length")
}

func TestTable_Fallback(t *testing.T) {
	tb := NewTable()
	hit := ""
	tb.SetFallback(func(p *Packet) error { hit = p.CommandType().String(); return nil })
	require.NoError(t, tb.Route(NewSleep(1)))
	assert.Equal(t, "SLEEP", hit)
}
