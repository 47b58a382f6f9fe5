package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/drivelink/internal/protocol/drive"
)

// robotState 模拟机器人的遥测状态
type robotState struct {
	mu        sync.Mutex
	telemetry drive.TelemetryBody
	seq       uint16
}

// apply 处理一条下行指令，返回应答帧；RESPONSE 不应答
func (s *robotState) apply(p *drive.Packet) *drive.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p.CommandType() {
	case drive.Drive:
		d := p.DriveBody()
		s.telemetry.LastCommand = d.Direction
		s.telemetry.LastCommandValue = d.Duration
		s.telemetry.LastCommandSpeed = d.Speed
	case drive.Sleep:
		s.telemetry.LastCommand = 0
		s.telemetry.LastCommandValue = 0
		s.telemetry.LastCommandSpeed = 0
	default:
		return nil
	}
	s.telemetry.LastPacketCounter = p.PacketCount()
	s.telemetry.HitCount++
	return drive.NewResponse(p.PacketCount(), true, s.telemetry)
}

// report 主动上报一帧遥测（不带 ACK）
func (s *robotState) report() *drive.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return drive.NewResponse(s.seq, false, s.telemetry)
}

func runSim(args []string) error {
	fs := flag.NewFlagSet("sim", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:7100", "gateway TCP address")
	interval := fs.Duration("telemetry", 5*time.Second, "unsolicited telemetry interval, 0 disables")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("connected", zap.String("addr", *addr), zap.String("local", conn.LocalAddr().String()))

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	state := &robotState{}
	var wmu sync.Mutex
	send := func(p *drive.Packet) {
		b, err := p.Serialize()
		if err != nil {
			logger.Warn("serialize failed", zap.Error(err))
			return
		}
		wmu.Lock()
		defer wmu.Unlock()
		if _, err := conn.Write(b); err != nil {
			logger.Warn("write failed", zap.Error(err))
		}
	}

	if *interval > 0 {
		go func() {
			t := time.NewTicker(*interval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					send(state.report())
				}
			}
		}()
	}

	dec := drive.NewStreamDecoder(0)
	buf := make([]byte, 512)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			frames, _ := dec.Feed(buf[:n])
			for _, p := range frames {
				logger.Info("downlink", zap.Stringer("frame", p))
				if reply := state.apply(p); reply != nil {
					send(reply)
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
