package drive

import (
	"context"

	"go.uber.org/zap"
)

// 帧日志方向
const (
	DirectionDownlink int16 = 0
	DirectionUplink   int16 = 1
)

// repoAPI 抽象便于单测替换
type repoAPI interface {
	EnsureRobot(ctx context.Context, robotID string) (int64, error)
	InsertFrameLog(ctx context.Context, robotDBID int64, seq int, cmd string, direction int16, body string, ack bool) error
	InsertTelemetry(ctx context.Context, robotDBID int64, seq int, t TelemetryBody) error
}

// telemetryCacheAPI 最新遥测缓存
type telemetryCacheAPI interface {
	PutTelemetry(ctx context.Context, robotID string, seq uint16, t TelemetryBody) error
}

// ackAPI 下行指令确认
type ackAPI interface {
	Ack(robotID string, seq uint16) bool
}

// Handlers 上行处理器集合
type Handlers struct {
	Repo       repoAPI
	Cache      telemetryCacheAPI
	Acker      ackAPI
	Directions *DirectionMap
	Logger     *zap.Logger
}

func (h *Handlers) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// HandleResponse 处理 RESPONSE：ACK 确认下行指令，携带遥测时持久化并刷新缓存
func (h *Handlers) HandleResponse(ctx context.Context, robotID string, p *Packet) error {
	if h == nil {
		return nil
	}
	if p.Ack() && h.Acker != nil {
		if !h.Acker.Ack(robotID, p.PacketCount()) {
			h.log().Debug("ack without pending command",
				zap.String("robot_id", robotID),
				zap.Uint16("seq", p.PacketCount()))
		}
	}

	hasTelemetry := p.Length() == TelemetryFrameSize
	if hasTelemetry && h.Cache != nil {
		if err := h.Cache.PutTelemetry(ctx, robotID, p.PacketCount(), p.TelemetryBody()); err != nil {
			h.log().Warn("cache telemetry failed", zap.String("robot_id", robotID), zap.Error(err))
		}
	}

	if h.Repo == nil {
		return nil
	}
	id, err := h.Repo.EnsureRobot(ctx, robotID)
	if err != nil {
		return err
	}
	if hasTelemetry {
		if err := h.Repo.InsertTelemetry(ctx, id, int(p.PacketCount()), p.TelemetryBody()); err != nil {
			return err
		}
	}
	return h.Repo.InsertFrameLog(ctx, id, int(p.PacketCount()), p.CommandType().String(), DirectionUplink, p.BodyText(), p.Ack())
}

// HandleGeneric 其它上行帧仅记录日志
func (h *Handlers) HandleGeneric(ctx context.Context, robotID string, p *Packet) error {
	if h == nil {
		return nil
	}
	if p.CommandType() == Drive {
		h.log().Debug("uplink drive frame",
			zap.String("robot_id", robotID),
			zap.Uint16("seq", p.PacketCount()),
			zap.String("direction", h.Directions.Name(p.DriveBody().Direction)))
	}
	if h.Repo == nil {
		return nil
	}
	id, err := h.Repo.EnsureRobot(ctx, robotID)
	if err != nil {
		return err
	}
	return h.Repo.InsertFrameLog(ctx, id, int(p.PacketCount()), p.CommandType().String(), DirectionUplink, p.BodyText(), p.Ack())
}
