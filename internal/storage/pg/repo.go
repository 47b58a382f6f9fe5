package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/drivelink/internal/outbound"
	"github.com/taoyao-code/drivelink/internal/protocol/drive"
)

// Repository 上行写入与指令状态
type Repository struct {
	Pool *pgxpool.Pool
}

// EnsureRobot 返回机器人主键，不存在则插入，并刷新最近上行时间
func (r *Repository) EnsureRobot(ctx context.Context, robotID string) (int64, error) {
	const q = `INSERT INTO robots (robot_id, last_seen_at)
               VALUES ($1, NOW())
               ON CONFLICT (robot_id) DO UPDATE SET updated_at = NOW(), last_seen_at = NOW()
               RETURNING id`
	var id int64
	err := r.Pool.QueryRow(ctx, q, robotID).Scan(&id)
	return id, err
}

// InsertFrameLog 帧日志
func (r *Repository) InsertFrameLog(ctx context.Context, robotDBID int64, seq int, cmd string, direction int16, body string, ack bool) error {
	const q = `INSERT INTO frame_logs (robot_db_id, seq, cmd, direction, body, ack, created_at)
               VALUES ($1,$2,$3,$4,$5,$6,NOW())`
	_, err := r.Pool.Exec(ctx, q, robotDBID, seq, cmd, direction, body, ack)
	return err
}

// InsertTelemetry 遥测
func (r *Repository) InsertTelemetry(ctx context.Context, robotDBID int64, seq int, t drive.TelemetryBody) error {
	const q = `INSERT INTO telemetry (robot_db_id, seq, last_packet_counter, current_grade, hit_count,
                   last_command, last_command_value, last_command_speed, received_at)
               VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())`
	_, err := r.Pool.Exec(ctx, q, robotDBID, seq,
		int32(t.LastPacketCounter), int32(t.CurrentGrade), int32(t.HitCount),
		int16(t.LastCommand), int16(t.LastCommandValue), int16(t.LastCommandSpeed))
	return err
}

// MarkCommand 下行指令状态 upsert（queued/sent/acked/dead）
func (r *Repository) MarkCommand(ctx context.Context, cmd *outbound.Command, status, errMsg string) error {
	const q = `INSERT INTO commands (id, robot_id, type, body, priority, seq, retries, status, last_error, created_at, updated_at)
               VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''),$10,NOW())
               ON CONFLICT (id) DO UPDATE SET seq=EXCLUDED.seq, retries=EXCLUDED.retries, status=EXCLUDED.status,
                   last_error=EXCLUDED.last_error, updated_at=NOW()`
	_, err := r.Pool.Exec(ctx, q, cmd.ID, cmd.RobotID, cmd.Type, cmd.Body, cmd.Priority,
		int32(cmd.Seq), cmd.Retries, status, errMsg, cmd.CreatedAt)
	return err
}
