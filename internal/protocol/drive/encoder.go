package drive

// NewDrive 构造 DRIVE 指令包
func NewDrive(seq uint16, body DriveBody) *Packet {
	p := New()
	p.SetCommandType(Drive)
	p.SetPacketCount(seq)
	p.SetDriveBody(body)
	return p
}

// NewSleep 构造 SLEEP 指令包
func NewSleep(seq uint16) *Packet {
	p := New()
	p.SetCommandType(Sleep)
	p.SetPacketCount(seq)
	return p
}

// NewResponse 构造 RESPONSE 包；telemetry 全0时按6字节发送
func NewResponse(seq uint16, ack bool, telemetry TelemetryBody) *Packet {
	p := New()
	p.SetCommandType(Response)
	p.SetPacketCount(seq)
	p.SetAck(ack)
	p.SetTelemetryBody(telemetry)
	return p
}

// Build 按类型与文本报文体生成完整帧，供 API/CLI 使用
func Build(cmd CommandType, seq uint16, ack bool, bodyText string) ([]byte, error) {
	p := New()
	p.SetCommandType(cmd)
	p.SetPacketCount(seq)
	p.SetAck(ack)
	if bodyText != "" && cmd != Sleep {
		if err := p.SetBodyData(bodyText); err != nil {
			return nil, err
		}
	}
	return p.Serialize()
}
