package api

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/drivelink/internal/protocol/drive"
)

// FrameHandler 帧编解码调试接口，不涉及设备
type FrameHandler struct {
	directions *drive.DirectionMap
}

func NewFrameHandler(directions *drive.DirectionMap) *FrameHandler {
	if directions == nil {
		directions = drive.DefaultDirectionMap()
	}
	return &FrameHandler{directions: directions}
}

type decodeRequest struct {
	Hex string `json:"hex" binding:"required"`
}

// FrameView 解码结果
type FrameView struct {
	Seq       uint16               `json:"seq"`
	Type      string               `json:"type"`
	Ack       bool                 `json:"ack"`
	Length    int                  `json:"length"`
	Checksum  uint8                `json:"checksum"`
	Body      string               `json:"body"`
	Direction string               `json:"direction,omitempty"`
	Drive     *drive.DriveBody     `json:"drive,omitempty"`
	Telemetry *drive.TelemetryBody `json:"telemetry,omitempty"`
	Hex       string               `json:"hex"`
}

func (h *FrameHandler) view(p *drive.Packet, raw []byte) FrameView {
	v := FrameView{
		Seq:      p.PacketCount(),
		Type:     p.CommandType().String(),
		Ack:      p.Ack(),
		Length:   p.Length(),
		Checksum: p.Checksum(),
		Body:     p.BodyText(),
		Hex:      hex.EncodeToString(raw),
	}
	switch p.CommandType() {
	case drive.Drive:
		d := p.DriveBody()
		v.Drive = &d
		v.Direction = h.directions.Name(d.Direction)
	case drive.Response:
		if p.Length() == drive.TelemetryFrameSize {
			t := p.TelemetryBody()
			v.Telemetry = &t
		}
	}
	return v
}

// Decode 十六进制帧 -> 结构化视图
// POST /api/frames/decode
func (h *FrameHandler) Decode(c *gin.Context) {
	var req decodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	raw, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(req.Hex), " ", ""))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid hex: " + err.Error())
		return
	}
	p, err := drive.Parse(raw)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	c.JSON(http.StatusOK, h.view(p, raw))
}

type encodeRequest struct {
	Type string `json:"type" binding:"required"`
	Seq  uint16 `json:"seq"`
	Ack  bool   `json:"ack"`
	Body string `json:"body"`
}

// Encode 类型+文本报文体 -> 十六进制帧
// POST /api/frames/encode
func (h *FrameHandler) Encode(c *gin.Context) {
	var req encodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	ct, ok := drive.ParseCommandType(req.Type)
	if !ok {
		respondError(c, http.StatusBadRequest, "unknown type: " + req.Type)
		return
	}
	raw, err := drive.Build(ct, req.Seq, req.Ack, req.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	p, err := drive.Parse(raw)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, h.view(p, raw))
}
