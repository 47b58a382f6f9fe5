package drive

import "errors"

// Adapter DRIVE 协议适配器：流式解码 + 路由表
type Adapter struct {
	decoder *StreamDecoder
	table   *Table
	// 可选回调：每帧解析结果（ok / checksum_error）
	onParse func(result string)
}

func NewAdapter() *Adapter { return &Adapter{decoder: NewStreamDecoder(4096), table: NewTable()} }

// Register 注册类型处理器
func (a *Adapter) Register(cmd CommandType, h Handler) { a.table.Register(cmd, h) }

// SetOnParse 设置解析结果回调（用于指标）
func (a *Adapter) SetOnParse(fn func(result string)) { a.onParse = fn }

// ProcessBytes 处理上行字节流；单帧处理失败不影响同批后续帧，错误合并返回
func (a *Adapter) ProcessBytes(p []byte) error {
	failsBefore := a.decoder.ChecksumFailures()
	frames, err := a.decoder.Feed(p)
	if err != nil {
		return err
	}
	if a.onParse != nil {
		for i := failsBefore; i < a.decoder.ChecksumFailures(); i++ {
			a.onParse("checksum_error")
		}
	}
	var errs []error
	for _, pkt := range frames {
		if a.onParse != nil {
			a.onParse("ok")
		}
		if err := a.table.Route(pkt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sniff 粗判是否为 DRIVE 协议帧头（长度字段 6/9/15，reserved 为0）
func (a *Adapter) Sniff(prefix []byte) bool {
	if len(prefix) < HeaderSize {
		return false
	}
	return headerLooksValid(prefix)
}

// Decoder 返回内部解码器（统计用）
func (a *Adapter) Decoder() *StreamDecoder { return a.decoder }
