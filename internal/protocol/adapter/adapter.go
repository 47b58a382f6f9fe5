// Package adapter 链路字节流与协议解析之间的接口，tcpserver.Mux 与串口链路共用。
package adapter

// Adapter 绑定到单条链路（TCP 连接或串口）的协议处理器。
// Sniff 根据首段字节判断是否为本协议；
// ProcessBytes 接收任意切分的原始字节，自行处理半包粘包后分发完整帧。
type Adapter interface {
	Sniff(prefix []byte) bool
	ProcessBytes(p []byte) error
}
