package drive

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DirectionMap 方向码 -> 名称
type DirectionMap struct {
	Names map[int]string `yaml:"names"`
}

// DefaultDirectionMap 返回设备固件默认的方向定义
func DefaultDirectionMap() *DirectionMap {
	return &DirectionMap{
		Names: map[int]string{
			DirForward:  "FORWARD",
			DirBackward: "BACKWARD",
			DirLeft:     "LEFT",
			DirRight:    "RIGHT",
		},
	}
}

// LoadDirectionMap 从 YAML 加载方向定义，未覆盖的码沿用默认值
func LoadDirectionMap(path string) (*DirectionMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read direction map: %w", err)
	}
	var m DirectionMap
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal direction map: %w", err)
	}
	merged := DefaultDirectionMap()
	merged.Merge(&m)
	return merged, nil
}

// Name 返回方向名称，未知码返回 UNKNOWN(n)
func (m *DirectionMap) Name(code uint8) string {
	if m != nil && m.Names != nil {
		if n, ok := m.Names[int(code)]; ok {
			return n
		}
	}
	return fmt.Sprintf("UNKNOWN(%d)", code)
}

// Code 按名称（大小写不敏感）查找方向码
func (m *DirectionMap) Code(name string) (uint8, bool) {
	if m == nil {
		return 0, false
	}
	name = strings.ToUpper(strings.TrimSpace(name))
	for code, n := range m.Names {
		if strings.ToUpper(n) == name {
			return uint8(code), true
		}
	}
	return 0, false
}

// Merge 合并另一个 DirectionMap
func (m *DirectionMap) Merge(other *DirectionMap) {
	if m == nil || other == nil || other.Names == nil {
		return
	}
	if m.Names == nil {
		m.Names = make(map[int]string)
	}
	for k, v := range other.Names {
		m.Names[k] = v
	}
}
