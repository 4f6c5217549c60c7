// Package query 定义 (位置, 过滤器) 查询的确定性标识。缓存层与协调器
// 都以 Key 作为唯一键，坐标按固定精度截断，避免浮点抖动造成缓存碎片。
package query

import (
	"fmt"
	"math"
	"strings"
)

// coordPrecision 是坐标截断的小数位数。约 100 米量级，足以把同一地点的
// 轻微定位漂移归并到同一个键。
const coordPrecision = 3

// Query 描述一次物种观测数据查询的全部输入。
type Query struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
	// Filter 为 iconic-taxon 过滤器 id，空串表示全部类群。
	Filter string
}

// Key 返回查询的确定性字符串键。两个查询相等当且仅当 Key 相等。
func (q Query) Key() string {
	return fmt.Sprintf("%s:%s", q.Signature(), normalizeFilter(q.Filter))
}

// Signature 返回位置级签名（坐标+半径，不含过滤器），用于 prewarm 标记。
func (q Query) Signature() string {
	return fmt.Sprintf("%s,%s,r%g", truncateCoord(q.Lat), truncateCoord(q.Lng), q.RadiusKm)
}

// truncateCoord 截断（而非四舍五入）坐标到固定小数位，保证相邻读数稳定。
func truncateCoord(v float64) string {
	factor := math.Pow10(coordPrecision)
	truncated := math.Trunc(v*factor) / factor
	if truncated == 0 {
		// math.Trunc 对微小负值产生 -0，会被格式化成 "-0.000"，
		// 使赤道/本初子午线两侧的抖动分裂成两个键。
		truncated = 0
	}
	return fmt.Sprintf("%.*f", coordPrecision, truncated)
}

func normalizeFilter(filter string) string {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return "all"
	}
	return filter
}
