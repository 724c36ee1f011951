package parser

import (
	"math"
	"sort"
	"strings"
)

// TextFragment 页面上的一段定位文本
// 坐标为页面局部坐标系，y轴向下增长（已从PDF坐标系翻转）
type TextFragment struct {
	X0, Y0 float64 // 左上角
	X1, Y1 float64 // 右下角
	Text   string  // 原始文本
	Block  int     // 块序号，仅用于平局参考
}

// fragmentSortKey 复合排序键：纵坐标和横坐标各保留一位小数
// 舍入吸收亚像素级的排版抖动，避免同一视觉行内的片段因微小的y差异被打乱；
// 它并不解决真正的多列分离问题——片段仍然先按y排序，这是一个被接受的启发式
func fragmentSortKey(f TextFragment) (float64, float64) {
	return round1(f.Y0), round1(f.X0)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ExtractPageLines 将一页的原始定位文本片段重建为近似阅读顺序的文本行
// 排序键为 (round(y,1), round(x,1))，均为升序；修剪后为空的片段被丢弃
// 页面没有片段时返回空序列，不是错误
func ExtractPageLines(fragments []TextFragment) []string {
	if len(fragments) == 0 {
		return []string{}
	}

	sorted := make([]TextFragment, len(fragments))
	copy(sorted, fragments)

	// 稳定排序：键相等的片段保持原有相对顺序
	sort.SliceStable(sorted, func(i, j int) bool {
		yi, xi := fragmentSortKey(sorted[i])
		yj, xj := fragmentSortKey(sorted[j])
		if yi != yj {
			return yi < yj
		}
		return xi < xj
	})

	lines := make([]string, 0, len(sorted))
	for _, frag := range sorted {
		text := strings.TrimSpace(frag.Text)
		if text == "" {
			continue
		}
		lines = append(lines, text)
	}
	return lines
}

// AssembleDocumentText 将每页的有序文本行拼接为整篇文档
// 页内行以单个换行符连接，页与页之间以空行（两个换行符）分隔
// 完全为空的页被跳过，避免产生连续的空行分隔符
func AssembleDocumentText(pages [][]string) string {
	pageTexts := make([]string, 0, len(pages))
	for _, lines := range pages {
		if len(lines) == 0 {
			continue
		}
		pageTexts = append(pageTexts, strings.Join(lines, "\n"))
	}
	return strings.Join(pageTexts, "\n\n")
}
