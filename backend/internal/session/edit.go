package session

import (
	"time"

	"github.com/google/uuid"
)

// 编辑种类：文本编辑 / 公式编辑
const (
	KindText     = "text"
	KindEquation = "equation"
)

// 公式控件类型（闭集）。
// 公式编辑浮层保存时不知道是哪种控件打开的它，统一记成 ComponentEquation。
const (
	ComponentEquation = "equation"
	ComponentGraph    = "graph"
	ComponentDiagram  = "diagram"
)

// Edit 待定编辑记录。两种变体共用一个扁平结构体，按 Kind 区分，
// 变体字段用 omitempty（和 ServerMessage 的做法一致）。
type Edit struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	SectionID string    `json:"sectionId"`
	Timestamp time.Time `json:"timestamp"`

	// text 变体
	// originalText/originalHtml 在插入时捕获一次，之后不再变；
	// newText/newHtml 每次更新都整体覆盖
	ElementPath  string `json:"elementPath,omitempty"`
	OriginalText string `json:"originalText,omitempty"`
	OriginalHTML string `json:"originalHtml,omitempty"`
	NewText      string `json:"newText,omitempty"`
	NewHTML      string `json:"newHtml,omitempty"`

	// equation 变体
	// colorMap 是 符号名->颜色 的映射，更新时整张表替换，不做逐键合并
	ComponentType string            `json:"componentType,omitempty"`
	OriginalLatex string            `json:"originalLatex,omitempty"`
	NewLatex      string            `json:"newLatex,omitempty"`
	ColorMap      map[string]string `json:"colorMap,omitempty"`
}

// 文本编辑的去重键是 (sectionId, elementPath)
func (e *Edit) matchText(sectionID, elementPath string) bool {
	return e.Kind == KindText && e.SectionID == sectionID && e.ElementPath == elementPath
}

// 公式编辑的去重键是 (sectionId, originalLatex)。
// 注意：同一 section 里两个原始 latex 相同的公式控件会撞到同一条记录上。
func (e *Edit) matchEquation(sectionID, originalLatex string) bool {
	return e.Kind == KindEquation && e.SectionID == sectionID && e.OriginalLatex == originalLatex
}

func newEditID() string {
	return uuid.NewString()
}

// EquationDraft 公式编辑浮层里正在编辑的那一条（单槽位，不排队不堆叠）
type EquationDraft struct {
	Latex       string            `json:"latex"`
	ColorMap    map[string]string `json:"colorMap,omitempty"`
	SectionID   string            `json:"sectionId"`
	ElementPath string            `json:"elementPath"`
}
