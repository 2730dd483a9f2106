package handlers

import (
	"context"
	"net/http"
	"time"

	"editSessionServer/backend/internal/cache"
	"editSessionServer/backend/internal/session"

	"github.com/gin-gonic/gin"
)

// EditHandlers 文档侧协作者（渲染组件、批注控件等）的入口。
// 它们只负责产生原始编辑意图，归并逻辑全在 session 里；
// 格式不校验，照单全收，坏数据原样存着。
type EditHandlers struct {
	reg      *session.Registry
	sem      *session.SemaphoreControl
	presence cache.PresenceCache
}

func NewEditHandlers(reg *session.Registry, sem *session.SemaphoreControl, presence cache.PresenceCache) *EditHandlers {
	return &EditHandlers{reg: reg, sem: sem, presence: presence}
}

type textEditReq struct {
	SectionID    string `json:"sectionId"`
	ElementPath  string `json:"elementPath"`
	OriginalText string `json:"originalText"`
	OriginalHTML string `json:"originalHtml"`
	NewText      string `json:"newText"`
	NewHTML      string `json:"newHtml"`
}

type equationEditReq struct {
	SectionID     string            `json:"sectionId"`
	ComponentType string            `json:"componentType"`
	OriginalLatex string            `json:"originalLatex"`
	NewLatex      string            `json:"newLatex"`
	ColorMap      map[string]string `json:"colorMap"`
}

type openEquationReq struct {
	Latex       string            `json:"latex"`
	ColorMap    map[string]string `json:"colorMap"`
	SectionID   string            `json:"sectionId"`
	ElementPath string            `json:"elementPath"`
}

type saveEquationReq struct {
	NewLatex    string            `json:"newLatex"`
	NewColorMap map[string]string `json:"newColorMap"`
}

type modeReq struct {
	Enabled *bool `json:"enabled"`
}

// 提交类接口共用的限流：拿不到信号量就让调用方稍后再试
func (h *EditHandlers) acquire(ctx context.Context, c *gin.Context) bool {
	acquireCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if err := h.sem.Acquire(acquireCtx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (h *EditHandlers) sessionFor(c *gin.Context) *session.Session {
	userID := c.GetUint64("userId")
	return h.reg.GetOrCreate(c.Request.Context(), c.Param("docId"), userID)
}

func (h *EditHandlers) AddTextEdit(c *gin.Context) {
	var req textEditReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if !h.acquire(ctx, c) {
		return
	}
	defer h.sem.Release()

	s := h.sessionFor(c)
	s.AddTextEdit(ctx, req.SectionID, req.ElementPath, req.OriginalText, req.OriginalHTML, req.NewText, req.NewHTML)
	snap := s.Snapshot()
	c.JSON(http.StatusOK, gin.H{"edits": snap, "count": len(snap)})
}

func (h *EditHandlers) AddEquationEdit(c *gin.Context) {
	var req equationEditReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if !h.acquire(ctx, c) {
		return
	}
	defer h.sem.Release()

	s := h.sessionFor(c)
	componentType := req.ComponentType
	if componentType == "" {
		componentType = session.ComponentEquation
	}
	s.AddEquationEdit(ctx, req.SectionID, componentType, req.OriginalLatex, req.NewLatex, req.ColorMap)
	snap := s.Snapshot()
	c.JSON(http.StatusOK, gin.H{"edits": snap, "count": len(snap)})
}

func (h *EditHandlers) RemoveEdit(c *gin.Context) {
	s := h.sessionFor(c)
	s.RemoveEdit(c.Request.Context(), c.Param("editId"))
	snap := s.Snapshot()
	c.JSON(http.StatusOK, gin.H{"edits": snap, "count": len(snap)})
}

func (h *EditHandlers) ClearAllEdits(c *gin.Context) {
	s := h.sessionFor(c)
	s.ClearAllEdits(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"edits": []session.Edit{}, "count": 0})
}

func (h *EditHandlers) GetEdits(c *gin.Context) {
	s := h.sessionFor(c)
	snap := s.Snapshot()
	c.JSON(http.StatusOK, gin.H{"edits": snap, "count": len(snap), "isEditing": s.IsEditing()})
}

// SetEditingMode 绝对语义：enabled=true 尝试开启（没能力时静默不变），
// enabled=false 一律关闭
func (h *EditHandlers) SetEditingMode(c *gin.Context) {
	var req modeReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled is required"})
		return
	}
	s := h.sessionFor(c)
	if *req.Enabled {
		s.EnableEditing(c.Request.Context())
	} else {
		s.DisableEditing(c.Request.Context())
	}
	c.JSON(http.StatusOK, gin.H{"isEditing": s.IsEditing()})
}

func (h *EditHandlers) OpenEquationEditor(c *gin.Context) {
	var req openEquationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s := h.sessionFor(c)
	s.OpenEquationEditor(req.Latex, req.ColorMap, req.SectionID, req.ElementPath)
	c.JSON(http.StatusOK, gin.H{"editingEquation": s.EditingEquation()})
}

func (h *EditHandlers) CloseEquationEditor(c *gin.Context) {
	s := h.sessionFor(c)
	s.CloseEquationEditor()
	c.JSON(http.StatusOK, gin.H{"editingEquation": nil})
}

func (h *EditHandlers) SaveEquationEdit(c *gin.Context) {
	var req saveEquationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if !h.acquire(ctx, c) {
		return
	}
	defer h.sem.Release()

	s := h.sessionFor(c)
	s.SaveEquationEdit(ctx, req.NewLatex, req.NewColorMap)
	snap := s.Snapshot()
	c.JSON(http.StatusOK, gin.H{"edits": snap, "count": len(snap)})
}

func (h *EditHandlers) GetEditingEquation(c *gin.Context) {
	s := h.sessionFor(c)
	c.JSON(http.StatusOK, gin.H{"editingEquation": s.EditingEquation()})
}

func (h *EditHandlers) GetWatchers(c *gin.Context) {
	watchers, err := h.presence.GetAliveWatchers(c.Request.Context(), c.Param("docId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"watchers": watchers})
}
