package handler

import (
	"net/http"
	"strconv"

	"powerhause/internal/draft"
	"powerhause/internal/gateway"
	"powerhause/internal/middleware"
	"powerhause/internal/view"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ConsoleHandler serves the operator pages: dashboard, setup and status.
type ConsoleHandler struct {
	registry *view.Registry
	gw       gateway.Gateway
	logger   *zap.Logger
}

type CreateCommunityReq struct {
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
}

type RuleReq struct {
	Value string `json:"value"`
}

func NewConsoleHandler(registry *view.Registry, gw gateway.Gateway, logger *zap.Logger) *ConsoleHandler {
	return &ConsoleHandler{registry: registry, gw: gw, logger: logger}
}

func operator(c *gin.Context) string {
	id, _ := middleware.Identity(c)
	return id.OperatorID
}

// Dashboard 刷新并返回社区列表
func (h *ConsoleHandler) Dashboard(c *gin.Context) {
	d := h.registry.Dashboard(operator(c))
	if err := d.Open(c.Request.Context()); err != nil {
		writeConsoleError(c, err, gin.H{"dashboard": d.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dashboard": d.Snapshot()})
}

func (h *ConsoleHandler) CreateCommunity(c *gin.Context) {
	var req CreateCommunityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	d := h.registry.Dashboard(operator(c))
	community, next, err := d.Create(c.Request.Context(), req.Name, req.Purpose)
	if err != nil {
		writeConsoleError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"community": community, "navigate": next})
}

func (h *ConsoleHandler) PostNow(c *gin.Context) {
	d := h.registry.Dashboard(operator(c))
	msg, err := d.PostNow(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeConsoleError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": msg})
}

// OpenSetup 打开（或重新打开）配置页
func (h *ConsoleHandler) OpenSetup(c *gin.Context) {
	s := h.registry.OpenSetup(operator(c), c.Param("id"))
	if err := s.Open(c.Request.Context()); err != nil {
		writeConsoleError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"setup": s.Snapshot()})
}

// setup 返回已打开的配置页，没有则先打开
func (h *ConsoleHandler) setup(c *gin.Context) (*view.Setup, bool) {
	owner, id := operator(c), c.Param("id")
	if s, ok := h.registry.Setup(owner, id); ok {
		return s, true
	}
	s := h.registry.OpenSetup(owner, id)
	if err := s.Open(c.Request.Context()); err != nil {
		writeConsoleError(c, err, nil)
		return nil, false
	}
	return s, true
}

func (h *ConsoleHandler) GetSetup(c *gin.Context) {
	s, ok := h.setup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"setup": s.Snapshot()})
}

func (h *ConsoleHandler) CloseSetup(c *gin.Context) {
	h.registry.CloseSetup(operator(c), c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h *ConsoleHandler) SetFields(c *gin.Context) {
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	s, ok := h.setup(c)
	if !ok {
		return
	}
	for name, value := range req {
		if err := s.SetField(draft.Field(name), value); err != nil {
			writeConsoleError(c, err, gin.H{"field": name})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"setup": s.Snapshot()})
}

func (h *ConsoleHandler) AddRule(c *gin.Context) {
	s, ok := h.setup(c)
	if !ok {
		return
	}
	if err := s.AddRule(); err != nil {
		writeConsoleError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"setup": s.Snapshot()})
}

func (h *ConsoleHandler) SetRule(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid rule index"})
		return
	}
	var req RuleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	s, ok := h.setup(c)
	if !ok {
		return
	}
	if err := s.SetRule(index, req.Value); err != nil {
		writeConsoleError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"setup": s.Snapshot()})
}

// RemoveRule 仅剩一条时不删除，removed=false
func (h *ConsoleHandler) RemoveRule(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid rule index"})
		return
	}
	s, ok := h.setup(c)
	if !ok {
		return
	}
	removed, err := s.RemoveRule(index)
	if err != nil {
		writeConsoleError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed, "setup": s.Snapshot()})
}

func (h *ConsoleHandler) Save(c *gin.Context) {
	s, ok := h.setup(c)
	if !ok {
		return
	}
	if err := s.Save(c.Request.Context()); err != nil {
		writeConsoleError(c, err, gin.H{"setup": s.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Settings saved", "setup": s.Snapshot()})
}

// Deploy 成功后 setup.deploy.handoff_pending 为 true，延迟结束后 setup.navigate 指向状态页
func (h *ConsoleHandler) Deploy(c *gin.Context) {
	s, ok := h.setup(c)
	if !ok {
		return
	}
	if _, err := s.Deploy(c.Request.Context()); err != nil {
		writeConsoleError(c, err, gin.H{"setup": s.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"setup": s.Snapshot()})
}

// Status 状态页；取走部署交接的结果（只展示一次）
func (h *ConsoleHandler) Status(c *gin.Context) {
	id := c.Param("id")
	carried := h.registry.TakeHandoff(operator(c), id)
	v, err := view.LoadStatus(c.Request.Context(), h.gw, id, carried)
	if err != nil {
		writeConsoleError(c, err, nil)
		return
	}
	if v.NotFound {
		c.JSON(http.StatusNotFound, gin.H{"msg": v.Message, "back": v.Back, "status": v})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": v})
}
