package handler

import (
	"net/http"
	"strconv"

	"powerhause/internal/model"
	"powerhause/internal/service"

	"github.com/gin-gonic/gin"
)

// CommunityHandler 社区服务 HTTP 接口，供远程控制台调用
type CommunityHandler struct {
	svc *service.CommunityService
}

func NewCommunityHandler(svc *service.CommunityService) *CommunityHandler {
	return &CommunityHandler{svc: svc}
}

func (h *CommunityHandler) Create(c *gin.Context) {
	var req model.CreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid JSON data"})
		return
	}
	community, err := h.svc.Create(c.Request.Context(), req.Name, req.Purpose)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, community)
}

// List 可选分页参数 page、size
func (h *CommunityHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("size"))

	list, err := h.svc.ListCommunities(c.Request.Context(), page, size)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *CommunityHandler) Get(c *gin.Context) {
	community, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, community)
}

func (h *CommunityHandler) Update(c *gin.Context) {
	var req model.UpdateFields
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid JSON data"})
		return
	}
	community, err := h.svc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, community)
}

func (h *CommunityHandler) Deploy(c *gin.Context) {
	result, err := h.svc.Deploy(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": result.Status, "message": result.Message})
}

func (h *CommunityHandler) PostNow(c *gin.Context) {
	if err := h.svc.PostNow(c.Request.Context(), c.Param("id")); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post sent successfully"})
}
