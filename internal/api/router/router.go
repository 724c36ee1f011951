package router

import (
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-screener-go/internal/api/handler"
	"resume-screener-go/internal/processor"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, resumeHandler *handler.ResumeHandler) {
	api := h.Group("/api")

	api.POST("/extract", func(c context.Context, ctx *app.RequestContext) {
		fileHeader, err := ctx.FormFile("file")
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
			return
		}
		defer file.Close()

		resp, err := resumeHandler.HandleResumeExtract(c, file, fileHeader.Filename)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}

		ctx.JSON(consts.StatusOK, resp)
	})

	api.POST("/search", func(c context.Context, ctx *app.RequestContext) {
		var req handler.SearchRequest
		if err := ctx.BindJSON(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式不正确"})
			return
		}

		resp, err := resumeHandler.HandleSearch(c, &req)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}

		ctx.JSON(consts.StatusOK, resp)
	})

	api.GET("/resumes/:id", func(c context.Context, ctx *app.RequestContext) {
		resumeID := ctx.Param("id")
		if resumeID == "" {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "缺少简历ID"})
			return
		}

		resp, err := resumeHandler.HandleGetResume(c, resumeID)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}

		ctx.JSON(consts.StatusOK, resp)
	})

	api.GET("/resumes/:id/file", func(c context.Context, ctx *app.RequestContext) {
		resumeID := ctx.Param("id")
		if resumeID == "" {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "缺少简历ID"})
			return
		}

		resp, err := resumeHandler.HandleGetResumeFileURL(c, resumeID)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}

		ctx.JSON(consts.StatusOK, resp)
	})

	// 健康检查：报告各后端组件状态
	api.GET("/heartbeat", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, resumeHandler.HandleHeartbeat(c))
	})
}

// statusForError 将业务错误映射到HTTP状态码
func statusForError(err error) int {
	switch {
	case errors.Is(err, processor.ErrResumeNotFound):
		return consts.StatusNotFound
	case errors.Is(err, processor.ErrInvalidSearchQuery),
		errors.Is(err, processor.ErrInvalidDocument),
		errors.Is(err, processor.ErrNoTextContent):
		return consts.StatusBadRequest
	default:
		return consts.StatusInternalServerError
	}
}
