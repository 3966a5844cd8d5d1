package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MilanEkanna/Backend-TaskManagement/internal/api/middleware"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/model"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/policy"

	"github.com/gin-gonic/gin"
)

// createTaskRequest 创建任务的请求参数。
//
// dueDate 接受 "2006-01-02" 或 RFC3339；assignedTo 接受数字 ID
// （也兼容字符串形式的数字），其余形式一律拒绝。
type createTaskRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	DueDate     string          `json:"dueDate"`
	Priority    string          `json:"priority"`
	AssignedTo  json.RawMessage `json:"assignedTo"`
}

// updateTaskRequest 部分更新的请求参数。nil / 缺省字段不参与合并。
type updateTaskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	DueDate     json.RawMessage `json:"dueDate"`
	Priority    *string         `json:"priority"`
	Status      *string         `json:"status"`
	AssignedTo  json.RawMessage `json:"assignedTo"`
}

// taskUserRef 任务响应中内嵌的用户展示字段。
type taskUserRef struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type taskResponse struct {
	ID          uint         `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	Priority    string       `json:"priority"`
	Status      string       `json:"status"`
	AssignedTo  *taskUserRef `json:"assignedTo"`
	CreatedBy   *taskUserRef `json:"createdBy"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// handleCreateTask 创建任务。
//
// createdBy 一律写入认证用户的 ID，请求体中的同名字段被忽略。
//
// POST /api/tasks
func (s *Server) handleCreateTask(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Title is required"})
		return
	}

	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !model.ValidPriority(priority) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid priority"})
		return
	}

	var dueDate *time.Time
	if req.DueDate != "" {
		parsed, err := parseDate(req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid dueDate"})
			return
		}
		dueDate = &parsed
	}

	assignedTo, ok := parseAssignedTo(req.AssignedTo)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid assignedTo ID"})
		return
	}

	task := model.Task{
		Title:       title,
		Description: req.Description,
		DueDate:     dueDate,
		Priority:    priority,
		Status:      model.StatusTodo,
		AssignedTo:  assignedTo,
		CreatedBy:   actor.ID,
	}
	if err := s.tasks.CreateTask(c.Request.Context(), &task); err != nil {
		s.logger.Error("create task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	// 重新读取以带出展示字段
	created, err := s.tasks.TaskByID(c.Request.Context(), task.ID)
	if err != nil || created == nil {
		created = &task
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": toTaskResponse(created)})
}

// handleListTasks 返回请求者可见范围内、经附加过滤后的全部任务。
//
// GET /api/tasks?search=&status=&priority=&dueDateFrom=&dueDateTo=
func (s *Server) handleListTasks(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	scope, err := s.policy.ScopeFor(c.Request.Context(), actor)
	if err != nil {
		s.logger.Error("resolve task scope failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	filter, err := parseTaskFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	tasks, err := s.tasks.ListTasks(c.Request.Context(), scope, filter)
	if err != nil {
		s.logger.Error("list tasks failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	resp := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		resp = append(resp, toTaskResponse(&tasks[i]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(resp), "data": resp})
}

// handleGetTask 按 ID 读取单个任务。404 先于 403 检查。
//
// GET /api/tasks/:id
func (s *Server) handleGetTask(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	id, ok := parseTaskID(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Task not found"})
		return
	}

	task, err := s.tasks.TaskByID(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("load task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Task not found"})
		return
	}

	if !policy.CanView(actor, task) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Not authorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": toTaskResponse(task)})
}

// handleUpdateTask 对任务做部分更新。
//
// 先鉴权，再校验 assignedTo 的形参合法性，然后合并字段并对
// 合并结果做枚举校验，最后落库。
//
// PUT /api/tasks/:id
func (s *Server) handleUpdateTask(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	id, ok := parseTaskID(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Task not found"})
		return
	}

	task, err := s.tasks.TaskByID(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("load task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Task not found"})
		return
	}

	if !policy.CanMutate(actor, task) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Not authorized"})
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	// assignedTo 先于任何写操作校验，畸形 ID 不能落到存储层
	if len(req.AssignedTo) > 0 {
		assignedTo, ok := parseAssignedTo(req.AssignedTo)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid assignedTo ID"})
			return
		}
		task.AssignedTo = assignedTo
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Title is required"})
			return
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if len(req.DueDate) > 0 {
		if isJSONNull(req.DueDate) {
			task.DueDate = nil
		} else {
			var raw string
			if err := json.Unmarshal(req.DueDate, &raw); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid dueDate"})
				return
			}
			parsed, err := parseDate(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid dueDate"})
				return
			}
			task.DueDate = &parsed
		}
	}
	if req.Priority != nil {
		if !model.ValidPriority(*req.Priority) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid priority"})
			return
		}
		task.Priority = *req.Priority
	}
	if req.Status != nil {
		if !model.ValidStatus(*req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid status"})
			return
		}
		task.Status = *req.Status
	}

	if err := s.tasks.SaveTask(c.Request.Context(), task); err != nil {
		s.logger.Error("update task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	updated, err := s.tasks.TaskByID(c.Request.Context(), task.ID)
	if err != nil || updated == nil {
		updated = task
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": toTaskResponse(updated)})
}

// handleDeleteTask 删除任务。
//
// DELETE /api/tasks/:id
func (s *Server) handleDeleteTask(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	id, ok := parseTaskID(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Task not found"})
		return
	}

	task, err := s.tasks.TaskByID(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("load task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Task not found"})
		return
	}

	if !policy.CanMutate(actor, task) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Not authorized"})
		return
	}

	if err := s.tasks.DeleteTask(c.Request.Context(), id); err != nil {
		s.logger.Error("delete task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{}})
}

// parseTaskFilter 解析列表查询的附加过滤参数。
func parseTaskFilter(c *gin.Context) (policy.Filter, error) {
	filter := policy.Filter{
		Search:   c.Query("search"),
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
	}

	if v := c.Query("dueDateFrom"); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			return policy.Filter{}, fmt.Errorf("Invalid dueDateFrom")
		}
		filter.DueDateFrom = &parsed
	}
	if v := c.Query("dueDateTo"); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			return policy.Filter{}, fmt.Errorf("Invalid dueDateTo")
		}
		filter.DueDateTo = &parsed
	}
	return filter, nil
}

func toTaskResponse(t *model.Task) taskResponse {
	resp := taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Priority:    t.Priority,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Assignee != nil {
		resp.AssignedTo = &taskUserRef{
			ID:       t.Assignee.ID,
			Username: t.Assignee.Username,
			Email:    t.Assignee.Email,
		}
	} else if t.AssignedTo != nil {
		resp.AssignedTo = &taskUserRef{ID: *t.AssignedTo}
	}
	if t.Creator != nil {
		resp.CreatedBy = &taskUserRef{
			ID:       t.Creator.ID,
			Username: t.Creator.Username,
		}
	} else {
		resp.CreatedBy = &taskUserRef{ID: t.CreatedBy}
	}
	return resp
}

// parseTaskID 解析路径中的任务 ID。无法解析按不存在处理。
func parseTaskID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// parseAssignedTo 解析请求体中的 assignedTo 字段。
//
// 接受 JSON null（清除指派）、正整数、或内容为正整数的字符串；
// 其余形式返回 ok=false。
func parseAssignedTo(raw json.RawMessage) (*uint, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, true
	}

	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n == 0 {
			return nil, false
		}
		id := uint(n)
		return &id, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		if err != nil || n == 0 {
			return nil, false
		}
		id := uint(n)
		return &id, true
	}

	return nil, false
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// parseDate 解析日期参数，接受 "2006-01-02" 或 RFC3339。
func parseDate(v string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date: %q", v)
}
