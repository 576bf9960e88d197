package handler

import (
	"errors"
	"strconv"

	"tokenmarket/internal/config"
	"tokenmarket/internal/infrastructure/lock"
	"tokenmarket/internal/repository"
	"tokenmarket/internal/service"
	"tokenmarket/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	userService     *service.UserService
	courseService   *service.CourseService
	balanceService  *service.BalanceService
	purchaseService *service.PurchaseService
	orderService    *service.OrderService
	tradeService    *service.TradeService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, locks lock.Provider, cfg *config.Config) *Handler {
	return &Handler{
		userService:     service.NewUserService(db),
		courseService:   service.NewCourseService(db),
		balanceService:  service.NewBalanceService(db),
		purchaseService: service.NewPurchaseService(db, locks, cfg),
		orderService:    service.NewOrderService(db, locks, cfg),
		tradeService:    service.NewTradeService(db, locks, cfg),
	}
}

// businessError 领域错误到响应码的统一映射
// 账本错误原样向上传递到这里，不在中间层翻译或吞掉
func businessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrCourseNotFound):
		response.BusinessError(c, response.CodeCourseNotFound, err.Error())
	case errors.Is(err, repository.ErrOrderNotFound):
		response.BusinessError(c, response.CodeOrderNotFound, err.Error())
	case errors.Is(err, repository.ErrTokenNotFound):
		response.BusinessError(c, response.CodeTokenNotFound, err.Error())
	case errors.Is(err, repository.ErrUserNotFound):
		response.BusinessError(c, response.CodeUserNotFound, err.Error())
	case errors.Is(err, repository.ErrBalanceNotEnough):
		response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
	case errors.Is(err, service.ErrInvalidOrderSides):
		response.BusinessError(c, response.CodeInvalidOrderSides, err.Error())
	case errors.Is(err, service.ErrCourseMismatch):
		response.BusinessError(c, response.CodeCourseMismatch, err.Error())
	case errors.Is(err, repository.ErrOrderStatusInvalid):
		response.BusinessError(c, response.CodeOrderStatusInvalid, err.Error())
	case errors.Is(err, repository.ErrTxConflict):
		response.BusinessError(c, response.CodeTxConflict, err.Error())
	case errors.Is(err, repository.ErrInvariantViolation):
		response.BusinessError(c, response.CodeLedgerInconsistent, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 用户相关接口
// ============================================================

// CreateUser 创建用户
// POST /api/v1/user/create
func (h *Handler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), &req)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, user)
}

// ListUsers 查询用户列表
// GET /api/v1/user/list?page=1&page_size=10
func (h *Handler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	users, total, err := h.userService.ListUsers(c.Request.Context(), page, pageSize)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      users,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 课程相关接口
// ============================================================

// CreateCourse 创建课程（同时创建课程代币记录，全部供应量进国库）
// POST /api/v1/course/create
func (h *Handler) CreateCourse(c *gin.Context) {
	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	course, err := h.courseService.CreateCourse(c.Request.Context(), &req)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, course)
}

// GetCourse 查询课程详情（含代币快照）
// GET /api/v1/course/detail?course_id=xxx
func (h *Handler) GetCourse(c *gin.Context) {
	courseID, err := strconv.ParseInt(c.Query("course_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "course_id 参数错误")
		return
	}

	course, token, err := h.courseService.GetCourseDetail(c.Request.Context(), courseID)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"course": course,
		"token":  token,
	})
}

// ListCourses 查询课程列表
// GET /api/v1/course/list?page=1&page_size=10
func (h *Handler) ListCourses(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	courses, total, err := h.courseService.ListCourses(c.Request.Context(), page, pageSize)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      courses,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 购买相关接口
// ============================================================

// ExecutePurchase 购买课程（奖励代币从国库发放给买家）
// POST /api/v1/purchase/execute
//
// 【关键点】购买需要保证：
// 1. 幂等性：相同的 request_id 只会发放一次
// 2. 原子性：购买记录、国库分配、买家入账同时成功或同时失败
// 3. 并发安全：课程级锁防止国库超发
func (h *Handler) ExecutePurchase(c *gin.Context) {
	var req service.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.purchaseService.ExecutePurchase(c.Request.Context(), &req)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 挂单相关接口
// ============================================================

// PlaceOrder 创建挂单（卖单同事务预留卖方余额）
// POST /api/v1/order/place
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orderService.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"order_no": order.OrderNo,
		"status":   order.Status,
		"side":     order.Side,
		"amount":   order.Amount,
	})
}

// ListOrders 查询挂单列表（可按课程/方向过滤，最多返回 100 条）
// GET /api/v1/order/list?course_id=xxx&side=sell
func (h *Handler) ListOrders(c *gin.Context) {
	var courseID int64
	if v := c.Query("course_id"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.ParamError(c, "course_id 参数错误")
			return
		}
		courseID = parsed
	}
	side := c.Query("side")

	orders, err := h.orderService.ListOrders(c.Request.Context(), courseID, side)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":  orders,
		"count": len(orders),
	})
}

// CancelOrder 撤单
// POST /api/v1/order/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	var req struct {
		OrderNo string `json:"order_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), req.OrderNo)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"order_no": order.OrderNo,
		"status":   order.Status,
	})
}

// ============================================================
// 撮合相关接口
// ============================================================

// MatchTrade 对指定买单/卖单执行一次撮合
// POST /api/v1/trade/match
//
// 成交量 = min(请求量, 买单剩余, 卖单剩余)，成交价取卖单限价。
// filled_amount 为 0 是合法结果，不返回错误。
func (h *Handler) MatchTrade(c *gin.Context) {
	var req service.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.tradeService.Match(c.Request.Context(), &req)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 余额相关接口
// ============================================================

// ListBalances 查询用户全部课程持仓
// GET /api/v1/balance/list?user_id=xxx
func (h *Handler) ListBalances(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	balances, err := h.balanceService.ListUserBalances(c.Request.Context(), userID)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list": balances,
	})
}

// GetBalance 查询用户在某课程下的余额（未持仓返回零值）
// GET /api/v1/balance/detail?user_id=xxx&course_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}
	courseID, err := strconv.ParseInt(c.Query("course_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "course_id 参数错误")
		return
	}

	balance, err := h.balanceService.GetBalance(c.Request.Context(), userID, courseID)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":   balance.UserID,
		"course_id": balance.CourseID,
		"amount":    balance.Amount,
		"reserved":  balance.Reserved,
	})
}
