package service

import "errors"

// 哨兵错误：对外统一语义，隐藏底层实现细节。
// handler 层的 mapServiceError 负责把这些错误翻译成 HTTP 状态码。
var (
	// ErrInvalidInput 请求参数非法（缺少必填字段、未知状态值等）
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials 用户名或密码错误（登录时统一返回，防止用户枚举）
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserNotFound 用户不存在（仅用于非登录场景，如 GetProfile）
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists 用户已存在
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUserInactive 用户已被停用
	ErrUserInactive = errors.New("user is inactive")
	// ErrTenantScopeViolation 平台用户/租户用户与租户归属不匹配
	ErrTenantScopeViolation = errors.New("tenant scope violation")
	// ErrRoleNotFound 角色不存在
	ErrRoleNotFound = errors.New("role not found")
	// ErrTaskNotFound 任务不存在
	ErrTaskNotFound = errors.New("task not found")
	// ErrParentTaskNotFound 指定的父任务不存在
	ErrParentTaskNotFound = errors.New("parent task not found")
	// ErrInternal 内部错误（对外不暴露细节）
	ErrInternal = errors.New("internal server error")
)
