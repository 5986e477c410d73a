package inbound

import (
	"context"

	"github.com/shandysiswandi/gostepup/internal/identity/usecase"
	"github.com/shandysiswandi/gostepup/internal/pkg/router"
)

type uc interface {
	Signup(ctx context.Context, in usecase.SignupInput) (*usecase.SignupOutput, error)
	Login(ctx context.Context, in usecase.LoginInput) (*usecase.LoginOutput, error)

	IssueLinkCode(ctx context.Context, in usecase.IssueLinkCodeInput) (*usecase.IssueLinkCodeOutput, error)
	LinkStatus(ctx context.Context, in usecase.LinkStatusInput) (*usecase.LinkStatusOutput, error)

	IssueOTP(ctx context.Context, in usecase.IssueOTPInput) (*usecase.IssueOTPOutput, error)
	VerifyOTP(ctx context.Context, in usecase.VerifyOTPInput) (*usecase.VerifyOTPOutput, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// Account
	r.POST("/api/v1/identity/signup", end.Signup)
	r.POST("/api/v1/identity/login", end.Login)

	// Channel linking
	r.POST("/api/v1/identity/channel/link-code", end.IssueLinkCode)
	r.GET("/api/v1/identity/channel/status", end.LinkStatus)

	// Step-up OTP
	r.POST("/api/v1/identity/otp", end.IssueOTP)
	r.POST("/api/v1/identity/otp/verify", end.VerifyOTP)
}
