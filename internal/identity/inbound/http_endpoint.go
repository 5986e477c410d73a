package inbound

import (
	"github.com/shandysiswandi/gostepup/internal/identity/usecase"
	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
	"github.com/shandysiswandi/gostepup/internal/pkg/jwt"
	"github.com/shandysiswandi/gostepup/internal/pkg/router"
)

// HTTPEndpoint exposes the account, channel linking and OTP handlers.
type HTTPEndpoint struct {
	uc uc
}

// accountID reads the authenticated account set by the auth middleware.
func accountID(r *router.Request) (int64, error) {
	clm := jwt.GetAuth(r.Context())
	if clm == nil || clm.AccountID <= 0 {
		return 0, goerror.NewBusiness("authentication required", goerror.CodeUnauthorized)
	}
	return clm.AccountID, nil
}

func (h *HTTPEndpoint) Signup(r *router.Request) (any, error) {
	var req SignupRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Signup(r.Context(), usecase.SignupInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, err
	}

	return SignupResponse{
		AccountID:    resp.AccountID,
		Email:        resp.Email,
		ChannelBound: resp.ChannelBound,
		AccessToken:  resp.AccessToken,
	}, nil
}

// Login authenticates with email and password. A wrong password on an account
// with a bound channel also sends a security alert there.
func (h *HTTPEndpoint) Login(r *router.Request) (any, error) {
	var req LoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Login(r.Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, err
	}

	return LoginResponse{
		AccountID:    resp.AccountID,
		Email:        resp.Email,
		ChannelBound: resp.ChannelBound,
		AccessToken:  resp.AccessToken,
	}, nil
}

func (h *HTTPEndpoint) IssueLinkCode(r *router.Request) (any, error) {
	id, err := accountID(r)
	if err != nil {
		return nil, err
	}

	resp, err := h.uc.IssueLinkCode(r.Context(), usecase.IssueLinkCodeInput{AccountID: id})
	if err != nil {
		return nil, err
	}

	return LinkCodeResponse{
		Code:          resp.Code,
		ChannelHandle: resp.ChannelHandle,
		DeepLink:      resp.DeepLink,
	}, nil
}

func (h *HTTPEndpoint) LinkStatus(r *router.Request) (any, error) {
	id, err := accountID(r)
	if err != nil {
		return nil, err
	}

	resp, err := h.uc.LinkStatus(r.Context(), usecase.LinkStatusInput{AccountID: id})
	if err != nil {
		return nil, err
	}

	return LinkStatusResponse{Bound: resp.Bound, Stage: resp.Stage}, nil
}

func (h *HTTPEndpoint) IssueOTP(r *router.Request) (any, error) {
	id, err := accountID(r)
	if err != nil {
		return nil, err
	}

	resp, err := h.uc.IssueOTP(r.Context(), usecase.IssueOTPInput{AccountID: id})
	if err != nil {
		return nil, err
	}

	return OTPResponse{ExpiresAt: resp.ExpiresAt, Delivered: resp.Delivered}, nil
}

func (h *HTTPEndpoint) VerifyOTP(r *router.Request) (any, error) {
	id, err := accountID(r)
	if err != nil {
		return nil, err
	}

	var req OTPVerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.VerifyOTP(r.Context(), usecase.VerifyOTPInput{AccountID: id, Code: req.Code})
	if err != nil {
		return nil, err
	}

	return OTPVerifyResponse{Verified: resp.Verified}, nil
}
