package inbound

import (
	"net/http"
	"time"
)

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupResponse struct {
	AccountID    int64  `json:"account_id,string"`
	Email        string `json:"email"`
	ChannelBound bool   `json:"channel_bound"`
	AccessToken  string `json:"access_token"`
}

func (SignupResponse) StatusCode() int { return http.StatusCreated }

func (SignupResponse) Message() string { return "Account created" }

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccountID    int64  `json:"account_id,string"`
	Email        string `json:"email"`
	ChannelBound bool   `json:"channel_bound"`
	AccessToken  string `json:"access_token"`
}

type LinkCodeResponse struct {
	Code          string `json:"code"`
	ChannelHandle string `json:"channel_handle,omitempty"`
	DeepLink      string `json:"deep_link,omitempty"`
}

func (LinkCodeResponse) Message() string {
	return "Send this code to the bot to connect your account"
}

type LinkStatusResponse struct {
	Bound bool   `json:"bound"`
	Stage string `json:"stage"`
}

func (r LinkStatusResponse) Message() string {
	if r.Bound {
		return "Telegram is connected"
	}
	return "Telegram not connected yet"
}

// OTPResponse never carries the code itself; it only travels over the bound
// channel.
type OTPResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	Delivered bool      `json:"delivered"`
}

func (r OTPResponse) Message() string {
	if r.Delivered {
		return "OTP sent to your Telegram"
	}
	return "OTP generated but could not be delivered, please request a new one"
}

type OTPVerifyRequest struct {
	Code string `json:"code"`
}

type OTPVerifyResponse struct {
	Verified bool `json:"verified"`
}

func (OTPVerifyResponse) Message() string { return "OTP verified successfully" }
