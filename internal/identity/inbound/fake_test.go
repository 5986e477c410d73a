package inbound

import (
	"context"
	"sync"

	"github.com/shandysiswandi/gostepup/internal/identity/usecase"
	"github.com/shandysiswandi/gostepup/internal/pkg/jwt"
)

type fakeUsecase struct {
	signup    func(usecase.SignupInput) (*usecase.SignupOutput, error)
	login     func(usecase.LoginInput) (*usecase.LoginOutput, error)
	linkCode  func(usecase.IssueLinkCodeInput) (*usecase.IssueLinkCodeOutput, error)
	redeem    func(usecase.RedeemLinkCodeInput) (*usecase.RedeemLinkCodeOutput, error)
	status    func(usecase.LinkStatusInput) (*usecase.LinkStatusOutput, error)
	issueOTP  func(usecase.IssueOTPInput) (*usecase.IssueOTPOutput, error)
	verifyOTP func(usecase.VerifyOTPInput) (*usecase.VerifyOTPOutput, error)
}

func (f *fakeUsecase) Signup(_ context.Context, in usecase.SignupInput) (*usecase.SignupOutput, error) {
	return f.signup(in)
}

func (f *fakeUsecase) Login(_ context.Context, in usecase.LoginInput) (*usecase.LoginOutput, error) {
	return f.login(in)
}

func (f *fakeUsecase) IssueLinkCode(_ context.Context, in usecase.IssueLinkCodeInput) (*usecase.IssueLinkCodeOutput, error) {
	return f.linkCode(in)
}

func (f *fakeUsecase) RedeemLinkCode(_ context.Context, in usecase.RedeemLinkCodeInput) (*usecase.RedeemLinkCodeOutput, error) {
	return f.redeem(in)
}

func (f *fakeUsecase) LinkStatus(_ context.Context, in usecase.LinkStatusInput) (*usecase.LinkStatusOutput, error) {
	return f.status(in)
}

func (f *fakeUsecase) IssueOTP(_ context.Context, in usecase.IssueOTPInput) (*usecase.IssueOTPOutput, error) {
	return f.issueOTP(in)
}

func (f *fakeUsecase) VerifyOTP(_ context.Context, in usecase.VerifyOTPInput) (*usecase.VerifyOTPOutput, error) {
	return f.verifyOTP(in)
}

type fakeJWT struct{}

func (fakeJWT) Generate(int64, string) (string, error) { return "token-42", nil }

func (fakeJWT) Verify(token string) (jwt.Claims, error) {
	if token != "token-42" {
		return jwt.Claims{}, jwt.ErrInvalidToken
	}
	return jwt.Claims{AccountID: 42, Email: "ada@example.com"}, nil
}

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type sentMessage struct {
	ChatID string
	Text   string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, chatID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, sentMessage{ChatID: chatID, Text: text})
	return s.err
}

func (s *recordingSender) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]sentMessage(nil), s.sent...)
}
