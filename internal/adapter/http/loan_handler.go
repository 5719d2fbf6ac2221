package http

import (
	"context"
	"errors"
	"net/http"

	domain "collateral-evidence/internal/domain/loan"
	"collateral-evidence/internal/usecase/loan"
	"collateral-evidence/internal/usecase/verification"

	"github.com/labstack/echo/v4"
)

type LoanReader interface {
	Get(ctx context.Context, loanID string) (*loan.LoanDTO, error)
	Rejections(ctx context.Context, userID string) ([]loan.RejectionDTO, error)
}

type VerificationRetrier interface {
	Retry(ctx context.Context, loanID string) (verification.Result, error)
}

type LoanHandler struct {
	uc    LoanReader
	retry VerificationRetrier
}

func NewLoanHandler(uc LoanReader, retry VerificationRetrier) *LoanHandler {
	return &LoanHandler{uc: uc, retry: retry}
}

type loanPath struct {
	LoanID string `param:"loan_id" validate:"required,extid"`
}

type userPath struct {
	UserID string `param:"user_id" validate:"required,extid"`
}

type retryResp struct {
	Verified   bool          `json:"verified"`
	Diagnostic string        `json:"diagnostic,omitempty"`
	Loan       *loan.LoanDTO `json:"loan,omitempty"`
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	p := loanPath{LoanID: c.Param("loan_id")}
	if err := c.Validate(&p); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}
	dto, err := h.uc.Get(c.Request().Context(), p.LoanID)
	if err != nil {
		return loanError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// RetryVerification re-runs the oracle for a loan whose last verification failed.
func (h *LoanHandler) RetryVerification(c echo.Context) error {
	p := loanPath{LoanID: c.Param("loan_id")}
	if err := c.Validate(&p); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}
	ctx := c.Request().Context()
	res, err := h.retry.Retry(ctx, p.LoanID)
	if err != nil {
		return loanError(c, err)
	}
	out := retryResp{Verified: res.OK(), Diagnostic: res.Diagnostic}
	if dto, err := h.uc.Get(ctx, p.LoanID); err == nil {
		out.Loan = dto
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LoanHandler) ListRejections(c echo.Context) error {
	p := userPath{UserID: c.Param("user_id")}
	if err := c.Validate(&p); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}
	list, err := h.uc.Rejections(c.Request().Context(), p.UserID)
	if err != nil {
		return loanError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"user_id": p.UserID, "rejections": list})
}

func loanError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, loan.ErrInvalidID):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotRetryable), errors.Is(err, domain.ErrVerificationClaimed):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
