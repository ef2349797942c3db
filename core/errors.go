package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for every abort point in the betting flow. Callers match
// with errors.Is; raw provider messages are preserved through wrapping.
var (
	ErrWalletUnavailable     = errors.New("wallet unavailable")
	ErrUserRejected          = errors.New("user rejected request")
	ErrMarketClosed          = errors.New("market closed")
	ErrMarketResolved        = errors.New("market already resolved")
	ErrDuplicateBet          = errors.New("bet already placed on this market")
	ErrInsufficientFunds     = errors.New("insufficient token balance")
	ErrApprovalFailed        = errors.New("token approval failed")
	ErrTransactionFailed     = errors.New("transaction failed")
	ErrBackendUnavailable    = errors.New("backend unavailable")
	ErrContractMisconfigured = errors.New("contract address invalid or unset")
)

// ValidationError is a local input error. It never reaches a network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Classify maps a raw wallet/provider/revert error onto the taxonomy above by
// looking for recognizable substrings. Unrecognized errors are wrapped as a
// generic transaction failure so the raw message still reaches the user.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	// Already classified.
	for _, sentinel := range []error{
		ErrWalletUnavailable, ErrUserRejected, ErrMarketClosed,
		ErrMarketResolved, ErrDuplicateBet, ErrInsufficientFunds,
		ErrApprovalFailed, ErrTransactionFailed, ErrBackendUnavailable,
		ErrContractMisconfigured,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied"):
		return fmt.Errorf("%w: %s", ErrUserRejected, err.Error())
	case strings.Contains(msg, "already resolved"):
		return fmt.Errorf("%w: %s", ErrMarketResolved, err.Error())
	case strings.Contains(msg, "betting closed") || strings.Contains(msg, "betting period"):
		return fmt.Errorf("%w: %s", ErrMarketClosed, err.Error())
	case strings.Contains(msg, "already placed") || strings.Contains(msg, "already bet"):
		return fmt.Errorf("%w: %s", ErrDuplicateBet, err.Error())
	case strings.Contains(msg, "insufficient funds") || strings.Contains(msg, "insufficient balance") ||
		strings.Contains(msg, "transfer amount exceeds balance"):
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, err.Error())
	default:
		return fmt.Errorf("%w: %s", ErrTransactionFailed, err.Error())
	}
}

// UserMessage renders a short, user-facing message for a classified error.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return err.Error()
	case errors.Is(err, ErrWalletUnavailable):
		return "No wallet detected. Install a wallet extension to place bets."
	case errors.Is(err, ErrUserRejected):
		return "Request rejected in wallet."
	case errors.Is(err, ErrMarketResolved):
		return "This market has already been resolved."
	case errors.Is(err, ErrMarketClosed):
		return "Betting has closed for this market."
	case errors.Is(err, ErrDuplicateBet):
		return "You already placed a bet on this market."
	case errors.Is(err, ErrInsufficientFunds):
		return "Insufficient token balance for this stake."
	case errors.Is(err, ErrApprovalFailed):
		return "Token approval failed. No bet was placed."
	case errors.Is(err, ErrBackendUnavailable):
		return "Backend is unreachable. Try again later."
	case errors.Is(err, ErrContractMisconfigured):
		return "Contract address is not configured."
	default:
		return err.Error()
	}
}
