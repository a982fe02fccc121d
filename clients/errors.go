package clients

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/vitwit/tokenpay/types"
)

// EIP-1193 / EIP-3085 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
)

// revertSelector is the 4-byte selector of Error(string).
const revertSelector = "0x08c379a0"

const DefaultFallbackMessage = "Payment failed."

// RPCError is an error reported by the wallet provider.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ProviderCode returns the provider error code carried by err, if any.
func ProviderCode(err error) (int, bool) {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return 0, false
	}
	return rpcErr.Code, true
}

// IsUserRejected reports whether the user declined the wallet prompt.
func IsUserRejected(err error) bool {
	code, ok := ProviderCode(err)
	return ok && code == CodeUserRejected
}

// MessageExtractor pulls a user facing message out of an error. It returns
// false when it has nothing to offer so the next extractor can run.
type MessageExtractor func(err error) (string, bool)

// Extractors are tried in order by ExtractUserMessage.
var Extractors = []MessageExtractor{
	RevertReason,
	ProviderMessage,
}

// ExtractUserMessage turns an opaque wallet or chain error into text for the
// user. It never panics; fallback is returned when no extractor succeeds.
func ExtractUserMessage(err error, fallback string) string {
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultFallbackMessage
	}
	if err == nil {
		return fallback
	}

	for _, extract := range Extractors {
		if msg, ok := safeExtract(extract, err); ok {
			return msg
		}
	}
	return fallback
}

func safeExtract(extract MessageExtractor, err error) (msg string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			msg, ok = "", false
		}
	}()
	msg, ok = extract(err)
	if strings.TrimSpace(msg) == "" {
		return "", false
	}
	return msg, ok
}

// RevertReason decodes an Error(string) revert payload found in the provider
// error data.
func RevertReason(err error) (string, bool) {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return "", false
	}

	for _, candidate := range revertCandidates(rpcErr.Data) {
		if !strings.HasPrefix(strings.ToLower(candidate), revertSelector) {
			continue
		}
		data, decodeErr := hexutil.Decode(candidate)
		if decodeErr != nil {
			continue
		}
		reason, unpackErr := abi.UnpackRevert(data)
		if unpackErr != nil || reason == "" {
			continue
		}
		return reason, true
	}
	return "", false
}

// ProviderMessage returns the most specific human message attached to err by
// the provider or by a PaymentError. Plain Go errors yield nothing.
func ProviderMessage(err error) (string, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		if msg := nestedMessage(rpcErr.Data); msg != "" {
			return msg, true
		}
		if msg := strings.TrimSpace(rpcErr.Message); msg != "" {
			return msg, true
		}
	}

	var payErr *types.PaymentError
	if errors.As(err, &payErr) {
		if msg := strings.TrimSpace(payErr.Message); msg != "" {
			return msg, true
		}
	}
	return "", false
}

// revertCandidates lists hex strings found in the error data: the data
// itself, data.data, and data.error.data.
func revertCandidates(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return []string{s}
	}

	var obj struct {
		Data  json.RawMessage `json:"data"`
		Error *struct {
			Data json.RawMessage `json:"data"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &obj) != nil {
		return nil
	}

	var out []string
	if len(obj.Data) > 0 {
		out = append(out, revertCandidates(obj.Data)...)
	}
	if obj.Error != nil && len(obj.Error.Data) > 0 {
		out = append(out, revertCandidates(obj.Error.Data)...)
	}
	return out
}

func nestedMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) != nil {
		return ""
	}
	return strings.TrimSpace(obj.Message)
}

// ToPaymentError converts a collaborator error into a PaymentError. Existing
// PaymentErrors pass through; provider rejections become ErrUserRejected.
func ToPaymentError(err error, code, fallback string) *types.PaymentError {
	if err == nil {
		return nil
	}

	var payErr *types.PaymentError
	if errors.As(err, &payErr) {
		return payErr
	}

	if IsUserRejected(err) {
		code = types.ErrUserRejected
	}

	return &types.PaymentError{
		Code:    code,
		Message: ExtractUserMessage(err, fallback),
		Err:     err,
	}
}
