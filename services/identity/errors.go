package identitysvc

import (
	"context"
	"encoding/json"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/auth"
)

// gotrue-go reports non-2xx responses as "response status code <code>[: <body>]"
var statusErrRegex = regexp.MustCompile(`(?s)^response status code (\d{3})(?:: (.*))?$`)

// errorBody covers the error payloads of the current and legacy GoTrue versions.
type errorBody struct {
	Code             interface{} `json:"code"` // int (new) or string (legacy)
	ErrorCode        string      `json:"error_code"`
	Msg              string      `json:"msg"`
	Message          string      `json:"message"`
	Error            string      `json:"error"`
	ErrorDescription string      `json:"error_description"`
}

func (b errorBody) message() string {
	for _, m := range []string{b.Msg, b.Message, b.ErrorDescription, b.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}

func (b errorBody) code() string {
	if b.ErrorCode != "" {
		return b.ErrorCode
	}
	if c, ok := b.Code.(string); ok {
		return c
	}
	return b.Error
}

// translateErr maps a gotrue-go error onto the auth error taxonomy.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &auth.NetworkError{Err: err}
	}
	var (
		urlErr *url.Error
		netErr net.Error
	)
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &auth.NetworkError{Err: err}
	}

	match := statusErrRegex.FindStringSubmatch(err.Error())
	if match == nil {
		return errors.Wrap(err, "identity provider")
	}
	status, _ := strconv.Atoi(match[1])
	if status >= 500 {
		return &auth.NetworkError{Err: err}
	}

	pErr := &auth.ProviderError{Status: status}
	body := strings.TrimSpace(match[2])
	var eb errorBody
	if body != "" && json.Unmarshal([]byte(body), &eb) == nil {
		pErr.Code = eb.code()
		pErr.Message = eb.message()
	} else {
		pErr.Message = body
	}
	if pErr.Message == "" {
		pErr.Message = "request rejected with status " + match[1]
	}
	return pErr
}
