package object_fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/types"
)

type ErrorKind int

const (
	ErrorKindTransient ErrorKind = iota
	ErrorKindNotFound
	ErrorKindAccessDenied
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNotFound:
		return "not_found"
	case ErrorKindAccessDenied:
		return "access_denied"
	default:
		return "transient"
	}
}

// FetchError is returned by [Fetcher.Fetch] for any failure to retrieve an object
type FetchError struct {
	Kind ErrorKind
	Ref  types.ObjectReference
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s (%s): %s", e.Ref, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Permanent returns whether retrying the fetch cannot succeed
func (e *FetchError) Permanent() bool {
	return e.Kind != ErrorKindTransient
}

var (
	notFoundCodes = map[string]struct{}{
		"NoSuchKey":    {},
		"NotFound":     {},
		"NoSuchBucket": {},
	}
	accessDeniedCodes = map[string]struct{}{
		"AccessDenied":          {},
		"Forbidden":             {},
		"AllAccessDisabled":     {},
		"InvalidAccessKeyId":    {},
		"SignatureDoesNotMatch": {},
		"ExpiredToken":          {},
	}
)

// classify determines the kind of a GetObject error
func classify(err error) ErrorKind {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return ErrorKindNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if _, ok := notFoundCodes[code]; ok {
			return ErrorKindNotFound
		}
		if _, ok := accessDeniedCodes[code]; ok {
			return ErrorKindAccessDenied
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return ErrorKindNotFound
		case http.StatusForbidden:
			return ErrorKindAccessDenied
		}
	}
	return ErrorKindTransient
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
