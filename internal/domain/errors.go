package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// Domain errors.
var (
	// ErrNoLinks is returned when no supported post references are found in text.
	ErrNoLinks = errors.New("found no links")

	// ErrNoMediaFound is returned when a post resolves but carries no media.
	ErrNoMediaFound = errors.New("no media found")

	// ErrExpiredCredential is returned when an upstream rejects the configured session or token.
	ErrExpiredCredential = errors.New("upstream credential expired")

	// ErrUnsupportedContent is returned for recognized but unhandled post shapes.
	ErrUnsupportedContent = errors.New("unsupported content")

	// ErrMalformedShortcode is returned when a shortcode contains characters outside the alphabet.
	ErrMalformedShortcode = errors.New("malformed shortcode")

	// ErrControlNotFound is returned when an interactive control is unknown.
	ErrControlNotFound = errors.New("control not found")

	// ErrControlExpired is returned when an interactive control has timed out.
	ErrControlExpired = errors.New("control expired")

	// ErrNotRequester is returned when someone other than the requester presses delete.
	ErrNotRequester = errors.New("only the original requester can delete this")
)

// UnsupportedError names the content shape that could not be handled.
type UnsupportedError struct {
	Provider Provider
	What     string
}

func (e *UnsupportedError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: unsupported %s", e.Provider, e.What)
	}
	return "unsupported " + e.What
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupportedContent
}

// NewUnsupportedError creates a new UnsupportedError.
func NewUnsupportedError(provider Provider, what string) *UnsupportedError {
	return &UnsupportedError{Provider: provider, What: what}
}

// UpstreamError carries an explicit error reported by a provider API.
type UpstreamError struct {
	Provider Provider
	Status   int
	Message  string
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 && e.Message == "" {
		return fmt.Sprintf("%s: upstream returned status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// DownloadError is returned when fetching a media URL fails with a non-success status.
type DownloadError struct {
	Status int
	Body   string
}

func (e *DownloadError) Error() string {
	if e.Body != "" {
		return "download failed with status " + strconv.Itoa(e.Status) + ": " + e.Body
	}
	return "download failed with status " + strconv.Itoa(e.Status)
}

// CommandError is returned when an external process exits unsuccessfully.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ErrorKind is a stable, machine-readable classification of pipeline errors.
type ErrorKind string

const (
	ErrorKindParse       ErrorKind = "parse_failure"
	ErrorKindUnsupported ErrorKind = "unsupported_content"
	ErrorKindCredential  ErrorKind = "expired_credential"
	ErrorKindUpstream    ErrorKind = "upstream_error"
	ErrorKindNoMedia     ErrorKind = "no_media"
	ErrorKindDownload    ErrorKind = "download_error"
	ErrorKindCommand     ErrorKind = "command_error"
	ErrorKindInternal    ErrorKind = "internal"
)

// KindOf classifies err into the pipeline taxonomy.
func KindOf(err error) ErrorKind {
	var (
		upstream *UpstreamError
		download *DownloadError
		command  *CommandError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoLinks):
		return ErrorKindParse
	case errors.Is(err, ErrUnsupportedContent):
		return ErrorKindUnsupported
	case errors.Is(err, ErrExpiredCredential):
		return ErrorKindCredential
	case errors.Is(err, ErrNoMediaFound):
		return ErrorKindNoMedia
	case errors.As(err, &upstream):
		return ErrorKindUpstream
	case errors.As(err, &download):
		return ErrorKindDownload
	case errors.As(err, &command):
		return ErrorKindCommand
	default:
		return ErrorKindInternal
	}
}

// UserMessage renders err as the text shown to the person who posted the link.
func UserMessage(err error) string {
	var (
		upstream    *UpstreamError
		unsupported *UnsupportedError
	)
	switch KindOf(err) {
	case ErrorKindParse:
		return "Found no links."
	case ErrorKindUnsupported:
		if errors.As(err, &unsupported) {
			return "Sorry, that's not supported: " + unsupported.What + "."
		}
		return "Sorry, that's not supported."
	case ErrorKindCredential:
		return "The upstream session has expired, ask an operator to refresh the credentials."
	case ErrorKindNoMedia:
		return "No media found in that post."
	case ErrorKindUpstream:
		errors.As(err, &upstream)
		return upstream.Error()
	case ErrorKindDownload:
		return "Failed to download the media."
	case ErrorKindCommand:
		return "Failed to process the video."
	default:
		return "Something went wrong."
	}
}
