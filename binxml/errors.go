package binxml

import (
	"fmt"
	"strconv"
)

const resumableDefault = false

var (
	// ErrUnexpectedEOF is returned when the
	// buffer being decoded is too short to
	// contain the structure a chunk declared
	ErrUnexpectedEOF error = errUnexpectedEOF{}

	// ErrPlainTextXML is returned when the input is already textual XML
	// rather than the compiled binary form, typically a decoded manifest
	// fed back in by mistake.
	ErrPlainTextXML error = errPlainText{}

	// ErrTooDeep is returned when element nesting exceeds the configured limit.
	// This should only realistically be seen on adversarial data trying to exhaust memory.
	ErrTooDeep error = errTooDeep{}
)

// Error is the interface satisfied
// by all of the errors that originate
// from this package.
type Error interface {
	error

	// Resumable returns whether
	// or not decoding can continue
	// past the condition or the rest
	// of the stream is unusable.
	Resumable() bool
}

// contextError allows binxml Error instances to be enhanced with additional
// context about their origin.
type contextError interface {
	Error

	// withContext must not modify the error instance - it must clone and
	// return a new error with the context added.
	withContext(ctx string) error
}

// Cause returns the underlying cause of an error that has been wrapped
// with additional context.
func Cause(e error) error {
	out := e
	if e, ok := e.(errWrapped); ok && e.cause != nil {
		out = e.cause
	}
	return out
}

// Resumable returns whether or not the error means that the rest of the
// chunk stream is unusable.
func Resumable(e error) bool {
	if e, ok := e.(Error); ok {
		return e.Resumable()
	}
	return resumableDefault
}

// WrapError wraps an error with additional context that allows the part of the
// document that caused the problem to be identified. Underlying errors
// can be retrieved using Cause()
//
// The input error is not modified - a new error should be returned.
//
// ErrUnexpectedEOF is not wrapped with any context so that it stays
// comparable with ==.
func WrapError(err error, ctx ...any) error {
	switch e := err.(type) {
	case errUnexpectedEOF:
		return e
	case contextError:
		return e.withContext(ctxString(ctx))
	default:
		return errWrapped{cause: err, ctx: ctxString(ctx)}
	}
}

func ctxString(ctx []any) string {
	out := ""
	for idx, cv := range ctx {
		if idx > 0 {
			out += "/"
		}
		out += fmt.Sprintf("%v", cv)
	}
	return out
}

func quoteStr(s string) string {
	return strconv.Quote(s)
}

func addCtx(ctx, add string) string {
	if ctx != "" {
		return add + "/" + ctx
	} else {
		return add
	}
}

// errWrapped allows arbitrary errors passed to WrapError to be enhanced with
// context and unwrapped with Cause()
type errWrapped struct {
	cause error
	ctx   string
}

func (e errWrapped) Error() string {
	if e.ctx != "" {
		return e.cause.Error() + " at " + e.ctx
	} else {
		return e.cause.Error()
	}
}

func (e errWrapped) Resumable() bool {
	if e, ok := e.cause.(Error); ok {
		return e.Resumable()
	}
	return resumableDefault
}

// Unwrap returns the cause.
func (e errWrapped) Unwrap() error { return e.cause }

type errUnexpectedEOF struct{}

func (e errUnexpectedEOF) Error() string   { return "binxml: unexpected end of input" }
func (e errUnexpectedEOF) Resumable() bool { return false }

type errPlainText struct{}

func (e errPlainText) Error() string   { return "binxml: input is plain-text xml, expected the binary format" }
func (e errPlainText) Resumable() bool { return false }

type errTooDeep struct{}

func (e errTooDeep) Error() string   { return "binxml: element nesting exceeds the configured limit" }
func (e errTooDeep) Resumable() bool { return false }

// MalformedChunkError is returned when a chunk header declares sizes
// inconsistent with the buffer bounds, a required alignment, or the
// chunk's own fixed layout.
type MalformedChunkError struct {
	Offset int       // byte offset of the chunk header
	Type   ChunkType // chunk type field as read
	Size   uint32    // declared chunk_size
	Reason string

	ctx string
}

// Error implements the error interface
func (m MalformedChunkError) Error() string {
	out := "binxml: malformed " + m.Type.String() + " chunk at offset " + strconv.Itoa(m.Offset) + ": " + m.Reason
	if m.ctx != "" {
		out += " at " + m.ctx
	}
	return out
}

// Resumable is always 'false' for MalformedChunkErrors
func (m MalformedChunkError) Resumable() bool { return false }

func (m MalformedChunkError) withContext(ctx string) error { m.ctx = addCtx(m.ctx, ctx); return m }

// StringIndexError is returned when a string-pool index lies outside
// the decoded pool. Text reconstruction has no safe fallback for
// these, so they abort the decode.
type StringIndexError struct {
	Offset int    // byte offset of the chunk holding the reference
	Index  uint32 // index as read
	Count  uint32 // number of strings in the pool

	ctx string
}

// Error implements the error interface
func (s StringIndexError) Error() string {
	out := "binxml: string index " + strconv.FormatUint(uint64(s.Index), 10) +
		" out of range in pool of " + strconv.FormatUint(uint64(s.Count), 10) +
		" at offset " + strconv.Itoa(s.Offset)
	if s.ctx != "" {
		out += " at " + s.ctx
	}
	return out
}

// Resumable is always 'false' for StringIndexErrors
func (s StringIndexError) Resumable() bool { return false }

func (s StringIndexError) withContext(ctx string) error { s.ctx = addCtx(s.ctx, ctx); return s }

// UnsupportedEncodingError is returned when string-pool flags carry
// bits selecting an encoding variant this package does not handle.
type UnsupportedEncodingError struct {
	Offset int    // byte offset of the string-pool chunk
	Flags  uint32 // flags field as read
}

// Error implements the error interface
func (u UnsupportedEncodingError) Error() string {
	return "binxml: unsupported string-pool encoding (flags 0x" +
		strconv.FormatUint(uint64(u.Flags), 16) + ") at offset " + strconv.Itoa(u.Offset)
}

// Resumable is always 'false' for UnsupportedEncodingErrors
func (u UnsupportedEncodingError) Resumable() bool { return false }

// StructuralMismatchError describes an element-end or namespace-end
// chunk that does not match the frame currently open. By default the
// decoder records it as a warning and proceeds with the frame that is
// actually open; strict mode promotes it to a terminal error.
type StructuralMismatchError struct {
	Offset int    // byte offset of the chunk
	Line   uint32 // source line number from the node header
	Want   string // what the open frame expects to close, "" when nothing is open
	Got    string // what the chunk named, "" when the document ended instead

	ctx string
}

// Error implements the error interface
func (s StructuralMismatchError) Error() string {
	var out string
	switch {
	case s.Got == "":
		out = "binxml: " + quoteStr(s.Want) + " left open at end of document"
	case s.Want == "":
		out = "binxml: close of " + quoteStr(s.Got) + " with nothing open"
	default:
		out = "binxml: close of " + quoteStr(s.Got) + " but " + quoteStr(s.Want) + " is open"
	}
	if s.Line > 0 {
		out += " (line " + strconv.FormatUint(uint64(s.Line), 10) + ")"
	}
	if s.ctx != "" {
		out += " at " + s.ctx
	}
	return out
}

// Resumable is always 'true' for StructuralMismatchErrors
func (s StructuralMismatchError) Resumable() bool { return true }

func (s StructuralMismatchError) withContext(ctx string) error { s.ctx = addCtx(s.ctx, ctx); return s }

// Warning is one recoverable anomaly recorded during a decode run.
type Warning struct {
	Offset int    // byte offset of the offending chunk
	Line   uint32 // source line number from the node header, 0 when unknown
	Msg    string
}

// String implements fmt.Stringer
func (w Warning) String() string {
	out := "offset " + strconv.Itoa(w.Offset)
	if w.Line > 0 {
		out += " (line " + strconv.FormatUint(uint64(w.Line), 10) + ")"
	}
	return out + ": " + w.Msg
}
