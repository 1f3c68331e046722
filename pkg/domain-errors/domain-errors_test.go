package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// These are the primitives used at every trust boundary, so the invariants
// "wrapped domain errors preserve original code" and "errors.Is matches by
// code" must hold everywhere.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeNotFound, Message: "organization not found"}
		s.Equal("organization not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeNotFound}
		s.Equal("not_found", err.Error())
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	s.Run("returns wrapped error", func() {
		inner := errors.New("database connection failed")
		err := &Error{Code: CodeInternal, Message: "service error", Err: inner}
		s.Equal(inner, err.Unwrap())
	})

	s.Run("works through fmt wrapping", func() {
		inner := New(CodeValidation, "bad status")
		outer := fmt.Errorf("patch audit: %w", inner)
		s.True(HasCode(outer, CodeValidation))
	})
}

func (s *DomainErrorsSuite) TestIsMatching() {
	s.Run("matches by code only", func() {
		err1 := &Error{Code: CodeNotFound, Message: "organization not found"}
		err2 := &Error{Code: CodeNotFound, Message: "audit not found"}
		s.True(errors.Is(err1, err2))
	})

	s.Run("does not match different codes", func() {
		err1 := &Error{Code: CodeNotFound}
		err2 := &Error{Code: CodeInternal}
		s.False(errors.Is(err1, err2))
	})
}

func (s *DomainErrorsSuite) TestWrapPreservesCode() {
	inner := New(CodeForbidden, "citizens cannot run scans")
	wrapped := Wrap(inner, CodeInternal, "scan failed")

	s.True(HasCode(wrapped, CodeForbidden), "wrapping must not overwrite the original domain code")
	s.False(HasCode(wrapped, CodeInternal))
}

func (s *DomainErrorsSuite) TestWrapInfrastructureError() {
	inner := errors.New("connection reset")
	wrapped := Wrap(inner, CodeInternal, "failed to list access requests")

	s.True(HasCode(wrapped, CodeInternal))
	s.ErrorIs(wrapped, inner)
}
