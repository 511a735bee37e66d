// Package contract implements the assert hook used to report contract violations.
//
// A contract violation is a caller bug: a nil handle, a zero size, releasing a
// block that was never handed out. It is not the same as running out of
// memory, which is an expected runtime condition reported through return
// values only.
//
// # Reporting Model
//
// Violations are reported synchronously through a registrable Handler that
// receives the source file and line of the offending call. The handler is an
// observability hook, not an exception mechanism: after it returns, the
// operation that detected the violation still returns its documented failure
// value (nil, false, zero or a sentinel error).
//
//	hook := contract.New(func(file string, line int) {
//	    log.Printf("contract violation at %s:%d", file, line)
//	})
//
//	if !hook.Check(size > 0) {
//	    return nil
//	}
//
// # Fail Closed
//
// Installing a nil handler is itself a violation. SetHandler(nil) reports
// through the handler that is currently active and keeps it installed.
//
// # Nil Safety
//
// A nil *Hook reports through DefaultHandler, so components can be built
// without one.
package contract
