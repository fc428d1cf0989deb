/*
Package healthcheck turns the server's liveness listings into a printable report.

Each check is a Runner. A Runner always answers with a serum error whose code is
one of the CodeRun* constants, so a passing check and a failing one travel the
same way and both carry a message for the report.
*/
package healthcheck

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/serum-errors/go-serum"

	"github.com/warptools/sedar/pkg/logging"
	"github.com/warptools/sedar/sdapi"
)

const (
	CodeRunOkay      = "sedar-error-healthcheck-run-okay"
	CodeRunFailure   = "sedar-error-healthcheck-run-fail"
	CodeRunAmbiguous = "sedar-error-healthcheck-run-ambiguous"
)

type HealthCheckStatus int

const (
	StatusNone HealthCheckStatus = iota // no result yet
	StatusOkay
	StatusFail
	StatusAmbiguous
	StatusUnknown // a serum error with a code outside CodeRun*
)

type statusStyle struct {
	symbol string
	color  []color.Attribute
}

var styles = map[HealthCheckStatus]statusStyle{
	StatusNone:      {"∅", []color.Attribute{color.Reset}},
	StatusOkay:      {"✔", []color.Attribute{color.FgHiGreen, color.Bold}},
	StatusFail:      {"✘", []color.Attribute{color.FgHiRed, color.Bold}},
	StatusAmbiguous: {"?", []color.Attribute{color.FgHiYellow, color.Bold}},
	StatusUnknown:   {"!", []color.Attribute{color.FgHiMagenta, color.Bold}},
}

func (s HealthCheckStatus) style() statusStyle {
	if st, ok := styles[s]; ok {
		return st
	}
	return styles[StatusUnknown]
}

func (s HealthCheckStatus) String() string { return s.style().symbol }

// Status reads the outcome of a Runner out of its result.
// Anything that is not a serum error has no status.
func Status(err error) HealthCheckStatus {
	if _, ok := err.(serum.ErrorInterface); !ok {
		return StatusNone
	}
	switch serum.Code(err) {
	case CodeRunOkay:
		return StatusOkay
	case CodeRunFailure:
		return StatusFail
	case CodeRunAmbiguous:
		return StatusAmbiguous
	default:
		return StatusUnknown
	}
}

type Runner interface {
	// Run never returns nil.
	//
	// Errors:
	//
	//    - sedar-error-healthcheck-run-okay --
	//    - sedar-error-healthcheck-run-fail --
	//    - sedar-error-healthcheck-run-ambiguous --
	Run(context.Context) error
	// String names the check in the report.
	String() string
}

// HealthCheck is a report over a set of runners.
// Results line up with Runners once Run has been called.
type HealthCheck struct {
	Runners []Runner
	Results []serum.ErrorInterfaceWithMessage
}

// Run executes every runner in order and keeps the results.
// A runner that answers with something other than a serum message error counts as failed.
//
// Errors: none
func (h *HealthCheck) Run(ctx context.Context) error {
	log := logging.Ctx(ctx)
	h.Results = make([]serum.ErrorInterfaceWithMessage, len(h.Runners))
	for i, r := range h.Runners {
		log.Debug("healthcheck", "running %s", r)
		err := r.Run(ctx)
		if res, ok := err.(serum.ErrorInterfaceWithMessage); ok {
			h.Results[i] = res
			continue
		}
		h.Results[i] = serum.Error(CodeRunFailure, serum.WithCause(err),
			serum.WithMessageTemplate("{{check}} did not report a result"),
			serum.WithDetail("check", r.String()),
		).(serum.ErrorInterfaceWithMessage)
	}
	return nil
}

func (h *HealthCheck) ran() bool {
	return h.Results != nil && len(h.Results) == len(h.Runners)
}

// Passed counts the okay results.
func (h *HealthCheck) Passed() int {
	n := 0
	for _, r := range h.Results {
		if Status(r) == StatusOkay {
			n++
		}
	}
	return n
}

// Healthy is true when every result is okay.
// It is false before Run.
func (h *HealthCheck) Healthy() bool {
	return h.ran() && len(h.Results) > 0 && h.Passed() == len(h.Results)
}

// Fprint writes one aligned line per check followed by a tally.
//
// Errors:
//
//    - sedar-error-internal -- Run has not been called
func (h *HealthCheck) Fprint(w io.Writer) error {
	if !h.ran() {
		return serum.Error(sdapi.ECodeInternal,
			serum.WithMessageLiteral("health check must run before its results are printed"),
		)
	}
	width := 0
	for _, r := range h.Runners {
		if n := len(r.String()); n > width {
			width = n
		}
	}
	for i, res := range h.Results {
		s := Status(res)
		mark := color.New(s.style().color...).Sprint(s)
		fmt.Fprintf(w, " %s  %-*s\t%s\n", mark, width, h.Runners[i], res.Message())
	}
	fmt.Fprintf(w, "%d of %d checks passed\n", h.Passed(), len(h.Results))
	return nil
}
