package healthcheck

import (
	"context"
	"strconv"
	"strings"

	"github.com/facette/natsort"
	"github.com/serum-errors/go-serum"

	"github.com/warptools/sedar/sdapi"
)

// Fetcher fetches one of the server's liveness listings.
type Fetcher func(ctx context.Context) (sdapi.Health, error)

// Endpoint checks a liveness listing as a whole.
// It fails when the listing cannot be fetched or any component reports itself dead,
// and is ambiguous when the listing is empty.
type Endpoint struct {
	Name  string
	Fetch Fetcher
}

func (e *Endpoint) String() string {
	return e.Name
}

// Errors:
//
//    - sedar-error-healthcheck-run-okay --
//    - sedar-error-healthcheck-run-fail --
//    - sedar-error-healthcheck-run-ambiguous --
func (e *Endpoint) Run(ctx context.Context) error {
	health, err := e.Fetch(ctx)
	if err != nil {
		return serum.Error(CodeRunFailure, serum.WithCause(err),
			serum.WithMessageTemplate("cannot reach {{name|q}}: {{code}}"),
			serum.WithDetail("name", e.Name),
			serum.WithDetail("code", serum.Code(err)),
		)
	}
	if len(health.Components) == 0 {
		return serum.Error(CodeRunAmbiguous,
			serum.WithMessageLiteral("no components reported"),
		)
	}
	dead := health.Dead()
	if len(dead) == 0 {
		return serum.Error(CodeRunOkay,
			serum.WithMessageTemplate("all {{count}} components alive"),
			serum.WithDetail("count", strconv.Itoa(len(health.Components))),
		)
	}
	names := make([]string, 0, len(dead))
	for _, c := range dead {
		names = append(names, c.Name)
	}
	natsort.Sort(names)
	return serum.Error(CodeRunFailure,
		serum.WithMessageTemplate("not alive: {{components}}"),
		serum.WithDetail("components", strings.Join(names, ", ")),
	)
}

// Components expands a listing into one runner per component, in natural name order.
func Components(health sdapi.Health) []Runner {
	sorted := make([]string, 0, len(health.Components))
	byName := make(map[string]sdapi.Component, len(health.Components))
	for _, c := range health.Components {
		sorted = append(sorted, c.Name)
		byName[c.Name] = c
	}
	natsort.Sort(sorted)
	runners := make([]Runner, 0, len(sorted))
	for _, name := range sorted {
		runners = append(runners, component(byName[name]))
	}
	return runners
}

type component sdapi.Component

func (c component) String() string { return c.Name }

// Errors:
//
//    - sedar-error-healthcheck-run-okay --
//    - sedar-error-healthcheck-run-fail --
func (c component) Run(context.Context) error {
	if c.IsAlive {
		return serum.Error(CodeRunOkay, serum.WithMessageLiteral("alive"))
	}
	return serum.Error(CodeRunFailure, serum.WithMessageLiteral("not alive"))
}
