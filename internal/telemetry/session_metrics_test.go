package telemetry_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-signin/credential"
	"github.com/jrsteele09/go-signin/credential/repofake"
	"github.com/jrsteele09/go-signin/directauth/directauthfake"
	"github.com/jrsteele09/go-signin/internal/telemetry"
	"github.com/jrsteele09/go-signin/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSessionMetrics_ObservesManager(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics, err := telemetry.NewSessionMetrics(reg)
	require.NoError(t, err)

	provider := directauthfake.NewFakeProvider()
	provider.AddUser("alice", "correct", credential.Token{AccessToken: "abc123"})
	m, err := session.NewManager(ctx,
		session.Deps{Provider: provider, Credentials: credential.NewKeychain(repofake.NewFakeCredentialRepo())},
		session.WithLogger(zerolog.Nop()),
		session.WithObserver(metrics.Observe),
	)
	require.NoError(t, err)

	require.Error(t, m.Authenticate(ctx, "alice", "wrong"))
	require.NoError(t, m.Authenticate(ctx, "alice", "correct"))

	require.InDelta(t, 2, counterValue(t, reg, "signin_session_transitions_total", "authenticating"), 0)
	require.InDelta(t, 1, counterValue(t, reg, "signin_session_transitions_total", "failed"), 0)
	require.InDelta(t, 1, counterValue(t, reg, "signin_session_state", "authenticated"), 0)
	require.InDelta(t, 0, counterValue(t, reg, "signin_session_state", "failed"), 0)
	count, err := testutil.GatherAndCount(reg, "signin_session_failures_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestNewSessionMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := telemetry.NewSessionMetrics(reg)
	require.NoError(t, err)
	_, err = telemetry.NewSessionMetrics(reg)
	require.Error(t, err)
}

// counterValue reads the value of the named metric with the given state label.
func counterValue(t *testing.T, reg *prometheus.Registry, name, state string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "state" && label.GetValue() == state {
					if c := metric.GetCounter(); c != nil {
						return c.GetValue()
					}
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{state=%q} not found", name, state)
	return 0
}
