package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/dynamic-handlers/internal/app"
	"github.com/JakeFAU/dynamic-handlers/internal/client"
	"github.com/JakeFAU/dynamic-handlers/internal/registry"
	"github.com/JakeFAU/dynamic-handlers/internal/worker"
)

type fakeApp struct {
	reg    *registry.Registry
	opts   client.Options
	closed int
}

func (f *fakeApp) Close(context.Context) error {
	f.closed++
	return nil
}

func (f *fakeApp) GetLogger() *zap.Logger { return zap.NewNop() }

func (f *fakeApp) NewClient(out io.Writer) *client.WorkerClient {
	return client.New(f.reg, out, nil, nil, nil, f.opts, nil)
}

func (f *fakeApp) MetricSummary() ([]app.MetricValue, error) {
	return []app.MetricValue{{Key: "worker_runs_active", Value: 0}}, nil
}

func (f *fakeApp) WorkerTypes() []string { return f.reg.Names() }

func withFakeApp(t *testing.T, fake *fakeApp) {
	t.Helper()
	orig := newApp
	newApp = func(string) (App, error) { return fake, nil }
	t.Cleanup(func() { newApp = orig })
}

func newFakeApp() *fakeApp {
	reg := registry.NewRegistry()
	reg.MustRegister(worker.TypeName, func() (any, error) {
		return worker.New(worker.WithInterval(0)), nil
	})
	return &fakeApp{reg: reg, opts: client.DefaultOptions()}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommandPrintsProgress(t *testing.T) {
	fake := newFakeApp()
	withFakeApp(t, fake)

	out, err := execute(t, "run", "--metrics")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 100)
	require.Equal(t, "Progress: Working (1%)", lines[0])
	require.Equal(t, "Progress: Working (100%)", lines[99])
	require.GreaterOrEqual(t, fake.closed, 1)
}

func TestRunCommandReportsLookupError(t *testing.T) {
	fake := newFakeApp()
	fake.opts.EventName = "Missing"
	withFakeApp(t, fake)

	out, err := execute(t, "run")
	require.ErrorIs(t, err, client.ErrChannelNotFound)
	require.True(t, client.IsLookupError(err))
	require.Empty(t, out)
	require.Equal(t, 1, fake.closed)
}

func TestTypesCommandListsRegistry(t *testing.T) {
	fake := newFakeApp()
	fake.reg.MustRegister("plugins.Other", func() (any, error) { return worker.New(), nil })
	withFakeApp(t, fake)

	out, err := execute(t, "types")
	require.NoError(t, err)
	require.Equal(t, "external.Worker\nplugins.Other\n", out)
}

func TestRootCommandInitFailure(t *testing.T) {
	orig := newApp
	newApp = func(string) (App, error) { return nil, fmt.Errorf("boom") }
	t.Cleanup(func() { newApp = orig })

	_, err := execute(t, "types")
	require.ErrorContains(t, err, "failed to initialize application services")
}

func TestResolveAppMissing(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.EqualError(t, err, "application services not initialized")
}
