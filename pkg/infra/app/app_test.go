package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSection struct {
	Addr    string        `mapstructure:"addr"`
	Timeout time.Duration `mapstructure:"timeout"`
	Docs    []string      `mapstructure:"docs"`
}

type testOptions struct {
	Section  *testSection `mapstructure:"section"`
	Token    string       `mapstructure:"-"`
	complete int
	validErr error
}

func newTestOptions() *testOptions {
	return &testOptions{Section: &testSection{Addr: ":8000", Timeout: time.Second}}
}

func (o *testOptions) Flags() (fss NamedFlagSets) {
	fs := fss.FlagSet("section")
	fs.StringVar(&o.Section.Addr, "section.addr", o.Section.Addr, "addr")
	fs.DurationVar(&o.Section.Timeout, "section.timeout", o.Section.Timeout, "timeout")
	fs.StringArrayVar(&o.Section.Docs, "section.docs", o.Section.Docs, "docs")
	return fss
}

func (o *testOptions) Complete() error {
	o.complete++
	o.Token = os.Getenv("TEST_APP_TOKEN")
	return nil
}

func (o *testOptions) Validate() error { return o.validErr }

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNamedFlagSets_Order(t *testing.T) {
	var fss NamedFlagSets
	fss.FlagSet("http")
	fss.FlagSet("log")
	fss.FlagSet("http")

	assert.Equal(t, []string{"http", "log"}, fss.Order)
	assert.IsType(t, &pflag.FlagSet{}, fss.FlagSets["log"])
}

func TestEnvPrefix(t *testing.T) {
	assert.Equal(t, "RAG_ASK", EnvPrefix("rag-ask"))
}

func TestApp_ConfigFileAndFlagPrecedence(t *testing.T) {
	cfg := writeConfig(t, `
section:
  addr: ":9000"
  timeout: 5s
  docs:
    - "from file"
`)
	opts := newTestOptions()
	ran := false
	a := NewApp(WithName("test-app"), WithOptions(opts), WithNoDotEnv(), WithRunFunc(func() error {
		ran = true
		return nil
	}))

	a.Command().SetArgs([]string{"-c", cfg, "--section.timeout", "7s"})
	require.NoError(t, a.Command().Execute())

	assert.True(t, ran)
	assert.Equal(t, 1, opts.complete)
	assert.Equal(t, ":9000", opts.Section.Addr)
	assert.Equal(t, 7*time.Second, opts.Section.Timeout)
	assert.Equal(t, []string{"from file"}, opts.Section.Docs)
}

func TestApp_ChangedSliceFlagWins(t *testing.T) {
	cfg := writeConfig(t, "section:\n  docs: [\"a\", \"b\"]\n")
	opts := newTestOptions()
	a := NewApp(WithName("test-app"), WithOptions(opts), WithNoDotEnv())

	a.Command().SetArgs([]string{"-c", cfg, "--section.docs", "x,y", "--section.docs", "z"})
	require.NoError(t, a.Command().Execute())

	assert.Equal(t, []string{"x,y", "z"}, opts.Section.Docs)
}

func TestApp_EnvOverridesFile(t *testing.T) {
	t.Setenv("TEST_APP_SECTION_ADDR", ":7000")
	cfg := writeConfig(t, "section:\n  addr: \":9000\"\n")
	opts := newTestOptions()
	a := NewApp(WithName("test-app"), WithOptions(opts), WithNoDotEnv())

	a.Command().SetArgs([]string{"-c", cfg})
	require.NoError(t, a.Command().Execute())

	assert.Equal(t, ":7000", opts.Section.Addr)
}

func TestApp_ExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_APP_UPSTREAM", "upstream:1234")
	cfg := writeConfig(t, "section:\n  addr: \"${TEST_APP_UPSTREAM}\"\n")
	opts := newTestOptions()
	a := NewApp(WithName("test-app"), WithOptions(opts), WithNoDotEnv())

	a.Command().SetArgs([]string{"-c", cfg})
	require.NoError(t, a.Command().Execute())

	assert.Equal(t, "upstream:1234", opts.Section.Addr)
}

func TestApp_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TEST_APP_TOKEN=from-dotenv\n"), 0o600))
	t.Chdir(dir)
	t.Cleanup(func() { _ = os.Unsetenv("TEST_APP_TOKEN") })

	opts := newTestOptions()
	a := NewApp(WithName("test-app"), WithOptions(opts), WithNoConfig())
	a.Command().SetArgs(nil)
	require.NoError(t, a.Command().Execute())

	assert.Equal(t, "from-dotenv", opts.Token)
}

func TestApp_ValidateError(t *testing.T) {
	opts := newTestOptions()
	opts.validErr = errors.New("chat.api-key missing")
	ran := false
	a := NewApp(WithName("test-app"), WithOptions(opts), WithNoDotEnv(), WithNoConfig(), WithRunFunc(func() error {
		ran = true
		return nil
	}))
	a.Command().SetArgs(nil)

	err := a.Command().Execute()
	require.Error(t, err)
	assert.False(t, ran)
}

func TestApp_MissingConfigFile(t *testing.T) {
	opts := newTestOptions()
	a := NewApp(WithName("test-app"), WithOptions(opts), WithNoDotEnv())
	a.Command().SetArgs([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")})

	assert.Error(t, a.Command().Execute())
}

func TestApp_VersionFlag(t *testing.T) {
	a := NewApp(WithName("rag-ask"), WithOptions(newTestOptions()), WithRunFunc(func() error { return nil }))
	assert.NotNil(t, a.Command().PersistentFlags().Lookup("version"))

	noVersion := NewApp(WithName("rag-ask"), WithNoVersion(), WithOptions(newTestOptions()), WithRunFunc(func() error { return nil }))
	assert.Nil(t, noVersion.Command().PersistentFlags().Lookup("version"))
}

func TestGetVersion(t *testing.T) {
	assert.NotEmpty(t, GetVersion())
}
