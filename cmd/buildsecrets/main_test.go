package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/brizzbuzz/buildsecrets/internal/secrets"
)

// run executes the root command with args and returns stdout.
func run(c *qt.C, args ...string) (string, error) {
	c.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	c.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default, since flag values
// outlive a single Execute.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func writeProject(c *qt.C, files map[string]string) string {
	c.Helper()
	dir := c.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		c.Assert(os.MkdirAll(filepath.Dir(path), 0o755), qt.IsNil)
		c.Assert(os.WriteFile(path, []byte(content), 0o600), qt.IsNil)
	}
	return dir
}

func TestMain(m *testing.M) {
	_ = os.Unsetenv("OP_SERVICE_ACCOUNT_TOKEN")
	os.Exit(m.Run())
}

func TestGetWithSource(t *testing.T) {
	c := qt.New(t)
	dir := writeProject(c, map[string]string{
		"local.properties": "GMAPS_API_KEY=ABC123\n",
		"other.properties": "OTHER_KEY=xyz\n",
	})

	out, err := run(c, "get", "GMAPS_API_KEY", "--source", filepath.Join(dir, "local.properties"))
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "ABC123\n")

	out, err = run(c, "get", "GMAPS_API_KEY", "--source", filepath.Join(dir, "other.properties"))
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "\n")

	out, err = run(c, "get", "GMAPS_API_KEY", "--source", filepath.Join(dir, "missing.properties"))
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "\n")
}

func TestGetWithDefaultSources(t *testing.T) {
	c := qt.New(t)
	dir := writeProject(c, map[string]string{
		".env": "GMAPS_API_KEY=from-dotenv\n",
	})

	out, err := run(c, "--root", dir, "--config", filepath.Join(dir, "buildsecrets.toml"), "get", "GMAPS_API_KEY")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "from-dotenv\n")
}

func TestResolveFormats(t *testing.T) {
	c := qt.New(t)
	dir := writeProject(c, map[string]string{
		"android/local.properties": "GMAPS_API_KEY=ABC123\n",
	})
	cfgPath := filepath.Join(dir, "buildsecrets.toml")

	out, err := run(c, "--config", cfgPath, "resolve")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "GMAPS_API_KEY = ABC123\n")

	out, err = run(c, "--config", cfgPath, "resolve", "--format", "json")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "{\n  \"GMAPS_API_KEY\": \"ABC123\"\n}\n")

	target := filepath.Join(dir, "out", "placeholders.env")
	out, err = run(c, "--config", cfgPath, "resolve", "--format", "env", "--output", target)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "")
	data, err := os.ReadFile(target)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "GMAPS_API_KEY=ABC123\n")
}

func TestResolveOutputUsesConfiguredMode(t *testing.T) {
	c := qt.New(t)
	dir := writeProject(c, map[string]string{
		"buildsecrets.toml":        "[output]\nmode = \"0640\"\n",
		"android/local.properties": "GMAPS_API_KEY=ABC123\n",
	})

	target := filepath.Join(dir, "out", "placeholders.properties")
	_, err := run(c, "--config", filepath.Join(dir, "buildsecrets.toml"), "resolve", "--output", target)
	c.Assert(err, qt.IsNil)

	info, err := os.Stat(target)
	c.Assert(err, qt.IsNil)
	c.Assert(info.Mode().Perm(), qt.Equals, os.FileMode(0o640))
}

func TestResolveUnknownFormat(t *testing.T) {
	c := qt.New(t)
	dir := writeProject(c, nil)

	_, err := run(c, "--config", filepath.Join(dir, "buildsecrets.toml"), "resolve", "--format", "xml")
	c.Assert(err, qt.ErrorMatches, `(?s).*Encoding placeholders failed.*unknown output format "xml".*`)
}

func TestRenderWritesOutputs(t *testing.T) {
	c := qt.New(t)
	dir := writeProject(c, map[string]string{
		"buildsecrets.toml": `
[output]
path = "build/placeholders.properties"

[manifest]
template = "AndroidManifest.xml.in"
output = "build/AndroidManifest.xml"
application_id = "com.example.olx_clone"
`,
		"AndroidManifest.xml.in": `<manifest package="${applicationId}"><meta-data android:value="${GMAPS_API_KEY}"/></manifest>`,
		".env":                   "GMAPS_API_KEY=a&b\n",
	})

	_, err := run(c, "--config", filepath.Join(dir, "buildsecrets.toml"), "render")
	c.Assert(err, qt.IsNil)

	data, err := os.ReadFile(filepath.Join(dir, "build", "AndroidManifest.xml"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, `<manifest package="com.example.olx_clone"><meta-data android:value="a&amp;b"/></manifest>`)

	_, err = os.Stat(filepath.Join(dir, "build", "placeholders.properties"))
	c.Assert(err, qt.IsNil)
}

func TestValidate(t *testing.T) {
	c := qt.New(t)
	dir := writeProject(c, map[string]string{
		"good.toml": "[output]\nformat = \"yaml\"\n",
		"bad.toml":  "[output]\nformat = \"xml\"\nmode = \"0666\"\n",
	})

	out, err := run(c, "--config", filepath.Join(dir, "good.toml"), "validate")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "is valid")

	_, err = run(c, "--config", filepath.Join(dir, "bad.toml"), "validate")
	c.Assert(err, qt.Not(qt.IsNil))
	c.Assert(err.Error(), qt.Contains, "xml")
	c.Assert(err.Error(), qt.Contains, "world write access")
}

func TestSetToken(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "secrets", "token")

	var out bytes.Buffer
	err := setToken(strings.NewReader("  ops_abc123  \n"), &out, path)
	c.Assert(err, qt.IsNil)
	c.Assert(out.String(), qt.Contains, "Token successfully stored")

	data, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "ops_abc123")

	info, err := os.Stat(path)
	c.Assert(err, qt.IsNil)
	c.Assert(info.Mode().Perm(), qt.Equals, os.FileMode(0o600))

	err = setToken(strings.NewReader("\n"), &out, path)
	c.Assert(err, qt.ErrorMatches, `(?s).*Token cannot be empty.*`)
}

func TestBuildPassReloadsConfig(t *testing.T) {
	c := qt.New(t)
	dir := writeProject(c, map[string]string{
		"buildsecrets.toml": "[output]\npath = \"build/first.properties\"\n",
		".env":              "GMAPS_API_KEY=ABC123\n",
	})
	cfgPath := filepath.Join(dir, "buildsecrets.toml")

	resetFlags(rootCmd)
	configFile = cfgPath
	c.Cleanup(func() { resetFlags(rootCmd) })

	pass := buildPass(secrets.NewProcessor(nil))

	c.Assert(pass(context.Background()), qt.IsNil)
	_, err := os.Stat(filepath.Join(dir, "build", "first.properties"))
	c.Assert(err, qt.IsNil)

	c.Assert(os.WriteFile(cfgPath, []byte("[output]\npath = \"build/second.properties\"\n"), 0o600), qt.IsNil)
	c.Assert(pass(context.Background()), qt.IsNil)

	data, err := os.ReadFile(filepath.Join(dir, "build", "second.properties"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "GMAPS_API_KEY = ABC123\n")
}
