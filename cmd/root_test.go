package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"run", "serve", "show", "reenrich", "attach", "runs"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "grant-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommand_Flags(t *testing.T) {
	flag := runCmd.Flags().Lookup("force")
	require.NotNil(t, flag, "run command should have --force flag")
	assert.Equal(t, "false", flag.DefValue)
	for _, stage := range []string{"re-screen", "re-crawl", "re-enrich", "rescore", "strategies"} {
		assert.Contains(t, flag.Usage, stage)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestReenrichCommand_Flags(t *testing.T) {
	for _, name := range []string{"recrawl", "all", "below", "limit"} {
		assert.NotNil(t, reenrichCmd.Flags().Lookup(name), "reenrich command should have --%s flag", name)
	}
	assert.Equal(t, "60", reenrichCmd.Flags().Lookup("below").DefValue)
}

func TestReenrichCommand_Args(t *testing.T) {
	reenrichAll = false
	assert.NoError(t, reenrichCmd.Args(reenrichCmd, []string{"grant-x"}))
	assert.Error(t, reenrichCmd.Args(reenrichCmd, nil))

	reenrichAll = true
	t.Cleanup(func() { reenrichAll = false })
	assert.NoError(t, reenrichCmd.Args(reenrichCmd, nil))
	assert.Error(t, reenrichCmd.Args(reenrichCmd, []string{"grant-x"}))
}

func TestShowCommand_Flags(t *testing.T) {
	assert.NotNil(t, showCmd.Flags().Lookup("analysis"))
	assert.NotNil(t, showCmd.Flags().Lookup("strategy"))
	assert.NotNil(t, showCmd.Flags().Lookup("render"))
	assert.Error(t, showCmd.Args(showCmd, nil))
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "stats"} {
		assert.True(t, names[name], "expected runs subcommand %q not found", name)
	}
}

func TestRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderMarkdown(&buf, "# 신청 전략\n\n사업계획서를 먼저 준비한다.", 80))
	assert.Contains(t, buf.String(), "신청 전략")
	assert.Contains(t, buf.String(), "사업계획서를 먼저 준비한다.")
}
