package test

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firesync/testutil"
)

func executeTest(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	TestCmd.SetOut(&out)
	TestCmd.SetErr(&out)
	TestCmd.SetArgs(args)
	t.Cleanup(func() {
		TestCmd.SetArgs(nil)
		verbose = false
	})
	err := TestCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTestCommand(t *testing.T) {
	t.Run("writes a test document", func(t *testing.T) {
		fs := testutil.NewFakeFirestore(t)
		testutil.UseFakesInGlobalConfig(t, fs, testutil.NewFakeWordPress(t), nil)

		out, err := executeTest(t, "--verbose")

		require.NoError(t, err)
		assert.Contains(t, out, "Project:   demo")
		assert.Contains(t, out, "Transport: rest")
		assert.Contains(t, out, "Connection OK")
		paths := fs.Paths()
		require.Len(t, paths, 1)
		assert.True(t, strings.HasPrefix(paths[0], "test-connection/"))
		assert.Contains(t, out, "Test document written to "+paths[0])
	})

	t.Run("fails when the store rejects the connection", func(t *testing.T) {
		fs := testutil.NewFakeFirestore(t)
		testutil.UseFakesInGlobalConfig(t, fs, testutil.NewFakeWordPress(t), nil)
		fs.FailNext(http.MethodPost, http.StatusForbidden, 1)

		out, err := executeTest(t)

		assert.ErrorContains(t, err, "connection test failed")
		assert.NotContains(t, out, "Connection OK")
		assert.Empty(t, fs.Paths())
	})
}
