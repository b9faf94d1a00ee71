package cmd

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/wundergraph/graphiql-fetcher/internal/wstest"
)

// resetFlags restores flag defaults, cobra keeps parsed values between executions.
func resetFlags(commands ...*cobra.Command) {
	for _, command := range commands {
		command.LocalFlags().VisitAll(func(flag *pflag.Flag) {
			if flag.Value.Type() == "stringToString" {
				return
			}
			_ = flag.Value.Set(flag.DefValue)
			flag.Changed = false
		})
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd, fetchCmd, locateCmd)

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestFetchCmd(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		var body []byte
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ = io.ReadAll(r.Body)
			_, _ = w.Write([]byte(`{"data":{"hero":{"name":"R2-D2"}}}`))
		}))
		defer server.Close()

		out, err := execute(t, "query Hero { hero { name } } query Other { other }",
			"fetch", "--endpoint", server.URL, "--operation-name", "Hero", "--variables", `{"episode":"JEDI"}`)
		require.NoError(t, err)

		assert.JSONEq(t, `{"data":{"hero":{"name":"R2-D2"}}}`, out)
		assert.Equal(t, "Hero", gjson.GetBytes(body, "operationName").String())
		assert.JSONEq(t, `{"episode":"JEDI"}`, gjson.GetBytes(body, "variables").Raw)
	})

	t.Run("raw response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`bad gateway`))
		}))
		defer server.Close()

		out, err := execute(t, "{ a }", "fetch", "--endpoint", server.URL)
		require.NoError(t, err)
		assert.Equal(t, "bad gateway\n", out)
	})

	t.Run("endpoint from environment", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"env":true}}`))
		}))
		defer server.Close()
		t.Setenv("GRAPHIQL_ENDPOINT", server.URL)

		out, err := execute(t, "{ env }", "fetch")
		require.NoError(t, err)
		assert.JSONEq(t, `{"data":{"env":true}}`, out)
	})

	t.Run("ambiguous document", func(t *testing.T) {
		_, err := execute(t, "query A { a } query B { b }", "fetch", "--endpoint", "http://127.0.0.1:0")
		assert.EqualError(t, err, "document contains 2 operations, an operation name is required")
	})

	t.Run("invalid variables", func(t *testing.T) {
		_, err := execute(t, "{ a }", "fetch", "--endpoint", "http://127.0.0.1:0", "--variables", "{")
		assert.ErrorContains(t, err, "invalid variables")
	})

	t.Run("subscription", func(t *testing.T) {
		server := wstest.NewServer(t, "graphql-ws", func(t *testing.T, conn *wstest.Conn) {
			conn.Read()
			conn.Write(`{"id":"1","type":"data","payload":{"data":{"counter":1}}}`)
			conn.Write(`{"id":"1","type":"data","payload":{"data":{"counter":2}}}`)
			conn.Write(`{"id":"1","type":"complete"}`)
			conn.Drain()
		})

		out, err := execute(t, "subscription { counter }",
			"fetch", "--endpoint", "http://127.0.0.1:0", "--subscription-endpoint", server.URL, "--subprotocol", "graphql-ws")
		require.NoError(t, err)
		assert.Equal(t, "{\"data\":{\"counter\":1}}\n{\"data\":{\"counter\":2}}\n", out)
	})
}

func TestLocateCmd(t *testing.T) {
	document := "query First { a }\n" +
		"fragment F on T { b }\n" +
		"subscription { c }\n"

	dir := t.TempDir()
	file := filepath.Join(dir, "document.graphql")
	require.NoError(t, os.WriteFile(file, []byte(document), 0o600))

	t.Run("offset", func(t *testing.T) {
		out, err := execute(t, "", "locate", "--offset", "8", file)
		require.NoError(t, err)
		assert.Equal(t, "query\tFirst\tquery-First\n", out)
	})

	t.Run("offset range from stdin", func(t *testing.T) {
		out, err := execute(t, document, "locate", "--offset", "20", "--end", "30")
		require.NoError(t, err)
		assert.Equal(t, "fragment\tF\tfragment-F\n", out)
	})

	t.Run("line and column", func(t *testing.T) {
		out, err := execute(t, "", "locate", "--line", "3", "--column", "16", file)
		require.NoError(t, err)
		assert.Equal(t, "subscription\tunknown\tsubscription-unknown\n", out)
	})

	t.Run("between definitions", func(t *testing.T) {
		_, err := execute(t, "", "locate", "--offset", "17", "--end", "19", file)
		assert.ErrorIs(t, err, errNoDefinition)
	})

	t.Run("missing position", func(t *testing.T) {
		_, err := execute(t, "", "locate", file)
		assert.Error(t, err)
	})

	t.Run("parse error", func(t *testing.T) {
		_, err := execute(t, "query {", "locate", "--offset", "0")
		assert.ErrorContains(t, err, "parse document")
	})
}
