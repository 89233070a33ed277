package main

import (
	"bytes"
	"math/rand"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

// runCLI executes memctl with args and returns its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, verbose, jsonOut, logJSON, debugMode = "", false, false, false, false
	runOpts = driveOpts{workload: "churn", steps: 10000, seed: 1}
	checkOpts = driveOpts{workload: "churn", steps: 2000, seed: 1}
	runReport, runSites = false, 10

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunCommand_Text(t *testing.T) {
	out, err := runCLI(t, "run", "-c", "testdata/small.yaml", "--steps", "300", "--report", "--sites", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "churn: 300 ops")
	assert.Contains(t, out, "pool 0:")
	assert.Contains(t, out, "heap:")
	assert.Contains(t, out, "slot:")
	assert.Contains(t, out, "live:")
}

func TestRunCommand_JSON(t *testing.T) {
	out, err := runCLI(t, "run", "-c", "testdata/small.yaml", "--workload", "scenario-b", "--json")
	require.NoError(t, err)

	var got struct {
		Result Result `json:"result"`
		Stats  struct {
			Slot struct {
				Arrays int
			} `json:"slot"`
		} `json:"stats"`
	}
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &got))
	assert.Equal(t, "scenario-b", got.Result.Workload)
	assert.Equal(t, 1, got.Stats.Slot.Arrays)
}

func TestRunCommand_Trace(t *testing.T) {
	out, err := runCLI(t, "run", "--trace", "testdata/trace.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "trace: 12 ops, 0 failed, 2 live")
}

func TestRunCommand_UnknownWorkload(t *testing.T) {
	_, err := runCLI(t, "run", "--workload", "nope")
	require.ErrorContains(t, err, `unknown workload "nope"`)
}

func TestCheckCommand(t *testing.T) {
	out, err := runCLI(t, "check", "-c", "testdata/small.yaml", "--steps", "200", "--debug")
	require.NoError(t, err)
	assert.Contains(t, out, "ok: 200 ops checked")
}

func TestServerHandlers(t *testing.T) {
	sys := newTestSystem(t)
	s := &server{sys: sys, work: &churner{sys: sys}, rng: rand.New(rand.NewSource(9))}
	serveBatch = 100
	s.step()

	get := func(uri string) *fasthttp.RequestCtx {
		var ctx fasthttp.RequestCtx
		ctx.Request.SetRequestURI(uri)
		ctx.Request.Header.SetMethod(fasthttp.MethodGet)
		s.handle(&ctx)
		return &ctx
	}

	ctx := get("/stats")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var stats struct {
		Ops int `json:"ops"`
	}
	require.NoError(t, jsoniter.Unmarshal(ctx.Response.Body(), &stats))
	assert.Equal(t, 100, stats.Ops)

	ctx = get("/report")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), `"categories"`)

	ctx = get("/report?format=text&sites=2")
	assert.Contains(t, string(ctx.Response.Body()), "live:")

	ctx = get("/check")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), `"ok"`)

	assert.Equal(t, fasthttp.StatusNotFound, get("/nope").Response.StatusCode())

	var post fasthttp.RequestCtx
	post.Request.SetRequestURI("/stats")
	post.Request.Header.SetMethod(fasthttp.MethodPost)
	s.handle(&post)
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, post.Response.StatusCode())
}
