package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/buildinfo"
	"github.com/matzehuels/stackbuild/pkg/codec"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/pipeline"
	"github.com/matzehuels/stackbuild/pkg/platform"
)

// wireResponse is the client view of a Response.
type wireResponse struct {
	ID     uint64           `cbor:"id"`
	OK     bool             `cbor:"ok"`
	Result codec.RawMessage `cbor:"result"`
	Error  *WireError       `cbor:"error"`
}

func encodeRequests(t *testing.T, reqs ...Request) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf)
	for _, r := range reqs {
		if err := enc.Encode(r); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func decodeResponses(t *testing.T, data []byte) []wireResponse {
	t.Helper()
	var out []wireResponse
	dec := codec.NewDecoder(bytes.NewReader(data))
	for {
		var r wireResponse
		if err := dec.Decode(&r); err == io.EOF {
			return out
		} else if err != nil {
			t.Fatal(err)
		}
		out = append(out, r)
	}
}

// streamClient drives ServeStream over pipes, one request at a time.
type streamClient struct {
	t      *testing.T
	reqs   *io.PipeWriter
	enc    *codec.Encoder
	dec    *codec.Decoder
	served chan error
}

func startStream(t *testing.T, sess *Session) *streamClient {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	c := &streamClient{
		t:      t,
		reqs:   reqW,
		enc:    codec.NewEncoder(reqW),
		dec:    codec.NewDecoder(respR),
		served: make(chan error, 1),
	}
	go func() {
		err := ServeStream(context.Background(), reqR, respW, sess, quietLogger())
		respW.Close()
		c.served <- err
	}()
	t.Cleanup(func() { reqW.Close() })
	return c
}

func (c *streamClient) send(req Request) {
	c.t.Helper()
	if err := c.enc.Encode(req); err != nil {
		c.t.Fatal(err)
	}
}

func (c *streamClient) recv() wireResponse {
	c.t.Helper()
	var r wireResponse
	if err := c.dec.Decode(&r); err != nil {
		c.t.Fatal(err)
	}
	return r
}

// hangUp closes the request side and returns what ServeStream returned.
func (c *streamClient) hangUp() error {
	c.t.Helper()
	c.reqs.Close()
	select {
	case err := <-c.served:
		return err
	case <-time.After(5 * time.Second):
		c.t.Fatal("ServeStream did not return after disconnect")
		return nil
	}
}

func TestServeStream(t *testing.T) {
	dir := writeProject(t)
	c := startStream(t, newTestSession(okExecutor{}))

	c.send(Request{ID: 1, Method: MethodInitialize, Params: mustMarshal(t, InitializeParams{ClientVersion: "v1.0.0"})})
	if r := c.recv(); r.ID != 1 || !r.OK {
		t.Fatalf("initialize = %+v", r)
	}

	c.send(Request{ID: 2, Method: MethodGetMetadata, Params: mustMarshal(t, pipeline.MetadataRequest{ManifestPath: dir, Platform: platform.Linux64})})
	r := c.recv()
	if r.ID != 2 || !r.OK {
		t.Fatalf("get_metadata = %+v", r)
	}
	var md pipeline.MetadataResult
	if err := codec.Unmarshal(r.Result, &md); err != nil {
		t.Fatal(err)
	}
	if md.Metadata.Name != "hello" || md.Fingerprint == "" {
		t.Errorf("metadata = %+v", md)
	}

	c.send(Request{ID: 3, Method: MethodGetMetadata, Params: mustMarshal(t, pipeline.MetadataRequest{ManifestPath: filepath.Join(dir, "missing.toml"), Platform: platform.Linux64})})
	r = c.recv()
	if r.ID != 3 || r.OK || r.Error == nil || r.Error.Code == errors.ErrCodeProtocol {
		t.Errorf("missing manifest response = %+v", r)
	}

	if err := c.hangUp(); err != nil {
		t.Errorf("ServeStream() error = %v", err)
	}
}

func TestServeStreamDisconnectCancelsBuild(t *testing.T) {
	exec := &blockingExecutor{started: make(chan struct{})}
	c := startStream(t, newTestSession(exec))

	c.send(Request{ID: 1, Method: MethodInitialize, Params: mustMarshal(t, InitializeParams{ClientVersion: "v1.0.0"})})
	if r := c.recv(); !r.OK {
		t.Fatalf("initialize = %+v", r)
	}

	c.send(Request{ID: 2, Method: MethodBuild, Params: mustMarshal(t, pipeline.BuildRequest{
		ManifestPath: writeProject(t),
		Platform:     platform.Linux64,
		Prefix:       backend.Prefix{Install: t.TempDir()},
	})})
	select {
	case <-exec.started:
	case <-time.After(5 * time.Second):
		t.Fatal("build did not start")
	}

	resp := make(chan wireResponse, 1)
	go func() {
		var r wireResponse
		if err := c.dec.Decode(&r); err == nil {
			resp <- r
		}
		close(resp)
	}()

	if err := c.hangUp(); err != nil {
		t.Errorf("ServeStream() error = %v", err)
	}
	r, ok := <-resp
	if !ok {
		t.Fatal("no response for the running build")
	}
	if r.ID != 2 || r.OK || r.Error == nil || r.Error.Code != errors.ErrCodeCancelled {
		t.Errorf("build response = %+v, want CANCELLED", r)
	}
}

func TestServeStreamProtocolError(t *testing.T) {
	in := encodeRequests(t,
		Request{ID: 1, Method: MethodBuild},
		Request{ID: 2, Method: MethodInitialize, Params: mustMarshal(t, InitializeParams{ClientVersion: "v1.0.0"})},
	)

	var out bytes.Buffer
	err := ServeStream(context.Background(), bytes.NewReader(in), &out, newTestSession(okExecutor{}), quietLogger())
	if !errors.Is(err, errors.ErrCodeProtocol) {
		t.Fatalf("ServeStream() error = %v, want PROTOCOL_ERROR", err)
	}
	resps := decodeResponses(t, out.Bytes())
	if len(resps) != 1 || resps[0].OK || resps[0].Error.Code != errors.ErrCodeProtocol {
		t.Errorf("responses = %+v", resps)
	}
}

func TestServeStreamGarbage(t *testing.T) {
	var out bytes.Buffer
	err := ServeStream(context.Background(), strings.NewReader("\xff\xff"), &out, newTestSession(okExecutor{}), quietLogger())
	if !errors.Is(err, errors.ErrCodeProtocol) {
		t.Fatalf("ServeStream() error = %v, want PROTOCOL_ERROR", err)
	}
}

func TestSocketServer(t *testing.T) {
	// Unix socket paths are short; t.TempDir can exceed the limit.
	dir, err := os.MkdirTemp("", "sb")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "backend.sock")

	srv := NewSocketServer(path, func() *Session { return newTestSession(okExecutor{}) }, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx) }()

	var conn net.Conn
	for i := 0; i < 100; i++ {
		if conn, err = net.Dial("unix", path); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if _, err := conn.Write(encodeRequests(t, Request{ID: 7, Method: MethodInitialize, Params: mustMarshal(t, InitializeParams{ClientVersion: "v1.2.0"})})); err != nil {
		t.Fatal(err)
	}
	var resp wireResponse
	if err := codec.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != 7 || !resp.OK {
		t.Errorf("response = %+v", resp)
	}
	conn.Close()

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("socket file not removed")
	}
}

func TestHTTPServer(t *testing.T) {
	dir := writeProject(t)
	srv := NewHTTPServer(textAdapter{}.Info(), func() *Session { return newTestSession(okExecutor{}) }, quietLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	post := func(path string, body any) *http.Response {
		t.Helper()
		var buf bytes.Buffer
		if body != nil {
			if err := json.NewEncoder(&buf).Encode(body); err != nil {
				t.Fatal(err)
			}
		}
		resp, err := http.Post(ts.URL+path, "application/json", &buf)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}
	decode := func(resp *http.Response, v any) {
		t.Helper()
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatal(err)
		}
	}

	resp, err := http.Get(ts.URL + "/capabilities")
	if err != nil {
		t.Fatal(err)
	}
	var caps CapabilitiesResponse
	decode(resp, &caps)
	if caps.ProtocolVersion != buildinfo.ProtocolVersion || !caps.Capabilities.ProvidesBuild {
		t.Errorf("capabilities = %+v", caps)
	}

	resp = post("/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created map[string]string
	decode(resp, &created)
	id := created["session_id"]

	type rpcResponse struct {
		ID     uint64          `json:"id"`
		OK     bool            `json:"ok"`
		Result json.RawMessage `json:"result"`
		Error  *WireError      `json:"error"`
	}
	var rpc rpcResponse
	decode(post("/sessions/"+id+"/rpc", map[string]any{
		"id": 1, "method": MethodInitialize, "params": InitializeParams{ClientVersion: "v1.0.0"},
	}), &rpc)
	if !rpc.OK {
		t.Fatalf("initialize = %+v", rpc.Error)
	}

	rpc = rpcResponse{}
	decode(post("/sessions/"+id+"/rpc", map[string]any{
		"id": 2, "method": MethodGetMetadata,
		"params": pipeline.MetadataRequest{ManifestPath: dir, Platform: platform.Osx64},
	}), &rpc)
	if !rpc.OK {
		t.Fatalf("get_metadata = %+v", rpc.Error)
	}
	var md pipeline.MetadataResult
	if err := json.Unmarshal(rpc.Result, &md); err != nil {
		t.Fatal(err)
	}
	if md.Metadata.Version != "1.0.0" {
		t.Errorf("metadata = %+v", md.Metadata)
	}

	var cancelled CancelResult
	decode(post("/sessions/"+id+"/cancel", nil), &cancelled)
	if cancelled.Cancelled {
		t.Error("cancel with nothing running reported true")
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/sessions/"+id, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}

	resp = post("/sessions/"+id+"/rpc", map[string]any{"id": 3, "method": MethodGetMetadata})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("rpc on deleted session status = %d", resp.StatusCode)
	}
}

func TestHTTPProtocolErrorDropsSession(t *testing.T) {
	srv := NewHTTPServer(textAdapter{}.Info(), func() *Session { return newTestSession(okExecutor{}) }, quietLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/sessions", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var created map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/sessions/"+created["session_id"]+"/rpc", "application/json",
		strings.NewReader(`{"id":1,"method":"build"}`))
	if err != nil {
		t.Fatal(err)
	}
	var rpc Response
	_ = json.NewDecoder(resp.Body).Decode(&rpc)
	resp.Body.Close()
	if rpc.OK || rpc.Error == nil || rpc.Error.Code != errors.ErrCodeProtocol {
		t.Fatalf("response = %+v", rpc)
	}

	srv.mu.Lock()
	n := len(srv.open)
	srv.mu.Unlock()
	if n != 0 {
		t.Errorf("%d sessions open after protocol error", n)
	}
}
