package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/labstack/echo/v4"
	"github.com/openai/openai-go/v3"

	"taleweaver/pkg/entities"
	"taleweaver/pkg/index"
	"taleweaver/pkg/pipeline"
)

// scriptedModel answers extraction calls with a fixed character per chunk
// mention and story calls with a fixed text.
type scriptedModel struct {
	err   error
	story string
}

func (m scriptedModel) Infer(_ context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if system == "" {
		return m.story, nil
	}
	var chars []string
	for _, name := range []string{"Alice", "Bob"} {
		if strings.Contains(user, name) {
			chars = append(chars, `{"name":"`+name+`","description":"Not specified","personality":"Not specified"}`)
		}
	}
	return `{"characters":[` + strings.Join(chars, ",") + `]}`, nil
}

func (m scriptedModel) Verify(_ context.Context, result string) (bool, error) {
	return result != "", nil
}

type fakeIndexer struct {
	size, overlap int
	err           error
}

func (f *fakeIndexer) Build(_ context.Context, doc string, size, overlap int) (string, []entities.Node, error) {
	f.size, f.overlap = size, overlap
	if f.err != nil {
		return "", nil, f.err
	}
	return "idx-1", []entities.Node{{ID: "n1", Text: doc, Embedding: []float32{1}}}, nil
}

type fakeNodes map[string][]entities.Node

func (f fakeNodes) Nodes(_ context.Context, id string) ([]entities.Node, error) {
	nodes, ok := f[id]
	if !ok {
		return nil, index.ErrNotFound
	}
	return nodes, nil
}

func newTestServer(model scriptedModel, indexer *fakeIndexer) *Server {
	extractor := &pipeline.Extractor{Analyzer: &pipeline.Analyzer{Inferencer: model}}
	storyteller := &pipeline.StoryGenerator{Inferencer: model}
	if indexer == nil {
		indexer = &fakeIndexer{}
	}
	nodes := fakeNodes{"known": {{Text: "Alice and Bob"}}}
	return NewServer(context.Background(), extractor, storyteller, indexer, nodes)
}

func do(t *testing.T, s *Server, method, path, body string) (int, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	var out map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not a JSON object: %q", rec.Body.String())
	}
	return rec.Code, out
}

func errorOf(t *testing.T, body map[string]json.RawMessage) string {
	t.Helper()
	var msg string
	if err := json.Unmarshal(body["error"], &msg); err != nil {
		t.Fatalf("missing error field in %v", body)
	}
	return msg
}

func TestExtractCharacters(t *testing.T) {
	s := newTestServer(scriptedModel{}, nil)
	code, body := do(t, s, http.MethodPost, "/api/extractcharacters",
		`{"nodesWithEmbedding":[{"text":"Alice met"},{"text":"Bob. Alice waved."}],"temperature":0.2}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body %v", code, body)
	}

	var p pipeline.Result
	if err := json.Unmarshal(body["payload"], &p); err != nil {
		t.Fatal(err)
	}
	want := []entities.Character{
		{Name: "Alice", Description: entities.Placeholder, Personality: entities.Placeholder},
		{Name: "Bob", Description: entities.Placeholder, Personality: entities.Placeholder},
	}
	if diff := cmp.Diff(want, p.Characters); diff != "" {
		t.Errorf("characters mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractCharactersFromIndex(t *testing.T) {
	s := newTestServer(scriptedModel{}, nil)

	code, body := do(t, s, http.MethodPost, "/api/extractcharacters", `{"indexId":"known"}`)
	if code != http.StatusOK || !strings.Contains(string(body["payload"]), "Bob") {
		t.Errorf("known index: status = %d, body %s", code, body["payload"])
	}

	code, body = do(t, s, http.MethodPost, "/api/extractcharacters", `{"indexId":"missing"}`)
	if code != http.StatusNotFound {
		t.Errorf("unknown index: status = %d", code)
	}
	errorOf(t, body)
}

func TestExtractCharactersBadInput(t *testing.T) {
	s := newTestServer(scriptedModel{}, nil)
	for _, body := range []string{
		`{"nodesWithEmbedding":"not-an-array"}`,
		`{}`,
		`{"nodesWithEmbedding":null}`,
	} {
		code, out := do(t, s, http.MethodPost, "/api/extractcharacters", body)
		if code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, code)
		}
		errorOf(t, out)
	}
}

func TestExtractCharactersUpstreamFailure(t *testing.T) {
	s := newTestServer(scriptedModel{err: errors.New("invalid api key")}, nil)
	code, body := do(t, s, http.MethodPost, "/api/extractcharacters", `{"nodesWithEmbedding":[{"text":"Alice"}]}`)
	if code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", code)
	}
	if msg := errorOf(t, body); !strings.Contains(msg, "invalid api key") {
		t.Errorf("error = %q, want the upstream message", msg)
	}
}

func TestExtractCharactersEmptyNodes(t *testing.T) {
	s := newTestServer(scriptedModel{}, nil)
	code, body := do(t, s, http.MethodPost, "/api/extractcharacters", `{"nodesWithEmbedding":[]}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got := string(body["payload"]); got != `{"characters":[]}` {
		t.Errorf("payload = %s", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(scriptedModel{}, nil)
	for _, path := range []string{"/api/extractcharacters", "/api/generatestory", "/api/splitandembed"} {
		code, body := do(t, s, http.MethodGet, path, "")
		if code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s: status = %d, want 405", path, code)
		}
		errorOf(t, body)
	}
}

func TestGenerateStory(t *testing.T) {
	s := newTestServer(scriptedModel{story: "Once upon a time."}, nil)

	code, body := do(t, s, http.MethodPost, "/api/generatestory", `{"characters":[]}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body %v", code, body)
	}
	if got := string(body["payload"]); got != `{"story":"Once upon a time."}` {
		t.Errorf("payload = %s", got)
	}

	code, _ = do(t, s, http.MethodPost, "/api/generatestory", `{"characters":{"name":"Alice"}}`)
	if code != http.StatusBadRequest {
		t.Errorf("non-array characters: status = %d, want 400", code)
	}
	code, _ = do(t, s, http.MethodPost, "/api/generatestory", `{}`)
	if code != http.StatusBadRequest {
		t.Errorf("missing characters: status = %d, want 400", code)
	}
}

func TestGenerateStoryEmpty(t *testing.T) {
	s := newTestServer(scriptedModel{}, nil)
	code, body := do(t, s, http.MethodPost, "/api/generatestory", `{"characters":[{"name":"Alice"}]}`)
	if code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", code)
	}
	if msg := errorOf(t, body); msg != pipeline.ErrNoStory.Error() {
		t.Errorf("error = %q", msg)
	}
}

func TestSplitAndEmbed(t *testing.T) {
	idx := &fakeIndexer{}
	s := newTestServer(scriptedModel{}, idx)

	code, body := do(t, s, http.MethodPost, "/api/splitandembed", `{"document":"Alice is brave."}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body %v", code, body)
	}
	if idx.size != 0 || idx.overlap != -1 {
		t.Errorf("defaults not delegated: size=%d overlap=%d", idx.size, idx.overlap)
	}
	var p splitResp
	if err := json.Unmarshal(body["payload"], &p); err != nil {
		t.Fatal(err)
	}
	if p.IndexID != "idx-1" || len(p.NodesWithEmbedding) != 1 {
		t.Errorf("payload = %+v", p)
	}

	_, _ = do(t, s, http.MethodPost, "/api/splitandembed", `{"document":"x","chunkSize":64,"chunkOverlap":0}`)
	if idx.size != 64 || idx.overlap != 0 {
		t.Errorf("explicit settings: size=%d overlap=%d", idx.size, idx.overlap)
	}
}

func TestSplitAndEmbedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		body string
		want int
	}{
		{"empty document", nil, `{"document":"  "}`, http.StatusBadRequest},
		{"bad overlap", index.ErrInvalidOverlap, `{"document":"x","chunkSize":10,"chunkOverlap":10}`, http.StatusBadRequest},
		{"embedding failure", errors.New("embed chunks: 401"), `{"document":"x"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(scriptedModel{}, &fakeIndexer{err: tt.err})
			code, body := do(t, s, http.MethodPost, "/api/splitandembed", tt.body)
			if code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
			errorOf(t, body)
		})
	}
}

func TestGetRoot(t *testing.T) {
	code, body := do(t, newTestServer(scriptedModel{}, nil), http.MethodGet, "/", "")
	if code != http.StatusOK || string(body["status"]) != `"ok"` {
		t.Errorf("GET / = %d %v", code, body)
	}
}
