// Package workflow sequences one document through indexing, extraction and
// story generation.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"taleweaver/pkg/entities"
	"taleweaver/pkg/pipeline"
)

type State int

const (
	Idle State = iota
	IndexBuilding
	IndexReady
	Extracting
	Extracted
	StoryGenerating
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case IndexBuilding:
		return "building index"
	case IndexReady:
		return "index ready"
	case Extracting:
		return "extracting"
	case Extracted:
		return "extracted"
	case StoryGenerating:
		return "generating story"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) busy() bool {
	return s == IndexBuilding || s == Extracting || s == StoryGenerating
}

var (
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrBusy              = errors.New("workflow is busy")
)

type Indexer interface {
	Build(ctx context.Context, document string, chunkSize, chunkOverlap int) (string, []entities.Node, error)
}

type Extractor interface {
	Extract(ctx context.Context, text string, p entities.DecodingParams) (pipeline.Result, error)
}

type Storyteller interface {
	Generate(ctx context.Context, characters []entities.Character, p entities.DecodingParams) (string, error)
}

// Session holds the state of one document. It is safe for concurrent use;
// operations that would overlap a running step fail with ErrBusy.
type Session struct {
	Indexer     Indexer
	Extractor   Extractor
	Storyteller Storyteller

	mu            sync.Mutex
	state         State
	text          string
	chunkSize     int
	chunkOverlap  int
	needsNewIndex bool

	indexID    string
	nodes      []entities.Node
	result     pipeline.Result
	story      string
	storyShown bool
}

func NewSession(indexer Indexer, extractor Extractor, storyteller Storyteller) *Session {
	return &Session{
		Indexer:     indexer,
		Extractor:   extractor,
		Storyteller: storyteller,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NeedsNewIndex reports whether the text or chunk settings changed since the
// last index build.
func (s *Session) NeedsNewIndex() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsNewIndex
}

// StoryAvailable reports whether GenerateStory may be offered.
func (s *Session) StoryAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storyShown
}

func (s *Session) SetText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.busy() {
		return ErrBusy
	}
	s.text = text
	s.invalidate()
	return nil
}

func (s *Session) SetChunkSettings(size, overlap int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.busy() {
		return ErrBusy
	}
	s.chunkSize, s.chunkOverlap = size, overlap
	s.invalidate()
	return nil
}

// invalidate drops everything derived from the previous index. Callers hold mu.
func (s *Session) invalidate() {
	s.needsNewIndex = true
	s.storyShown = false
	s.state = Idle
	s.indexID = ""
	s.nodes = nil
	s.result = pipeline.Result{}
	s.story = ""
}

// begin moves to next if the session is idle enough and allowed reports true
// for the current state. It returns the state to restore on failure.
func (s *Session) begin(next State, allowed func(State) bool) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.busy() {
		return s.state, ErrBusy
	}
	if !allowed(s.state) {
		return s.state, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, next)
	}
	prev := s.state
	s.state = next
	return prev, nil
}

func (s *Session) fail(prev State) {
	s.mu.Lock()
	s.state = prev
	s.mu.Unlock()
}

// BuildIndex splits and embeds the current text. It is allowed only after the
// text or chunk settings changed.
func (s *Session) BuildIndex(ctx context.Context) (string, error) {
	prev, err := s.begin(IndexBuilding, func(State) bool { return s.needsNewIndex && s.text != "" })
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	text, size, overlap := s.text, s.chunkSize, s.chunkOverlap
	s.mu.Unlock()

	id, nodes, err := s.Indexer.Build(ctx, text, size, overlap)
	if err != nil {
		s.fail(prev)
		return "", fmt.Errorf("build index: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexID, s.nodes = id, nodes
	s.needsNewIndex = false
	s.state = IndexReady
	log.Debug("index ready", "index", id, "nodes", len(nodes))
	return id, nil
}

// Extract runs character extraction over the indexed nodes.
func (s *Session) Extract(ctx context.Context, p entities.DecodingParams) (pipeline.Result, error) {
	prev, err := s.begin(Extracting, func(st State) bool {
		return !s.needsNewIndex && (st == IndexReady || st == Extracted || st == Done)
	})
	if err != nil {
		return pipeline.Result{}, err
	}

	s.mu.Lock()
	text := pipeline.JoinNodes(s.nodes)
	s.mu.Unlock()

	res, err := s.Extractor.Extract(ctx, text, p)
	if err != nil {
		s.fail(prev)
		return pipeline.Result{}, fmt.Errorf("extract characters: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = res
	s.story = ""
	s.storyShown = true
	s.state = Extracted
	return res, nil
}

// GenerateStory writes a story from the last extraction.
func (s *Session) GenerateStory(ctx context.Context, p entities.DecodingParams) (string, error) {
	prev, err := s.begin(StoryGenerating, func(st State) bool {
		return s.storyShown && (st == Extracted || st == Done)
	})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	characters := s.result.Characters
	s.mu.Unlock()

	story, err := s.Storyteller.Generate(ctx, characters, p)
	if err != nil {
		s.fail(prev)
		return "", fmt.Errorf("generate story: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.story = story
	s.state = Done
	return story, nil
}

// Snapshot is the exportable outcome of a session.
type Snapshot struct {
	State      string               `json:"state"`
	IndexID    string               `json:"indexId,omitempty"`
	Nodes      int                  `json:"nodes"`
	Characters []entities.Character `json:"characters"`
	Failed     []int                `json:"failedChunks,omitempty"`
	Story      string               `json:"story,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:      s.state.String(),
		IndexID:    s.indexID,
		Nodes:      len(s.nodes),
		Characters: s.result.Characters,
		Failed:     s.result.FailedChunks,
		Story:      s.story,
	}
}
