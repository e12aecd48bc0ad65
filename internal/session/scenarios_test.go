package session_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/codeturn-ai/opencode/internal/event"
	"github.com/codeturn-ai/opencode/internal/executor"
	"github.com/codeturn-ai/opencode/internal/permission"
	"github.com/codeturn-ai/opencode/internal/provider"
	"github.com/codeturn-ai/opencode/internal/session"
	"github.com/codeturn-ai/opencode/internal/sessionstore"
	"github.com/codeturn-ai/opencode/internal/tool"
	"github.com/codeturn-ai/opencode/pkg/types"
)

func TestTurnScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Turn Scenarios Suite")
}

// scriptedModel plays back a fixed sequence of responses to Generate,
// shared by parent and subagent turns alike.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	calls     int
}

func (m *scriptedModel) Generate(ctx context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls >= len(m.responses) {
		return nil, fmt.Errorf("no scripted response for call %d", m.calls)
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

func (m *scriptedModel) Stream(ctx context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	resp, err := m.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{resp}), nil
}

func (m *scriptedModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// scriptedProvider serves the plain path from chunk scripts and the deep
// path from an optional scripted handle.
type scriptedProvider struct {
	mu        sync.Mutex
	handle    model.ToolCallingChatModel
	streams   [][]string // one chunk list per Stream call
	streamErr error
	generated []string // one reply per Generate call
	calls     int
}

func (p *scriptedProvider) ID() string { return "mock" }

func (p *scriptedProvider) Models() []types.Model {
	return []types.Model{{ID: "mock-1", Name: "Mock One", ProviderID: "mock", ContextLength: 200_000, MaxOutputTokens: 1024, SupportsTools: true}}
}

func (p *scriptedProvider) LLMHandle() (model.ToolCallingChatModel, bool) {
	return p.handle, p.handle != nil
}

func (p *scriptedProvider) Generate(ctx context.Context, _ *provider.Request) (*provider.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls >= len(p.generated) {
		return nil, fmt.Errorf("no scripted generation for call %d", p.calls)
	}
	content := p.generated[p.calls]
	p.calls++
	return &provider.Response{Content: content}, nil
}

func (p *scriptedProvider) Stream(ctx context.Context, _ *provider.Request) (*schema.StreamReader[*schema.Message], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	if p.calls >= len(p.streams) {
		return nil, fmt.Errorf("no scripted stream for call %d", p.calls)
	}
	chunks := p.streams[p.calls]
	p.calls++

	msgs := make([]*schema.Message, len(chunks))
	for i, c := range chunks {
		msgs[i] = &schema.Message{Role: schema.Assistant, Content: c}
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func toolCallResponse(callID, name, arguments string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       callID,
			Function: schema.FunctionCall{Name: name, Arguments: arguments},
		}},
	}
}

func textResponse(s string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: s}
}

// harness wires a processor against a temp workspace, a scripted provider
// and an in-memory update sink.
type harness struct {
	workDir   string
	store     *sessionstore.Store
	registry  *provider.Registry
	tools     *tool.Registry
	checker   *permission.Checker
	proc      *session.Processor
	sessionID types.SessionID
}

func newHarness(prov provider.Provider) *harness {
	h := &harness{
		workDir: GinkgoT().TempDir(),
		store:   sessionstore.New(GinkgoT().TempDir()),
		checker: permission.NewChecker(),
	}
	h.registry = provider.NewRegistry()
	if prov != nil {
		h.registry.Register(prov)
	}
	h.tools = tool.DefaultRegistry(h.workDir)
	h.proc = session.NewProcessor(h.registry, h.tools, h.store, h.checker, h.workDir, "mock", "mock-1")

	sess := types.NewSession()
	h.sessionID = sess.ID
	Expect(h.store.Save(sess)).To(Succeed())
	return h
}

// enableTaskTool wires the subagent executor behind the task tool.
func (h *harness) enableTaskTool() {
	h.tools.RegisterTask(executor.NewSubagentExecutor(h.store, h.proc))
}

// run drives one turn and returns every update the turn emitted, in order.
func (h *harness) run(agent *session.Agent, input string) ([]session.Update, error) {
	sink := make(chan session.Envelope, 1024)
	ctx := session.WithUpdateSink(context.Background(), h.sessionID, sink)
	_, err := h.proc.Process(ctx, h.sessionID, input, agent, "")

	var updates []session.Update
	for {
		select {
		case env := <-sink:
			Expect(env.SessionID).To(Equal(h.sessionID))
			updates = append(updates, env.Update)
		default:
			return updates, err
		}
	}
}

func (h *harness) session() *types.Session {
	sess, err := h.store.Load(h.sessionID)
	Expect(err).NotTo(HaveOccurred())
	return sess
}

func concatChunks(updates []session.Update) string {
	var b strings.Builder
	for _, u := range updates {
		if c, ok := u.(session.ReplyChunk); ok {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

func countDone(updates []session.Update) int {
	n := 0
	for _, u := range updates {
		if _, ok := u.(session.ReplyDone); ok {
			n++
		}
	}
	return n
}

func logsAt(updates []session.Update, level string) []string {
	var out []string
	for _, u := range updates {
		if l, ok := u.(session.Log); ok && l.Level == level {
			out = append(out, l.Message)
		}
	}
	return out
}

var _ = Describe("Turn scenarios", func() {
	Describe("S1: plain turn, streaming", func() {
		It("emits one chunk per delta, exactly one terminal done, and appends user then assistant", func() {
			prov := &scriptedProvider{streams: [][]string{{"Hel", "lo ", "world"}}}
			h := newHarness(prov)

			updates, err := h.run(session.BuildAgent(), "hi")
			Expect(err).NotTo(HaveOccurred())

			Expect(concatChunks(updates)).To(Equal("Hello world"))
			Expect(countDone(updates)).To(Equal(1))
			Expect(updates[len(updates)-1]).To(BeAssignableToTypeOf(session.ReplyDone{}))

			sess := h.session()
			Expect(sess.Messages).To(HaveLen(2))
			Expect(sess.Messages[0].Role).To(Equal(types.RoleUser))
			Expect(sess.Messages[0].Content).To(Equal("hi"))
			Expect(sess.Messages[1].Role).To(Equal(types.RoleAssistant))
			Expect(sess.Messages[1].Content).To(Equal("Hello world"))
		})
	})

	Describe("S2: plain turn, stream unsupported", func() {
		It("falls back to generate and emits the reply as one chunk", func() {
			prov := &scriptedProvider{streamErr: provider.ErrStreamingUnsupported, generated: []string{"42"}}
			h := newHarness(prov)

			updates, err := h.run(session.BuildAgent(), "what is 6*7?")
			Expect(err).NotTo(HaveOccurred())

			chunks := 0
			for _, u := range updates {
				if _, ok := u.(session.ReplyChunk); ok {
					chunks++
				}
			}
			Expect(chunks).To(Equal(1))
			Expect(concatChunks(updates)).To(Equal("42"))
			Expect(countDone(updates)).To(Equal(1))

			sess := h.session()
			Expect(sess.Messages).To(HaveLen(2))
			Expect(sess.Messages[1].Content).To(Equal("42"))
		})
	})

	Describe("S3: deep turn, one tool call", func() {
		It("dispatches the tool, logs the call, and streams the final reply", func() {
			handle := &scriptedModel{responses: []*schema.Message{
				toolCallResponse("call_1", "read", `{"filePath":"README.md"}`),
				textResponse("The readme says: Title"),
			}}
			h := newHarness(&scriptedProvider{handle: handle})
			Expect(os.WriteFile(filepath.Join(h.workDir, "README.md"), []byte("Title\n"), 0o644)).To(Succeed())

			updates, err := h.run(session.BuildAgent(), "what does the readme say?")
			Expect(err).NotTo(HaveOccurred())

			Expect(logsAt(updates, "info")).To(ContainElement(ContainSubstring("tool read ok")))
			Expect(concatChunks(updates)).To(Equal("The readme says: Title"))
			Expect(countDone(updates)).To(Equal(1))
			Expect(updates[len(updates)-1]).To(BeAssignableToTypeOf(session.ReplyDone{}))

			// user, tool result, assistant — in that order.
			sess := h.session()
			Expect(sess.Messages).To(HaveLen(3))
			Expect(sess.Messages[1].Role).To(Equal(types.RoleTool))
			Expect(sess.Messages[1].Meta.ToolName).To(Equal("read"))
			Expect(sess.Messages[2].Content).To(Equal("The readme says: Title"))
		})
	})

	Describe("S4: deep turn, path normalization", func() {
		It("coerces a bare path: string into the canonical object shape", func() {
			handle := &scriptedModel{responses: []*schema.Message{
				toolCallResponse("call_1", "read", `path: README.md`),
				textResponse("done"),
			}}
			h := newHarness(&scriptedProvider{handle: handle})
			Expect(os.WriteFile(filepath.Join(h.workDir, "README.md"), []byte("Title\n"), 0o644)).To(Succeed())

			updates, err := h.run(session.BuildAgent(), "read the readme")
			Expect(err).NotTo(HaveOccurred())

			Expect(logsAt(updates, "info")).To(ContainElement(And(
				ContainSubstring("tool read ok"),
				ContainSubstring(`"filePath":"README.md"`),
			)))
			Expect(logsAt(updates, "error")).To(BeEmpty())
			Expect(concatChunks(updates)).To(Equal("done"))
			Expect(countDone(updates)).To(Equal(1))
		})
	})

	Describe("S5: plan-agent restriction", func() {
		It("rejects a bash proposal without dispatching it and lets the model recover", func() {
			target := filepath.Join(os.TempDir(), "must-not-exist-"+types.NewSessionID().String())
			handle := &scriptedModel{responses: []*schema.Message{
				toolCallResponse("call_1", "bash", fmt.Sprintf(`{"command":"touch %s"}`, target)),
				textResponse("I can only read in plan mode."),
			}}
			h := newHarness(&scriptedProvider{handle: handle})

			updates, err := h.run(session.PlanAgent(), "delete everything")
			Expect(err).NotTo(HaveOccurred())

			Expect(logsAt(updates, "error")).To(ContainElement(ContainSubstring("Tool not available: bash")))
			Expect(logsAt(updates, "info")).NotTo(ContainElement(ContainSubstring("tool bash ok")))
			Expect(target).NotTo(BeAnExistingFile())
			Expect(concatChunks(updates)).To(Equal("I can only read in plan mode."))
			Expect(countDone(updates)).To(Equal(1))

			// The model saw a tool-not-available result.
			sess := h.session()
			Expect(sess.Messages[1].Role).To(Equal(types.RoleTool))
			Expect(sess.Messages[1].Content).To(ContainSubstring("Tool not available"))
		})
	})

	Describe("S6: missing API key", func() {
		It("emits a single API-key error chunk, then done, and leaves the session alone", func() {
			h := newHarness(nil) // nothing registered: the key never made it past config

			updates, err := h.run(session.BuildAgent(), "hi")
			Expect(err).To(HaveOccurred())

			Expect(concatChunks(updates)).To(ContainSubstring("Error:"))
			Expect(concatChunks(updates)).To(ContainSubstring("API key"))
			Expect(countDone(updates)).To(Equal(1))
			Expect(updates[len(updates)-1]).To(BeAssignableToTypeOf(session.ReplyDone{}))
			Expect(h.session().Messages).To(BeEmpty())
		})
	})

	Describe("S7: subagent delegation", func() {
		It("runs the child turn in its own session and returns its reply as the tool output", func() {
			handle := &scriptedModel{responses: []*schema.Message{
				toolCallResponse("call_1", "task", `{"description":"summarize utils","prompt":"summarize utils.go","subagentType":"general"}`),
				textResponse("utils.go defines small string helpers."),
				textResponse("Summary: utils.go defines small string helpers."),
			}}
			h := newHarness(&scriptedProvider{handle: handle})
			h.enableTaskTool()

			updates, err := h.run(session.BuildAgent(), "summarize utils.go for me")
			Expect(err).NotTo(HaveOccurred())

			Expect(logsAt(updates, "info")).To(ContainElement(ContainSubstring("tool task ok")))
			Expect(concatChunks(updates)).To(Equal("Summary: utils.go defines small string helpers."))
			Expect(countDone(updates)).To(Equal(1))

			// A distinct child session was persisted alongside the parent.
			listings, err := h.store.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(listings).To(HaveLen(2))

			// The parent gained only its own user/tool/assistant entries;
			// the child's reply shows up as the tool result, not spliced in.
			sess := h.session()
			Expect(sess.Messages).To(HaveLen(3))
			Expect(sess.Messages[1].Content).To(Equal("utils.go defines small string helpers."))
		})
	})

	Describe("S8: ask-then-always permission memoization", func() {
		It("prompts once for a repeated bash pattern and dispatches the second call silently", func() {
			handle := &scriptedModel{responses: []*schema.Message{
				toolCallResponse("call_1", "bash", `{"command":"echo ok"}`),
				toolCallResponse("call_2", "bash", `{"command":"echo ok"}`),
				textResponse("ran it twice"),
			}}
			h := newHarness(&scriptedProvider{handle: handle})

			var mu sync.Mutex
			asked := 0
			unsubscribe := event.Subscribe(event.PermissionAsked, func(e event.Event) {
				data, ok := e.Data.(event.PermissionAskedData)
				if !ok || data.SessionID != h.sessionID.String() {
					return
				}
				mu.Lock()
				asked++
				mu.Unlock()
				h.checker.Respond(data.RequestID, "always")
			})
			defer unsubscribe()

			updates, err := h.run(session.BuildAgent(), "run echo twice") // bash policy is "ask"
			Expect(err).NotTo(HaveOccurred())

			mu.Lock()
			Expect(asked).To(Equal(1))
			mu.Unlock()

			bashRuns := 0
			for _, m := range logsAt(updates, "info") {
				if strings.Contains(m, "tool bash ok") {
					bashRuns++
				}
			}
			Expect(bashRuns).To(Equal(2))
			Expect(concatChunks(updates)).To(Equal("ran it twice"))
			Expect(countDone(updates)).To(Equal(1))
		})
	})

	Describe("append-only persistence", func() {
		It("keeps the pre-turn messages as a prefix across turns", func() {
			prov := &scriptedProvider{streams: [][]string{{"first"}, {"second"}}}
			h := newHarness(prov)

			_, err := h.run(session.BuildAgent(), "one")
			Expect(err).NotTo(HaveOccurred())
			before := h.session().Messages

			_, err = h.run(session.BuildAgent(), "two")
			Expect(err).NotTo(HaveOccurred())
			after := h.session().Messages

			Expect(len(after)).To(BeNumerically(">", len(before)))
			for i := range before {
				Expect(after[i].Content).To(Equal(before[i].Content))
				Expect(after[i].Role).To(Equal(before[i].Role))
			}
			Expect(h.session().UpdatedAt.After(before[len(before)-1].CreatedAt)).To(BeTrue())
		})
	})
})
