package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/syndelabs/synde/internal/logging"
	"github.com/syndelabs/synde/internal/stream"
)

// Scenario keywords. A prompt starting with one of these makes the mock
// misbehave on purpose so clients can exercise their failure handling.
const (
	scenarioFail    = "fail:"
	scenarioTimeout = "timeout:"
	scenarioFlaky   = "flaky:"
)

// flakyDrops is how many times a flaky workflow's stream is cut before it
// is allowed to run to completion.
const flakyDrops = 2

// splitScenario strips a leading scenario keyword from the prompt. For
// fail: the remainder becomes the reported error message; for the other
// keywords it remains the query that picks the node script.
func splitScenario(prompt string) (scenario, rest string) {
	for _, kw := range []string{scenarioFail, scenarioTimeout, scenarioFlaky} {
		if strings.HasPrefix(prompt, kw) {
			return kw, strings.TrimSpace(strings.TrimPrefix(prompt, kw))
		}
	}
	return "", prompt
}

// scriptStep is one node the mock workflow advances through.
type scriptStep struct {
	node    string
	gpuTask string
}

// script is the full plan for one mock run: the node sequence plus the
// terminal payload.
type script struct {
	steps        []scriptStep
	content      string
	responseHTML string
	attachPDB    bool
	generation   string
}

// gpuStepIndex returns the index of the first GPU-backed step, or the
// middle step when the script has none. Failure and stall scenarios park
// there.
func (sc script) gpuStepIndex() int {
	for i, st := range sc.steps {
		if st.gpuTask != "" {
			return i
		}
	}
	return len(sc.steps) / 2
}

// scriptFor picks a node script from the prompt the way the real graph's
// intent router would. Unrecognized prompts get the theory path.
func scriptFor(prompt string) script {
	entry := []scriptStep{{node: "intent_router"}, {node: "input_parser"}}
	exit := []scriptStep{{node: "aggregate_results"}, {node: "response_formatter"}}
	q := strings.ToLower(prompt)

	switch {
	case containsAny(q, "mutant", "mutation", "design"):
		return script{
			steps: concatSteps(entry, []scriptStep{
				{node: "check_structure"},
				{node: "run_foldx", gpuTask: "foldx"},
			}, exit),
			content:    "Generated 3 candidate mutations ranked by predicted ddG.\n\n1. A41V (ddG -1.8 kcal/mol)\n2. G77A (ddG -1.2 kcal/mol)\n3. S103T (ddG -0.9 kcal/mol)",
			generation: `{"mutations":[{"mutation":"A41V","ddg":-1.8},{"mutation":"G77A","ddg":-1.2},{"mutation":"S103T","ddg":-0.9}]}`,
		}
	case containsAny(q, "stabil", "melting", "thermal"):
		return script{
			steps: concatSteps(entry, []scriptStep{
				{node: "property_dispatch"},
				{node: "run_foldx", gpuTask: "foldx"},
				{node: "run_temberture", gpuTask: "temberture"},
			}, exit),
			content:      "Predicted thermal stability for the submitted protein.\n\n- Melting temperature (Tm): 62.3 C\n- Folding free energy (dG): -8.4 kcal/mol",
			responseHTML: predictionHTML(),
		}
	case containsAny(q, "ec number", "ec class", "enzyme class"):
		return script{
			steps: concatSteps(entry, []scriptStep{
				{node: "property_dispatch"},
				{node: "run_clean_ec", gpuTask: "clean"},
			}, exit),
			content:      "CLEAN assigns EC 3.2.1.4 (cellulase) with confidence 0.91.",
			responseHTML: predictionHTML(),
		}
	case containsAny(q, "kcat", "catalytic"):
		return script{
			steps: concatSteps(entry, []scriptStep{
				{node: "property_dispatch"},
				{node: "run_deepenzyme", gpuTask: "deepenzyme"},
			}, exit),
			content:      "DeepEnzyme predicts kcat = 42.7 s^-1 for the submitted enzyme.",
			responseHTML: predictionHTML(),
		}
	case containsAny(q, "optimal temperature", "topt"):
		return script{
			steps: concatSteps(entry, []scriptStep{
				{node: "property_dispatch"},
				{node: "run_tomer", gpuTask: "tomer"},
			}, exit),
			content:      "TOMER predicts an optimal catalytic temperature of 55 C.",
			responseHTML: predictionHTML(),
		}
	case containsAny(q, "pocket", "binding site"):
		return script{
			steps: concatSteps(entry, []scriptStep{
				{node: "check_structure"},
				{node: "run_fpocket", gpuTask: "fpocket"},
			}, exit),
			content: "fpocket found 2 candidate pockets.\n\n- Pocket 1: druggability 0.82, volume 412 A^3\n- Pocket 2: druggability 0.44, volume 198 A^3",
		}
	case containsAny(q, "structure", "fold"):
		return script{
			steps: concatSteps(entry, []scriptStep{
				{node: "check_structure"},
				{node: "run_esmfold", gpuTask: "esmfold"},
			}, exit),
			content:   "Predicted the 3D structure with ESMFold.\n\n- Mean pLDDT: 87.4\n- Chains: 1\n\nThe model is attached below.",
			attachPDB: true,
		}
	default:
		return script{
			steps:   []scriptStep{{node: "intent_router"}, {node: "theory_response"}, {node: "response_formatter"}},
			content: "This looks like a background question rather than a computation request.\n\nProtein stability is governed by the balance of folding free energy contributions; mutations that improve core packing or add favorable surface interactions usually raise Tm.",
		}
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func concatSteps(groups ...[]scriptStep) []scriptStep {
	var out []scriptStep
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// runner executes one mock workflow per call to run, advancing the store's
// checkpoint the way the real graph worker would: node transitions, live
// log lines, then a terminal result.
type runner struct {
	store     *memoryStore
	stepDelay time.Duration
	logger    *logging.Logger
}

func (r *runner) run(ctx context.Context, workflowID string) {
	view, ok := r.store.workflowView(workflowID)
	if !ok {
		return
	}

	scenario, rest := splitScenario(view.Prompt)
	sc := scriptFor(rest)

	r.logger.Debug("workflow started",
		"workflow_id", workflowID,
		"conversation_id", view.ConversationID,
		"scenario", strings.TrimSuffix(scenario, ":"),
		"steps", len(sc.steps))

	switch scenario {
	case scenarioFail:
		r.runToFailure(ctx, workflowID, sc, rest)
	case scenarioTimeout:
		r.runToStall(ctx, workflowID, sc)
	default:
		r.runToCompletion(ctx, workflowID, sc)
	}
}

// runToCompletion walks every step and finishes with a complete result.
func (r *runner) runToCompletion(ctx context.Context, id string, sc script) {
	for _, st := range sc.steps {
		if !r.step(ctx, id, st) {
			return
		}
	}

	result := &stream.CompletePayload{Content: sc.content}
	if sc.responseHTML != "" {
		result.PredictionData = &stream.PredictionData{ResponseHTML: sc.responseHTML}
	}
	if sc.attachPDB {
		result.StructureData = &stream.StructureData{PDBData: demoPDB()}
	}
	if sc.generation != "" {
		result.GenerationData = []byte(sc.generation)
	}

	r.store.mutateWorkflow(id, func(rec *workflowRecord) {
		rec.status = statusComplete
		rec.currentNode = ""
		rec.result = result
	})
	r.finishMessage(id, sc.content, statusComplete)
	r.logger.Debug("workflow complete", "workflow_id", id)
}

// runToFailure advances to the work node and fails there.
func (r *runner) runToFailure(ctx context.Context, id string, sc script, message string) {
	if message == "" {
		message = "Workflow execution failed"
	}
	failAt := sc.gpuStepIndex()

	for i := 0; i < failAt; i++ {
		if !r.step(ctx, id, sc.steps[i]) {
			return
		}
	}

	node := sc.steps[failAt].node
	r.enterNode(id, sc.steps[failAt])
	if !r.sleep(ctx) {
		return
	}
	r.store.appendLog(id, fmt.Sprintf("❌ Error in %s: %s", node, message))
	r.store.mutateWorkflow(id, func(rec *workflowRecord) {
		rec.status = statusFailed
		rec.errorCount++
		rec.lastError = message
	})
	r.finishMessage(id, "", statusFailed)
	r.logger.Debug("workflow failed", "workflow_id", id, "node", node, "error", message)
}

// runToStall parks the workflow mid-run without ever finishing, so streams
// age out and emit their timeout.
func (r *runner) runToStall(ctx context.Context, id string, sc script) {
	stallAt := sc.gpuStepIndex()
	for i := 0; i < stallAt; i++ {
		if !r.step(ctx, id, sc.steps[i]) {
			return
		}
	}
	r.enterNode(id, sc.steps[stallAt])
	r.logger.Debug("workflow stalled", "workflow_id", id, "node", sc.steps[stallAt].node)
}

// step runs one node: enter, wait the step delay, exit with its logs.
// Returns false when the context ended mid-step.
func (r *runner) step(ctx context.Context, id string, st scriptStep) bool {
	r.enterNode(id, st)
	if !r.sleep(ctx) {
		return false
	}
	if st.gpuTask != "" {
		r.store.appendLog(id, fmt.Sprintf("🖥️ GPU Task [%s]: completed", st.gpuTask))
	}
	r.store.appendLog(id, "✅ Completed: "+st.node)
	return true
}

// enterNode records the node transition and its start log.
func (r *runner) enterNode(id string, st scriptStep) {
	r.store.mutateWorkflow(id, func(rec *workflowRecord) {
		if rec.status == statusPending {
			rec.status = statusRunning
		}
		rec.currentNode = st.node
		rec.nodeHistory = append(rec.nodeHistory, st.node)
	})
	r.store.appendLog(id, "🔄 Starting: "+st.node)
	if st.gpuTask != "" {
		r.store.appendLog(id, fmt.Sprintf("🖥️ GPU Task [%s]: queued", st.gpuTask))
	}
}

// finishMessage copies the terminal outcome onto the assistant message.
func (r *runner) finishMessage(id, content, status string) {
	view, ok := r.store.workflowView(id)
	if !ok || view.MessageID == "" {
		return
	}
	r.store.setMessageResult(view.ConversationID, view.MessageID, content, status)
}

func (r *runner) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(r.stepDelay):
		return true
	}
}
