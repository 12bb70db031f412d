package engine

import (
	"testing"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
)

func msgNode(id, text string, connections ...string) domain.FlowNode {
	return domain.FlowNode{
		ID:          id,
		Type:        domain.NodeMessage,
		Content:     domain.NodeContent{Text: text},
		Connections: connections,
	}
}

func textCtx(message string) *Context {
	return &Context{Message: message}
}

func TestMatchTrigger(t *testing.T) {
	cases := []struct {
		name     string
		flow     domain.Flow
		message  string
		buttonID string
		want     bool
	}{
		{"keyword substring", domain.Flow{TriggerType: domain.TriggerKeyword, TriggerValue: "pricing"}, "Tell me about PRICING plans", "", true},
		{"keyword miss", domain.Flow{TriggerType: domain.TriggerKeyword, TriggerValue: "pricing"}, "hello", "", false},
		{"intent any-of", domain.Flow{TriggerType: domain.TriggerIntent, TriggerValue: "buy, purchase, order"}, "I want to order now", "", true},
		{"intent miss", domain.Flow{TriggerType: domain.TriggerIntent, TriggerValue: "buy, purchase"}, "hello", "", false},
		{"button never fires on text", domain.Flow{TriggerType: domain.TriggerButton, TriggerValue: "btn-1"}, "btn-1", "", false},
		{"button fires on click", domain.Flow{TriggerType: domain.TriggerButton, TriggerValue: "btn-1"}, "", "btn-1", true},
		{"condition trigger", domain.Flow{TriggerType: domain.TriggerCondition, TriggerValue: "user_input|starts_with|help"}, "Help me please", "", true},
		{"unknown type", domain.Flow{TriggerType: "magic", TriggerValue: "x"}, "x", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MatchTrigger(&tc.flow, textCtx(tc.message), tc.buttonID); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExecuteFlow_EmptyFlowYieldsNothing(t *testing.T) {
	flow := &domain.Flow{ID: "f1"}
	if res := ExecuteFlow(flow, textCtx("hi")); res != nil {
		t.Fatalf("flow with no nodes must produce no response, got %+v", res)
	}
}

func TestExecuteFlow_MessageNodeIsTerminal(t *testing.T) {
	flow := &domain.Flow{
		ID: "f1",
		Nodes: domain.FlowNodes{
			{
				ID:   "n1",
				Type: domain.NodeMessage,
				Content: domain.NodeContent{
					Text:    "Welcome!",
					Buttons: []domain.Button{{Label: "Pricing", Value: "btn-pricing"}},
				},
			},
		},
	}
	res := ExecuteFlow(flow, textCtx("hello"))
	if res == nil {
		t.Fatal("expected a response")
	}
	if res.Content != "Welcome!" || res.Confidence != 0.9 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.FlowID != "f1" || res.NodeID != "n1" {
		t.Errorf("flow/node ids not echoed: %+v", res)
	}
	if len(res.Buttons) != 1 {
		t.Errorf("buttons not carried: %+v", res.Buttons)
	}
}

func TestEntryNode_Selection(t *testing.T) {
	// Legacy heuristic: first message node with zero connections.
	nodes := domain.FlowNodes{
		msgNode("a", "has successor", "b"),
		{ID: "b", Type: domain.NodeCondition},
		msgNode("c", "leaf"),
	}
	if got := entryNode(nodes); got.ID != "c" {
		t.Errorf("legacy heuristic picked %q, want c", got.ID)
	}

	// Explicit IsEntry wins over the heuristic.
	nodes[1].IsEntry = true
	if got := entryNode(nodes); got.ID != "b" {
		t.Errorf("IsEntry node picked %q, want b", got.ID)
	}

	// Nothing leaf-shaped: fall back to the first node.
	fallback := domain.FlowNodes{
		msgNode("x", "x", "y"),
		msgNode("y", "y", "x"),
	}
	if got := entryNode(fallback); got.ID != "x" {
		t.Errorf("fallback picked %q, want x", got.ID)
	}
}

func TestExecuteFlow_ConditionBranching(t *testing.T) {
	flow := &domain.Flow{
		ID: "f1",
		Nodes: domain.FlowNodes{
			{
				ID:      "cond",
				Type:    domain.NodeCondition,
				IsEntry: true,
				Content: domain.NodeContent{
					Field: "user_input", Operator: "contains", Value: "refund",
				},
				Connections: []string{"yes", "no"},
			},
			msgNode("yes", "Refunds take 3-5 days."),
			msgNode("no", "How can I help?"),
		},
	}

	if res := ExecuteFlow(flow, textCtx("I need a refund")); res == nil || res.Content != "Refunds take 3-5 days." {
		t.Errorf("true branch: got %+v", res)
	}
	if res := ExecuteFlow(flow, textCtx("hello")); res == nil || res.Content != "How can I help?" {
		t.Errorf("false branch: got %+v", res)
	}
}

func TestExecuteFlow_ConditionMissingBranchEndsSilently(t *testing.T) {
	flow := &domain.Flow{
		ID: "f1",
		Nodes: domain.FlowNodes{
			{
				ID:      "cond",
				Type:    domain.NodeCondition,
				IsEntry: true,
				Content: domain.NodeContent{
					Field: "user_input", Operator: "contains", Value: "refund",
				},
				Connections: []string{"yes"}, // no false branch wired
			},
			msgNode("yes", "Refunds take 3-5 days."),
		},
	}
	if res := ExecuteFlow(flow, textCtx("hello")); res != nil {
		t.Errorf("missing false branch must end the flow, got %+v", res)
	}
}

func TestExecuteFlow_DanglingConnectionEndsSilently(t *testing.T) {
	flow := &domain.Flow{
		ID: "f1",
		Nodes: domain.FlowNodes{
			{
				ID:      "cond",
				Type:    domain.NodeCondition,
				IsEntry: true,
				Content: domain.NodeContent{
					Field: "user_input", Operator: "contains", Value: "x",
				},
				Connections: []string{"ghost", "ghost"},
			},
		},
	}
	if res := ExecuteFlow(flow, textCtx("x")); res != nil {
		t.Errorf("dangling connection must degrade to nil, got %+v", res)
	}
}

func TestExecuteFlow_CyclicConditionsTerminate(t *testing.T) {
	// Two condition nodes pointing at each other; must not recurse forever.
	cond := func(id, next string) domain.FlowNode {
		return domain.FlowNode{
			ID:   id,
			Type: domain.NodeCondition,
			Content: domain.NodeContent{
				Field: "user_input", Operator: "contains", Value: "x",
			},
			Connections: []string{next},
		}
	}
	a := cond("a", "b")
	a.IsEntry = true
	flow := &domain.Flow{ID: "f1", Nodes: domain.FlowNodes{a, cond("b", "a")}}

	if res := ExecuteFlow(flow, textCtx("x")); res != nil {
		t.Errorf("cycle must yield nil, got %+v", res)
	}
}

func TestExecuteFlow_InputEmailCapture(t *testing.T) {
	flow := &domain.Flow{
		ID: "f1",
		Nodes: domain.FlowNodes{
			{
				ID:      "in",
				Type:    domain.NodeInput,
				IsEntry: true,
				Content: domain.NodeContent{InputType: "email", Text: "Thanks!"},
			},
		},
	}

	res := ExecuteFlow(flow, textCtx("contact@example.com"))
	if res == nil || res.Lead == nil || res.Lead.Email != "contact@example.com" {
		t.Fatalf("email not captured: %+v", res)
	}
	if res.Content != "Thanks!" || res.Confidence != 0.9 {
		t.Errorf("acknowledgement wrong: %+v", res)
	}

	// Idempotence: the same input always yields the same capture.
	again := ExecuteFlow(flow, textCtx("contact@example.com"))
	if again.Lead == nil || again.Lead.Email != res.Lead.Email {
		t.Errorf("re-processing changed the capture: %+v", again)
	}

	// Non-matching input still acknowledges, with no lead.
	miss := ExecuteFlow(flow, textCtx("not an email"))
	if miss == nil || miss.Lead != nil || miss.Confidence != 0.9 {
		t.Errorf("non-matching input must still acknowledge: %+v", miss)
	}
}

func TestExecuteFlow_InputPhoneCapture(t *testing.T) {
	flow := &domain.Flow{
		ID: "f1",
		Nodes: domain.FlowNodes{
			{
				ID:      "in",
				Type:    domain.NodeInput,
				IsEntry: true,
				Content: domain.NodeContent{InputType: "phone"},
			},
		},
	}
	res := ExecuteFlow(flow, textCtx("+1 (555) 123-4567"))
	if res == nil || res.Lead == nil || res.Lead.Phone != "+1 (555) 123-4567" {
		t.Fatalf("phone not captured: %+v", res)
	}
	if res.Content != ackMessage {
		t.Errorf("default ack expected, got %q", res.Content)
	}
}

func TestExecuteFlow_ActionCollectEmail(t *testing.T) {
	flow := &domain.Flow{
		ID: "f1",
		Nodes: domain.FlowNodes{
			{
				ID:      "act",
				Type:    domain.NodeAction,
				IsEntry: true,
				Content: domain.NodeContent{
					Action:  domain.ActionCollectEmail,
					Message: "Perfect, we'll be in touch.",
				},
			},
		},
	}

	ok := ExecuteFlow(flow, textCtx("lead@example.com"))
	if ok == nil || ok.Lead == nil || ok.Lead.Email != "lead@example.com" {
		t.Fatalf("success path: %+v", ok)
	}
	if ok.Content != "Perfect, we'll be in touch." {
		t.Errorf("success message: %q", ok.Content)
	}

	retry := ExecuteFlow(flow, textCtx("nope"))
	if retry == nil || retry.Lead != nil {
		t.Fatalf("failure path must not capture: %+v", retry)
	}
	if retry.Confidence != 0.8 {
		t.Errorf("retry prompt confidence = %v, want 0.8", retry.Confidence)
	}
}

func TestExecuteFlow_ActionRedirect(t *testing.T) {
	flow := &domain.Flow{
		ID: "f1",
		Nodes: domain.FlowNodes{
			{
				ID:      "act",
				Type:    domain.NodeAction,
				IsEntry: true,
				Content: domain.NodeContent{
					Action:  domain.ActionRedirect,
					Message: "Our docs have the details.",
					URL:     "https://example.com/docs",
				},
			},
		},
	}
	res := ExecuteFlow(flow, textCtx("docs please"))
	if res == nil || len(res.Buttons) != 1 {
		t.Fatalf("redirect must return one button: %+v", res)
	}
	b := res.Buttons[0]
	if b.Action != "url" || b.URL != "https://example.com/docs" {
		t.Errorf("button: %+v", b)
	}
}

func TestExecuteFlow_ActionUnknownAcknowledges(t *testing.T) {
	flow := &domain.Flow{
		ID: "f1",
		Nodes: domain.FlowNodes{
			{
				ID:      "act",
				Type:    domain.NodeAction,
				IsEntry: true,
				Content: domain.NodeContent{Action: "launch_rocket"},
			},
		},
	}
	res := ExecuteFlow(flow, textCtx("go"))
	if res == nil || res.Confidence != 0.7 {
		t.Fatalf("unknown action must acknowledge at 0.7: %+v", res)
	}
}

func TestExecuteFlow_DelayIsAHintNotASleep(t *testing.T) {
	flow := &domain.Flow{
		ID: "f1",
		Nodes: domain.FlowNodes{
			{
				ID:      "d",
				Type:    domain.NodeDelay,
				IsEntry: true,
				Content: domain.NodeContent{DelayMs: 1500},
			},
		},
	}
	res := ExecuteFlow(flow, textCtx("hi"))
	if res == nil || res.DelayMs != 1500 {
		t.Fatalf("delay hint not carried: %+v", res)
	}
	if res.Content != waitMessage {
		t.Errorf("placeholder content: %q", res.Content)
	}
}

func TestExecuteFlow_UnknownNodeType(t *testing.T) {
	flow := &domain.Flow{
		ID: "f1",
		Nodes: domain.FlowNodes{
			{ID: "w", Type: "webhook", IsEntry: true},
		},
	}
	if res := ExecuteFlow(flow, textCtx("hi")); res != nil {
		t.Errorf("unknown node type must yield nil, got %+v", res)
	}
}
