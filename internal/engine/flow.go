package engine

import (
	"github.com/chatforge/go-chatbot-backend/internal/domain"
	"github.com/chatforge/go-chatbot-backend/internal/match"
)

// Flow execution defaults. Node authors can override the visible texts via
// node content; these cover nodes saved with empty fields.
const (
	ackMessage        = "Thanks, got it!"
	waitMessage       = "One moment..."
	actionDoneMessage = "Done!"
	retryEmailMessage = "That doesn't look like a valid email address. Could you try again?"
	retryPhoneMessage = "That doesn't look like a valid phone number. Could you try again?"
	openLinkLabel     = "Open link"
)

// MatchTrigger reports whether the flow's trigger fires for the given
// context. Button triggers only fire on an explicit click event (buttonID),
// never on free text.
func MatchTrigger(flow *domain.Flow, ctx *Context, buttonID string) bool {
	switch flow.TriggerType {
	case domain.TriggerKeyword:
		return match.ContainsKeyword(ctx.Message, flow.TriggerValue)
	case domain.TriggerIntent:
		return match.MatchesAnyKeyword(ctx.Message, flow.TriggerValue)
	case domain.TriggerButton:
		return buttonID != "" && buttonID == flow.TriggerValue
	case domain.TriggerCondition:
		return EvaluateConditions(parseConditionTrigger(flow.TriggerValue), ctx)
	default:
		return false
	}
}

// ExecuteFlow walks the flow graph from its entry node and returns the
// produced response, or nil when the flow yields nothing (empty flow,
// dangling connection, condition branch with no successor). Structural
// breakage always degrades to nil so the pipeline can fall through.
func ExecuteFlow(flow *domain.Flow, ctx *Context) *Result {
	if len(flow.Nodes) == 0 {
		return nil
	}

	entry := entryNode(flow.Nodes)
	if entry == nil {
		return nil
	}

	byID := make(map[string]*domain.FlowNode, len(flow.Nodes))
	for i := range flow.Nodes {
		byID[flow.Nodes[i].ID] = &flow.Nodes[i]
	}

	visited := make(map[string]bool, len(flow.Nodes))
	return executeNode(entry, byID, flow, ctx, visited)
}

// entryNode picks the node execution starts from: an explicit IsEntry node
// when one exists, otherwise the first message node with no outgoing
// connections, otherwise the first node. The leaf-shaped heuristic is kept
// for compatibility with graphs authored before IsEntry existed.
func entryNode(nodes domain.FlowNodes) *domain.FlowNode {
	for i := range nodes {
		if nodes[i].IsEntry {
			return &nodes[i]
		}
	}
	for i := range nodes {
		if nodes[i].Type == domain.NodeMessage && len(nodes[i].Connections) == 0 {
			return &nodes[i]
		}
	}
	return &nodes[0]
}

// executeNode runs one node and, for condition nodes, recurses into the
// chosen branch. The visited set stops cyclic graphs from recursing forever;
// hitting a node twice is structural breakage and yields nil.
func executeNode(node *domain.FlowNode, byID map[string]*domain.FlowNode, flow *domain.Flow, ctx *Context, visited map[string]bool) *Result {
	if visited[node.ID] {
		return nil
	}
	visited[node.ID] = true

	switch node.Type {
	case domain.NodeMessage:
		// Terminal: a message node does not auto-advance.
		return &Result{
			Content:    node.Content.Text,
			Confidence: 0.9,
			FlowID:     flow.ID,
			NodeID:     node.ID,
			Buttons:    node.Content.Buttons,
		}

	case domain.NodeCondition:
		cond := Condition{
			Field:    node.Content.Field,
			Operator: node.Content.Operator,
			Value:    node.Content.Value,
		}
		idx := 1
		if EvaluateConditions([]Condition{cond}, ctx) {
			idx = 0
		}
		if idx >= len(node.Connections) {
			// No branch wired for this outcome; the flow silently ends.
			return nil
		}
		next, ok := byID[node.Connections[idx]]
		if !ok {
			return nil
		}
		return executeNode(next, byID, flow, ctx, visited)

	case domain.NodeInput:
		return executeInput(node, flow, ctx)

	case domain.NodeAction:
		return executeAction(node, flow, ctx)

	case domain.NodeDelay:
		return &Result{
			Content:    waitMessage,
			Confidence: 0.9,
			FlowID:     flow.ID,
			NodeID:     node.ID,
			DelayMs:    node.Content.DelayMs,
		}

	default:
		return nil
	}
}

// executeInput classifies the current message against the node's input type
// and captures lead data on a format match. The acknowledgement is returned
// either way: there is no retry loop in the engine, the caller resends.
func executeInput(node *domain.FlowNode, flow *domain.Flow, ctx *Context) *Result {
	res := &Result{
		Content:    node.Content.Text,
		Confidence: 0.9,
		FlowID:     flow.ID,
		NodeID:     node.ID,
	}
	if res.Content == "" {
		res.Content = ackMessage
	}

	switch node.Content.InputType {
	case "email":
		if match.IsValidEmail(ctx.Message) {
			res.Lead = &domain.Lead{Email: ctx.Message}
		}
	case "phone":
		if match.IsValidPhone(ctx.Message) {
			res.Lead = &domain.Lead{Phone: ctx.Message}
		}
	case "name":
		if ctx.Message != "" {
			res.Lead = &domain.Lead{Name: ctx.Message}
		}
	}
	return res
}

// executeAction dispatches on the action type. Collect actions validate the
// current message and either capture the lead or prompt a retry; the engine
// tracks no retry state of its own.
func executeAction(node *domain.FlowNode, flow *domain.Flow, ctx *Context) *Result {
	content := node.Content

	switch content.Action {
	case domain.ActionCollectEmail:
		if match.IsValidEmail(ctx.Message) {
			return &Result{
				Content:    nonEmpty(content.Message, ackMessage),
				Confidence: 0.9,
				FlowID:     flow.ID,
				NodeID:     node.ID,
				Lead:       &domain.Lead{Email: ctx.Message},
			}
		}
		return &Result{
			Content:    retryEmailMessage,
			Confidence: 0.8,
			FlowID:     flow.ID,
			NodeID:     node.ID,
		}

	case domain.ActionCollectPhone:
		if match.IsValidPhone(ctx.Message) {
			return &Result{
				Content:    nonEmpty(content.Message, ackMessage),
				Confidence: 0.9,
				FlowID:     flow.ID,
				NodeID:     node.ID,
				Lead:       &domain.Lead{Phone: ctx.Message},
			}
		}
		return &Result{
			Content:    retryPhoneMessage,
			Confidence: 0.8,
			FlowID:     flow.ID,
			NodeID:     node.ID,
		}

	case domain.ActionRedirect:
		return &Result{
			Content:    nonEmpty(content.Message, actionDoneMessage),
			Confidence: 0.9,
			FlowID:     flow.ID,
			NodeID:     node.ID,
			Buttons: []domain.Button{
				{Label: openLinkLabel, Action: "url", URL: content.URL},
			},
		}

	default:
		return &Result{
			Content:    nonEmpty(content.Message, actionDoneMessage),
			Confidence: 0.7,
			FlowID:     flow.ID,
			NodeID:     node.ID,
		}
	}
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
