package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/pkg/condition"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/interpolation"
)

// handler executes one stage and proposes what happens next.
type handler func(ctx context.Context, x *execution, stage *compiler.Stage) (*domain.StageResponse, error)

// handlerTable maps every node type to its handler. Compile rejects unknown
// types, so the table is exhaustive for any Program.
func (e *Engine) handlerTable() map[domain.NodeType]handler {
	return map[domain.NodeType]handler{
		domain.NodeStart:       e.start,
		domain.NodeSendMessage: e.sendMessage,
		domain.NodeAskQuestion: e.askQuestion,
		domain.NodeButtons:     e.buttons,
		domain.NodeList:        e.list,
		domain.NodeCondition:   e.condition,
		domain.NodeSetVariable: e.setVariable,
		domain.NodeHTTPRequest: e.httpRequest,
		domain.NodeDelay:       e.delay,
		domain.NodeAIResponse:  e.aiResponse,
		domain.NodeEnd:         e.end,
	}
}

// payload asserts the compiled payload type of a stage.
func payload[T any](stage *compiler.Stage) (*T, error) {
	p, ok := stage.Payload.(*T)
	if !ok {
		return nil, fmt.Errorf("node %q: unexpected payload %T", stage.Node.ID, stage.Payload)
	}
	return p, nil
}

func (e *Engine) start(_ context.Context, x *execution, stage *compiler.Stage) (*domain.StageResponse, error) {
	data, err := payload[domain.StartData](stage)
	if err != nil {
		return nil, err
	}
	res := &domain.StageResponse{
		Message:   x.render(data.Message),
		NextStage: e.program.DefaultNext(stage.ID),
	}
	// A start with no exit is the whole flow.
	res.EndSession = res.NextStage == nil
	return res, nil
}

func (e *Engine) sendMessage(_ context.Context, x *execution, stage *compiler.Stage) (*domain.StageResponse, error) {
	data, err := payload[domain.SendMessageData](stage)
	if err != nil {
		return nil, err
	}
	res := &domain.StageResponse{
		Message:   x.render(data.Message),
		NextStage: e.program.DefaultNext(stage.ID),
	}
	if data.Media != nil && data.Media.URL != "" {
		media := &domain.Media{
			Type:    data.Media.Type,
			URL:     x.render(data.Media.URL),
			Caption: x.render(data.Media.Caption),
		}
		res.Interactive = &domain.InteractivePayload{Type: domain.InteractiveMedia, Media: media}
		if res.Message == "" {
			res.Message = media.Caption
		}
	}
	return res, nil
}

func (e *Engine) condition(_ context.Context, x *execution, stage *compiler.Stage) (*domain.StageResponse, error) {
	data, err := payload[domain.ConditionData](stage)
	if err != nil {
		return nil, err
	}
	for _, c := range data.Conditions {
		var value string
		if v, ok := interpolation.Lookup(c.Variable, x.data, x.template()); ok {
			value = interpolation.Stringify(v)
		}
		if condition.Evaluate(value, condition.Operator(c.Operator), x.render(c.Value)) {
			return &domain.StageResponse{NextStage: e.program.HandleOrDefault(stage.ID, c.ID)}, nil
		}
	}
	return &domain.StageResponse{NextStage: e.program.HandleOrDefault(stage.ID, domain.HandleElse)}, nil
}

func (e *Engine) setVariable(_ context.Context, x *execution, stage *compiler.Stage) (*domain.StageResponse, error) {
	data, err := payload[domain.SetVariableData](stage)
	if err != nil {
		return nil, err
	}
	res := &domain.StageResponse{NextStage: e.program.DefaultNext(stage.ID)}
	// Later assignments see earlier ones.
	scope := domain.CloneData(x.data)
	for _, a := range data.Assignments {
		if a.Variable == "" {
			continue
		}
		v := interpolation.Render(a.Value, scope, x.template())
		scope[a.Variable] = v
		res.SetVar(a.Variable, v)
	}
	return res, nil
}

func (e *Engine) delay(ctx context.Context, _ *execution, stage *compiler.Stage) (*domain.StageResponse, error) {
	data, err := payload[domain.DelayData](stage)
	if err != nil {
		return nil, err
	}
	d := time.Duration(data.Seconds * float64(time.Second))
	if d > e.maxDelay {
		d = e.maxDelay
	}
	if d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
	return &domain.StageResponse{NextStage: e.program.DefaultNext(stage.ID)}, nil
}

func (e *Engine) end(_ context.Context, x *execution, stage *compiler.Stage) (*domain.StageResponse, error) {
	data, err := payload[domain.EndData](stage)
	if err != nil {
		return nil, err
	}
	res := &domain.StageResponse{
		Message:    x.render(data.Message),
		EndSession: true,
	}
	if data.TransferToHuman {
		res.TransferToHuman = true
		res.TransferDepartmentID = data.DepartmentID
	}
	return res, nil
}
