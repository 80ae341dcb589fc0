package runtime

import (
	"context"
	"strings"

	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/pkg/domain"
)

// askQuestion is two-phase: present the question, then consume the reply.
func (e *Engine) askQuestion(_ context.Context, x *execution, stage *compiler.Stage) (*domain.StageResponse, error) {
	data, err := payload[domain.AskQuestionData](stage)
	if err != nil {
		return nil, err
	}

	if !x.awaiting(stage.Node.ID) {
		res := &domain.StageResponse{Message: x.render(data.Question)}
		res.SetVar(domain.KeyAwaitingInput, stage.Node.ID)
		return res, nil
	}

	res := &domain.StageResponse{
		NextStage:   e.program.DefaultNext(stage.ID),
		SkipMessage: true,
	}
	if data.Variable != "" {
		res.SetVar(data.Variable, x.msg.Text)
	}
	res.SetVar(domain.KeyAwaitingInput, nil)
	return res, nil
}

func (e *Engine) buttons(_ context.Context, x *execution, stage *compiler.Stage) (*domain.StageResponse, error) {
	data, err := payload[domain.ButtonsData](stage)
	if err != nil {
		return nil, err
	}

	if !x.awaiting(stage.Node.ID) {
		rendered := make([]domain.Button, len(data.Buttons))
		for i, b := range data.Buttons {
			rendered[i] = domain.Button{ID: b.ID, Text: x.render(b.Text)}
		}
		msg := x.render(data.Message)
		if data.Footer != "" {
			msg += "\n\n" + x.render(data.Footer)
		}
		res := &domain.StageResponse{
			Message:     msg,
			Interactive: &domain.InteractivePayload{Type: domain.InteractiveButtons, Buttons: rendered},
		}
		res.SetVar(domain.KeyAwaitingInput, stage.Node.ID)
		return res, nil
	}

	reply := strings.TrimSpace(x.msg.Text)
	choice := ""
	for _, b := range data.Buttons {
		if strings.EqualFold(reply, b.ID) || strings.EqualFold(reply, strings.TrimSpace(x.render(b.Text))) {
			choice = b.ID
			break
		}
	}
	return e.choose(x, stage, data.Variable, choice), nil
}

func (e *Engine) list(_ context.Context, x *execution, stage *compiler.Stage) (*domain.StageResponse, error) {
	data, err := payload[domain.ListData](stage)
	if err != nil {
		return nil, err
	}

	if !x.awaiting(stage.Node.ID) {
		sections := make([]domain.ListSection, len(data.Sections))
		for i, s := range data.Sections {
			rows := make([]domain.ListRow, len(s.Rows))
			for j, r := range s.Rows {
				rows[j] = domain.ListRow{ID: r.ID, Title: x.render(r.Title), Description: x.render(r.Description)}
			}
			sections[i] = domain.ListSection{Title: x.render(s.Title), Rows: rows}
		}
		res := &domain.StageResponse{
			Message: x.render(data.Message),
			Interactive: &domain.InteractivePayload{
				Type: domain.InteractiveList,
				List: &domain.ListPayload{ButtonText: x.render(data.ButtonText), Sections: sections},
			},
		}
		res.SetVar(domain.KeyAwaitingInput, stage.Node.ID)
		return res, nil
	}

	reply := strings.TrimSpace(x.msg.Text)
	choice := ""
	for _, s := range data.Sections {
		for _, r := range s.Rows {
			if strings.EqualFold(reply, r.ID) || strings.EqualFold(reply, strings.TrimSpace(x.render(r.Title))) {
				choice = r.ID
				break
			}
		}
		if choice != "" {
			break
		}
	}
	return e.choose(x, stage, data.Variable, choice), nil
}

// choose consumes the reply to a buttons or list node. An unmatched reply
// follows the default exit.
func (e *Engine) choose(x *execution, stage *compiler.Stage, variable, choice string) *domain.StageResponse {
	res := &domain.StageResponse{SkipMessage: true}
	if choice != "" {
		res.NextStage = e.program.HandleOrDefault(stage.ID, choice)
	} else {
		res.NextStage = e.program.DefaultNext(stage.ID)
		e.logger.Debug("Reply matched no option, following default exit",
			"conversation_id", x.msg.ConversationID,
			"node_id", stage.Node.ID,
		)
	}
	if variable != "" {
		if choice != "" {
			res.SetVar(variable, choice)
		} else {
			res.SetVar(variable, x.msg.Text)
		}
	}
	res.SetVar(domain.KeyAwaitingInput, nil)
	return res
}
