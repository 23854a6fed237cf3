package toolmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/jbuckmccready/dotfiles/internal/tool"
	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
	"github.com/jbuckmccready/dotfiles/internal/workflow"
)

type ToolManager struct {
	registry map[string]toolImpl
}

func NewToolManager(tools ...toolImpl) *ToolManager {
	tm := &ToolManager{
		registry: make(map[string]toolImpl),
	}
	for _, t := range tools {
		tm.Register(t)
	}
	return tm
}

func (m *ToolManager) Register(t toolImpl) {
	m.registry[t.Name()] = t
}

func (m *ToolManager) Declarations() []tool.Declaration {
	decls := make([]tool.Declaration, 0, len(m.registry))
	for _, t := range m.registry {
		decls = append(decls, t.Declaration())
	}
	sort.Slice(decls, func(i, j int) bool {
		return decls[i].Name < decls[j].Name
	})
	return decls
}

// decodeArgs fills req from a JSON argument object. Unknown keys are
// rejected; loosely typed values such as "5" for an integer are accepted.
func decodeArgs(raw json.RawMessage, req any) error {
	args := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           req,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

// Execute runs one call. Every tool failure becomes an error message for the
// agent; only cancellation is returned as an error.
func (m *ToolManager) Execute(ctx context.Context, tc Call, events chan<- workflow.Event) (Message, error) {
	t, ok := m.registry[tc.Name]
	if !ok {
		declsJSON, _ := json.MarshalIndent(m.Declarations(), "", "  ")
		m.invalid(tc.Name, events)
		return Message{
			ToolCallID: tc.ID,
			Content:    fmt.Sprintf("Error: tool %q does not exist.\n\nAvailable tools:\n%s", tc.Name, declsJSON),
			IsError:    true,
		}, nil
	}

	req := t.Input()
	if err := decodeArgs(tc.Arguments, req); err != nil {
		declJSON, _ := json.MarshalIndent(t.Declaration(), "", "  ")
		m.invalid(tc.Name, events)
		return Message{
			ToolCallID: tc.ID,
			Content:    fmt.Sprintf("Error: invalid arguments for tool %q: %v\n\nExpected schema:\n%s", tc.Name, err, declJSON),
			IsError:    true,
		}, nil
	}

	if events != nil {
		display := ""
		if s, ok := req.(fmt.Stringer); ok {
			display = s.String()
		}
		events <- workflow.ToolStartEvent{ToolName: tc.Name, RequestDisplay: display}
	}

	res, err := t.Execute(ctx, req)
	if err != nil {
		return m.failed(ctx, tc, err, events)
	}

	display := res.Display()
	if sh, ok := display.(tool.ShellDisplay); ok {
		buf := make([]byte, 4096)
		for {
			n, rerr := sh.Output.Read(buf)
			if n > 0 && events != nil {
				events <- workflow.ToolStreamEvent{ToolName: tc.Name, Chunk: string(buf[:n])}
			}
			if rerr != nil {
				// io.EOF or a closed pipe both end the stream
				break
			}
		}
		exitCode := sh.Wait()
		if e, ok := res.(errorer); ok && e.Err() != nil {
			return m.failed(ctx, tc, e.Err(), events)
		}
		if events != nil {
			events <- workflow.ShellEndEvent{ToolName: tc.Name, ExitCode: exitCode}
		}
	} else if events != nil {
		events <- workflow.ToolEndEvent{ToolName: tc.Name, Display: display, IsError: isFailed(res)}
	}

	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	return Message{ToolCallID: tc.ID, Content: res.LLMContent(), IsError: isFailed(res)}, nil
}

func (m *ToolManager) failed(ctx context.Context, tc Call, err error, events chan<- workflow.Event) (Message, error) {
	if ctx.Err() != nil || errors.Is(err, errutil.ErrAborted) {
		if events != nil {
			events <- workflow.ToolEndEvent{ToolName: tc.Name, Display: tool.StringDisplay("Cancelled"), IsError: true}
		}
		if ctx.Err() != nil {
			return Message{}, ctx.Err()
		}
		return Message{}, err
	}
	if events != nil {
		events <- workflow.ToolEndEvent{ToolName: tc.Name, Display: tool.StringDisplay(err.Error()), IsError: true}
	}
	return Message{ToolCallID: tc.ID, Content: "Error: " + err.Error(), IsError: true}, nil
}

func (m *ToolManager) invalid(name string, events chan<- workflow.Event) {
	if events == nil {
		return
	}
	events <- workflow.ToolStartEvent{ToolName: name}
	events <- workflow.ToolEndEvent{ToolName: name, Display: tool.StringDisplay("Invalid tool request"), IsError: true}
}

func isFailed(res tool.Result) bool {
	f, ok := res.(failer)
	return ok && f.Failed()
}
