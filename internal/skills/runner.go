package skills

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/google/uuid"

	"github.com/sheepbun/yips/internal/apperrors"
	"github.com/sheepbun/yips/internal/model"
)

// requestContext is the context object accompanying a skill invocation.
type requestContext struct {
	WorkingDirectory string `json:"working_directory"`
	SessionID        string `json:"session_id"`
}

// request is the JSON object written to a skill subprocess's stdin.
type request struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments any            `json:"arguments"`
	Context   requestContext `json:"context"`
}

// response is the JSON object expected on a skill subprocess's stdout.
type response struct {
	Status   string `json:"status"`
	Output   string `json:"output"`
	Metadata any    `json:"metadata,omitempty"`
}

// Invocation carries the caller-supplied context for one skill call.
type Invocation struct {
	WorkingDirectory string
	SessionID        string
}

// Run executes entry's subprocess with arguments, following the
// JSON-over-stdio protocol in spec.md §4.4: write one request object to
// stdin, close it, wait bounded by the manifest's timeout, then parse
// stdout as the response object.
func Run(ctx context.Context, entry *Entry, arguments json.RawMessage, inv Invocation) (model.ToolOutput, error) {
	var decodedArgs any
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &decodedArgs); err != nil {
			return model.ToolOutput{}, &apperrors.SkillError{
				SkillName: entry.Manifest.Name,
				Kind:      apperrors.SkillInvalidOutput,
				Cause:     fmt.Errorf("invalid arguments: %w", err),
			}
		}
	} else {
		decodedArgs = map[string]any{}
	}

	req := request{
		ID:        uuid.NewString(),
		Name:      entry.Manifest.Name,
		Arguments: decodedArgs,
		Context: requestContext{
			WorkingDirectory: inv.WorkingDirectory,
			SessionID:        inv.SessionID,
		},
	}
	reqBody, err := json.Marshal(req)
	if err != nil {
		return model.ToolOutput{}, &apperrors.SkillError{SkillName: entry.Manifest.Name, Kind: apperrors.SkillInvalidOutput, Cause: err}
	}

	timeout := entry.Manifest.Timeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if entry.Interpreter != "" {
		cmd = exec.CommandContext(runCtx, entry.Interpreter, entry.Executable)
	} else {
		cmd = exec.CommandContext(runCtx, entry.Executable)
	}
	cmd.Dir = entry.Dir
	cmd.Stdin = bytes.NewReader(reqBody)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if runCtx.Err() != nil {
		return model.ToolOutput{}, &apperrors.SkillError{
			SkillName: entry.Manifest.Name,
			Kind:      apperrors.SkillTimeout,
			Seconds:   timeout.Seconds(),
		}
	}

	if runErr != nil {
		exitErr, isExitError := runErr.(*exec.ExitError)
		if !isExitError {
			return model.ToolOutput{}, &apperrors.SkillError{
				SkillName: entry.Manifest.Name,
				Kind:      apperrors.SkillExecutableNotFound,
				Cause:     runErr,
			}
		}
		return model.ToolOutput{}, &apperrors.SkillError{
			SkillName: entry.Manifest.Name,
			Kind:      apperrors.SkillExecutionFailed,
			Status:    exitErr.ExitCode(),
			Stderr:    stderr.String(),
		}
	}

	var resp response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return model.ToolOutput{}, &apperrors.SkillError{
			SkillName: entry.Manifest.Name,
			Kind:      apperrors.SkillInvalidOutput,
			Cause:     err,
		}
	}

	return model.ToolOutput{Success: resp.Status == "ok", Content: resp.Output}, nil
}
